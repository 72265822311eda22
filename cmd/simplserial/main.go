// Command simplserial drives a SimplSerial bus from the command line.
//
// Usage:
//
//	simplserial scan --port /dev/ttyUSB0 --window 7s
//	simplserial info 10 --port /dev/ttyUSB0
//	simplserial assign 01-02-...-10 12 --port /dev/ttyUSB0
//	simplserial request 12 1 0a0b0c --port /dev/ttyUSB0
//	simplserial scan --simulate devices.toml --output yaml
//
// Settings may also come from simplserial.toml and SIMPLSERIAL_* environment
// variables; see internal/config.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "simplserial",
	Short: "SimplSerial bus master",
	Long: `simplserial discovers, addresses and queries devices on a SimplSerial
half-duplex serial bus.`,
	SilenceUsage: true,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover devices, assign addresses and read their information",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

var infoCmd = &cobra.Command{
	Use:   "info <address>",
	Short: "Read the information of the device at an address",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var assignCmd = &cobra.Command{
	Use:   "assign <guid> <address>",
	Short: "Assign an address to the device with a GUID",
	Args:  cobra.ExactArgs(2),
	RunE:  runAssign,
}

var requestCmd = &cobra.Command{
	Use:   "request <address> <command> [hex-data]",
	Short: "Send a raw request and print the response",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runRequest,
}

func init() {
	rootCmd.AddCommand(scanCmd, infoCmd, assignCmd, requestCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Configuration file (default ./simplserial.{toml,yaml,json})")
	pf.String("port", "", "Serial port name, e.g. /dev/ttyUSB0")
	pf.Int("baud", 9600, "Baud rate")
	pf.Duration("timeout", 0, "Receive timeout of one exchange")
	pf.Int("retries", 0, "Retries of bus-management requests")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("simulate", "", "Simulator fixture (TOML) to use instead of a serial port")

	scanCmd.Flags().Duration("window", 0, "Discovery window")
	scanCmd.Flags().Uint16("first", 0, "First address to assign")
	scanCmd.Flags().String("output", "", "Output format: text or yaml")
	scanCmd.Flags().Bool("loop", false, "Repeat the scan until interrupted")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
