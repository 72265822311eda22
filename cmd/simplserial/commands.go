package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-simplserial/simplserial"
)

func runScan(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	loop, _ := cmd.Flags().GetBool("loop")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	for {
		devices, err := s.bus.Scan(s.cfg.Scan.Window, simplserial.Address(s.cfg.Scan.FirstAddress))
		if err != nil && len(devices) == 0 {
			return err
		}
		if err != nil {
			s.log.Warn("some devices could not be set up", "error", err)
		}

		if err := writeDevices(cmd.OutOrStdout(), s.cfg.Scan.Output, devices); err != nil {
			return err
		}

		if !loop {
			return nil
		}

		select {
		case <-stop:
			return nil
		default:
		}
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	info, err := s.bus.DeviceInfo(addr)
	if err != nil {
		return err
	}

	return writeDevices(cmd.OutOrStdout(), s.cfg.Scan.Output, []simplserial.ScannedDevice{{Address: addr, DeviceInfo: *info}})
}

func runAssign(cmd *cobra.Command, args []string) error {
	guid, err := simplserial.ParseDeviceGuid(args[0])
	if err != nil {
		return usageErr("%v", err)
	}

	addr, err := parseAddress(args[1])
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.bus.AssignAddress(guid, addr); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "[%s] -> %d\n", guid, addr)

	return nil
}

func runRequest(cmd *cobra.Command, args []string) error {
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}

	command, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return usageErr("command %q: %v", args[1], err)
	}

	var data []byte
	if len(args) == 3 {
		if data, err = hex.DecodeString(strings.ReplaceAll(args[2], " ", "")); err != nil {
			return usageErr("data %q: %v", args[2], err)
		}
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	resp := s.bus.Request(simplserial.NewRequest(addr, simplserial.Command(command), data...))
	fmt.Fprintf(cmd.OutOrStdout(), "state=%s from=%d result=%d data=%s\n",
		resp.State, resp.FromAddress, resp.Result, hex.EncodeToString(resp.Data))

	if !resp.OK() {
		return fmt.Errorf("request failed: %s", resp.State)
	}

	return nil
}

func parseAddress(s string) (simplserial.Address, error) {
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, usageErr("address %q: %v", s, err)
	}

	return simplserial.Address(n), nil
}

// deviceReport is the serialized form of a device in yaml output.
type deviceReport struct {
	Address uint16 `yaml:"address"`
	Guid    string `yaml:"guid"`
	Name    string `yaml:"name"`
	Date    string `yaml:"date"`
}

func writeDevices(w io.Writer, format string, devices []simplserial.ScannedDevice) error {
	if format == "yaml" {
		reports := make([]deviceReport, 0, len(devices))
		for _, d := range devices {
			reports = append(reports, deviceReport{
				Address: uint16(d.Address),
				Guid:    d.Guid.String(),
				Name:    d.Name,
				Date:    d.Date,
			})
		}

		enc := yaml.NewEncoder(w)
		defer enc.Close()

		return enc.Encode(map[string]any{"devices": reports})
	}

	fmt.Fprintf(w, "Detected devices: %d\n", len(devices))
	for _, d := range devices {
		fmt.Fprintf(w, "[%s] %d: %q - %s\n", d.Guid, d.Address, d.Name, d.Date)
	}

	return nil
}
