package serialport

import (
	"errors"
	"fmt"
	"time"

	"github.com/tarm/serial"

	"github.com/arloliu/go-simplserial/logger"
)

// Default values for a Config.
const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = 100 * time.Millisecond
	DefaultMaxPending  = 64 * 1024
)

// Parity and StopBits mirror the settings of the underlying driver.
type (
	Parity   = serial.Parity
	StopBits = serial.StopBits
)

const (
	ParityNone = serial.ParityNone
	ParityOdd  = serial.ParityOdd
	ParityEven = serial.ParityEven

	Stop1 = serial.Stop1
	Stop2 = serial.Stop2
)

// Config describes the serial port to open.
type Config struct {
	// Name is the device name, e.g. "/dev/ttyUSB0" or "COM3".
	Name string
	// BaudRate is the line speed in bits per second.
	BaudRate int
	// Parity defaults to ParityNone.
	Parity Parity
	// StopBits defaults to Stop1.
	StopBits StopBits
	// ReadTimeout bounds each blocking driver read of the background reader.
	// It only affects how quickly Close is noticed, not Read latency.
	ReadTimeout time.Duration
	// MaxPending bounds the bytes buffered between background reads and Read.
	// When exceeded, the oldest bytes are dropped.
	MaxPending int
	// Logger defaults to the package default logger.
	Logger logger.Logger
}

// NewConfig returns a Config for name at baud with defaults for everything else.
func NewConfig(name string, baud int) Config {
	return Config{Name: name, BaudRate: baud}
}

func (c *Config) normalize() error {
	if c.Name == "" {
		return errors.New("serialport: port name must not be empty")
	}
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.BaudRate < 0 {
		return fmt.Errorf("serialport: invalid baud rate %d", c.BaudRate)
	}
	if c.Parity == 0 {
		c.Parity = ParityNone
	}
	if c.StopBits == 0 {
		c.StopBits = Stop1
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.MaxPending <= 0 {
		c.MaxPending = DefaultMaxPending
	}
	if c.Logger == nil {
		c.Logger = logger.GetLogger()
	}

	return nil
}

func (c *Config) driverConfig() *serial.Config {
	return &serial.Config{
		Name:        c.Name,
		Baud:        c.BaudRate,
		Size:        8,
		Parity:      c.Parity,
		StopBits:    c.StopBits,
		ReadTimeout: c.ReadTimeout,
	}
}
