// Package config loads the configuration of the simplserial command.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// configuration file (TOML, YAML or JSON), SIMPLSERIAL_* environment variables
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/arloliu/go-simplserial/logger"
	"github.com/arloliu/go-simplserial/simplserial"
)

// EnvPrefix prefixes the environment variables read by Load, e.g.
// SIMPLSERIAL_PORT_NAME or SIMPLSERIAL_BUS_TIMEOUT.
const EnvPrefix = "SIMPLSERIAL"

// Config holds all configuration of the simplserial command.
type Config struct {
	Port    PortConfig    `mapstructure:"port"`
	Bus     BusConfig     `mapstructure:"bus"`
	Scan    ScanConfig    `mapstructure:"scan"`
	Logging LoggingConfig `mapstructure:"logging"`
	// Simulate is the path of a simulator fixture; when set, no serial port is opened.
	Simulate string `mapstructure:"simulate"`
}

// PortConfig selects the serial port.
type PortConfig struct {
	Name     string `mapstructure:"name"`
	BaudRate int    `mapstructure:"baud_rate"`
}

// BusConfig tunes the protocol engine.
type BusConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	BufferCapacity int           `mapstructure:"buffer_capacity"`
	Retries        int           `mapstructure:"retries"`
}

// ScanConfig tunes the scan command.
type ScanConfig struct {
	Window       time.Duration `mapstructure:"window"`
	FirstAddress uint16        `mapstructure:"first_address"`
	Output       string        `mapstructure:"output"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Flag names bound to configuration keys by Load.
var flagKeys = map[string]string{
	"port":      "port.name",
	"baud":      "port.baud_rate",
	"timeout":   "bus.timeout",
	"retries":   "bus.retries",
	"window":    "scan.window",
	"first":     "scan.first_address",
	"output":    "scan.output",
	"log-level": "logging.level",
	"simulate":  "simulate",
}

// Load reads the configuration. path may be empty, in which case a file named
// simplserial.{toml,yaml,json} is looked up in the working directory and in
// /etc/simplserial; a missing file is not an error. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("simplserial")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/simplserial")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port.name", "")
	v.SetDefault("port.baud_rate", 9600)

	v.SetDefault("bus.timeout", simplserial.DefaultTimeout)
	v.SetDefault("bus.poll_interval", simplserial.DefaultPollInterval)
	v.SetDefault("bus.buffer_capacity", simplserial.DefaultBufferCapacity)
	v.SetDefault("bus.retries", simplserial.DefaultMgmtRetries)

	v.SetDefault("scan.window", 7*time.Second)
	v.SetDefault("scan.first_address", 10)
	v.SetDefault("scan.output", "text")

	v.SetDefault("logging.level", "info")
	v.SetDefault("simulate", "")
}

// Validate checks settings that the option constructors do not cover.
func (c *Config) Validate() error {
	if c.Simulate == "" && strings.TrimSpace(c.Port.Name) == "" {
		return errors.New("config: port.name is required unless simulate is set")
	}
	if c.Port.BaudRate <= 0 {
		return fmt.Errorf("config: invalid port.baud_rate %d", c.Port.BaudRate)
	}
	if c.Scan.Window <= 0 {
		return fmt.Errorf("config: invalid scan.window %v", c.Scan.Window)
	}
	if c.Scan.FirstAddress == 0 {
		return errors.New("config: scan.first_address must not be the broadcast address 0")
	}
	switch c.Scan.Output {
	case "text", "yaml":
	default:
		return fmt.Errorf("config: unknown scan.output %q", c.Scan.Output)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() logger.Level {
	level, _ := logger.ParseLevel(c.Logging.Level)
	return level
}

// BusConfig builds the protocol engine configuration.
func (c *Config) BusConfig(l logger.Logger) (*simplserial.BusConfig, error) {
	return simplserial.NewBusConfig(
		simplserial.WithTimeout(c.Bus.Timeout),
		simplserial.WithPollInterval(c.Bus.PollInterval),
		simplserial.WithBufferCapacity(c.Bus.BufferCapacity),
		simplserial.WithMgmtRetries(c.Bus.Retries),
		simplserial.WithLogger(l),
	)
}
