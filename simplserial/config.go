package simplserial

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-simplserial/logger"
)

// Default values for a BusConfig.
const (
	DefaultTimeout      = 1000 * time.Millisecond // receive timeout of a single exchange
	DefaultPollInterval = 10 * time.Millisecond   // sleep when the transport has no data
	DefaultMgmtRetries  = 5                       // retries of bus-management requests
)

// Limits enforced by the BusConfig options.
const (
	MinTimeout = 10 * time.Millisecond
	MaxTimeout = 60 * time.Second

	MinPollInterval = 100 * time.Microsecond
	MaxPollInterval = 100 * time.Millisecond

	MinBufferCapacity = 16
	MaxBufferCapacity = 64 * 1024

	MaxMgmtRetries = 31
)

// BusConfig holds the configuration of a Bus.
type BusConfig struct {
	// timeout is the default receive timeout of one exchange.
	timeout time.Duration

	// pollInterval is how long a receive pass sleeps when no byte is available.
	pollInterval time.Duration

	// bufferCapacity bounds the de-stuffed size of one received frame.
	bufferCapacity int

	// mgmtRetries is the retry count of DeviceInfo and AssignAddress.
	mgmtRetries int

	logger logger.Logger
}

// NewBusConfig creates a BusConfig with defaults, then applies opts in order.
func NewBusConfig(opts ...BusOption) (*BusConfig, error) {
	cfg := &BusConfig{
		timeout:        DefaultTimeout,
		pollInterval:   DefaultPollInterval,
		bufferCapacity: DefaultBufferCapacity,
		mgmtRetries:    DefaultMgmtRetries,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Timeout returns the default receive timeout of one exchange.
func (cfg *BusConfig) Timeout() time.Duration { return cfg.timeout }

// PollInterval returns the idle sleep of a receive pass.
func (cfg *BusConfig) PollInterval() time.Duration { return cfg.pollInterval }

// BufferCapacity returns the maximum de-stuffed frame size.
func (cfg *BusConfig) BufferCapacity() int { return cfg.bufferCapacity }

// MgmtRetries returns the retry count of bus-management requests.
func (cfg *BusConfig) MgmtRetries() int { return cfg.mgmtRetries }

// GetLogger returns the configured logger.
func (cfg *BusConfig) GetLogger() logger.Logger { return cfg.logger }

// BusOption is a functional option for configuring a BusConfig.
type BusOption interface {
	apply(*BusConfig) error
}

type busOptFunc func(*BusConfig) error

func (f busOptFunc) apply(cfg *BusConfig) error { return f(cfg) }

// WithTimeout sets the default receive timeout used by Request.
func WithTimeout(d time.Duration) BusOption {
	return busOptFunc(func(cfg *BusConfig) error {
		if d < MinTimeout || d > MaxTimeout {
			return fmt.Errorf("simplserial: timeout %v out of range [%v, %v]", d, MinTimeout, MaxTimeout)
		}
		cfg.timeout = d

		return nil
	})
}

// WithPollInterval sets how long a receive pass sleeps when the transport has
// no data available.
func WithPollInterval(d time.Duration) BusOption {
	return busOptFunc(func(cfg *BusConfig) error {
		if d < MinPollInterval || d > MaxPollInterval {
			return fmt.Errorf("simplserial: poll interval %v out of range [%v, %v]", d, MinPollInterval, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithBufferCapacity sets the maximum de-stuffed size of a received frame.
func WithBufferCapacity(n int) BusOption {
	return busOptFunc(func(cfg *BusConfig) error {
		if n < MinBufferCapacity || n > MaxBufferCapacity {
			return fmt.Errorf("simplserial: buffer capacity %d out of range [%d, %d]", n, MinBufferCapacity, MaxBufferCapacity)
		}
		cfg.bufferCapacity = n

		return nil
	})
}

// WithMgmtRetries sets the retry count of DeviceInfo and AssignAddress.
func WithMgmtRetries(n int) BusOption {
	return busOptFunc(func(cfg *BusConfig) error {
		if n < 0 || n > MaxMgmtRetries {
			return fmt.Errorf("simplserial: management retries %d out of range [0, %d]", n, MaxMgmtRetries)
		}
		cfg.mgmtRetries = n

		return nil
	})
}

// WithLogger sets the logger of the bus.
func WithLogger(l logger.Logger) BusOption {
	return busOptFunc(func(cfg *BusConfig) error {
		if l == nil {
			return errors.New("simplserial: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
