package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tarm/serial"

	"github.com/arloliu/go-simplserial/logger"
	"github.com/arloliu/go-simplserial/simplserial"
)

// ErrClosed is returned by Read and Write after Close.
var ErrClosed = errors.New("serialport: port closed")

// Port is a simplserial.Transport over a serial device.
type Port struct {
	raw    io.ReadWriteCloser
	name   string
	logger logger.Logger

	mu         sync.Mutex
	pending    []byte
	maxPending int
	readErr    error
	closed     bool

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

var _ simplserial.Transport = (*Port)(nil)

// Open opens the serial device described by cfg and starts its background reader.
func Open(cfg Config) (*Port, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	raw, err := serial.OpenPort(cfg.driverConfig())
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s at %d baud: %w", cfg.Name, cfg.BaudRate, err)
	}

	cfg.Logger.Debug("serialport: opened", "port", cfg.Name, "baudRate", cfg.BaudRate)

	return newPort(raw, cfg), nil
}

// newPort wraps an already open device. cfg must be normalized.
func newPort(raw io.ReadWriteCloser, cfg Config) *Port {
	p := &Port{
		raw:        raw,
		name:       cfg.Name,
		logger:     cfg.Logger,
		maxPending: cfg.MaxPending,
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}

	go p.readLoop()

	return p
}

// Name returns the device name of the port.
func (p *Port) Name() string {
	return p.name
}

// Read copies already received bytes into b. It never blocks: it returns 0, nil
// when nothing is pending. Once the background reader failed, Read returns its
// error after the pending bytes are consumed.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}

	if len(p.pending) == 0 {
		return 0, p.readErr
	}

	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	if len(p.pending) == 0 {
		p.pending = nil
	}

	return n, nil
}

// Write writes b to the device, blocking until the driver accepted it.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return 0, ErrClosed
	}

	return p.raw.Write(b)
}

// Close stops the background reader and closes the device.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.pending = nil
		p.mu.Unlock()

		close(p.done)
		err = p.raw.Close()
		<-p.stopped

		p.logger.Debug("serialport: closed", "port", p.name)
	})

	return err
}

func (p *Port) readLoop() {
	defer close(p.stopped)

	buf := make([]byte, 256)
	for {
		n, err := p.raw.Read(buf)
		if n > 0 {
			p.enqueue(buf[:n])
		}

		if err == nil || errors.Is(err, io.EOF) {
			// the driver reports an expired read timeout as io.EOF
			select {
			case <-p.done:
				return
			default:
				continue
			}
		}

		select {
		case <-p.done:
			return
		default:
		}

		p.logger.Warn("serialport: read failed", "port", p.name, "error", err)

		p.mu.Lock()
		p.readErr = fmt.Errorf("serialport: read %s: %w", p.name, err)
		p.mu.Unlock()

		return
	}
}

func (p *Port) enqueue(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = append(p.pending, data...)
	if over := len(p.pending) - p.maxPending; over > 0 {
		p.pending = p.pending[over:]
		p.logger.Debug("serialport: receive backlog full, dropped oldest bytes", "port", p.name, "count", over)
	}
}
