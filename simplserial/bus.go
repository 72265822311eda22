package simplserial

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-simplserial/internal/pool"
	"github.com/arloliu/go-simplserial/logger"
)

// Bus is the master end of a SimplSerial line.
//
// A Bus serializes every exchange on its transport: a request attempt, or a whole
// discovery window, holds the bus exclusively until it completes. Callers may use
// a Bus from multiple goroutines; exchanges simply queue on the lock.
type Bus struct {
	mu        sync.Mutex
	transport Transport
	cfg       *BusConfig
	logger    logger.Logger
	metrics   BusMetrics
}

// NewBus creates a Bus exchanging frames over t. A nil cfg selects the defaults
// of NewBusConfig.
func NewBus(t Transport, cfg *BusConfig) (*Bus, error) {
	if t == nil {
		return nil, ErrTransportNil
	}

	if cfg == nil {
		var err error
		if cfg, err = NewBusConfig(); err != nil {
			return nil, err
		}
	}

	return &Bus{
		transport: t,
		cfg:       cfg,
		logger:    cfg.GetLogger(),
	}, nil
}

// Config returns the configuration of the bus.
func (b *Bus) Config() *BusConfig {
	return b.cfg
}

// Metrics returns the metrics of the bus.
func (b *Bus) Metrics() *BusMetrics {
	return &b.metrics
}

// Close waits for the exchange in flight, if any, and closes the transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.transport.Close()
}

// Request sends req and waits up to the configured timeout for the reply.
func (b *Bus) Request(req Request) Response {
	return b.RequestTimeout(req, b.cfg.timeout)
}

// RequestTimeout sends req and waits up to timeout for the reply.
//
// Bytes already pending on the transport are discarded before req is written.
// The returned Response carries StateTimeout, StateChecksumError or
// StatePortError when no valid reply was received.
func (b *Bus) RequestTimeout(req Request, timeout time.Duration) Response {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.exchange(req, timeout)
}

// RequestRetry sends req up to retries+1 times with the configured timeout and
// returns the first successful response, or the response of the last attempt.
// A negative retries is treated as zero: req is always sent at least once.
func (b *Bus) RequestRetry(req Request, retries int) Response {
	retries = max(retries, 0)

	var resp Response
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			b.metrics.incRetryCount()
			b.logger.Debug("simplserial: request retry",
				"address", req.Address,
				"command", req.Command,
				"retry", attempt,
				"maxRetry", retries,
				"state", resp.State,
			)
		}

		resp = b.Request(req)
		if resp.OK() {
			return resp
		}
	}

	return resp
}

// exchange performs one drain, send and receive cycle. The caller must hold b.mu.
func (b *Bus) exchange(req Request, timeout time.Duration) Response {
	b.drain()

	if err := b.send(req); err != nil {
		b.logger.Warn("simplserial: failed to send request", "request", req, "error", err)
		return Response{State: StatePortError}
	}

	resp, err := b.receive(timeout)
	if err != nil {
		b.logger.Debug("simplserial: no valid response", "request", req, "state", resp.State, "error", err)
	}

	return resp
}

// drain discards bytes pending on the transport, left over from an earlier
// exchange or sent unsolicited. Read errors end the drain and are otherwise
// ignored. Draining stops after the default timeout on a line that never goes idle.
func (b *Bus) drain() {
	var buf [64]byte

	deadline := time.Now().Add(b.cfg.timeout)
	discarded := 0
	for time.Now().Before(deadline) {
		n, err := b.transport.Read(buf[:])
		if err != nil {
			b.logger.Debug("simplserial: drain read failed", "error", err)
			break
		}
		if n == 0 {
			break
		}
		discarded += n
	}

	if discarded > 0 {
		b.logger.Debug("simplserial: discarded stale bytes", "count", discarded)
	}
}

// send writes the encoded request. The caller must hold b.mu.
func (b *Bus) send(req Request) error {
	frame := EncodeRequest(req)

	for written := 0; written < len(frame); {
		n, err := b.transport.Write(frame[written:])
		written += n

		if err != nil {
			b.metrics.incPortErrCount()
			return fmt.Errorf("%w: write: %w", ErrPortFailure, err)
		}
	}

	b.metrics.incFrameSendCount()

	return nil
}

// receive runs one receive pass: it reads the transport byte by byte until a
// complete frame arrives or timeout elapses.
//
// A frame with a bad checksum ends the pass with StateChecksumError. A read
// failure ends it with StatePortError. An oversized frame is discarded and the
// pass continues. The caller must hold b.mu.
func (b *Bus) receive(timeout time.Duration) (Response, error) {
	parser := NewResponseParser(b.cfg.bufferCapacity)
	var one [1]byte

	start := time.Now()
	for {
		remaining := timeout - time.Since(start)
		if remaining <= 0 {
			b.metrics.incTimeoutCount()
			return Response{State: StateTimeout}, nil
		}

		n, err := b.transport.Read(one[:])
		if err != nil {
			b.metrics.incPortErrCount()
			return Response{State: StatePortError}, fmt.Errorf("%w: read: %w", ErrPortFailure, err)
		}

		if n == 0 {
			pool.Sleep(min(b.cfg.pollInterval, remaining))
			continue
		}

		payload, err := parser.Feed(one[0])
		if err != nil {
			if errors.Is(err, ErrFrameOverflow) {
				b.metrics.incOverflowCount()
				b.logger.Debug("simplserial: receive buffer overflow, frame discarded", "error", err)

				continue
			}

			b.metrics.incChecksumErrCount()

			return Response{State: StateChecksumError}, err
		}

		if payload == nil {
			continue
		}

		resp, err := ParseResponse(payload)
		if err != nil {
			return resp, err
		}
		b.metrics.incFrameRecvCount()

		return resp, nil
	}
}
