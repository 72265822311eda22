package simplserial

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTransport is a scripted Transport. Bytes in rx are readable immediately;
// onWrite may append a reply for every written frame.
type fakeTransport struct {
	mu       sync.Mutex
	rx       []byte
	writes   [][]byte
	readErr  error
	writeErr error
	// drainedErr is returned by Read once rx is empty, after the first write.
	drainedErr error
	onWrite    func(n int, frame []byte) []byte
	closed     bool
}

var _ Transport = (*fakeTransport)(nil)

func (f *fakeTransport) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.rx) == 0 {
		if f.drainedErr != nil && len(f.writes) > 0 {
			return 0, f.drainedErr
		}
		return 0, nil
	}

	n := copy(p, f.rx)
	f.rx = f.rx[n:]

	return n, nil
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return 0, f.writeErr
	}

	frame := make([]byte, len(p))
	copy(frame, p)
	f.writes = append(f.writes, frame)

	if f.onWrite != nil {
		f.rx = append(f.rx, f.onWrite(len(f.writes), frame)...)
	}

	return len(p), nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	return nil
}

func (f *fakeTransport) feed(data ...byte) {
	f.mu.Lock()
	f.rx = append(f.rx, data...)
	f.mu.Unlock()
}

func (f *fakeTransport) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.writes)
}

func (f *fakeTransport) written(i int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.writes[i]
}

// testTimeout is the receive timeout of test buses.
const testTimeout = 100 * time.Millisecond

// newTestBus creates a Bus with short timeouts suitable for tests.
func newTestBus(t *testing.T, tr Transport, opts ...BusOption) *Bus {
	t.Helper()

	defaults := []BusOption{
		WithTimeout(testTimeout),
		WithPollInterval(time.Millisecond),
	}

	cfg, err := NewBusConfig(append(defaults, opts...)...)
	require.NoError(t, err)

	bus, err := NewBus(tr, cfg)
	require.NoError(t, err)

	return bus
}

// parseWrittenRequest parses a frame written by the bus. It is safe to call
// from any goroutine.
func parseWrittenRequest(frame []byte) (Request, error) {
	p := NewRequestParser(0)
	for i, b := range frame {
		payload, err := p.Feed(b)
		if err != nil {
			return Request{}, err
		}
		if payload == nil {
			continue
		}
		// the end sequence is followed by a single padding byte
		if i != len(frame)-2 {
			return Request{}, fmt.Errorf("frame ends at %d of %d bytes", i, len(frame))
		}

		return ParseRequest(payload)
	}

	return Request{}, fmt.Errorf("no complete request in % X", frame)
}

// decodeWrittenRequest parses a frame written by the bus and fails the test on
// error. Call it from the test goroutine only.
func decodeWrittenRequest(t *testing.T, frame []byte) Request {
	t.Helper()

	req, err := parseWrittenRequest(frame)
	require.NoError(t, err)

	return req
}

// refCRC is a bit-by-bit CRC-16 with reflected polynomial 0xA001 and initial
// value 0xFFFF.
func refCRC(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for range 8 {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}

	return crc
}

// stuffed appends b to out, followed by 0x00 when b is the marker.
func stuffed(out []byte, bs ...byte) []byte {
	for _, b := range bs {
		out = append(out, b)
		if b == Marker {
			out = append(out, 0x00)
		}
	}

	return out
}
