package simulator

import (
	"encoding/binary"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-simplserial/logger"
	"github.com/arloliu/go-simplserial/simplserial"
)

// ErrClosed is returned by Read and Write after Close.
var ErrClosed = errors.New("simulator: bus closed")

// Default timing of simulated replies.
const (
	DefaultReplyDelay     = 2 * time.Millisecond
	DefaultDiscoverySlot  = 20 * time.Millisecond
	DefaultDiscoverySlots = 8
)

// chunk is a run of bytes that becomes readable at readyAt.
type chunk struct {
	readyAt time.Time
	data    []byte
}

// Bus is a simulated serial line with attached devices. It implements
// simplserial.Transport and is safe for concurrent use.
type Bus struct {
	devices *xsync.MapOf[simplserial.DeviceGuid, *Device]
	logger  logger.Logger

	replyDelay     time.Duration
	discoverySlot  time.Duration
	discoverySlots int
	collisions     bool

	mu       sync.Mutex
	parser   *simplserial.FrameParser
	rx       []chunk
	readErr  error
	writeErr error
	closed   bool

	requestCount atomic.Uint64
}

var _ simplserial.Transport = (*Bus)(nil)

// Option configures a Bus.
type Option func(*Bus)

// WithReplyDelay sets the delay between the end of a request and the reply of
// an addressed device.
func WithReplyDelay(d time.Duration) Option {
	return func(b *Bus) { b.replyDelay = d }
}

// WithDiscoverySlots sets the width and count of the time slots discovery
// replies are spread over.
func WithDiscoverySlots(slot time.Duration, count int) Option {
	return func(b *Bus) {
		b.discoverySlot = slot
		if count > 0 {
			b.discoverySlots = count
		}
	}
}

// WithCollisions makes discovery replies that share a slot interleave on the line.
func WithCollisions(enabled bool) Option {
	return func(b *Bus) { b.collisions = enabled }
}

// WithLogger sets the logger of the bus.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBus creates a Bus with the given devices attached.
func NewBus(devices []*Device, opts ...Option) *Bus {
	b := &Bus{
		devices:        xsync.NewMapOf[simplserial.DeviceGuid, *Device](),
		logger:         logger.GetLogger(),
		replyDelay:     DefaultReplyDelay,
		discoverySlot:  DefaultDiscoverySlot,
		discoverySlots: DefaultDiscoverySlots,
		parser:         simplserial.NewRequestParser(0),
	}

	for _, opt := range opts {
		opt(b)
	}

	for _, d := range devices {
		b.Attach(d)
	}

	return b
}

// Attach connects d to the line, replacing any device with the same GUID.
func (b *Bus) Attach(d *Device) {
	b.devices.Store(d.Guid(), d)
}

// Detach disconnects the device with the given GUID.
func (b *Bus) Detach(guid simplserial.DeviceGuid) {
	b.devices.Delete(guid)
}

// Device returns the attached device with the given GUID.
func (b *Bus) Device(guid simplserial.DeviceGuid) (*Device, bool) {
	return b.devices.Load(guid)
}

// Devices returns the attached devices ordered by GUID.
func (b *Bus) Devices() []*Device {
	out := make([]*Device, 0, b.devices.Size())
	b.devices.Range(func(_ simplserial.DeviceGuid, d *Device) bool {
		out = append(out, d)
		return true
	})

	slices.SortFunc(out, func(x, y *Device) int {
		gx, gy := x.Guid(), y.Guid()
		return slices.Compare(gx[:], gy[:])
	})

	return out
}

// RequestCount returns the number of complete, valid request frames written by
// the master.
func (b *Bus) RequestCount() uint64 {
	return b.requestCount.Load()
}

// Inject queues raw bytes on the line, readable after delay.
func (b *Bus) Inject(delay time.Duration, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.schedule(time.Now().Add(delay), slices.Clone(data))
}

// FailReads makes every subsequent Read fail with err; nil restores reads.
func (b *Bus) FailReads(err error) {
	b.mu.Lock()
	b.readErr = err
	b.mu.Unlock()
}

// FailWrites makes every subsequent Write fail with err; nil restores writes.
func (b *Bus) FailWrites(err error) {
	b.mu.Lock()
	b.writeErr = err
	b.mu.Unlock()
}

// Read returns bytes whose time has come, without blocking.
func (b *Bus) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}
	if b.readErr != nil {
		return 0, b.readErr
	}

	now := time.Now()
	n := 0
	for n < len(p) && len(b.rx) > 0 && !b.rx[0].readyAt.After(now) {
		c := &b.rx[0]
		copied := copy(p[n:], c.data)
		n += copied
		c.data = c.data[copied:]
		if len(c.data) == 0 {
			b.rx = b.rx[1:]
		}
	}

	return n, nil
}

// Write delivers master bytes to every attached device.
func (b *Bus) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}
	if b.writeErr != nil {
		return 0, b.writeErr
	}

	for _, c := range p {
		payload, err := b.parser.Feed(c)
		if err != nil {
			b.logger.Debug("simulator: dropped request frame", "error", err)
			continue
		}
		if payload == nil {
			continue
		}

		req, err := simplserial.ParseRequest(payload)
		if err != nil {
			continue
		}

		b.requestCount.Add(1)
		b.dispatch(req)
	}

	return len(p), nil
}

// Close detaches the line; further reads and writes fail with ErrClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.rx = nil

	return nil
}

// dispatch lets every device answer req. The caller must hold b.mu.
func (b *Bus) dispatch(req simplserial.Request) {
	now := time.Now()

	if req.Address == simplserial.BroadcastAddress && req.Command == simplserial.CmdDiscover {
		b.dispatchDiscovery(now, req)
		return
	}

	b.devices.Range(func(_ simplserial.DeviceGuid, d *Device) bool {
		if frame := d.handle(req); frame != nil {
			b.schedule(now.Add(b.replyDelay), frame)
		}
		return true
	})
}

// dispatchDiscovery spreads discovery replies over time slots chosen from the
// seed and each device GUID. The caller must hold b.mu.
func (b *Bus) dispatchDiscovery(now time.Time, req simplserial.Request) {
	var seed uint32
	if len(req.Data) == 4 {
		seed = binary.BigEndian.Uint32(req.Data)
	}

	slots := make(map[int][][]byte)
	b.devices.Range(func(guid simplserial.DeviceGuid, d *Device) bool {
		if frame := d.handle(req); frame != nil {
			slot := discoverySlot(seed, guid, b.discoverySlots)
			slots[slot] = append(slots[slot], frame)
		}
		return true
	})

	for slot, frames := range slots {
		readyAt := now.Add(b.replyDelay + time.Duration(slot)*b.discoverySlot)

		if b.collisions && len(frames) > 1 {
			b.logger.Debug("simulator: discovery replies collide", "slot", slot, "count", len(frames))
			b.schedule(readyAt, interleave(frames))

			continue
		}

		for _, frame := range frames {
			b.schedule(readyAt, frame)
		}
	}
}

// schedule inserts data keeping rx ordered by readiness. The caller must hold b.mu.
func (b *Bus) schedule(readyAt time.Time, data []byte) {
	i, _ := slices.BinarySearchFunc(b.rx, readyAt, func(c chunk, t time.Time) int {
		if c.readyAt.After(t) {
			return 1
		}
		return -1
	})
	b.rx = slices.Insert(b.rx, i, chunk{readyAt: readyAt, data: data})
}

// discoverySlot maps seed and guid to a slot in [0, slots).
func discoverySlot(seed uint32, guid simplserial.DeviceGuid, slots int) int {
	if slots <= 1 {
		return 0
	}
	h := seed ^ uint32(simplserial.Checksum(guid[:]))
	h ^= h >> 16
	h *= 0x45d9f3b
	h ^= h >> 16

	return int(h % uint32(slots)) //nolint:gosec // slots is small and positive
}

// interleave merges frames byte by byte, as simultaneous transmitters would.
func interleave(frames [][]byte) []byte {
	size := 0
	for _, f := range frames {
		size += len(f)
	}

	out := make([]byte, 0, size)
	for i := 0; len(out) < size; i++ {
		for _, f := range frames {
			if i < len(f) {
				out = append(out, f[i])
			}
		}
	}

	return out
}
