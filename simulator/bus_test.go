package simulator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-simplserial/simplserial"
)

func TestBus_ReplyDelay(t *testing.T) {
	d := NewDevice(testGuid(1), "", "")
	d.SetAddress(4)
	b := NewBus([]*Device{d}, WithReplyDelay(30*time.Millisecond))

	writeRequest(t, b, simplserial.NewRequest(4, 1, 0x01))
	assert.Equal(t, uint64(1), b.RequestCount())

	buf := make([]byte, 64)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n, "reply readable before its delay")

	resps := decodeResponses(t, readFor(b, 80*time.Millisecond))
	require.Len(t, resps, 1)
	assert.Equal(t, []byte{0x01}, resps[0].Data)
}

func TestBus_RequestSplitAcrossWrites(t *testing.T) {
	d := NewDevice(testGuid(1), "", "")
	d.SetAddress(4)
	b := NewBus([]*Device{d}, WithReplyDelay(0))

	frame := simplserial.EncodeRequest(simplserial.NewRequest(4, 1, 0x98))
	for _, c := range frame {
		_, err := b.Write([]byte{c})
		require.NoError(t, err)
	}

	assert.Equal(t, uint64(1), b.RequestCount())
	assert.Len(t, decodeResponses(t, readFor(b, 10*time.Millisecond)), 1)
}

func TestBus_CorruptRequestIgnored(t *testing.T) {
	d := NewDevice(testGuid(1), "", "")
	d.SetAddress(4)
	b := NewBus([]*Device{d}, WithReplyDelay(0))

	frame := simplserial.EncodeRequest(simplserial.NewRequest(4, 1, 0x10))
	frame[6] ^= 0x01
	_, err := b.Write(frame)
	require.NoError(t, err)

	assert.Zero(t, b.RequestCount())
	assert.Empty(t, readFor(b, 10*time.Millisecond))
}

func TestBus_Discovery(t *testing.T) {
	devices := []*Device{
		NewDevice(testGuid(0x10), "", ""),
		NewDevice(testGuid(0x20), "", ""),
		NewDevice(testGuid(0x30), "", ""),
	}
	b := NewBus(devices, WithReplyDelay(0), WithDiscoverySlots(2*time.Millisecond, 4))

	writeRequest(t, b, simplserial.NewRequest(simplserial.BroadcastAddress, simplserial.CmdDiscover, 0, 0, 0, 9))

	resps := decodeResponses(t, readFor(b, 30*time.Millisecond))
	require.Len(t, resps, 3)

	got := make(map[simplserial.DeviceGuid]bool)
	for _, r := range resps {
		g, err := simplserial.GuidFromBytes(r.Data)
		require.NoError(t, err)
		got[g] = true
	}
	for _, d := range devices {
		assert.True(t, got[d.Guid()])
	}
}

func TestBus_DiscoveryCollisions(t *testing.T) {
	devices := []*Device{
		NewDevice(testGuid(0x10), "", ""),
		NewDevice(testGuid(0x20), "", ""),
	}
	b := NewBus(devices, WithReplyDelay(0), WithDiscoverySlots(time.Millisecond, 1), WithCollisions(true))

	writeRequest(t, b, simplserial.NewRequest(simplserial.BroadcastAddress, simplserial.CmdDiscover, 0, 0, 0, 1))
	raw := readFor(b, 10*time.Millisecond)

	single := simplserial.EncodeResponse(0, 0, testGuid(0x10).Bytes())
	other := simplserial.EncodeResponse(0, 0, testGuid(0x20).Bytes())
	assert.Len(t, raw, len(single)+len(other))
	assert.NotEqual(t, append(single, other...), raw)
	assert.NotEqual(t, append(other, single...), raw)
}

func TestBus_AttachDetach(t *testing.T) {
	b := NewBus(nil)
	a := NewDevice(testGuid(0x30), "", "")
	c := NewDevice(testGuid(0x10), "", "")

	b.Attach(a)
	b.Attach(c)
	devices := b.Devices()
	require.Len(t, devices, 2)
	assert.Same(t, c, devices[0])
	assert.Same(t, a, devices[1])

	got, ok := b.Device(a.Guid())
	assert.True(t, ok)
	assert.Same(t, a, got)

	b.Detach(a.Guid())
	_, ok = b.Device(a.Guid())
	assert.False(t, ok)
	assert.Len(t, b.Devices(), 1)
}

func TestBus_InjectOrdering(t *testing.T) {
	b := NewBus(nil)

	b.Inject(20*time.Millisecond, []byte{3, 4})
	b.Inject(0, []byte{1, 2})

	assert.Equal(t, []byte{1, 2, 3, 4}, readFor(b, 40*time.Millisecond))
}

func TestBus_Failures(t *testing.T) {
	b := NewBus(nil)
	errRead := errors.New("read broken")
	errWrite := errors.New("write broken")

	b.FailReads(errRead)
	_, err := b.Read(make([]byte, 1))
	assert.ErrorIs(t, err, errRead)

	b.FailWrites(errWrite)
	_, err = b.Write([]byte{0})
	assert.ErrorIs(t, err, errWrite)

	b.FailReads(nil)
	b.FailWrites(nil)
	_, err = b.Read(make([]byte, 1))
	assert.NoError(t, err)
	_, err = b.Write([]byte{0})
	assert.NoError(t, err)

	require.NoError(t, b.Close())
	_, err = b.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = b.Write([]byte{0})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestInterleave(t *testing.T) {
	out := interleave([][]byte{{1, 2, 3}, {4, 5}, {6}})
	assert.Equal(t, []byte{1, 4, 6, 2, 5, 3}, out)
}

func TestDiscoverySlot_Range(t *testing.T) {
	for seed := range uint32(64) {
		slot := discoverySlot(seed, testGuid(byte(seed)), 5)
		assert.GreaterOrEqual(t, slot, 0)
		assert.Less(t, slot, 5)
	}
	assert.Zero(t, discoverySlot(1, testGuid(1), 1))
}
