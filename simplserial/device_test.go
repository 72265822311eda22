package simplserial

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// infoPayload builds a device-information reply payload.
func infoPayload(guid DeviceGuid, name, date string) []byte {
	data := make([]byte, infoMinSize)
	copy(data, guid[:])

	nameField := data[infoGuidEnd:infoNameEnd]
	for i := range nameField {
		nameField[i] = ' '
	}
	copy(nameField, name)
	copy(data[infoNameEnd:infoDateEnd], date)

	return data
}

func TestParseDeviceInfo(t *testing.T) {
	guid := testGuid(0xA0)

	info, err := ParseDeviceInfo(infoPayload(guid, "Boiler sensor", "240611"))
	require.NoError(t, err)

	assert.Equal(t, guid, info.Guid)
	assert.Equal(t, "Boiler sensor", info.Name)
	assert.Equal(t, "240611", info.Date)
}

func TestParseDeviceInfo_NameDecoding(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"collapse double space", "AB  CD", "AB CD"},
		{"collapse long run", "A     B", "A B"},
		{"non printable removed", "A\x00B\x01C\x7f", "ABC"},
		{"spaces around control byte", "A \x02 B", "A B"},
		{"tilde kept", "x~y", "x~y"},
		{"high bytes removed", "caf\xe9", "caf"},
		{"trailing padding trimmed", "Valve", "Valve"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseDeviceInfo(infoPayload(DeviceGuid{}, tt.raw, "000000"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, info.Name)
		})
	}
}

func TestParseDeviceInfo_DateIsRaw(t *testing.T) {
	data := infoPayload(DeviceGuid{}, "x", "")
	copy(data[infoNameEnd:], []byte{'2', '4', 0x00, '1', ' ', '9'})

	info, err := ParseDeviceInfo(data)
	require.NoError(t, err)
	assert.Equal(t, "24\x001 9", info.Date)
}

func TestParseDeviceInfo_ExtraBytesIgnored(t *testing.T) {
	data := append(infoPayload(testGuid(1), "dev", "250101"), 0xEE, 0xEE)

	info, err := ParseDeviceInfo(data)
	require.NoError(t, err)
	assert.Equal(t, "250101", info.Date)
}

func TestParseDeviceInfo_TooShort(t *testing.T) {
	_, err := ParseDeviceInfo(make([]byte, 53))
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestBus_DeviceInfo(t *testing.T) {
	guid := testGuid(0x11)

	tr := &fakeTransport{}
	tr.onWrite = func(_ int, frame []byte) []byte {
		req := decodeWrittenRequest(t, frame)
		return EncodeResponse(req.Address, 0, infoPayload(guid, "Thermo  meter", "231224"))
	}
	bus := newTestBus(t, tr)

	info, err := bus.DeviceInfo(12)
	require.NoError(t, err)

	assert.Equal(t, guid, info.Guid)
	assert.Equal(t, "Thermo meter", info.Name)
	assert.Equal(t, "231224", info.Date)

	req := decodeWrittenRequest(t, tr.written(0))
	assert.Equal(t, Address(12), req.Address)
	assert.Equal(t, CmdDeviceInfo, req.Command)
	assert.Empty(t, req.Data)
}

func TestBus_DeviceInfo_NonZeroResult(t *testing.T) {
	tr := &fakeTransport{onWrite: func(_ int, _ []byte) []byte {
		return EncodeResponse(12, 7, nil)
	}}
	bus := newTestBus(t, tr)

	_, err := bus.DeviceInfo(12)
	require.ErrorIs(t, err, ErrBadResponse)

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, StateOK, respErr.State)
	assert.Equal(t, byte(7), respErr.Result)
	assert.Contains(t, err.Error(), "device info")

	// a successful exchange is not retried
	assert.Equal(t, 1, tr.writeCount())
}

func TestBus_DeviceInfo_RetriesThenFails(t *testing.T) {
	tr := &fakeTransport{}
	bus := newTestBus(t, tr, WithTimeout(20*time.Millisecond), WithMgmtRetries(2))

	_, err := bus.DeviceInfo(12)
	require.ErrorIs(t, err, ErrBadResponse)

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, StateTimeout, respErr.State)
	assert.Equal(t, 3, tr.writeCount())
}

func TestBus_DeviceInfo_DefaultRetries(t *testing.T) {
	tr := &fakeTransport{}
	bus := newTestBus(t, tr, WithTimeout(10*time.Millisecond))

	_, err := bus.DeviceInfo(12)
	require.Error(t, err)
	assert.Equal(t, DefaultMgmtRetries+1, tr.writeCount())
}

func TestBus_DeviceInfo_Malformed(t *testing.T) {
	tr := &fakeTransport{onWrite: func(_ int, _ []byte) []byte {
		return EncodeResponse(12, 0, make([]byte, 20))
	}}
	bus := newTestBus(t, tr)

	_, err := bus.DeviceInfo(12)
	require.ErrorIs(t, err, ErrMalformedPayload)
	assert.NotErrorIs(t, err, ErrBadResponse)
}

func TestBus_AssignAddress(t *testing.T) {
	guid := testGuid(0x21)

	tr := &fakeTransport{}
	tr.onWrite = func(_ int, frame []byte) []byte {
		req := decodeWrittenRequest(t, frame)
		return EncodeResponse(Address(binary.BigEndian.Uint16(req.Data[16:])), 0, nil)
	}
	bus := newTestBus(t, tr)

	require.NoError(t, bus.AssignAddress(guid, 0x0198))

	req := decodeWrittenRequest(t, tr.written(0))
	assert.Equal(t, BroadcastAddress, req.Address)
	assert.Equal(t, CmdSetAddress, req.Command)
	require.Len(t, req.Data, 18)
	assert.Equal(t, guid[:], req.Data[:16])
	assert.Equal(t, []byte{0x01, 0x98}, req.Data[16:])
}

func TestBus_AssignAddress_Rejected(t *testing.T) {
	tr := &fakeTransport{onWrite: func(_ int, _ []byte) []byte {
		return EncodeResponse(0, 1, nil)
	}}
	bus := newTestBus(t, tr)

	err := bus.AssignAddress(testGuid(1), 10)
	require.ErrorIs(t, err, ErrBadResponse)
	assert.Contains(t, err.Error(), "assign address")
	assert.Contains(t, err.Error(), "result=1")
}

func TestBus_Scan_RejectsBroadcastFirstAddress(t *testing.T) {
	bus := newTestBus(t, &fakeTransport{})

	_, err := bus.Scan(10*time.Millisecond, BroadcastAddress)
	require.Error(t, err)
}

func TestBus_Scan_KeepsDevicesFoundBeforeDiscoveryFailure(t *testing.T) {
	guid := testGuid(0x31)
	errLost := errors.New("line lost")

	tr := &fakeTransport{drainedErr: errLost}
	tr.onWrite = func(_ int, frame []byte) []byte {
		req := decodeWrittenRequest(t, frame)
		switch req.Command {
		case CmdDiscover:
			return EncodeResponse(0, 0, guid[:])
		case CmdSetAddress:
			return EncodeResponse(Address(binary.BigEndian.Uint16(req.Data[GuidSize:])), 0, nil)
		case CmdDeviceInfo:
			return EncodeResponse(req.Address, 0, infoPayload(guid, "Boiler", "240611"))
		default:
			return nil
		}
	}
	bus := newTestBus(t, tr)

	devices, err := bus.Scan(50*time.Millisecond, 10)

	require.ErrorIs(t, err, ErrPortFailure)
	require.ErrorIs(t, err, errLost)
	require.Len(t, devices, 1)
	assert.Equal(t, Address(10), devices[0].Address)
	assert.Equal(t, guid, devices[0].Guid)
	assert.Equal(t, "Boiler", devices[0].Name)
}

func TestBus_Scan_DiscoveryFailureWithoutDevices(t *testing.T) {
	errLost := errors.New("line lost")
	bus := newTestBus(t, &fakeTransport{drainedErr: errLost})

	devices, err := bus.Scan(50*time.Millisecond, 10)

	require.ErrorIs(t, err, ErrPortFailure)
	assert.Nil(t, devices)
}
