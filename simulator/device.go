package simulator

import (
	"sync"

	"github.com/arloliu/go-simplserial/simplserial"
)

// Sizes of the fixed device-information fields.
const (
	NameSize = 32
	DateSize = 6
)

// Handler answers an application command addressed to a device. It returns the
// result code and reply data; ok=false makes the device stay silent.
type Handler func(cmd simplserial.Command, data []byte) (result byte, reply []byte, ok bool)

// EchoHandler replies with result 0 and the request data.
func EchoHandler(_ simplserial.Command, data []byte) (byte, []byte, bool) {
	return 0, data, true
}

// Device is one simulated field device.
type Device struct {
	guid simplserial.DeviceGuid
	name string
	date string

	mu      sync.Mutex
	address simplserial.Address
	muted   bool
	handler Handler
}

// NewDevice creates a device with the given identity, unaddressed, answering
// application commands with EchoHandler.
func NewDevice(guid simplserial.DeviceGuid, name, date string) *Device {
	return &Device{
		guid:    guid,
		name:    name,
		date:    date,
		handler: EchoHandler,
	}
}

// Guid returns the GUID of the device.
func (d *Device) Guid() simplserial.DeviceGuid {
	return d.guid
}

// Address returns the current address of the device.
func (d *Device) Address() simplserial.Address {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.address
}

// SetAddress sets the address of the device.
func (d *Device) SetAddress(addr simplserial.Address) {
	d.mu.Lock()
	d.address = addr
	d.mu.Unlock()
}

// SetMuted makes the device ignore every request while muted is true.
func (d *Device) SetMuted(muted bool) {
	d.mu.Lock()
	d.muted = muted
	d.mu.Unlock()
}

// SetHandler replaces the application command handler.
func (d *Device) SetHandler(h Handler) {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

// infoData returns the payload of a device-information reply: GUID, space
// padded name and date.
func (d *Device) infoData() []byte {
	data := make([]byte, 0, simplserial.GuidSize+NameSize+DateSize)
	data = append(data, d.guid[:]...)
	data = append(data, padField(d.name, NameSize)...)
	data = append(data, padField(d.date, DateSize)...)

	return data
}

func padField(s string, size int) []byte {
	field := make([]byte, size)
	n := copy(field, s)
	for i := n; i < size; i++ {
		field[i] = ' '
	}

	return field
}

// handle answers req. It returns the reply frame, or nil to stay silent.
func (d *Device) handle(req simplserial.Request) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.muted {
		return nil
	}

	switch {
	case req.Address == simplserial.BroadcastAddress && req.Command == simplserial.CmdDiscover:
		return simplserial.EncodeResponse(d.address, 0, d.guid[:])

	case req.Address == simplserial.BroadcastAddress && req.Command == simplserial.CmdSetAddress:
		if len(req.Data) != simplserial.GuidSize+2 {
			return nil
		}
		guid, _ := simplserial.GuidFromBytes(req.Data[:simplserial.GuidSize])
		if guid != d.guid {
			return nil
		}
		d.address = simplserial.Address(uint16(req.Data[16])<<8 | uint16(req.Data[17]))

		return simplserial.EncodeResponse(d.address, 0, nil)

	case req.Address == simplserial.BroadcastAddress || req.Address != d.address:
		return nil

	case req.Command == simplserial.CmdDeviceInfo:
		return simplserial.EncodeResponse(d.address, 0, d.infoData())

	default:
		if d.handler == nil {
			return nil
		}
		result, reply, ok := d.handler(req.Command, req.Data)
		if !ok {
			return nil
		}

		return simplserial.EncodeResponse(d.address, result, reply)
	}
}
