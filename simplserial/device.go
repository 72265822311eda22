package simplserial

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout of a device-information reply.
const (
	infoGuidEnd = GuidSize // [0, 16)   GUID
	infoNameEnd = 48       // [16, 48)  name, space padded
	infoDateEnd = 54       // [48, 54)  date
	infoMinSize = infoDateEnd
)

// DeviceInfo describes a device as reported by the device-information command.
type DeviceInfo struct {
	Guid DeviceGuid
	Name string
	Date string
}

// DeviceInfo queries the device at addr for its GUID, name and date.
//
// The request is retried up to the configured management retry count. It fails
// with a *ResponseError when no attempt succeeds or the device reports a non-zero
// result, and with ErrMalformedPayload when the reply is shorter than 54 bytes.
func (b *Bus) DeviceInfo(addr Address) (*DeviceInfo, error) {
	resp := b.RequestRetry(NewRequest(addr, CmdDeviceInfo), b.cfg.mgmtRetries)
	if !resp.OK() || resp.Result != 0 {
		return nil, &ResponseError{Op: "device info", State: resp.State, Result: resp.Result}
	}

	return ParseDeviceInfo(resp.Data)
}

// ParseDeviceInfo decodes the data of a device-information reply.
//
// The name keeps printable ASCII characters only and collapses runs of spaces;
// trailing padding is trimmed. The date is taken verbatim.
func ParseDeviceInfo(data []byte) (*DeviceInfo, error) {
	if len(data) < infoMinSize {
		return nil, fmt.Errorf("%w: device info has %d bytes, want at least %d", ErrMalformedPayload, len(data), infoMinSize)
	}

	info := &DeviceInfo{
		Name: decodeName(data[infoGuidEnd:infoNameEnd]),
		Date: string(data[infoNameEnd:infoDateEnd]),
	}
	copy(info.Guid[:], data[:infoGuidEnd])

	return info, nil
}

func decodeName(raw []byte) string {
	var sb strings.Builder
	sb.Grow(len(raw))

	var last byte
	for _, c := range raw {
		if c < 0x20 || c > 0x7E {
			continue
		}
		if c == ' ' && last == ' ' {
			continue
		}
		sb.WriteByte(c)
		last = c
	}

	return strings.TrimRight(sb.String(), " ")
}

// AssignAddress asks the device identified by guid to take addr as its address.
//
// The request is broadcast and retried up to the configured management retry
// count. It fails with a *ResponseError unless the device acknowledges with a
// zero result.
func (b *Bus) AssignAddress(guid DeviceGuid, addr Address) error {
	data := make([]byte, GuidSize+2)
	copy(data, guid[:])
	binary.BigEndian.PutUint16(data[GuidSize:], uint16(addr))

	resp := b.RequestRetry(Request{Address: BroadcastAddress, Command: CmdSetAddress, Data: data}, b.cfg.mgmtRetries)
	if !resp.OK() || resp.Result != 0 {
		return &ResponseError{Op: "assign address", State: resp.State, Result: resp.Result}
	}

	b.logger.Debug("simplserial: address assigned", "guid", guid, "address", addr)

	return nil
}

// ScannedDevice is a device found and addressed by Scan.
type ScannedDevice struct {
	Address Address
	DeviceInfo
}

// Scan discovers the devices on the bus, assigns them consecutive addresses
// starting at firstAddr and reads their information.
//
// Devices that fail address assignment or the information query are left out of
// the result; their errors are joined into the returned error. When discovery
// fails after finding some devices, those devices are still set up and the
// discovery error is joined as well.
func (b *Bus) Scan(window time.Duration, firstAddr Address) ([]ScannedDevice, error) {
	if firstAddr == BroadcastAddress {
		return nil, errors.New("simplserial: scan cannot assign the broadcast address")
	}

	guids, err := b.DiscoverRandom(window)
	if err != nil && len(guids) == 0 {
		return nil, err
	}

	devices := make([]ScannedDevice, 0, len(guids))
	var errs []error
	if err != nil {
		errs = append(errs, err)
	}

	addr := firstAddr
	for _, guid := range guids {
		if addr == BroadcastAddress {
			errs = append(errs, fmt.Errorf("device %s: address space exhausted", guid))
			continue
		}

		if err := b.AssignAddress(guid, addr); err != nil {
			errs = append(errs, fmt.Errorf("device %s: %w", guid, err))
			continue
		}

		info, err := b.DeviceInfo(addr)
		if err != nil {
			errs = append(errs, fmt.Errorf("device %s at %d: %w", guid, addr, err))
			addr++

			continue
		}

		b.logger.Info("simplserial: device ready", "guid", info.Guid, "address", addr, "name", info.Name, "date", info.Date)

		devices = append(devices, ScannedDevice{Address: addr, DeviceInfo: *info})
		addr++
	}

	return devices, errors.Join(errs...)
}
