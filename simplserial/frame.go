package simplserial

import (
	"encoding/binary"
	"fmt"
)

// Marker is the byte that introduces a two-byte control sequence on the wire.
const Marker byte = 0x98

// Control codes following a Marker.
const (
	ctrlStuffed      byte = 0x00 // payload byte equal to Marker
	ctrlRequestStart byte = 0x01 // start of a request frame
	ctrlRequestEnd   byte = 0x02 // end of a request frame
	ctrlRestart      byte = 0x03 // discard the frame in progress
	ctrlResponseEnd  byte = 0x04 // end of a response frame, triggers checksum validation
)

// checksumSize is the size of the trailing checksum in bytes.
const checksumSize = 2

// minFrameSize is the smallest buffered frame that can be validated:
// two address bytes, one command or result byte and the checksum.
const minFrameSize = 5

// Address is a 16-bit device address on the bus.
type Address uint16

// BroadcastAddress is reserved for frames addressed to every device.
const BroadcastAddress Address = 0

// Command is an 8-bit request opcode.
type Command byte

// Reserved bus-management commands.
const (
	CmdSetAddress Command = 253
	CmdDeviceInfo Command = 254
	CmdDiscover   Command = 255
)

// firstReservedCommand is the lowest opcode reserved for bus management.
const firstReservedCommand Command = 250

// IsReserved reports whether c is reserved for bus-management operations.
func (c Command) IsReserved() bool {
	return c >= firstReservedCommand
}

// Request is a frame sent by the master to a device.
type Request struct {
	Address Address
	Command Command
	Data    []byte
}

// NewRequest creates a Request, copying data.
func NewRequest(addr Address, cmd Command, data ...byte) Request {
	req := Request{Address: addr, Command: cmd}
	if len(data) > 0 {
		req.Data = make([]byte, len(data))
		copy(req.Data, data)
	}

	return req
}

func (r Request) String() string {
	return fmt.Sprintf("Request{addr=%d cmd=%d len=%d}", r.Address, r.Command, len(r.Data))
}

// frameWriter accumulates the stuffed wire bytes of one frame together with the
// checksum of the payload written so far.
type frameWriter struct {
	buf []byte
	crc crcState
}

func newFrameWriter(payloadLen int, start ...byte) *frameWriter {
	// worst case every payload and checksum byte is stuffed
	buf := make([]byte, 0, len(start)+2*(payloadLen+checksumSize)+3)
	buf = append(buf, start...)

	return &frameWriter{buf: buf, crc: newCRC()}
}

// stuff appends b, followed by the stuffing code when b equals the marker.
func (w *frameWriter) stuff(b byte) {
	w.buf = append(w.buf, b)
	if b == Marker {
		w.buf = append(w.buf, ctrlStuffed)
	}
}

// payload appends payload bytes and folds them into the checksum.
func (w *frameWriter) payload(p ...byte) {
	for _, b := range p {
		w.stuff(b)
		w.crc.update(b)
	}
}

// finish appends the stuffed checksum, which is not part of its own computation,
// followed by the end sequence.
func (w *frameWriter) finish(end ...byte) []byte {
	cs := w.crc.sum()
	w.stuff(byte(cs >> 8))
	w.stuff(byte(cs))

	return append(w.buf, end...)
}

// EncodeRequest returns the wire representation of req:
//
//	00 98 01 | addrHi addrLo command data... | crcHi crcLo | 98 02 00
//
// Payload and checksum bytes equal to Marker are followed by 0x00.
// EncodeRequest is pure; equal requests always encode to equal bytes.
func EncodeRequest(req Request) []byte {
	w := newFrameWriter(3+len(req.Data), 0x00, Marker, ctrlRequestStart)

	var addr [2]byte
	binary.BigEndian.PutUint16(addr[:], uint16(req.Address))
	w.payload(addr[:]...)
	w.payload(byte(req.Command))
	w.payload(req.Data...)

	return w.finish(Marker, ctrlRequestEnd, 0x00)
}

// EncodeResponse returns the wire representation of a device reply:
//
//	98 03 | addrHi addrLo result data... | crcHi crcLo | 98 04
//
// The leading restart sequence discards any noise the receiver buffered before
// the reply. Devices and device simulators use it; the master only decodes it.
func EncodeResponse(from Address, result byte, data []byte) []byte {
	w := newFrameWriter(3+len(data), Marker, ctrlRestart)

	var addr [2]byte
	binary.BigEndian.PutUint16(addr[:], uint16(from))
	w.payload(addr[:]...)
	w.payload(result)
	w.payload(data...)

	return w.finish(Marker, ctrlResponseEnd)
}
