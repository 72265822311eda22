package simplserial

import (
	"encoding/binary"
	"fmt"
)

// DefaultBufferCapacity is the default maximum number of de-stuffed bytes a
// FrameParser buffers for one frame.
const DefaultBufferCapacity = 1025

// parseMode tells whether the previous byte was a marker.
type parseMode uint8

const (
	modeNormal parseMode = iota
	modeAfterMarker
)

// dialect holds the control codes that delimit frames in one direction.
type dialect struct {
	start byte // restarts the frame, in addition to ctrlRestart
	end   byte // completes the frame
}

var (
	responseDialect = dialect{start: ctrlRestart, end: ctrlResponseEnd}
	requestDialect  = dialect{start: ctrlRequestStart, end: ctrlRequestEnd}
)

// FrameParser reassembles frames from a byte stream, one byte at a time.
//
// Outside a control sequence every byte except the marker is buffered. The byte
// following a marker is a control code:
//
//   - 0x00: a stuffed payload byte, 0x98 is buffered.
//   - 0x03: the frame in progress is discarded.
//   - end code: the frame is complete. Frames longer than four bytes are validated
//     against their trailing big-endian checksum; shorter ones are ignored.
//   - 0x98: a literal 0x98 is buffered.
//   - anything else is ignored.
//
// The buffer grows up to a fixed capacity; a frame exceeding it is discarded and
// reported as ErrFrameOverflow, after which parsing continues with the current byte.
//
// A FrameParser is not goroutine-safe.
type FrameParser struct {
	mode     parseMode
	buf      []byte
	capacity int
	dialect  dialect
}

// NewResponseParser creates a parser for device replies, completing frames on
// control code 0x04. capacity <= 0 selects DefaultBufferCapacity.
func NewResponseParser(capacity int) *FrameParser {
	return newFrameParser(capacity, responseDialect)
}

// NewRequestParser creates a parser for master requests, as seen by a device:
// frames start on control code 0x01 and complete on 0x02.
// capacity <= 0 selects DefaultBufferCapacity.
func NewRequestParser(capacity int) *FrameParser {
	return newFrameParser(capacity, requestDialect)
}

func newFrameParser(capacity int, d dialect) *FrameParser {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}

	return &FrameParser{
		mode:     modeNormal,
		buf:      make([]byte, 0, min(capacity, 64)),
		capacity: capacity,
		dialect:  d,
	}
}

// Reset discards the frame in progress and leaves control-sequence mode.
func (p *FrameParser) Reset() {
	p.mode = modeNormal
	p.buf = p.buf[:0]
}

// Len returns the number of de-stuffed bytes buffered for the frame in progress.
func (p *FrameParser) Len() int {
	return len(p.buf)
}

// Feed consumes one byte from the stream.
//
// It returns the frame payload, without its checksum, when b completes a frame
// with a valid checksum. It returns an error wrapping ErrChecksumMismatch when b
// completes a frame with an invalid checksum, and ErrFrameOverflow when the
// buffer had to be discarded. Otherwise it returns nil, nil.
func (p *FrameParser) Feed(b byte) ([]byte, error) {
	if p.mode == modeNormal {
		if b == Marker {
			p.mode = modeAfterMarker
			return nil, nil
		}

		return nil, p.push(b)
	}

	p.mode = modeNormal

	switch b {
	case ctrlStuffed, Marker:
		return nil, p.push(Marker)
	case ctrlRestart, p.dialect.start:
		p.buf = p.buf[:0]
	case p.dialect.end:
		if len(p.buf) < minFrameSize {
			return nil, nil
		}

		return p.complete()
	}

	return nil, nil
}

func (p *FrameParser) push(b byte) error {
	var err error
	if len(p.buf) >= p.capacity {
		p.buf = p.buf[:0]
		err = fmt.Errorf("%w: capacity %d", ErrFrameOverflow, p.capacity)
	}
	p.buf = append(p.buf, b)

	return err
}

func (p *FrameParser) complete() ([]byte, error) {
	n := len(p.buf) - checksumSize
	wire := binary.BigEndian.Uint16(p.buf[n:])
	computed := Checksum(p.buf[:n])

	if wire != computed {
		p.buf = p.buf[:0]
		return nil, fmt.Errorf("%w: wire=0x%04X, computed=0x%04X", ErrChecksumMismatch, wire, computed)
	}

	payload := make([]byte, n)
	copy(payload, p.buf[:n])
	p.buf = p.buf[:0]

	return payload, nil
}

// ParseResponse builds a successful Response from a validated response payload
// (address, result and data, without checksum).
func ParseResponse(payload []byte) (Response, error) {
	if len(payload) < minFrameSize-checksumSize {
		return Response{State: StateFormatError}, fmt.Errorf("simplserial: response payload too short: %d bytes", len(payload))
	}

	resp := Response{
		State:       StateOK,
		FromAddress: Address(binary.BigEndian.Uint16(payload[0:2])),
		Result:      payload[2],
	}
	if len(payload) > 3 {
		resp.Data = payload[3:]
	}

	return resp, nil
}

// ParseRequest builds a Request from a validated request payload
// (address, command and data, without checksum).
func ParseRequest(payload []byte) (Request, error) {
	if len(payload) < minFrameSize-checksumSize {
		return Request{}, fmt.Errorf("simplserial: request payload too short: %d bytes", len(payload))
	}

	req := Request{
		Address: Address(binary.BigEndian.Uint16(payload[0:2])),
		Command: Command(payload[2]),
	}
	if len(payload) > 3 {
		req.Data = payload[3:]
	}

	return req, nil
}
