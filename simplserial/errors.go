package simplserial

import (
	"errors"
	"fmt"
)

var (
	// ErrChecksumMismatch indicates that a complete frame was received but its
	// trailing checksum does not match the checksum computed over its payload.
	ErrChecksumMismatch = errors.New("simplserial: checksum mismatch")

	// ErrFrameOverflow indicates that a frame grew beyond the receive buffer capacity.
	// The partial frame is discarded and reception continues.
	ErrFrameOverflow = errors.New("simplserial: frame exceeds receive buffer capacity")

	// ErrPortFailure indicates that the underlying transport failed to read or write.
	ErrPortFailure = errors.New("simplserial: port failure")
)

var (
	// ErrBadResponse indicates that a bus-management request did not complete with
	// a successful response state and a zero result code.
	ErrBadResponse = errors.New("simplserial: bad response")

	// ErrMalformedPayload indicates that a response passed framing and checksum
	// validation but its data does not have the expected layout.
	ErrMalformedPayload = errors.New("simplserial: malformed payload")

	// ErrInvalidGuid indicates that a device GUID string could not be parsed.
	ErrInvalidGuid = errors.New("simplserial: invalid device guid")

	// ErrTransportNil indicates that a nil Transport was provided.
	ErrTransportNil = errors.New("simplserial: transport is nil")
)

// ResponseError describes a bus-management operation that ended with a
// non-successful response. It matches ErrBadResponse with errors.Is.
type ResponseError struct {
	Op     string
	State  ResponseState
	Result byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("simplserial: %s: bad response: state=%s result=%d", e.Op, e.State, e.Result)
}

func (e *ResponseError) Is(target error) bool {
	return target == ErrBadResponse
}
