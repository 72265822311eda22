package simplserial

import "fmt"

// ResponseState is the outcome of one receive pass.
type ResponseState uint8

const (
	// StateOK indicates a complete frame with a valid checksum.
	StateOK ResponseState = iota
	// StateTimeout indicates that no valid frame arrived before the deadline.
	StateTimeout
	// StateFormatError indicates a frame with an invalid layout.
	StateFormatError
	// StateChecksumError indicates a complete frame whose checksum did not match.
	StateChecksumError
	// StatePacketTypeError indicates a frame of an unexpected packet type.
	StatePacketTypeError
	// StateNotRequested indicates an unsolicited response.
	StateNotRequested
	// StatePortError indicates a transport read or write failure.
	StatePortError
	// StateNetworkError indicates a failure reported by the bus network.
	StateNetworkError
)

var responseStateNames = [...]string{
	StateOK:              "ok",
	StateTimeout:         "timeout",
	StateFormatError:     "format error",
	StateChecksumError:   "checksum error",
	StatePacketTypeError: "packet type error",
	StateNotRequested:    "not requested",
	StatePortError:       "port error",
	StateNetworkError:    "network error",
}

func (s ResponseState) String() string {
	if int(s) < len(responseStateNames) {
		return responseStateNames[s]
	}

	return fmt.Sprintf("ResponseState(%d)", uint8(s))
}

// Response is a device reply decoded by the master.
type Response struct {
	State       ResponseState
	FromAddress Address
	Result      byte
	Data        []byte
}

// OK reports whether the response was decoded successfully.
func (r Response) OK() bool {
	return r.State == StateOK
}

func (r Response) String() string {
	return fmt.Sprintf("Response{state=%s from=%d result=%d len=%d}", r.State, r.FromAddress, r.Result, len(r.Data))
}
