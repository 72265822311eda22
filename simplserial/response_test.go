package simplserial

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var mockAnything = mock.Anything

func TestResponseState_String(t *testing.T) {
	tests := map[ResponseState]string{
		StateOK:              "ok",
		StateTimeout:         "timeout",
		StateFormatError:     "format error",
		StateChecksumError:   "checksum error",
		StatePacketTypeError: "packet type error",
		StateNotRequested:    "not requested",
		StatePortError:       "port error",
		StateNetworkError:    "network error",
		ResponseState(42):    "ResponseState(42)",
	}

	for state, want := range tests {
		assert.Equal(t, want, state.String())
	}
}

func TestResponse_OK(t *testing.T) {
	assert.True(t, Response{State: StateOK, Result: 3}.OK())
	assert.False(t, Response{State: StateTimeout}.OK())
	assert.Contains(t, Response{State: StateChecksumError, FromAddress: 9}.String(), "checksum error")
}

func TestResponseError(t *testing.T) {
	var err error = &ResponseError{Op: "device info", State: StateTimeout, Result: 0}

	assert.True(t, errors.Is(err, ErrBadResponse))
	assert.False(t, errors.Is(err, ErrMalformedPayload))
	assert.Equal(t, "simplserial: device info: bad response: state=timeout result=0", err.Error())
}
