package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-simplserial/simplserial"
)

func testGuid(first byte) simplserial.DeviceGuid {
	var g simplserial.DeviceGuid
	for i := range g {
		g[i] = first + byte(i)
	}

	return g
}

// decodeResponses parses every response frame in data.
func decodeResponses(t *testing.T, data []byte) []simplserial.Response {
	t.Helper()

	var out []simplserial.Response
	p := simplserial.NewResponseParser(0)
	for _, b := range data {
		payload, err := p.Feed(b)
		require.NoError(t, err)
		if payload == nil {
			continue
		}
		resp, err := simplserial.ParseResponse(payload)
		require.NoError(t, err)
		out = append(out, resp)
	}

	return out
}

// readFor collects bytes from b until d elapses.
func readFor(b *Bus, d time.Duration) []byte {
	var out []byte
	buf := make([]byte, 64)

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		n, err := b.Read(buf)
		if err != nil {
			break
		}
		out = append(out, buf[:n]...)
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}

	return out
}

func writeRequest(t *testing.T, b *Bus, req simplserial.Request) {
	t.Helper()

	frame := simplserial.EncodeRequest(req)
	n, err := b.Write(frame)
	require.NoError(t, err)
	require.Equal(t, len(frame), n)
}
