package simplserial

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GuidSize is the size of a device GUID in bytes.
const GuidSize = 16

// DeviceGuid is the factory-assigned identifier of a device.
type DeviceGuid [GuidSize]byte

// GuidFromBytes creates a DeviceGuid from exactly GuidSize bytes.
func GuidFromBytes(b []byte) (DeviceGuid, error) {
	var g DeviceGuid
	if len(b) != GuidSize {
		return g, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidGuid, len(b), GuidSize)
	}
	copy(g[:], b)

	return g, nil
}

// ParseDeviceGuid parses the canonical form produced by DeviceGuid.String:
// sixteen hex byte groups separated by '-'. Upper- and lower-case digits are accepted.
func ParseDeviceGuid(s string) (DeviceGuid, error) {
	var g DeviceGuid

	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != GuidSize {
		return g, fmt.Errorf("%w: %q has %d groups, want %d", ErrInvalidGuid, s, len(parts), GuidSize)
	}

	for i, part := range parts {
		if len(part) == 0 || len(part) > 2 {
			return g, fmt.Errorf("%w: %q: bad group %q", ErrInvalidGuid, s, part)
		}
		if len(part) == 1 {
			part = "0" + part
		}

		if _, err := hex.Decode(g[i:i+1], []byte(part)); err != nil {
			return g, fmt.Errorf("%w: %q: %w", ErrInvalidGuid, s, err)
		}
	}

	return g, nil
}

// GuidFromUUID converts a UUID to a DeviceGuid of the same bytes.
func GuidFromUUID(u uuid.UUID) DeviceGuid {
	return DeviceGuid(u)
}

// NewRandomDeviceGuid returns a random (version 4 UUID) DeviceGuid.
func NewRandomDeviceGuid() DeviceGuid {
	return GuidFromUUID(uuid.New())
}

// UUID returns g as a UUID of the same bytes.
func (g DeviceGuid) UUID() uuid.UUID {
	return uuid.UUID(g)
}

// Bytes returns a copy of the GUID bytes.
func (g DeviceGuid) Bytes() []byte {
	out := make([]byte, GuidSize)
	copy(out, g[:])

	return out
}

// IsZero reports whether every byte of g is zero.
func (g DeviceGuid) IsZero() bool {
	return g == DeviceGuid{}
}

// String renders g as lower-case hex byte groups separated by '-',
// e.g. "01-23-45-67-89-ab-cd-ef-01-23-45-67-89-ab-cd-ef".
func (g DeviceGuid) String() string {
	var sb strings.Builder
	sb.Grow(GuidSize*3 - 1)

	for i, b := range g {
		if i > 0 {
			sb.WriteByte('-')
		}
		sb.WriteString(hex.EncodeToString([]byte{b}))
	}

	return sb.String()
}

// MarshalText implements encoding.TextMarshaler.
func (g DeviceGuid) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *DeviceGuid) UnmarshalText(text []byte) error {
	parsed, err := ParseDeviceGuid(string(text))
	if err != nil {
		return err
	}
	*g = parsed

	return nil
}
