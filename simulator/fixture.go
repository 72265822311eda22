package simulator

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/arloliu/go-simplserial/simplserial"
)

// Fixture describes a set of simulated devices, usually loaded from a TOML file:
//
//	[[device]]
//	guid = "01-02-03-04-05-06-07-08-09-0a-0b-0c-0d-0e-0f-10"
//	name = "Boiler sensor"
//	date = "240611"
//
//	[[device]]
//	name = "Valve"    # a random GUID is generated when guid is empty
//	address = 12      # devices start unaddressed unless address is set
type Fixture struct {
	Devices []DeviceSpec `toml:"device"`
}

// DeviceSpec describes one simulated device.
type DeviceSpec struct {
	Guid    string `toml:"guid"`
	Name    string `toml:"name"`
	Date    string `toml:"date"`
	Address uint16 `toml:"address"`
}

// LoadFixture reads and validates a TOML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("simulator: fixture load failed (%s): %w", path, err)
	}

	fx, err := ParseFixture(string(data))
	if err != nil {
		return nil, fmt.Errorf("simulator: fixture %s: %w", path, err)
	}

	return fx, nil
}

// ParseFixture decodes and validates a TOML fixture document.
func ParseFixture(doc string) (*Fixture, error) {
	var fx Fixture
	if _, err := toml.Decode(doc, &fx); err != nil {
		return nil, fmt.Errorf("simulator: fixture parse failed: %w", err)
	}

	for i, spec := range fx.Devices {
		if err := spec.validate(); err != nil {
			return nil, fmt.Errorf("simulator: device[%d] invalid: %w", i, err)
		}
	}

	return &fx, nil
}

func (s DeviceSpec) validate() error {
	if strings.TrimSpace(s.Guid) != "" {
		if _, err := simplserial.ParseDeviceGuid(s.Guid); err != nil {
			return err
		}
	}
	if len(s.Name) > NameSize {
		return fmt.Errorf("name %q longer than %d bytes", s.Name, NameSize)
	}
	if len(s.Date) > DateSize {
		return fmt.Errorf("date %q longer than %d bytes", s.Date, DateSize)
	}

	return nil
}

// NewDevices creates the devices described by the fixture.
func (fx *Fixture) NewDevices() ([]*Device, error) {
	devices := make([]*Device, 0, len(fx.Devices))
	for i, spec := range fx.Devices {
		guid := simplserial.NewRandomDeviceGuid()
		if strings.TrimSpace(spec.Guid) != "" {
			var err error
			if guid, err = simplserial.ParseDeviceGuid(spec.Guid); err != nil {
				return nil, fmt.Errorf("simulator: device[%d]: %w", i, err)
			}
		}

		d := NewDevice(guid, spec.Name, spec.Date)
		d.SetAddress(simplserial.Address(spec.Address))
		devices = append(devices, d)
	}

	return devices, nil
}
