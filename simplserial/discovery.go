package simplserial

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"time"
)

// Discover broadcasts a discovery request carrying seed and collects the GUIDs
// of every device that replies within window.
//
// Devices use the seed to randomize their reply delay, but replies may still
// collide on the line. Replies that fail checksum validation, or whose data is
// not exactly a GUID, are dropped; the bus keeps listening until the window
// elapses. The result holds each GUID once, in arrival order.
//
// The bus is held exclusively for the whole window. A transport failure ends
// discovery early and returns the GUIDs collected so far together with an error
// wrapping ErrPortFailure.
func (b *Bus) Discover(seed uint32, window time.Duration) ([]DeviceGuid, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var seedBytes [4]byte
	binary.BigEndian.PutUint32(seedBytes[:], seed)

	if err := b.send(NewRequest(BroadcastAddress, CmdDiscover, seedBytes[:]...)); err != nil {
		return nil, err
	}

	b.logger.Debug("simplserial: discovery started", "seed", seed, "window", window)

	var found []DeviceGuid
	seen := make(map[DeviceGuid]struct{})

	start := time.Now()
	for remaining := window; remaining > 0; remaining = window - time.Since(start) {
		resp, err := b.receive(remaining)

		switch resp.State {
		case StateOK:
			guid, err := GuidFromBytes(resp.Data)
			if err != nil {
				b.logger.Debug("simplserial: ignored discovery reply", "from", resp.FromAddress, "error", err)
				continue
			}
			if _, ok := seen[guid]; ok {
				continue
			}
			seen[guid] = struct{}{}
			found = append(found, guid)

			b.logger.Debug("simplserial: device discovered", "guid", guid, "address", resp.FromAddress)

		case StatePortError:
			b.metrics.addDiscoveredCount(len(found))
			return found, fmt.Errorf("simplserial: discovery aborted after %d devices: %w", len(found), err)

		case StateChecksumError:
			b.logger.Debug("simplserial: dropped corrupted discovery reply", "error", err)

		default:
		}
	}

	b.metrics.addDiscoveredCount(len(found))
	b.logger.Info("simplserial: discovery finished", "seed", seed, "devices", len(found))

	return found, nil
}

// DiscoverRandom calls Discover with a pseudo-random seed.
func (b *Bus) DiscoverRandom(window time.Duration) ([]DeviceGuid, error) {
	return b.Discover(rand.Uint32(), window) //nolint:gosec // seed only spreads reply timing
}
