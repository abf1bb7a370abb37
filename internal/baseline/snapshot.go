package baseline

import (
	"sync/atomic"

	"github.com/dolphin-iot/dolphin-core/internal/equipment"
)

// Snapshot is an immutable view of the per-device current baselines.
//
// For each device and LED channel it maps a duty rate (in its normalised
// string form) to the average current per lamp unit observed at that duty.
// Snapshots are built off the ingest path and never mutated after
// publication, so readers need no locking.
type Snapshot struct {
	devices map[string]channelBaselines
}

type channelBaselines struct {
	red   map[string]float64
	green map[string]float64
}

// Lookup returns the baseline per-unit current for a device, channel and
// duty rate. The second return is false when the device or duty has no
// history.
func (s *Snapshot) Lookup(deviceID string, channel equipment.Channel, duty string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	ch, ok := s.devices[deviceID]
	if !ok {
		return 0, false
	}
	m := ch.red
	if channel == equipment.ChannelGreen {
		m = ch.green
	}
	avg, ok := m[duty]
	return avg, ok
}

// HasBaselines reports whether a device has history on both channels.
// Classification skips the envelope check entirely until that holds, so
// a device is never judged against a half-built picture of itself.
func (s *Snapshot) HasBaselines(deviceID string) bool {
	if s == nil {
		return false
	}
	ch, ok := s.devices[deviceID]
	return ok && len(ch.red) > 0 && len(ch.green) > 0
}

// Devices returns the number of devices carrying at least one baseline.
func (s *Snapshot) Devices() int {
	if s == nil {
		return 0
	}
	return len(s.devices)
}

// Cache publishes baseline snapshots to the ingest path.
//
// Writers build a complete Snapshot and Replace it in one step; readers
// take the current pointer and use it for the whole classification of one
// message, so a mid-message refresh cannot mix old and new baselines.
type Cache struct {
	current atomic.Pointer[Snapshot]
}

// NewCache creates a cache holding an empty snapshot, so classification
// before the first refresh degrades to "no baseline" instead of nil
// dereferences.
func NewCache() *Cache {
	c := &Cache{}
	c.current.Store(&Snapshot{devices: map[string]channelBaselines{}})
	return c
}

// Snapshot returns the currently published snapshot. Never nil.
func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

// Replace atomically publishes a new snapshot.
func (c *Cache) Replace(s *Snapshot) {
	if s == nil {
		return
	}
	c.current.Store(s)
}

// builder accumulates per-device baselines before freezing them into a
// Snapshot.
type builder struct {
	devices map[string]channelBaselines
}

func newBuilder() *builder {
	return &builder{devices: map[string]channelBaselines{}}
}

// add records the averaged per-unit baselines for one device channel.
func (b *builder) add(deviceID string, channel equipment.Channel, byDuty map[string]float64) {
	if len(byDuty) == 0 {
		return
	}
	ch, ok := b.devices[deviceID]
	if !ok {
		ch = channelBaselines{
			red:   map[string]float64{},
			green: map[string]float64{},
		}
	}
	m := ch.red
	if channel == equipment.ChannelGreen {
		m = ch.green
	}
	for duty, avg := range byDuty {
		m[duty] = avg
	}
	b.devices[deviceID] = ch
}

func (b *builder) snapshot() *Snapshot {
	return &Snapshot{devices: b.devices}
}

// averageByDuty groups samples by duty and averages the current, dividing
// by the device's lamp-unit count. Samples were already filtered of zero
// and unparseable values by the repository.
func averageByDuty(samples []equipment.AmpereSample, units int) map[string]float64 {
	if len(samples) == 0 || units <= 0 {
		return nil
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, s := range samples {
		sums[s.Duty] += s.Ampere
		counts[s.Duty]++
	}

	out := make(map[string]float64, len(sums))
	for duty, sum := range sums {
		out[duty] = sum / float64(counts[duty]) / float64(units)
	}
	return out
}
