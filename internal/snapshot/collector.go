// collector.go - per-device snapshot deduplication (spec.md §4.5/§6:
// each device owns its own Writer envelope; a whole-machine snapshot
// collects one per attached device).
//
// Grounded in coprocessor_manager.go's ticket/completion bookkeeping: a
// CoprocCompletion is keyed by ticket so a second POLL for the same
// ticket observes the first call's result rather than re-running the
// operation. A device snapshot has the same shape — a live-migration
// path and a periodic checkpoint timer can both ask for device "ide0"'s
// snapshot at once, and golang.org/x/sync/singleflight.Group is exactly
// that generalized to a keyed dedup-in-flight cache instead of a
// hand-rolled ticket map.
package snapshot

import "golang.org/x/sync/singleflight"

// BuildFunc serializes one device's current state into a TLV envelope,
// typically a device's own Writer.Finish() call.
type BuildFunc func(deviceID string) ([]byte, error)

// Collector coordinates concurrent snapshot requests across devices,
// keyed by device_id so two callers racing to snapshot the same device
// share one build.
type Collector struct {
	build BuildFunc
	group singleflight.Group
}

// NewCollector returns a Collector that serializes device snapshots via
// build.
func NewCollector(build BuildFunc) *Collector {
	return &Collector{build: build}
}

// Snapshot returns deviceID's serialized envelope, invoking build at
// most once per concurrent wave of identical requests.
func (c *Collector) Snapshot(deviceID string) ([]byte, error) {
	v, err, _ := c.group.Do(deviceID, func() (interface{}, error) {
		return c.build(deviceID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
