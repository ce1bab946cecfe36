package rt

// DefaultReserveBytes is the amount of process memory pre-faulted before
// a worker thread starts, so later allocations are served from already
// resident pages.
const DefaultReserveBytes = 64 << 20

// MemoryPinner prepares process memory so the control thread never takes
// a page fault once it is cycling. This is a determinism requirement, not
// a correctness one: an unpinned worker still produces correct cycles,
// just with unbounded first-touch latency.
//
// Platforms without page locking get a no-op implementation.
type MemoryPinner interface {
	// Pin locks current and future pages into RAM and touches
	// reserveBytes of heap so the pages are resident.
	Pin(reserveBytes int) error
	// Unpin releases the page locks.
	Unpin() error
}

// NewMemoryPinner returns the pinner for the current platform.
func NewMemoryPinner() MemoryPinner {
	return newPlatformPinner()
}

// NopMemoryPinner never locks anything. Use it when the process lacks
// the memlock rlimit or during tests.
type NopMemoryPinner struct{}

func (NopMemoryPinner) Pin(_ int) error { return nil }
func (NopMemoryPinner) Unpin() error    { return nil }
