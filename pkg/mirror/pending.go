package mirror

import (
	"sync"
	"time"
)

// pendingMoveCapacity is the bounded capacity of the pending-move
// table (spec.md §3: "bounded set (capacity 128)").
const pendingMoveCapacity = 128

// moveExpiry is the correlation window (spec.md §4.5: "Δ=1 s").
const moveExpiry = 1 * time.Second

// PendingMove represents a MOVED_FROM event awaiting its paired
// MOVED_TO.
type PendingMove struct {
	Cookie    uint32
	IsDir     bool
	Timestamp time.Time
	SrcOld    string
	DstOld    string
}

// PendingMoveTable is the per-worker bounded correlator for paired
// move events, mirroring pending_moves.c. On overflow, the oldest
// entry is evicted; per spec.md §4.5/§9, an evicted entry is not
// simply dropped (which would leak its DstOld subtree in the mirror
// forever) — it is handed to the same reclamation path as a timed-out
// entry via the evicted return value from Insert.
type PendingMoveTable struct {
	mu       sync.Mutex
	entries  []PendingMove
	capacity int
	expiry   time.Duration
}

// NewPendingMoveTable returns an empty table using spec.md's literal
// defaults (capacity 128, expiry 1s).
func NewPendingMoveTable() *PendingMoveTable {
	return NewPendingMoveTableTuned(DefaultTuning())
}

// NewPendingMoveTableTuned returns an empty table sized and timed
// according to tuning (see pkg/config, which supplies this from the
// optional YAML file), falling back to spec.md's defaults for any
// unset field.
func NewPendingMoveTableTuned(tuning Tuning) *PendingMoveTable {
	tuning = tuning.withDefaults()
	return &PendingMoveTable{
		entries:  make([]PendingMove, 0, tuning.PendingMoveCapacity),
		capacity: tuning.PendingMoveCapacity,
		expiry:   tuning.expiry(),
	}
}

// Insert records a new pending move. If the table is already at
// capacity, the oldest entry is evicted and returned so the caller can
// reclaim it (see DESIGN.md, "move-eviction leak").
func (t *PendingMoveTable) Insert(cookie uint32, isDir bool, now time.Time, srcOld, dstOld string) (evicted *PendingMove) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= t.capacity {
		oldest := 0
		for i := range t.entries {
			if t.entries[i].Timestamp.Before(t.entries[oldest].Timestamp) {
				oldest = i
			}
		}
		ev := t.entries[oldest]
		last := len(t.entries) - 1
		t.entries[oldest] = t.entries[last]
		t.entries = t.entries[:last]
		evicted = &ev
	}

	t.entries = append(t.entries, PendingMove{
		Cookie:    cookie,
		IsDir:     isDir,
		Timestamp: now,
		SrcOld:    srcOld,
		DstOld:    dstOld,
	})
	return evicted
}

// Take removes and returns the first entry matching cookie, if any.
// The kernel is not expected to reuse cookies concurrently, but if it
// does, the first match is taken (matching pm_take's linear-scan
// behavior).
func (t *PendingMoveTable) Take(cookie uint32) (PendingMove, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e.Cookie == cookie {
			last := len(t.entries) - 1
			t.entries[i] = t.entries[last]
			t.entries = t.entries[:last]
			return e, true
		}
	}
	return PendingMove{}, false
}

// ExpireOlderThan removes and returns every entry whose age as of now
// has reached the table's expiry window (1s by default), for the
// caller to reclaim exactly as it would an evicted entry.
func (t *PendingMoveTable) ExpireOlderThan(now time.Time) []PendingMove {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []PendingMove
	kept := t.entries[:0]
	for _, e := range t.entries {
		if now.Sub(e.Timestamp) >= t.expiry {
			expired = append(expired, e)
			continue
		}
		kept = append(kept, e)
	}
	t.entries = kept
	return expired
}

// Len reports the number of pending entries.
func (t *PendingMoveTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
