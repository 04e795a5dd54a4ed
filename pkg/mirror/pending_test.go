package mirror

import (
	"testing"
	"time"
)

func TestPendingMoveTableInsertTake(t *testing.T) {
	table := NewPendingMoveTable()
	now := time.Now()

	if evicted := table.Insert(42, false, now, "/src/old", "/dst/old"); evicted != nil {
		t.Fatal("unexpected eviction on first insert")
	}

	pm, ok := table.Take(42)
	if !ok {
		t.Fatal("expected to take cookie 42")
	}
	if pm.SrcOld != "/src/old" || pm.DstOld != "/dst/old" {
		t.Errorf("unexpected entry: %+v", pm)
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after Take", table.Len())
	}

	if _, ok := table.Take(42); ok {
		t.Error("expected second Take of same cookie to fail")
	}
}

func TestPendingMoveTableExpireOlderThan(t *testing.T) {
	table := NewPendingMoveTable()
	base := time.Now()

	table.Insert(1, false, base, "/src/a", "/dst/a")
	table.Insert(2, false, base.Add(2*time.Second), "/src/b", "/dst/b")

	expired := table.ExpireOlderThan(base.Add(moveExpiry))
	if len(expired) != 1 || expired[0].Cookie != 1 {
		t.Fatalf("ExpireOlderThan = %+v, want only cookie 1 expired", expired)
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1 remaining", table.Len())
	}
}

func TestPendingMoveTableTunedCapacityAndExpiry(t *testing.T) {
	table := NewPendingMoveTableTuned(Tuning{PendingMoveCapacity: 2, MoveExpiryMillis: 10})
	base := time.Now()

	table.Insert(1, false, base, "/src/a", "/dst/a")
	table.Insert(2, false, base, "/src/b", "/dst/b")

	if evicted := table.Insert(3, false, base, "/src/c", "/dst/c"); evicted == nil {
		t.Fatal("expected eviction once the tuned capacity of 2 is exceeded")
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (tuned capacity)", table.Len())
	}

	expired := table.ExpireOlderThan(base.Add(11 * time.Millisecond))
	if len(expired) != 2 {
		t.Errorf("ExpireOlderThan after tuned 10ms expiry = %d entries, want 2", len(expired))
	}
}

func TestPendingMoveTableEvictsOldestOnOverflow(t *testing.T) {
	table := NewPendingMoveTable()
	base := time.Now()

	for i := 0; i < pendingMoveCapacity; i++ {
		if evicted := table.Insert(uint32(i), false, base.Add(time.Duration(i)*time.Millisecond), "/src", "/dst"); evicted != nil {
			t.Fatalf("unexpected eviction filling table, at i=%d", i)
		}
	}

	evicted := table.Insert(9999, false, base.Add(time.Duration(pendingMoveCapacity)*time.Millisecond), "/src/new", "/dst/new")
	if evicted == nil {
		t.Fatal("expected eviction once table is at capacity")
	}
	if evicted.Cookie != 0 {
		t.Errorf("evicted cookie = %d, want 0 (the oldest)", evicted.Cookie)
	}
	if table.Len() != pendingMoveCapacity {
		t.Errorf("Len() = %d, want table to stay at capacity", table.Len())
	}
}
