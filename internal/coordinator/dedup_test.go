package coordinator

import (
	"fmt"
	"testing"
)

func TestDedupRingSeen(t *testing.T) {
	r := newDedupRing(4)

	if r.Seen("a|1") {
		t.Fatalf("fresh key reported as seen")
	}
	if !r.Seen("a|1") {
		t.Fatalf("duplicate key not detected")
	}
}

func TestDedupRingEvictsOldest(t *testing.T) {
	r := newDedupRing(3)
	for i := 0; i < 3; i++ {
		r.Seen(fmt.Sprintf("k%d", i))
	}

	// k3 evicts k0
	if r.Seen("k3") {
		t.Fatalf("k3 should be fresh")
	}
	if r.Seen("k0") {
		t.Fatalf("k0 should have been evicted and count as fresh again")
	}
	if !r.Seen("k3") {
		t.Fatalf("k3 should still be present")
	}
}

func TestDedupRingStaysBounded(t *testing.T) {
	r := newDedupRing(8)
	for i := 0; i < 1000; i++ {
		r.Seen(fmt.Sprintf("k%d", i))
	}
	if len(r.set) > 8 {
		t.Fatalf("set grew past capacity: %d", len(r.set))
	}
}
