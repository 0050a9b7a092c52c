package engine

import (
	"testing"

	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

func TestFloodAllowFiveThenDeny(t *testing.T) {
	f := NewFloodTable(512, 1000, 5)
	target := mustIP(t, "10.0.0.9")

	for i, now := range []int64{0, 100, 200, 300, 400} {
		if !f.Allow(target, now) {
			t.Fatalf("request %d at t=%d denied, want allowed", i+1, now)
		}
	}
	if f.Allow(target, 500) {
		t.Error("6th request inside the window allowed, want denied")
	}
}

func TestFloodWindowReset(t *testing.T) {
	f := NewFloodTable(512, 1000, 5)
	target := mustIP(t, "10.0.0.9")

	for i := 0; i < 5; i++ {
		f.Allow(target, int64(i*10))
	}
	if f.Allow(target, 900) {
		t.Fatal("expected denial before window expiry")
	}
	if !f.Allow(target, 1000) {
		t.Error("window elapsed, request should reset and be allowed")
	}
}

func TestFloodPerTargetIndependence(t *testing.T) {
	f := NewFloodTable(512, 1000, 5)
	a := mustIP(t, "10.0.0.1")
	b := mustIP(t, "10.0.0.2")

	for i := 0; i < 5; i++ {
		f.Allow(a, 0)
	}
	if f.Allow(a, 1) {
		t.Fatal("target a should be limited")
	}
	if !f.Allow(b, 1) {
		t.Error("target b limited by target a's traffic")
	}
}

func TestFloodBoundEvictsOldestWindow(t *testing.T) {
	f := NewFloodTable(4, 1000, 5)
	for i := 0; i < 4; i++ {
		f.Allow(arpv4.IPv4FromUint32(0x0A000001+uint32(i)), int64(i))
	}
	if f.Len() != 4 {
		t.Fatalf("Len = %d, want 4", f.Len())
	}
	// A fifth target must evict the t=0 record, not grow the table.
	f.Allow(mustIP(t, "10.0.0.100"), 10)
	if f.Len() != 4 {
		t.Errorf("Len after eviction = %d, want 4", f.Len())
	}
}

func TestFloodPruneShrinksOnly(t *testing.T) {
	f := NewFloodTable(512, 1000, 5)
	f.Allow(mustIP(t, "10.0.0.1"), 0)
	f.Allow(mustIP(t, "10.0.0.2"), 600)

	before := f.Len()
	f.Prune(1100)
	if f.Len() > before {
		t.Error("prune grew the table")
	}
	if f.Len() != 1 {
		t.Errorf("Len after prune = %d, want 1", f.Len())
	}
}
