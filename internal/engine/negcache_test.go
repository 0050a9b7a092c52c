package engine

import (
	"testing"

	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

func TestNegativeCacheLifecycle(t *testing.T) {
	n := NewNegativeCache(256, 60_000)
	ip := mustIP(t, "10.0.0.9")

	if n.IsNegative(ip, 0) {
		t.Fatal("empty cache reported a negative entry")
	}
	n.RecordFailure(ip, 1000)
	if !n.IsNegative(ip, 1000) {
		t.Error("fresh failure not negative")
	}
	if !n.IsNegative(ip, 60_999) {
		t.Error("failure expired early")
	}
	if n.IsNegative(ip, 61_000) {
		t.Error("failure still negative past its TTL")
	}

	n.RecordFailure(ip, 70_000)
	n.Remove(ip)
	if n.IsNegative(ip, 70_001) {
		t.Error("Remove left the entry behind")
	}
}

func TestNegativeCacheBound(t *testing.T) {
	n := NewNegativeCache(8, 60_000)
	for i := 0; i < 50; i++ {
		n.RecordFailure(arpv4.IPv4FromUint32(0x0A000000+uint32(i)), int64(i))
		if n.Len() > 8 {
			t.Fatalf("negative cache grew past its bound: %d", n.Len())
		}
	}
	// The newest entries survive; the oldest were evicted.
	if !n.IsNegative(arpv4.IPv4FromUint32(0x0A000000+49), 50) {
		t.Error("newest entry evicted")
	}
	if n.IsNegative(arpv4.IPv4FromUint32(0x0A000000), 50) {
		t.Error("oldest entry survived eviction")
	}
}

func TestNegativeCacheAge(t *testing.T) {
	n := NewNegativeCache(256, 1000)
	n.RecordFailure(mustIP(t, "10.0.0.1"), 0)
	n.RecordFailure(mustIP(t, "10.0.0.2"), 500)

	if removed := n.Age(1000); removed != 1 {
		t.Errorf("Age removed %d, want 1", removed)
	}
	if n.Len() != 1 {
		t.Errorf("Len = %d, want 1", n.Len())
	}
}

func TestPendingQueue(t *testing.T) {
	p := NewPendingQueue(4)
	ip := mustIP(t, "10.0.0.9")

	if !p.Add(ip, 0) {
		t.Fatal("Add failed on empty queue")
	}
	if p.Attempts(ip) != 0 {
		t.Errorf("fresh entry attempts = %d, want 0", p.Attempts(ip))
	}

	// Re-adding refreshes the send time but keeps one entry.
	p.Add(ip, 100)
	if p.Len() != 1 {
		t.Errorf("Len = %d, want 1", p.Len())
	}

	if due := p.Due(1099, 1000); len(due) != 0 {
		t.Errorf("Due before interval = %v, want empty", due)
	}
	due := p.Due(1100, 1000)
	if len(due) != 1 || due[0] != ip {
		t.Fatalf("Due = %v, want [%s]", due, ip)
	}

	p.Retransmitted(ip, 1100)
	if p.Attempts(ip) != 1 {
		t.Errorf("attempts after retransmit = %d, want 1", p.Attempts(ip))
	}

	if !p.Fulfill(ip) {
		t.Error("Fulfill missed the entry")
	}
	if p.Has(ip) {
		t.Error("entry survived Fulfill")
	}
}

func TestPendingQueueBound(t *testing.T) {
	p := NewPendingQueue(2)
	p.Add(mustIP(t, "10.0.0.1"), 0)
	p.Add(mustIP(t, "10.0.0.2"), 0)
	if p.Add(mustIP(t, "10.0.0.3"), 0) {
		t.Error("Add succeeded past the bound")
	}
	if p.Len() != 2 {
		t.Errorf("Len = %d, want 2", p.Len())
	}
}

func TestPendingDueSorted(t *testing.T) {
	p := NewPendingQueue(8)
	p.Add(mustIP(t, "10.0.0.9"), 0)
	p.Add(mustIP(t, "10.0.0.1"), 0)
	p.Add(mustIP(t, "10.0.0.5"), 0)

	due := p.Due(2000, 1000)
	want := []string{"10.0.0.1", "10.0.0.5", "10.0.0.9"}
	if len(due) != 3 {
		t.Fatalf("Due returned %d targets, want 3", len(due))
	}
	for i, ip := range due {
		if ip.String() != want[i] {
			t.Errorf("due[%d] = %s, want %s", i, ip, want[i])
		}
	}
}
