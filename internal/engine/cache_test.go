package engine

import (
	"fmt"
	"testing"

	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

func mustIP(t *testing.T, s string) arpv4.IPv4 {
	t.Helper()
	ip, err := arpv4.ParseIPv4(s)
	if err != nil {
		t.Fatalf("ParseIPv4(%q): %v", s, err)
	}
	return ip
}

func mustMAC(t *testing.T, s string) arpv4.MAC {
	t.Helper()
	m, err := arpv4.ParseMAC(s)
	if err != nil {
		t.Fatalf("ParseMAC(%q): %v", s, err)
	}
	return m
}

func TestCacheInsertGet(t *testing.T) {
	c := NewCache(4)
	ip := mustIP(t, "10.0.0.2")
	mac := mustMAC(t, "02:00:00:00:00:02")

	if !c.Insert(ip, mac, 1000, 300_000) {
		t.Fatal("Insert failed on empty cache")
	}
	e, ok := c.Get(ip, 1000)
	if !ok {
		t.Fatal("Get missed a fresh entry")
	}
	if e.MAC != mac || e.Kind != Dynamic || e.InsertedAt != 1000 {
		t.Errorf("entry = %+v", e)
	}

	// Expired entries are invisible to Get.
	if _, ok := c.Get(ip, 1000+300_000); ok {
		t.Error("Get returned an expired entry")
	}
}

func TestCacheUpdateStaticImmutable(t *testing.T) {
	c := NewCache(4)
	ip := mustIP(t, "10.0.0.254")
	pinned := mustMAC(t, "02:00:00:00:00:fe")
	attacker := mustMAC(t, "02:00:00:00:00:aa")

	c.PutStatic(ip, pinned)

	merged, violation := c.Update(ip, attacker, 5000)
	if merged {
		t.Error("Update merged over a static entry")
	}
	if !violation {
		t.Error("Update with a different MAC against static should report a violation")
	}
	e, _ := c.Get(ip, 5000)
	if e.MAC != pinned || e.Kind != Static {
		t.Errorf("static entry changed: %+v", e)
	}

	// Same MAC against static is a benign no-op, not a violation.
	if _, violation := c.Update(ip, pinned, 5000); violation {
		t.Error("Update with the pinned MAC should not be a violation")
	}

	if c.Insert(ip, attacker, 5000, 300_000) {
		t.Error("Insert displaced a static entry")
	}
}

func TestCacheEvictionOldestDynamic(t *testing.T) {
	c := NewCache(3)
	c.Insert(mustIP(t, "10.0.0.3"), mustMAC(t, "02:00:00:00:00:03"), 300, 300_000)
	c.Insert(mustIP(t, "10.0.0.1"), mustMAC(t, "02:00:00:00:00:01"), 100, 300_000)
	c.Insert(mustIP(t, "10.0.0.2"), mustMAC(t, "02:00:00:00:00:02"), 200, 300_000)

	if !c.Insert(mustIP(t, "10.0.0.4"), mustMAC(t, "02:00:00:00:00:04"), 400, 300_000) {
		t.Fatal("Insert into full cache failed")
	}
	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}
	if _, ok := c.Get(mustIP(t, "10.0.0.1"), 400); ok {
		t.Error("oldest entry 10.0.0.1 survived eviction")
	}
	if _, ok := c.Get(mustIP(t, "10.0.0.4"), 400); !ok {
		t.Error("new entry missing after eviction")
	}
}

func TestCacheEvictionTieBreaksLexicographic(t *testing.T) {
	c := NewCache(2)
	c.Insert(mustIP(t, "10.0.0.9"), mustMAC(t, "02:00:00:00:00:09"), 100, 300_000)
	c.Insert(mustIP(t, "10.0.0.5"), mustMAC(t, "02:00:00:00:00:05"), 100, 300_000)

	c.Insert(mustIP(t, "10.0.0.7"), mustMAC(t, "02:00:00:00:00:07"), 200, 300_000)
	if _, ok := c.Get(mustIP(t, "10.0.0.5"), 200); ok {
		t.Error("tie-break should evict the lexicographically smaller IP 10.0.0.5")
	}
	if _, ok := c.Get(mustIP(t, "10.0.0.9"), 200); !ok {
		t.Error("10.0.0.9 should survive the tie-break")
	}
}

func TestCacheFullOfStatics(t *testing.T) {
	c := NewCache(2)
	c.PutStatic(mustIP(t, "10.0.0.1"), mustMAC(t, "02:00:00:00:00:01"))
	c.PutStatic(mustIP(t, "10.0.0.2"), mustMAC(t, "02:00:00:00:00:02"))

	if c.Insert(mustIP(t, "10.0.0.3"), mustMAC(t, "02:00:00:00:00:03"), 100, 300_000) {
		t.Error("Insert succeeded into a cache full of static entries")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestCacheAge(t *testing.T) {
	c := NewCache(8)
	c.PutStatic(mustIP(t, "10.0.0.254"), mustMAC(t, "02:00:00:00:00:fe"))
	c.Insert(mustIP(t, "10.0.0.1"), mustMAC(t, "02:00:00:00:00:01"), 0, 1000)
	c.Insert(mustIP(t, "10.0.0.2"), mustMAC(t, "02:00:00:00:00:02"), 500, 1000)

	before := c.Len()
	removed := c.Age(1000)
	if len(removed) != 1 || removed[0].IP != mustIP(t, "10.0.0.1") {
		t.Errorf("Age removed %+v, want only 10.0.0.1", removed)
	}
	if c.Len() > before {
		t.Error("aging grew the cache")
	}

	removed = c.Age(10_000)
	if len(removed) != 1 {
		t.Errorf("second Age removed %d entries, want 1", len(removed))
	}
	// Static entries never age.
	if _, ok := c.Get(mustIP(t, "10.0.0.254"), 1<<40); !ok {
		t.Error("static entry aged out")
	}
}

func TestCacheBoundHolds(t *testing.T) {
	c := NewCache(16)
	for i := 0; i < 200; i++ {
		ip := arpv4.IPv4FromUint32(0x0A000000 + uint32(i))
		mac := mustMAC(t, fmt.Sprintf("02:00:00:00:%02x:%02x", i/256, i%256))
		c.Insert(ip, mac, int64(i), 300_000)
		if c.Len() > 16 {
			t.Fatalf("cache grew past its bound: %d", c.Len())
		}
	}
}
