package engine

import "github.com/athena-arpd/athena-arpd/pkg/arpv4"

type negativeEntry struct {
	insertedAt int64
	ttlMs      int64
}

// NegativeCache records failed resolutions so repeated lookups for dead
// addresses do not turn into repeated wire traffic.
type NegativeCache struct {
	entries map[arpv4.IPv4]negativeEntry
	max     int
	ttlMs   int64
}

// NewNegativeCache creates a negative cache bounded to max entries with the
// given default TTL.
func NewNegativeCache(max int, ttlMs int64) *NegativeCache {
	if max <= 0 {
		max = arpv4.DefaultMaxNegative
	}
	if ttlMs <= 0 {
		ttlMs = arpv4.DefaultNegativeTTLMs
	}
	return &NegativeCache{
		entries: make(map[arpv4.IPv4]negativeEntry),
		max:     max,
		ttlMs:   ttlMs,
	}
}

func (n *NegativeCache) Len() int {
	return len(n.entries)
}

// RecordFailure marks ip as unresolvable for the cache TTL, evicting the
// oldest record when full (ties broken by lexicographic IP).
func (n *NegativeCache) RecordFailure(ip arpv4.IPv4, now int64) {
	if _, ok := n.entries[ip]; !ok && len(n.entries) >= n.max {
		var (
			victim arpv4.IPv4
			oldest int64
			found  bool
		)
		for cand, e := range n.entries {
			if !found || e.insertedAt < oldest || (e.insertedAt == oldest && cand.Less(victim)) {
				victim = cand
				oldest = e.insertedAt
				found = true
			}
		}
		if found {
			delete(n.entries, victim)
		}
	}
	n.entries[ip] = negativeEntry{insertedAt: now, ttlMs: n.ttlMs}
}

// IsNegative reports whether an unexpired failure record exists for ip.
func (n *NegativeCache) IsNegative(ip arpv4.IPv4, now int64) bool {
	e, ok := n.entries[ip]
	if !ok {
		return false
	}
	return now < e.insertedAt+e.ttlMs
}

// Remove clears the record for ip. A positive resolution calls this so the
// two caches never disagree.
func (n *NegativeCache) Remove(ip arpv4.IPv4) {
	delete(n.entries, ip)
}

// Age removes expired records and returns how many were dropped.
func (n *NegativeCache) Age(now int64) int {
	removed := 0
	for ip, e := range n.entries {
		if now >= e.insertedAt+e.ttlMs {
			delete(n.entries, ip)
			removed++
		}
	}
	return removed
}
