package engine

import "github.com/athena-arpd/athena-arpd/pkg/arpv4"

// EntryKind distinguishes protocol-learned entries from administratively
// pinned ones.
type EntryKind uint8

const (
	Dynamic EntryKind = iota
	Static
)

func (k EntryKind) String() string {
	if k == Static {
		return "static"
	}
	return "dynamic"
}

// Entry is one IPv4→MAC binding in the resolution cache.
type Entry struct {
	IP         arpv4.IPv4
	MAC        arpv4.MAC
	InsertedAt int64
	TTLMs      int64 // ignored for Static entries
	Kind       EntryKind
}

func (e Entry) expired(now int64) bool {
	return e.Kind == Dynamic && now >= e.InsertedAt+e.TTLMs
}

// Cache is the bounded per-interface resolution cache. Static entries are
// immune to protocol updates, aging, and eviction.
type Cache struct {
	entries map[arpv4.IPv4]Entry
	max     int
}

// NewCache creates a cache bounded to max entries.
func NewCache(max int) *Cache {
	if max <= 0 {
		max = arpv4.DefaultMaxCache
	}
	return &Cache{
		entries: make(map[arpv4.IPv4]Entry),
		max:     max,
	}
}

// Len returns the current entry count, expired entries included until the
// next aging sweep.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Get returns the live entry for ip. Expired dynamic entries are invisible
// but stay in place until Age removes them.
func (c *Cache) Get(ip arpv4.IPv4, now int64) (Entry, bool) {
	e, ok := c.entries[ip]
	if !ok || e.expired(now) {
		return Entry{}, false
	}
	return e, true
}

// Has reports whether any entry (live or expired) occupies ip.
func (c *Cache) Has(ip arpv4.IPv4) bool {
	_, ok := c.entries[ip]
	return ok
}

// Update refreshes an existing non-Static entry in place per the RFC 826
// merge step. It returns merged=true when the entry was updated, and
// staticViolation=true when a Static entry blocked an update that would
// have changed the MAC.
func (c *Cache) Update(ip arpv4.IPv4, mac arpv4.MAC, now int64) (merged, staticViolation bool) {
	e, ok := c.entries[ip]
	if !ok {
		return false, false
	}
	if e.Kind == Static {
		return false, e.MAC != mac
	}
	e.MAC = mac
	e.InsertedAt = now
	c.entries[ip] = e
	return true, false
}

// Insert adds a Dynamic entry, evicting the oldest Dynamic entry when the
// cache is full (ties broken by lexicographic IP). It fails when the cache
// is full of Static entries or when ip is already held by a Static entry.
func (c *Cache) Insert(ip arpv4.IPv4, mac arpv4.MAC, now, ttlMs int64) bool {
	if _, ok := c.entries[ip]; !ok && len(c.entries) >= c.max {
		victim, ok := c.oldestDynamic()
		if !ok {
			return false
		}
		delete(c.entries, victim)
	}
	if e, ok := c.entries[ip]; ok && e.Kind == Static {
		return false
	}
	c.entries[ip] = Entry{IP: ip, MAC: mac, InsertedAt: now, TTLMs: ttlMs, Kind: Dynamic}
	return true
}

// PutStatic pins an administrative entry. Static entries may overwrite
// Dynamic ones; an existing Static entry for the same IP is replaced (the
// admin channel is the one writer allowed to do that).
func (c *Cache) PutStatic(ip arpv4.IPv4, mac arpv4.MAC) bool {
	if _, ok := c.entries[ip]; !ok && len(c.entries) >= c.max {
		victim, found := c.oldestDynamic()
		if !found {
			return false
		}
		delete(c.entries, victim)
	}
	c.entries[ip] = Entry{IP: ip, MAC: mac, Kind: Static}
	return true
}

// RemoveStatic deletes a Static entry. Dynamic entries are left to aging.
func (c *Cache) RemoveStatic(ip arpv4.IPv4) bool {
	e, ok := c.entries[ip]
	if !ok || e.Kind != Static {
		return false
	}
	delete(c.entries, ip)
	return true
}

// Age removes every expired Dynamic entry and returns them. Aging never
// grows the cache.
func (c *Cache) Age(now int64) []Entry {
	var removed []Entry
	for ip, e := range c.entries {
		if e.expired(now) {
			removed = append(removed, e)
			delete(c.entries, ip)
		}
	}
	return removed
}

// Entries returns a snapshot of all entries, unsorted.
func (c *Cache) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

// oldestDynamic finds the eviction victim: smallest InsertedAt, ties broken
// by the byte-wise smaller IP.
func (c *Cache) oldestDynamic() (arpv4.IPv4, bool) {
	var (
		victim arpv4.IPv4
		oldest int64
		found  bool
	)
	for ip, e := range c.entries {
		if e.Kind != Dynamic {
			continue
		}
		if !found || e.InsertedAt < oldest || (e.InsertedAt == oldest && ip.Less(victim)) {
			victim = ip
			oldest = e.InsertedAt
			found = true
		}
	}
	return victim, found
}
