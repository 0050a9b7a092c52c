package engine

import "github.com/athena-arpd/athena-arpd/pkg/arpv4"

type floodRecord struct {
	windowStart int64
	count       int
}

// FloodTable rate-limits outbound requests per target IP with a sliding
// window. One table is shared across all interfaces so a target cannot be
// hammered from several segments at once.
type FloodTable struct {
	records  map[arpv4.IPv4]floodRecord
	max      int
	windowMs int64
	limit    int
}

// NewFloodTable creates a flood table bounded to max targets allowing
// limit requests per windowMs per target.
func NewFloodTable(max int, windowMs int64, limit int) *FloodTable {
	if max <= 0 {
		max = arpv4.DefaultMaxFlood
	}
	if windowMs <= 0 {
		windowMs = arpv4.DefaultFloodWindowMs
	}
	if limit <= 0 {
		limit = arpv4.DefaultFloodMax
	}
	return &FloodTable{
		records:  make(map[arpv4.IPv4]floodRecord),
		max:      max,
		windowMs: windowMs,
		limit:    limit,
	}
}

func (f *FloodTable) Len() int {
	return len(f.records)
}

// Allow decides whether one more request to target may go out now, and
// accounts for it if so.
func (f *FloodTable) Allow(target arpv4.IPv4, now int64) bool {
	r, ok := f.records[target]
	switch {
	case !ok:
		if len(f.records) >= f.max {
			f.evictOldestWindow()
		}
		f.records[target] = floodRecord{windowStart: now, count: 1}
		return true
	case now-r.windowStart >= f.windowMs:
		f.records[target] = floodRecord{windowStart: now, count: 1}
		return true
	case r.count < f.limit:
		r.count++
		f.records[target] = r
		return true
	default:
		return false
	}
}

// Prune drops records whose window has lapsed. Equivalent to the reset the
// next Allow would perform, so it only shrinks the table.
func (f *FloodTable) Prune(now int64) {
	for ip, r := range f.records {
		if now-r.windowStart >= f.windowMs {
			delete(f.records, ip)
		}
	}
}

func (f *FloodTable) evictOldestWindow() {
	var (
		victim arpv4.IPv4
		oldest int64
		found  bool
	)
	for ip, r := range f.records {
		if !found || r.windowStart < oldest || (r.windowStart == oldest && ip.Less(victim)) {
			victim = ip
			oldest = r.windowStart
			found = true
		}
	}
	if found {
		delete(f.records, victim)
	}
}
