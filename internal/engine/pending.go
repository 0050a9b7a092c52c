package engine

import (
	"sort"

	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

type pendingRequest struct {
	attempts   int
	lastSentAt int64
}

// PendingQueue tracks outstanding resolution requests per interface so the
// tick loop can retransmit them with bounded persistence.
type PendingQueue struct {
	entries map[arpv4.IPv4]pendingRequest
	max     int
}

// NewPendingQueue creates a queue bounded to max outstanding targets.
func NewPendingQueue(max int) *PendingQueue {
	if max <= 0 {
		max = arpv4.DefaultMaxPending
	}
	return &PendingQueue{
		entries: make(map[arpv4.IPv4]pendingRequest),
		max:     max,
	}
}

func (p *PendingQueue) Len() int {
	return len(p.entries)
}

// Add registers target with zero attempts, or refreshes last_sent_at when
// it is already tracked. Returns false when the queue is full; the request
// may still be sent, it just gets no retry state.
func (p *PendingQueue) Add(target arpv4.IPv4, sentAt int64) bool {
	if e, ok := p.entries[target]; ok {
		e.lastSentAt = sentAt
		p.entries[target] = e
		return true
	}
	if len(p.entries) >= p.max {
		return false
	}
	p.entries[target] = pendingRequest{attempts: 0, lastSentAt: sentAt}
	return true
}

// Fulfill drops the entry for target after a successful resolution.
func (p *PendingQueue) Fulfill(target arpv4.IPv4) bool {
	if _, ok := p.entries[target]; !ok {
		return false
	}
	delete(p.entries, target)
	return true
}

// Has reports whether target is tracked.
func (p *PendingQueue) Has(target arpv4.IPv4) bool {
	_, ok := p.entries[target]
	return ok
}

// Due returns the targets whose retry interval has elapsed, in ascending
// IP order so retransmission is deterministic.
func (p *PendingQueue) Due(now, retryIntervalMs int64) []arpv4.IPv4 {
	var due []arpv4.IPv4
	for ip, e := range p.entries {
		if e.lastSentAt+retryIntervalMs <= now {
			due = append(due, ip)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Less(due[j]) })
	return due
}

// Retransmitted bumps the attempt counter after a retry went out.
func (p *PendingQueue) Retransmitted(target arpv4.IPv4, now int64) {
	e, ok := p.entries[target]
	if !ok {
		return
	}
	e.attempts++
	e.lastSentAt = now
	p.entries[target] = e
}

// Attempts returns the retry count for target, or -1 if untracked.
func (p *PendingQueue) Attempts(target arpv4.IPv4) int {
	e, ok := p.entries[target]
	if !ok {
		return -1
	}
	return e.attempts
}

// Abandon removes target after the retry budget is exhausted.
func (p *PendingQueue) Abandon(target arpv4.IPv4) {
	delete(p.entries, target)
}
