package engine

import (
	"github.com/athena-arpd/athena-arpd/internal/wire"
	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

// ACDPhase is the RFC 5227 conflict-detection lifecycle position.
type ACDPhase uint8

const (
	ACDIdle ACDPhase = iota
	ACDProbing
	ACDAnnouncing
	ACDBound
	ACDDefending
	ACDConflict
)

var acdNames = map[ACDPhase]string{
	ACDIdle:       "idle",
	ACDProbing:    "probing",
	ACDAnnouncing: "announcing",
	ACDBound:      "bound",
	ACDDefending:  "defending",
	ACDConflict:   "conflict",
}

func (p ACDPhase) String() string {
	if s, ok := acdNames[p]; ok {
		return s
	}
	return "unknown"
}

// ACD is the per-interface address-conflict-detection state machine. It is
// advanced only by tick and fed only by validated inbound packets, so its
// behavior is a function of (state, packet, clock, seed).
type ACD struct {
	Phase         ACDPhase
	Candidate     arpv4.IPv4
	EnteredAt     int64
	Sent          int
	NextSendAt    int64
	LastDefenseAt int64
	rng           jitterRNG
}

// Start begins probing for candidate. Any prior lifecycle for another
// candidate is abandoned.
func (a *ACD) Start(candidate arpv4.IPv4, now int64, seed uint64) {
	a.Phase = ACDProbing
	a.Candidate = candidate
	a.EnteredAt = now
	a.Sent = 0
	a.NextSendAt = now
	a.LastDefenseAt = 0
	a.rng = newJitterRNG(seed)
}

// acdTiming carries the configurable RFC 5227 parameters.
type acdTiming struct {
	probeNum         int
	announceNum      int
	defendIntervalMs int64
}

// Advance moves the machine forward to now and returns at most one packet
// to transmit plus whether the candidate just became bound.
func (a *ACD) Advance(ownMAC arpv4.MAC, now int64, t acdTiming) (pkt *wire.Packet, becameBound bool) {
	switch a.Phase {
	case ACDProbing:
		if now < a.NextSendAt {
			return nil, false
		}
		if a.Sent < t.probeNum {
			p := wire.NewProbe(ownMAC, a.Candidate)
			a.Sent++
			if a.Sent < t.probeNum {
				a.NextSendAt = now + a.rng.intervalMs(arpv4.ProbeMinMs, arpv4.ProbeMaxMs)
			} else {
				a.NextSendAt = now + arpv4.ProbeWaitMs
			}
			return &p, false
		}
		// All probes out and the quiet period elapsed without conflict.
		a.Phase = ACDAnnouncing
		a.EnteredAt = now
		a.Sent = 0
		a.NextSendAt = now
		return a.Advance(ownMAC, now, t)

	case ACDAnnouncing:
		if now < a.NextSendAt || a.Sent >= t.announceNum {
			return nil, false
		}
		p := wire.NewGratuitous(ownMAC, a.Candidate)
		a.Sent++
		a.NextSendAt = now + arpv4.AnnounceIntervalMs
		if a.Sent >= t.announceNum {
			a.Phase = ACDBound
			a.EnteredAt = now
			return &p, true
		}
		return &p, false

	case ACDDefending:
		if now-a.LastDefenseAt >= t.defendIntervalMs {
			a.Phase = ACDBound
			a.EnteredAt = now
		}
		return nil, false

	default:
		return nil, false
	}
}

// Observe feeds a validated inbound packet to the machine. It returns
// conflicted=true when the candidate was lost, and a defense announcement
// to transmit when a Bound address is being contested for the first time
// in the defend interval.
func (a *ACD) Observe(pkt wire.Packet, ownMAC arpv4.MAC, now int64, t acdTiming) (conflicted bool, defense *wire.Packet) {
	if a.Phase == ACDIdle || a.Phase == ACDConflict || pkt.SenderMAC == ownMAC {
		return false, nil
	}

	claimsCandidate := pkt.SenderIP == a.Candidate
	// Another host probing the same candidate (zero sender IP) is a
	// simultaneous-probe conflict during our own probe phase.
	probesCandidate := pkt.Op == arpv4.OpRequest && pkt.SenderIP.IsZero() && pkt.TargetIP == a.Candidate

	switch a.Phase {
	case ACDProbing, ACDAnnouncing:
		if claimsCandidate || probesCandidate {
			a.Phase = ACDConflict
			a.EnteredAt = now
			return true, nil
		}

	case ACDBound:
		if claimsCandidate {
			a.Phase = ACDDefending
			a.EnteredAt = now
			a.LastDefenseAt = now
			p := wire.NewGratuitous(ownMAC, a.Candidate)
			return false, &p
		}

	case ACDDefending:
		if claimsCandidate {
			if now-a.LastDefenseAt < t.defendIntervalMs {
				// Second conflict inside the defend window: give the address up.
				a.Phase = ACDConflict
				a.EnteredAt = now
				return true, nil
			}
			// The window lapsed without a tick observing it; defend again.
			a.LastDefenseAt = now
			p := wire.NewGratuitous(ownMAC, a.Candidate)
			return false, &p
		}
	}
	return false, nil
}
