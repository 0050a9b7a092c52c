// Package engine implements the deterministic ARP processing core: a pure
// transition function over (state, frame, clock) with bounded caches,
// flood control, conflict detection, and a RARP responder. The engine
// performs no I/O, reads no clock, and draws no ambient randomness; the
// caller owns the State value and feeds it frames and tick timestamps.
package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/athena-arpd/athena-arpd/internal/wire"
	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

// State is the complete engine state: per-interface caches and conflict
// machines, plus the flood table shared across interfaces. A State must be
// driven from a single goroutine.
type State struct {
	cfg     Config
	ifaces  map[string]*Interface
	order   []string
	flood   *FloodTable
	reverse map[arpv4.MAC]arpv4.IPv4
}

// New builds a State from the configuration. Static entries and the RARP
// reverse map are installed here; after init the protocol can only read
// them.
func New(cfg Config) (*State, error) {
	cfg.applyDefaults()

	s := &State{
		cfg:     cfg,
		ifaces:  make(map[string]*Interface, len(cfg.Interfaces)),
		flood:   NewFloodTable(cfg.MaxFlood, cfg.FloodWindowMs, cfg.FloodMax),
		reverse: make(map[arpv4.MAC]arpv4.IPv4, len(cfg.ReverseMap)),
	}
	for _, ic := range cfg.Interfaces {
		if _, dup := s.ifaces[ic.ID]; dup {
			return nil, fmt.Errorf("duplicate interface id %q", ic.ID)
		}
		iface, err := newInterface(ic, cfg)
		if err != nil {
			return nil, err
		}
		s.ifaces[ic.ID] = iface
		s.order = append(s.order, ic.ID)
	}
	sort.Strings(s.order)
	for mac, ip := range cfg.ReverseMap {
		s.reverse[mac] = ip
	}
	if s.cfg.Oracle == nil {
		s.cfg.Oracle = s.subnetOracle
	}
	return s, nil
}

// subnetOracle is the default routing oracle: the first interface (by id)
// whose subnet contains ip owns it.
func (s *State) subnetOracle(ip arpv4.IPv4) (string, bool) {
	for _, id := range s.order {
		iface := s.ifaces[id]
		if iface.Subnet != nil && iface.Subnet.Contains(ip) {
			return id, true
		}
	}
	return "", false
}

// Interface returns the interface with the given id, or nil.
func (s *State) Interface(id string) *Interface {
	return s.ifaces[id]
}

// Interfaces returns the interface ids in deterministic order.
func (s *State) Interfaces() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// RouteFor resolves the owning interface for a destination address.
func (s *State) RouteFor(ip arpv4.IPv4) (string, bool) {
	return s.cfg.Oracle(ip)
}

// FloodLen exposes the shared flood table size for bound checks.
func (s *State) FloodLen() int {
	return s.flood.Len()
}

// Result reports everything one Step did. Out is the frame to transmit,
// nil when the input produced none.
type Result struct {
	Out  []byte
	Drop DropReason

	Op        uint16
	SenderIP  arpv4.IPv4
	SenderMAC arpv4.MAC

	Merged          bool
	Learned         bool
	StaticViolation bool
	CacheFull       bool
	SelfConflict    bool
	ACDConflict     bool
	Defended        bool
	RARPServed      bool
}

// Step processes one received frame on the given interface at the given
// monotonic millisecond clock. It is deterministic: equal (state, frame,
// now) produce equal results byte for byte.
func (s *State) Step(ifaceID string, frame []byte, now int64) Result {
	f, err := wire.Decap(frame)
	if err != nil {
		if errors.Is(err, wire.ErrBadCRC) {
			return Result{Drop: DropBadCRC}
		}
		return Result{Drop: DropTooShort}
	}
	if f.EtherType != arpv4.EtherTypeARP && f.EtherType != arpv4.EtherTypeRARP {
		return Result{Drop: DropBadEtherType}
	}

	iface, ok := s.ifaces[ifaceID]
	if !ok {
		return Result{Drop: DropUnknownInterface}
	}

	pkt, err := wire.Parse(f.Payload)
	if err != nil {
		return Result{Drop: parseDrop(err)}
	}

	res := Result{Op: pkt.Op, SenderIP: pkt.SenderIP, SenderMAC: pkt.SenderMAC}
	drop, selfConflict := validate(iface, pkt)
	if drop != DropNone {
		res.Drop = drop
		return res
	}

	switch pkt.Op {
	case arpv4.OpRequest, arpv4.OpReply:
		s.stepARP(iface, f, pkt, selfConflict, now, &res)
	case arpv4.OpRARPRequest:
		s.stepRARP(iface, f, pkt, &res)
	case arpv4.OpRARPReply:
		// We answer RARP, we do not consume answers.
	}
	return res
}

func parseDrop(err error) DropReason {
	switch {
	case errors.Is(err, wire.ErrTooShort):
		return DropTooShort
	case errors.Is(err, wire.ErrBadHardwareType):
		return DropBadHardwareType
	case errors.Is(err, wire.ErrBadProtocolType):
		return DropBadProtocolType
	case errors.Is(err, wire.ErrBadLens):
		return DropBadLens
	default:
		return DropBadOp
	}
}

// stepARP runs the RFC 826 merge, the ACD feed, and the reply emission for
// a validated ARP packet.
func (s *State) stepARP(iface *Interface, f wire.Frame, pkt wire.Packet, selfConflict bool, now int64, res *Result) {
	// Conflict machine first: a packet that costs us the candidate must
	// never also be merged as a neighbor.
	if iface.ACD.Phase != ACDIdle && iface.ACD.Phase != ACDConflict {
		timing := acdTiming{probeNum: s.cfg.ProbeNum, announceNum: s.cfg.AnnounceNum, defendIntervalMs: s.cfg.DefendIntervalMs}
		conflicted, defense := iface.ACD.Observe(pkt, iface.MAC, now, timing)
		if conflicted {
			res.ACDConflict = true
			return
		}
		if defense != nil {
			res.Defended = true
			res.Out = wire.Encap(defense.Serialize(), iface.MAC, arpv4.Broadcast, arpv4.EtherTypeARP, iface.VLAN)
			return
		}
	}
	if selfConflict {
		// Conflict notice with no machine to consume it: drop silently.
		res.SelfConflict = true
		return
	}

	// Merge (RFC 826 §2). Probes carry a zero sender IP and never merge.
	forUs := !iface.IP.IsZero() && pkt.TargetIP == iface.IP
	if !pkt.SenderIP.IsZero() {
		merged, staticViolation := iface.Cache.Update(pkt.SenderIP, pkt.SenderMAC, now)
		res.Merged = merged
		res.StaticViolation = staticViolation
		if !merged && !staticViolation && forUs && !iface.Cache.Has(pkt.SenderIP) {
			if iface.Cache.Insert(pkt.SenderIP, pkt.SenderMAC, now, s.cfg.DynamicTTLMs) {
				res.Learned = true
			} else {
				res.CacheFull = true
			}
		}
		if res.Merged || res.Learned {
			iface.Negative.Remove(pkt.SenderIP)
			iface.Pending.Fulfill(pkt.SenderIP)
		}
	}

	// Answer requests for our address, unicast to the asker. Validation
	// already rejected broadcast/multicast sender MACs, so the reply
	// destination can never be one.
	if pkt.Op == arpv4.OpRequest && forUs {
		reply := wire.NewReply(iface.MAC, iface.IP, pkt.SenderMAC, pkt.SenderIP)
		res.Out = wire.Encap(reply.Serialize(), iface.MAC, pkt.SenderMAC, arpv4.EtherTypeARP, f.VLAN)
	}
}

// stepRARP answers reverse lookups from the configured MAC→IP map.
func (s *State) stepRARP(iface *Interface, f wire.Frame, pkt wire.Packet, res *Result) {
	ip, ok := s.reverse[pkt.TargetMAC]
	if !ok {
		res.Drop = DropRARPUnknownMAC
		return
	}
	reply := wire.Packet{
		HardwareType: arpv4.HardwareTypeEthernet,
		ProtocolType: arpv4.ProtocolTypeIPv4,
		HardwareLen:  arpv4.HardwareAddrLen,
		ProtocolLen:  arpv4.ProtocolAddrLen,
		Op:           arpv4.OpRARPReply,
		SenderMAC:    iface.MAC,
		SenderIP:     iface.IP,
		TargetMAC:    pkt.TargetMAC,
		TargetIP:     ip,
	}
	res.RARPServed = true
	res.Out = wire.Encap(reply.Serialize(), iface.MAC, pkt.SenderMAC, arpv4.EtherTypeRARP, f.VLAN)
}

// RequestStatus reports what Request did.
type RequestStatus uint8

const (
	RequestSent RequestStatus = iota
	RequestResolved
	RequestNegative
	RequestFlooded
	RequestUnknownInterface
)

// Request asks the engine to resolve target on the given interface. It
// emits a broadcast Request frame iff flood control allows, registering a
// pending entry either way so the tick loop retries suppressed requests.
func (s *State) Request(ifaceID string, target arpv4.IPv4, now int64) ([]byte, RequestStatus) {
	iface, ok := s.ifaces[ifaceID]
	if !ok {
		return nil, RequestUnknownInterface
	}
	if _, ok := iface.Cache.Get(target, now); ok {
		return nil, RequestResolved
	}
	if iface.Negative.IsNegative(target, now) {
		return nil, RequestNegative
	}

	if !s.flood.Allow(target, now) {
		iface.Pending.Add(target, now)
		return nil, RequestFlooded
	}
	iface.Pending.Add(target, now)
	req := wire.NewRequest(iface.MAC, iface.IP, target)
	return wire.Encap(req.Serialize(), iface.MAC, arpv4.Broadcast, arpv4.EtherTypeARP, iface.VLAN), RequestSent
}

// LookupStatus is the three-way resolution answer. Negative and Unknown
// differ: Negative means a recent attempt failed, Unknown means nothing is
// known at all.
type LookupStatus uint8

const (
	LookupUnknown LookupStatus = iota
	LookupResolved
	LookupNegative
)

// Lookup consults the caches without touching the wire or mutating state.
func (s *State) Lookup(ifaceID string, ip arpv4.IPv4, now int64) (arpv4.MAC, LookupStatus) {
	iface, ok := s.ifaces[ifaceID]
	if !ok {
		return arpv4.MAC{}, LookupUnknown
	}
	if e, ok := iface.Cache.Get(ip, now); ok {
		return e.MAC, LookupResolved
	}
	if iface.Negative.IsNegative(ip, now) {
		return arpv4.MAC{}, LookupNegative
	}
	return arpv4.MAC{}, LookupUnknown
}

// NeighborEvent identifies a cache entry change on an interface.
type NeighborEvent struct {
	IfaceID string
	Entry   Entry
}

// AddrEvent identifies an address-level event on an interface.
type AddrEvent struct {
	IfaceID string
	IP      arpv4.IPv4
}

// TickResult reports everything one Tick did.
type TickResult struct {
	Frames    [][]byte
	Expired   []NeighborEvent
	Abandoned []AddrEvent
	Bound     []AddrEvent
}

// Tick ages the caches, retransmits pending requests, and advances the
// conflict machines. Interfaces are visited in id order and pending
// targets in address order, so the output frame sequence is deterministic.
func (s *State) Tick(now int64) TickResult {
	var tr TickResult

	s.flood.Prune(now)

	for _, id := range s.order {
		iface := s.ifaces[id]

		aged := iface.Cache.Age(now)
		sort.Slice(aged, func(i, j int) bool { return aged[i].IP.Less(aged[j].IP) })
		for _, e := range aged {
			tr.Expired = append(tr.Expired, NeighborEvent{IfaceID: id, Entry: e})
		}
		iface.Negative.Age(now)

		for _, target := range iface.Pending.Due(now, s.cfg.RetryIntervalMs) {
			if iface.Pending.Attempts(target)+1 > s.cfg.MaxAttempts {
				iface.Pending.Abandon(target)
				iface.Negative.RecordFailure(target, now)
				tr.Abandoned = append(tr.Abandoned, AddrEvent{IfaceID: id, IP: target})
				continue
			}
			if !s.flood.Allow(target, now) {
				// Suppressed retries keep their attempt budget.
				continue
			}
			iface.Pending.Retransmitted(target, now)
			req := wire.NewRequest(iface.MAC, iface.IP, target)
			tr.Frames = append(tr.Frames, wire.Encap(req.Serialize(), iface.MAC, arpv4.Broadcast, arpv4.EtherTypeARP, iface.VLAN))
		}

		timing := acdTiming{probeNum: s.cfg.ProbeNum, announceNum: s.cfg.AnnounceNum, defendIntervalMs: s.cfg.DefendIntervalMs}
		// One Tick may emit several ACD frames if the caller ticks slower
		// than the probe schedule; drain until the machine goes quiet.
		for {
			pkt, becameBound := iface.ACD.Advance(iface.MAC, now, timing)
			if becameBound {
				iface.IP = iface.ACD.Candidate
				tr.Bound = append(tr.Bound, AddrEvent{IfaceID: id, IP: iface.ACD.Candidate})
			}
			if pkt == nil {
				break
			}
			tr.Frames = append(tr.Frames, wire.Encap(pkt.Serialize(), iface.MAC, arpv4.Broadcast, arpv4.EtherTypeARP, iface.VLAN))
		}
	}
	return tr
}

// StartDAD begins RFC 5227 duplicate address detection for candidate on
// the interface. The seed fixes the probe-spacing jitter so the whole
// lifecycle is replayable.
func (s *State) StartDAD(ifaceID string, candidate arpv4.IPv4, now int64, seed uint64) error {
	iface, ok := s.ifaces[ifaceID]
	if !ok {
		return fmt.Errorf("unknown interface %q", ifaceID)
	}
	iface.ACD.Start(candidate, now, seed)
	return nil
}

// AddStatic pins a static entry at runtime (administrative channel).
func (s *State) AddStatic(ifaceID string, ip arpv4.IPv4, mac arpv4.MAC) error {
	iface, ok := s.ifaces[ifaceID]
	if !ok {
		return fmt.Errorf("unknown interface %q", ifaceID)
	}
	if !iface.Cache.PutStatic(ip, mac) {
		return fmt.Errorf("interface %s: cache full of static entries", ifaceID)
	}
	return nil
}

// RemoveStatic deletes a static entry.
func (s *State) RemoveStatic(ifaceID string, ip arpv4.IPv4) error {
	iface, ok := s.ifaces[ifaceID]
	if !ok {
		return fmt.Errorf("unknown interface %q", ifaceID)
	}
	if !iface.Cache.RemoveStatic(ip) {
		return fmt.Errorf("interface %s: no static entry for %s", ifaceID, ip)
	}
	return nil
}

// SetReverse installs or replaces a RARP reverse mapping.
func (s *State) SetReverse(mac arpv4.MAC, ip arpv4.IPv4) {
	s.reverse[mac] = ip
}

// Neighbors returns a sorted snapshot of an interface's cache.
func (s *State) Neighbors(ifaceID string) []Entry {
	iface, ok := s.ifaces[ifaceID]
	if !ok {
		return nil
	}
	entries := iface.Cache.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].IP.Less(entries[j].IP) })
	return entries
}

// Announce builds an administrative gratuitous announcement for the
// interface's current address. It does not touch the conflict machine.
func (s *State) Announce(ifaceID string) ([]byte, error) {
	iface, ok := s.ifaces[ifaceID]
	if !ok {
		return nil, fmt.Errorf("unknown interface %q", ifaceID)
	}
	if iface.IP.IsZero() {
		return nil, fmt.Errorf("interface %s has no address to announce", ifaceID)
	}
	g := wire.NewGratuitous(iface.MAC, iface.IP)
	return wire.Encap(g.Serialize(), iface.MAC, arpv4.Broadcast, arpv4.EtherTypeARP, iface.VLAN), nil
}
