// Package daemon owns the running engine: it feeds captured frames and
// tick timestamps into the single-writer engine state, fans results out to
// metrics and events, and gives the admin API a serialized view.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/athena-arpd/athena-arpd/internal/capture"
	"github.com/athena-arpd/athena-arpd/internal/engine"
	"github.com/athena-arpd/athena-arpd/internal/events"
	"github.com/athena-arpd/athena-arpd/internal/metrics"
	"github.com/athena-arpd/athena-arpd/internal/names"
	"github.com/athena-arpd/athena-arpd/internal/store"
	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

// Clock supplies monotonic milliseconds to the engine. Tests inject a
// fake; production uses the wall-clock-independent monotonic reading.
type Clock func() int64

// Daemon drives one engine across its interfaces.
type Daemon struct {
	mu       sync.Mutex
	state    *engine.State
	sources  map[string]capture.Source
	bus      *events.Bus
	logger   *slog.Logger
	st       *store.Store
	resolver *names.Resolver
	clock    Clock
	tick     time.Duration
}

// Options carries the optional collaborators.
type Options struct {
	Store    *store.Store
	Resolver *names.Resolver
	Clock    Clock
	Tick     time.Duration
}

// New creates a daemon around an engine state.
func New(state *engine.State, bus *events.Bus, logger *slog.Logger, opts Options) *Daemon {
	clock := opts.Clock
	if clock == nil {
		start := time.Now()
		clock = func() int64 { return time.Since(start).Milliseconds() }
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	return &Daemon{
		state:    state,
		sources:  make(map[string]capture.Source),
		bus:      bus,
		logger:   logger,
		st:       opts.Store,
		resolver: opts.Resolver,
		clock:    clock,
		tick:     tick,
	}
}

// AttachSource binds a frame source to an interface id.
func (d *Daemon) AttachSource(ifaceID string, src capture.Source) {
	d.sources[ifaceID] = src
}

// Run starts the capture readers and the tick loop and blocks until the
// context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for id, src := range d.sources {
		wg.Add(1)
		go func(id string, src capture.Source) {
			defer wg.Done()
			err := src.Run(ctx, func(frame []byte) { d.HandleFrame(id, frame) })
			if err != nil && ctx.Err() == nil {
				d.logger.Error("capture loop failed", "interface", id, "error", err)
			}
		}(id, src)
	}

	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			d.RunTick()
		}
	}
}

// HandleFrame runs one frame through the engine and transmits any output.
func (d *Daemon) HandleFrame(ifaceID string, frame []byte) {
	now := d.clock()
	start := time.Now()

	d.mu.Lock()
	res := d.state.Step(ifaceID, frame, now)
	d.mu.Unlock()

	metrics.StepDuration.Observe(time.Since(start).Seconds())
	metrics.FramesReceived.WithLabelValues(ifaceID).Inc()
	d.publishResult(ifaceID, res)

	if res.Out != nil {
		d.transmit(ifaceID, res.Out, outKind(res))
	}
	d.updateGauges()
}

func outKind(res engine.Result) string {
	switch {
	case res.Defended:
		return "defense"
	case res.RARPServed:
		return "rarp"
	default:
		return "reply"
	}
}

func (d *Daemon) transmit(ifaceID string, frame []byte, kind string) {
	src, ok := d.sources[ifaceID]
	if !ok {
		return
	}
	if err := src.Inject(frame); err != nil {
		d.logger.Warn("frame injection failed", "interface", ifaceID, "kind", kind, "error", err)
		return
	}
	metrics.FramesSent.WithLabelValues(ifaceID, kind).Inc()
}

func (d *Daemon) publishResult(ifaceID string, res engine.Result) {
	if res.Drop != engine.DropNone {
		metrics.FramesDropped.WithLabelValues(ifaceID, res.Drop.String()).Inc()
		return
	}
	ipStr := res.SenderIP.String()
	macStr := res.SenderMAC.String()

	if res.Learned {
		metrics.NeighborsLearned.WithLabelValues(ifaceID).Inc()
		evt := events.Event{
			Type: events.EventNeighborLearned, Timestamp: time.Now(),
			Interface: ifaceID, IP: ipStr, MAC: macStr,
		}
		if d.resolver != nil {
			evt.Hostname = d.resolver.Lookup(ipStr)
		}
		d.bus.Publish(evt)
	}
	if res.StaticViolation {
		metrics.PoisonBlocked.WithLabelValues(ifaceID).Inc()
		d.logger.Warn("cache poisoning attempt blocked by static entry",
			"interface", ifaceID, "claimed_ip", ipStr, "attacker_mac", macStr)
		d.bus.Publish(events.Event{
			Type: events.EventPoisonBlocked, Timestamp: time.Now(),
			Interface: ifaceID, IP: ipStr, MAC: macStr,
		})
	}
	if res.SelfConflict || res.ACDConflict {
		metrics.Conflicts.WithLabelValues(ifaceID).Inc()
		d.logger.Warn("address conflict observed",
			"interface", ifaceID, "ip", ipStr, "rival_mac", macStr, "acd", res.ACDConflict)
		evtType := events.EventConflict
		phase := "bound"
		if res.ACDConflict {
			evtType = events.EventACDConflict
			phase = d.acdPhase(ifaceID)
			metrics.ACDTransitions.WithLabelValues(ifaceID, "conflict").Inc()
		}
		d.bus.Publish(events.Event{
			Type: evtType, Timestamp: time.Now(),
			Interface: ifaceID, IP: ipStr, MAC: macStr,
		})
		if d.st != nil {
			if err := d.st.AppendConflict(store.ConflictRecord{
				Interface: ifaceID, IP: ipStr, RivalMAC: macStr,
				Phase: phase, DetectedAt: time.Now(),
			}); err != nil {
				d.logger.Warn("failed to persist conflict record", "error", err)
			}
		}
	}
	if res.RARPServed {
		metrics.RARPServed.WithLabelValues(ifaceID).Inc()
		d.bus.Publish(events.Event{
			Type: events.EventRARPServed, Timestamp: time.Now(),
			Interface: ifaceID, MAC: macStr,
		})
	}
}

func (d *Daemon) acdPhase(ifaceID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if iface := d.state.Interface(ifaceID); iface != nil {
		return iface.ACD.Phase.String()
	}
	return ""
}

// RunTick advances timers once and transmits whatever the engine emits.
func (d *Daemon) RunTick() {
	now := d.clock()

	d.mu.Lock()
	tr := d.state.Tick(now)
	d.mu.Unlock()

	for _, ev := range tr.Expired {
		metrics.NeighborsExpired.WithLabelValues(ev.IfaceID).Inc()
		d.bus.Publish(events.Event{
			Type: events.EventNeighborExpired, Timestamp: time.Now(),
			Interface: ev.IfaceID, IP: ev.Entry.IP.String(), MAC: ev.Entry.MAC.String(),
		})
	}
	for _, ev := range tr.Abandoned {
		d.bus.Publish(events.Event{
			Type: events.EventNeighborFailed, Timestamp: time.Now(),
			Interface: ev.IfaceID, IP: ev.IP.String(), Reason: "retries exhausted",
		})
	}
	for _, ev := range tr.Bound {
		metrics.ACDTransitions.WithLabelValues(ev.IfaceID, "bound").Inc()
		d.logger.Info("address bound after conflict detection",
			"interface", ev.IfaceID, "ip", ev.IP.String())
		d.bus.Publish(events.Event{
			Type: events.EventACDBound, Timestamp: time.Now(),
			Interface: ev.IfaceID, IP: ev.IP.String(),
		})
	}
	// Tick frames are requests, probes, and announcements; the engine does
	// not distinguish them here and the wire kind is not worth re-parsing.
	for _, frame := range tr.Frames {
		d.transmitTick(frame)
	}
	d.updateGauges()
}

// transmitTick routes a tick-originated frame to its interface. Tick
// frames carry the interface's own source MAC, which is unique per
// interface, so the source MAC identifies the owner.
func (d *Daemon) transmitTick(frame []byte) {
	if len(frame) < 12 {
		return
	}
	src, _ := arpv4.MACFromBytes(frame[6:12])
	for _, id := range d.state.Interfaces() {
		iface := d.state.Interface(id)
		if iface != nil && iface.MAC == src {
			d.transmit(id, frame, "request")
			return
		}
	}
}

func (d *Daemon) updateGauges() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range d.state.Interfaces() {
		iface := d.state.Interface(id)
		metrics.CacheEntries.WithLabelValues(id).Set(float64(iface.Cache.Len()))
		metrics.NegativeEntries.WithLabelValues(id).Set(float64(iface.Negative.Len()))
		metrics.PendingRequests.WithLabelValues(id).Set(float64(iface.Pending.Len()))
	}
	metrics.FloodTargets.Set(float64(d.state.FloodLen()))
}

// Resolve issues an administrative resolution request.
func (d *Daemon) Resolve(ifaceID string, target arpv4.IPv4) engine.RequestStatus {
	now := d.clock()
	d.mu.Lock()
	frame, st := d.state.Request(ifaceID, target, now)
	d.mu.Unlock()

	if st == engine.RequestFlooded {
		metrics.FloodSuppressed.Inc()
		d.bus.Publish(events.Event{
			Type: events.EventFloodLimited, Timestamp: time.Now(),
			Interface: ifaceID, IP: target.String(),
		})
	}
	if frame != nil {
		d.transmit(ifaceID, frame, "request")
	}
	return st
}

// Lookup reads the caches.
func (d *Daemon) Lookup(ifaceID string, ip arpv4.IPv4) (arpv4.MAC, engine.LookupStatus) {
	now := d.clock()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Lookup(ifaceID, ip, now)
}

// Neighbors snapshots an interface's cache.
func (d *Daemon) Neighbors(ifaceID string) []engine.Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Neighbors(ifaceID)
}

// Interfaces lists interface ids.
func (d *Daemon) Interfaces() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Interfaces()
}

// InterfaceStatus is the admin view of one interface.
type InterfaceStatus struct {
	ID          string `json:"id"`
	MAC         string `json:"mac"`
	IP          string `json:"ip"`
	Subnet      string `json:"subnet,omitempty"`
	RARPEnabled bool   `json:"rarp_enabled"`
	ACDPhase    string `json:"acd_phase"`
	CacheLen    int    `json:"cache_entries"`
	NegativeLen int    `json:"negative_entries"`
	PendingLen  int    `json:"pending_requests"`
}

// Status snapshots every interface.
func (d *Daemon) Status() []InterfaceStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []InterfaceStatus
	for _, id := range d.state.Interfaces() {
		iface := d.state.Interface(id)
		st := InterfaceStatus{
			ID:          id,
			MAC:         iface.MAC.String(),
			IP:          iface.IP.String(),
			RARPEnabled: iface.RARPEnabled,
			ACDPhase:    iface.ACD.Phase.String(),
			CacheLen:    iface.Cache.Len(),
			NegativeLen: iface.Negative.Len(),
			PendingLen:  iface.Pending.Len(),
		}
		if iface.Subnet != nil {
			st.Subnet = iface.Subnet.String()
		}
		out = append(out, st)
	}
	return out
}

// AddStatic pins a static entry and persists it.
func (d *Daemon) AddStatic(ifaceID string, ip arpv4.IPv4, mac arpv4.MAC) error {
	d.mu.Lock()
	err := d.state.AddStatic(ifaceID, ip, mac)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if d.st != nil {
		return d.st.PutStatic(store.StaticRecord{Interface: ifaceID, IP: ip.String(), MAC: mac.String()})
	}
	return nil
}

// RemoveStatic deletes a static entry and its persisted copy.
func (d *Daemon) RemoveStatic(ifaceID string, ip arpv4.IPv4) error {
	d.mu.Lock()
	err := d.state.RemoveStatic(ifaceID, ip)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if d.st != nil {
		return d.st.DeleteStatic(ifaceID, ip.String())
	}
	return nil
}

// Announce transmits an administrative gratuitous announcement.
func (d *Daemon) Announce(ifaceID string) error {
	d.mu.Lock()
	frame, err := d.state.Announce(ifaceID)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	d.transmit(ifaceID, frame, "announce")
	return nil
}

// StartDAD begins duplicate address detection on an interface.
func (d *Daemon) StartDAD(ifaceID string, candidate arpv4.IPv4, seed uint64) error {
	now := d.clock()
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.state.StartDAD(ifaceID, candidate, now, seed); err != nil {
		return err
	}
	metrics.ACDTransitions.WithLabelValues(ifaceID, "probing").Inc()
	return nil
}

// Conflicts reads the persisted conflict log.
func (d *Daemon) Conflicts(limit int) ([]store.ConflictRecord, error) {
	if d.st == nil {
		return nil, nil
	}
	return d.st.Conflicts(limit)
}
