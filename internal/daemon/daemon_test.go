package daemon

import (
	"io"
	"log/slog"
	"testing"

	"github.com/athena-arpd/athena-arpd/internal/capture"
	"github.com/athena-arpd/athena-arpd/internal/engine"
	"github.com/athena-arpd/athena-arpd/internal/events"
	"github.com/athena-arpd/athena-arpd/internal/wire"
	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

type fixture struct {
	d     *Daemon
	src   *capture.MockSource
	now   int64
	state *engine.State
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	subnet, _ := arpv4.ParseSubnet("10.0.0.0/24")
	mac, _ := arpv4.ParseMAC("02:00:00:00:00:01")
	ip, _ := arpv4.ParseIPv4("10.0.0.1")
	state, err := engine.New(engine.Config{
		Interfaces: []engine.InterfaceConfig{{ID: "eth0", MAC: mac, IP: ip, Subnet: &subnet}},
	})
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.NewBus(64, logger)
	f := &fixture{state: state, src: capture.NewMockSource()}
	f.d = New(state, bus, logger, Options{Clock: func() int64 { return f.now }})
	f.d.AttachSource("eth0", f.src)
	return f
}

func TestHandleFrameInjectsReply(t *testing.T) {
	f := newFixture(t)
	alice, _ := arpv4.ParseMAC("02:00:00:00:00:02")
	aliceIP, _ := arpv4.ParseIPv4("10.0.0.2")
	ourIP, _ := arpv4.ParseIPv4("10.0.0.1")

	f.now = 1000
	req := wire.NewRequest(alice, aliceIP, ourIP)
	f.d.HandleFrame("eth0", wire.Encap(req.Serialize(), alice, arpv4.Broadcast, arpv4.EtherTypeARP, nil))

	injected := f.src.Injected()
	if len(injected) != 1 {
		t.Fatalf("injected frames = %d, want 1", len(injected))
	}
	fr, err := wire.Decap(injected[0])
	if err != nil {
		t.Fatalf("Decap(injected): %v", err)
	}
	p, err := wire.Parse(fr.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if p.Op != arpv4.OpReply || p.TargetIP != aliceIP {
		t.Errorf("injected payload = %+v", p)
	}

	if mac, st := f.d.Lookup("eth0", aliceIP); st != engine.LookupResolved || mac != alice {
		t.Errorf("lookup after learn = %s/%v", mac, st)
	}
}

func TestResolveEmitsRequestAndFloodLimits(t *testing.T) {
	f := newFixture(t)
	target, _ := arpv4.ParseIPv4("10.0.0.9")

	for i := 0; i < 5; i++ {
		f.now = int64(i * 100)
		if st := f.d.Resolve("eth0", target); st != engine.RequestSent {
			t.Fatalf("resolve %d: status %v, want sent", i+1, st)
		}
	}
	f.now = 500
	if st := f.d.Resolve("eth0", target); st != engine.RequestFlooded {
		t.Errorf("6th resolve: status %v, want flooded", st)
	}
	if got := len(f.src.Injected()); got != 5 {
		t.Errorf("injected requests = %d, want 5", got)
	}
}

func TestRunTickRetransmits(t *testing.T) {
	f := newFixture(t)
	target, _ := arpv4.ParseIPv4("10.0.0.9")

	f.now = 0
	f.d.Resolve("eth0", target)

	f.now = 1500
	f.d.RunTick()

	if got := len(f.src.Injected()); got != 2 {
		t.Errorf("frames after tick = %d, want 2 (initial + retransmit)", got)
	}
}

func TestAddStaticBlocksPoisoning(t *testing.T) {
	f := newFixture(t)
	gw, _ := arpv4.ParseIPv4("10.0.0.254")
	pinned, _ := arpv4.ParseMAC("02:00:00:00:00:fe")
	attacker, _ := arpv4.ParseMAC("02:00:00:00:00:aa")
	ourMAC, _ := arpv4.ParseMAC("02:00:00:00:00:01")
	ourIP, _ := arpv4.ParseIPv4("10.0.0.1")

	if err := f.d.AddStatic("eth0", gw, pinned); err != nil {
		t.Fatal(err)
	}

	f.now = 1000
	poison := wire.NewReply(attacker, gw, ourMAC, ourIP)
	f.d.HandleFrame("eth0", wire.Encap(poison.Serialize(), attacker, ourMAC, arpv4.EtherTypeARP, nil))

	if mac, st := f.d.Lookup("eth0", gw); st != engine.LookupResolved || mac != pinned {
		t.Errorf("gateway after poisoning = %s/%v, want pinned %s", mac, st, pinned)
	}
}

func TestStatusSnapshot(t *testing.T) {
	f := newFixture(t)
	sts := f.d.Status()
	if len(sts) != 1 {
		t.Fatalf("status entries = %d, want 1", len(sts))
	}
	st := sts[0]
	if st.ID != "eth0" || st.IP != "10.0.0.1" || st.ACDPhase != "idle" {
		t.Errorf("status = %+v", st)
	}
}
