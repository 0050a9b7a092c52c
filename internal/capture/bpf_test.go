package capture

import (
	"testing"

	"golang.org/x/net/bpf"

	"github.com/athena-arpd/athena-arpd/internal/wire"
	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

func runFilter(t *testing.T, frame []byte) bool {
	t.Helper()
	raw, err := filterProgram()
	if err != nil {
		t.Fatalf("filterProgram: %v", err)
	}
	vm, err := bpf.NewVM(mustDisassemble(t, raw))
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}
	n, err := vm.Run(frame)
	if err != nil {
		t.Fatalf("vm.Run: %v", err)
	}
	return n > 0
}

func mustDisassemble(t *testing.T, raw []bpf.RawInstruction) []bpf.Instruction {
	t.Helper()
	out := make([]bpf.Instruction, len(raw))
	for i, r := range raw {
		out[i] = r.Disassemble()
	}
	return out
}

func testFrame(t *testing.T, etherType uint16, vlan *wire.VLANTag) []byte {
	t.Helper()
	src, err := arpv4.ParseMAC("02:00:00:00:00:01")
	if err != nil {
		t.Fatal(err)
	}
	payload := make([]byte, arpv4.PayloadSize)
	full := wire.Encap(payload, src, arpv4.Broadcast, etherType, vlan)
	// The kernel filter sees frames without the FCS.
	return wire.StripFCS(full)
}

func TestFilterAcceptsARPAndRARP(t *testing.T) {
	if !runFilter(t, testFrame(t, arpv4.EtherTypeARP, nil)) {
		t.Error("untagged ARP rejected")
	}
	if !runFilter(t, testFrame(t, arpv4.EtherTypeRARP, nil)) {
		t.Error("untagged RARP rejected")
	}
	tag := &wire.VLANTag{VID: 42}
	if !runFilter(t, testFrame(t, arpv4.EtherTypeARP, tag)) {
		t.Error("tagged ARP rejected")
	}
	if !runFilter(t, testFrame(t, arpv4.EtherTypeRARP, tag)) {
		t.Error("tagged RARP rejected")
	}
}

func TestFilterRejectsOtherTraffic(t *testing.T) {
	if runFilter(t, testFrame(t, 0x0800, nil)) {
		t.Error("IPv4 accepted")
	}
	if runFilter(t, testFrame(t, 0x86DD, nil)) {
		t.Error("IPv6 accepted")
	}
	if runFilter(t, testFrame(t, 0x0800, &wire.VLANTag{VID: 42})) {
		t.Error("tagged IPv4 accepted")
	}
}
