package capture

import (
	"fmt"

	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

// snapLen covers the largest frame the engine cares about: tagged ARP plus
// padding and FCS.
const snapLen = 128

// filterProgram assembles the classic BPF program that accepts ARP and
// RARP frames, tagged or untagged, and rejects everything else in the
// kernel before it costs a wakeup.
func filterProgram() ([]bpf.RawInstruction, error) {
	return bpf.Assemble([]bpf.Instruction{
		// Load the ethertype.
		bpf.LoadAbsolute{Off: 12, Size: 2},
		// Untagged ARP/RARP: accept.
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(arpv4.EtherTypeARP), SkipTrue: 5},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(arpv4.EtherTypeRARP), SkipTrue: 4},
		// 802.1Q: re-check the inner ethertype.
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(arpv4.EtherTypeVLAN), SkipFalse: 4},
		bpf.LoadAbsolute{Off: 16, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(arpv4.EtherTypeARP), SkipTrue: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(arpv4.EtherTypeRARP), SkipFalse: 1},
		bpf.RetConstant{Val: snapLen},
		bpf.RetConstant{Val: 0},
	})
}

// pcapFilter converts the assembled program into pcap's instruction form.
func pcapFilter() ([]pcap.BPFInstruction, error) {
	raw, err := filterProgram()
	if err != nil {
		return nil, fmt.Errorf("assembling BPF filter: %w", err)
	}
	out := make([]pcap.BPFInstruction, len(raw))
	for i, ins := range raw {
		out[i] = pcap.BPFInstruction{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return out, nil
}
