package engine

import (
	"github.com/athena-arpd/athena-arpd/internal/wire"
	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

// validate applies the pre-merge checks on a structurally valid payload
// received on iface. It returns DropNone when the packet may touch state,
// and selfConflict=true when the packet claims the interface's own address
// with a foreign MAC (a signal for the ACD machine, never a merge).
func validate(iface *Interface, pkt wire.Packet) (drop DropReason, selfConflict bool) {
	// Source-MAC sanity: broadcast senders enable amplification, multicast
	// and zero senders are spoof artifacts. Broadcast is checked first so
	// it is not misreported as mere multicast.
	switch {
	case pkt.SenderMAC.IsBroadcast():
		return DropBroadcastSource, false
	case pkt.SenderMAC.IsMulticast():
		return DropMulticastSource, false
	case pkt.SenderMAC.IsZero():
		return DropZeroSource, false
	}

	// Subnet containment. ACD probes carry a zero sender IP and are
	// exempt; RARP requests likewise identify the sender by MAC only.
	if iface.Subnet != nil && !pkt.SenderIP.IsZero() && !iface.Subnet.Contains(pkt.SenderIP) {
		return DropCrossSubnet, false
	}

	if pkt.Op == arpv4.OpRARPRequest || pkt.Op == arpv4.OpRARPReply {
		if !iface.RARPEnabled {
			return DropRARPDisabled, false
		}
		return DropNone, false
	}

	// Self-check: someone else claiming our address is a conflict signal,
	// not a cache update.
	if !iface.IP.IsZero() && pkt.SenderIP == iface.IP && pkt.SenderMAC != iface.MAC {
		return DropNone, true
	}

	return DropNone, false
}
