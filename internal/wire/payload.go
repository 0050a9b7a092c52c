// Package wire implements the byte-exact ARP payload codec and its
// Ethernet/802.1Q framing. Parse and serialize are exact inverses for
// well-formed packets.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

// Packet is a decoded 28-byte Ethernet/IPv4 ARP payload (RFC 826 / RFC 903).
type Packet struct {
	HardwareType uint16
	ProtocolType uint16
	HardwareLen  uint8
	ProtocolLen  uint8
	Op           uint16
	SenderMAC    arpv4.MAC
	SenderIP     arpv4.IPv4
	TargetMAC    arpv4.MAC
	TargetIP     arpv4.IPv4
}

// NewRequest builds an ARP Request asking who owns targetIP.
func NewRequest(senderMAC arpv4.MAC, senderIP, targetIP arpv4.IPv4) Packet {
	return Packet{
		HardwareType: arpv4.HardwareTypeEthernet,
		ProtocolType: arpv4.ProtocolTypeIPv4,
		HardwareLen:  arpv4.HardwareAddrLen,
		ProtocolLen:  arpv4.ProtocolAddrLen,
		Op:           arpv4.OpRequest,
		SenderMAC:    senderMAC,
		SenderIP:     senderIP,
		TargetIP:     targetIP,
	}
}

// NewReply builds an ARP Reply answering a Request.
func NewReply(senderMAC arpv4.MAC, senderIP arpv4.IPv4, targetMAC arpv4.MAC, targetIP arpv4.IPv4) Packet {
	return Packet{
		HardwareType: arpv4.HardwareTypeEthernet,
		ProtocolType: arpv4.ProtocolTypeIPv4,
		HardwareLen:  arpv4.HardwareAddrLen,
		ProtocolLen:  arpv4.ProtocolAddrLen,
		Op:           arpv4.OpReply,
		SenderMAC:    senderMAC,
		SenderIP:     senderIP,
		TargetMAC:    targetMAC,
		TargetIP:     targetIP,
	}
}

// NewGratuitous builds the announcement used in the Announce and Defend
// phases: a Request with sender IP = target IP.
func NewGratuitous(senderMAC arpv4.MAC, ip arpv4.IPv4) Packet {
	p := NewRequest(senderMAC, ip, ip)
	return p
}

// NewProbe builds an RFC 5227 probe: a Request with a zero sender IP so
// the candidate address is never polluted into peer caches.
func NewProbe(senderMAC arpv4.MAC, candidate arpv4.IPv4) Packet {
	return NewRequest(senderMAC, arpv4.IPv4{}, candidate)
}

// IsGratuitous reports whether the packet announces its own binding.
func (p Packet) IsGratuitous() bool {
	return p.SenderIP == p.TargetIP && !p.SenderIP.IsZero()
}

// Serialize encodes the payload into its 28-byte wire form. All multi-byte
// fields are big-endian.
func (p Packet) Serialize() []byte {
	buf := make([]byte, arpv4.PayloadSize)
	binary.BigEndian.PutUint16(buf[0:2], p.HardwareType)
	binary.BigEndian.PutUint16(buf[2:4], p.ProtocolType)
	buf[4] = p.HardwareLen
	buf[5] = p.ProtocolLen
	binary.BigEndian.PutUint16(buf[6:8], p.Op)
	copy(buf[8:14], p.SenderMAC[:])
	copy(buf[14:18], p.SenderIP[:])
	copy(buf[18:24], p.TargetMAC[:])
	copy(buf[24:28], p.TargetIP[:])
	return buf
}

// Parse decodes and validates a payload. Trailing bytes beyond the 28-byte
// payload (frame padding) are ignored.
func Parse(data []byte) (Packet, error) {
	if len(data) < arpv4.PayloadSize {
		return Packet{}, fmt.Errorf("%w: %d bytes, need %d", ErrTooShort, len(data), arpv4.PayloadSize)
	}

	var p Packet
	p.HardwareType = binary.BigEndian.Uint16(data[0:2])
	p.ProtocolType = binary.BigEndian.Uint16(data[2:4])
	p.HardwareLen = data[4]
	p.ProtocolLen = data[5]
	p.Op = binary.BigEndian.Uint16(data[6:8])
	copy(p.SenderMAC[:], data[8:14])
	copy(p.SenderIP[:], data[14:18])
	copy(p.TargetMAC[:], data[18:24])
	copy(p.TargetIP[:], data[24:28])

	if p.HardwareType != arpv4.HardwareTypeEthernet {
		return Packet{}, fmt.Errorf("%w: %d", ErrBadHardwareType, p.HardwareType)
	}
	if p.ProtocolType != arpv4.ProtocolTypeIPv4 {
		return Packet{}, fmt.Errorf("%w: 0x%04X", ErrBadProtocolType, p.ProtocolType)
	}
	if p.HardwareLen != arpv4.HardwareAddrLen || p.ProtocolLen != arpv4.ProtocolAddrLen {
		return Packet{}, fmt.Errorf("%w: (%d,%d)", ErrBadLens, p.HardwareLen, p.ProtocolLen)
	}
	switch p.Op {
	case arpv4.OpRequest, arpv4.OpReply, arpv4.OpRARPRequest, arpv4.OpRARPReply:
	default:
		return Packet{}, fmt.Errorf("%w: %d", ErrBadOp, p.Op)
	}

	return p, nil
}
