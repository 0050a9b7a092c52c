package arpv4

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

// MAC is a 6-byte Ethernet hardware address. It is a value type so it can
// key maps and compare with ==.
type MAC [HardwareAddrLen]byte

// Broadcast is the all-ones Ethernet address.
var Broadcast = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// IsBroadcast reports whether the address is FF:FF:FF:FF:FF:FF.
func (m MAC) IsBroadcast() bool {
	return m == Broadcast
}

// IsMulticast reports whether the group bit (LSB of the first octet) is set.
// Broadcast is a multicast address by this definition.
func (m MAC) IsMulticast() bool {
	return m[0]&0x01 != 0
}

// IsZero reports whether the address is 00:00:00:00:00:00.
func (m MAC) IsZero() bool {
	return m == MAC{}
}

// String formats the address as lower-case colon-separated hex.
func (m MAC) String() string {
	return net.HardwareAddr(m[:]).String()
}

// HardwareAddr returns a copy of the address as a net.HardwareAddr.
func (m MAC) HardwareAddr() net.HardwareAddr {
	out := make(net.HardwareAddr, HardwareAddrLen)
	copy(out, m[:])
	return out
}

// ParseMAC parses a colon- or dash-separated MAC string.
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, fmt.Errorf("parsing MAC %q: %w", s, err)
	}
	if len(hw) != HardwareAddrLen {
		return MAC{}, fmt.Errorf("parsing MAC %q: not an EUI-48 address", s)
	}
	var m MAC
	copy(m[:], hw)
	return m, nil
}

// MACFromBytes copies a 6-byte slice into a MAC. Short or long slices
// return the zero MAC and false.
func MACFromBytes(b []byte) (MAC, bool) {
	if len(b) != HardwareAddrLen {
		return MAC{}, false
	}
	var m MAC
	copy(m[:], b)
	return m, true
}

// IPv4 is a 4-byte IPv4 address with dotted-decimal semantics.
type IPv4 [ProtocolAddrLen]byte

// IsZero reports whether the address is 0.0.0.0. ACD probes carry a zero
// sender address.
func (ip IPv4) IsZero() bool {
	return ip == IPv4{}
}

// String formats the address in dotted decimal.
func (ip IPv4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}

// Uint32 returns the address as a big-endian unsigned integer.
func (ip IPv4) Uint32() uint32 {
	return binary.BigEndian.Uint32(ip[:])
}

// Less orders addresses byte-wise, matching their numeric order.
func (ip IPv4) Less(other IPv4) bool {
	return ip.Uint32() < other.Uint32()
}

// IP returns a copy of the address as a net.IP.
func (ip IPv4) IP() net.IP {
	return net.IPv4(ip[0], ip[1], ip[2], ip[3])
}

// ParseIPv4 parses a dotted-decimal IPv4 string.
func ParseIPv4(s string) (IPv4, error) {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return IPv4{}, fmt.Errorf("parsing IPv4 %q: invalid address", s)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return IPv4{}, fmt.Errorf("parsing IPv4 %q: not an IPv4 address", s)
	}
	var out IPv4
	copy(out[:], ip4)
	return out, nil
}

// IPv4FromBytes copies a 4-byte slice into an IPv4. Other lengths return
// the zero address and false.
func IPv4FromBytes(b []byte) (IPv4, bool) {
	if len(b) != ProtocolAddrLen {
		return IPv4{}, false
	}
	var ip IPv4
	copy(ip[:], b)
	return ip, true
}

// IPv4FromUint32 builds an address from its big-endian integer form.
func IPv4FromUint32(n uint32) IPv4 {
	var ip IPv4
	binary.BigEndian.PutUint32(ip[:], n)
	return ip
}

// Subnet is an IPv4 network with a prefix length between 0 and 32.
type Subnet struct {
	Network   IPv4
	PrefixLen int
}

// ParseSubnet parses CIDR notation, e.g. "10.0.0.0/24". The network part
// is masked down to the prefix.
func ParseSubnet(s string) (Subnet, error) {
	_, ipnet, err := net.ParseCIDR(strings.TrimSpace(s))
	if err != nil {
		return Subnet{}, fmt.Errorf("parsing subnet %q: %w", s, err)
	}
	ip4 := ipnet.IP.To4()
	if ip4 == nil {
		return Subnet{}, fmt.Errorf("parsing subnet %q: not an IPv4 network", s)
	}
	ones, bits := ipnet.Mask.Size()
	if bits != 32 {
		return Subnet{}, fmt.Errorf("parsing subnet %q: not an IPv4 mask", s)
	}
	var network IPv4
	copy(network[:], ip4)
	return Subnet{Network: network, PrefixLen: ones}, nil
}

// Mask returns the big-endian netmask for the prefix length.
func (s Subnet) Mask() uint32 {
	if s.PrefixLen <= 0 {
		return 0
	}
	if s.PrefixLen >= 32 {
		return 0xFFFFFFFF
	}
	return ^uint32(0) << (32 - s.PrefixLen)
}

// Contains reports whether ip is inside the subnet.
func (s Subnet) Contains(ip IPv4) bool {
	mask := s.Mask()
	return ip.Uint32()&mask == s.Network.Uint32()&mask
}

// String formats the subnet in CIDR notation.
func (s Subnet) String() string {
	return fmt.Sprintf("%s/%d", s.Network, s.PrefixLen)
}
