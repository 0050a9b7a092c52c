package wire

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

// VLANTag is an 802.1Q tag. PCP is 3 bits, DEI 1 bit, VID 12 bits.
type VLANTag struct {
	PCP uint8
	DEI bool
	VID uint16
}

// tci packs the tag control information field.
func (t VLANTag) tci() uint16 {
	tci := uint16(t.PCP&0x07) << 13
	if t.DEI {
		tci |= 1 << 12
	}
	tci |= t.VID & 0x0FFF
	return tci
}

func vlanFromTCI(tci uint16) VLANTag {
	return VLANTag{
		PCP: uint8(tci >> 13),
		DEI: tci&(1<<12) != 0,
		VID: tci & 0x0FFF,
	}
}

// Frame is a decapsulated Ethernet frame carrying an ARP or RARP payload.
type Frame struct {
	Dst       arpv4.MAC
	Src       arpv4.MAC
	VLAN      *VLANTag
	EtherType uint16
	Payload   []byte
}

// fcs computes the IEEE 802.3 frame check sequence: CRC-32 with the
// reflected polynomial 0xEDB88320, init and final XOR 0xFFFFFFFF.
// hash/crc32's IEEE table implements exactly these parameters.
func fcs(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Encap wraps an ARP/RARP payload in an Ethernet frame: dst, src, optional
// 802.1Q tag, ethertype, payload, zero padding to 60 bytes, then the FCS
// emitted least-significant byte first as transmitted on the medium.
func Encap(payload []byte, src, dst arpv4.MAC, etherType uint16, vlan *VLANTag) []byte {
	headerLen := 14
	if vlan != nil {
		headerLen += 4
	}
	bodyLen := headerLen + len(payload)
	if bodyLen < arpv4.MinFrameSize {
		bodyLen = arpv4.MinFrameSize
	}

	buf := make([]byte, bodyLen+4)
	copy(buf[0:6], dst[:])
	copy(buf[6:12], src[:])
	off := 12
	if vlan != nil {
		binary.BigEndian.PutUint16(buf[off:off+2], arpv4.EtherTypeVLAN)
		binary.BigEndian.PutUint16(buf[off+2:off+4], vlan.tci())
		off += 4
	}
	binary.BigEndian.PutUint16(buf[off:off+2], etherType)
	copy(buf[off+2:], payload)

	binary.LittleEndian.PutUint32(buf[bodyLen:], fcs(buf[:bodyLen]))
	return buf
}

// AppendFCS appends the frame check sequence to a frame body. Capture
// paths use it to rebuild the FCS that NIC hardware strips on receive.
func AppendFCS(body []byte) []byte {
	out := make([]byte, len(body)+4)
	copy(out, body)
	binary.LittleEndian.PutUint32(out[len(body):], fcs(body))
	return out
}

// StripFCS drops the trailing FCS from a full frame; injection paths use
// it because NIC hardware appends its own on transmit.
func StripFCS(frame []byte) []byte {
	if len(frame) < 4 {
		return frame
	}
	return frame[:len(frame)-4]
}

// Decap parses an Ethernet frame and validates its FCS. Non-zero padding is
// tolerated; the payload returned includes any pad bytes after the ARP
// payload (Parse ignores them).
func Decap(frame []byte) (Frame, error) {
	// 14-byte header + 4-byte FCS at minimum.
	if len(frame) < 18 {
		return Frame{}, fmt.Errorf("%w: %d-byte frame", ErrTooShort, len(frame))
	}

	bodyLen := len(frame) - 4
	want := binary.LittleEndian.Uint32(frame[bodyLen:])
	if got := fcs(frame[:bodyLen]); got != want {
		return Frame{}, fmt.Errorf("%w: computed %08X, frame carries %08X", ErrBadCRC, got, want)
	}

	var f Frame
	copy(f.Dst[:], frame[0:6])
	copy(f.Src[:], frame[6:12])
	off := 12

	etherType := binary.BigEndian.Uint16(frame[off : off+2])
	if etherType == arpv4.EtherTypeVLAN {
		if bodyLen < off+6 {
			return Frame{}, fmt.Errorf("%w: truncated 802.1Q tag", ErrTooShort)
		}
		tag := vlanFromTCI(binary.BigEndian.Uint16(frame[off+2 : off+4]))
		f.VLAN = &tag
		off += 4
		etherType = binary.BigEndian.Uint16(frame[off : off+2])
	}
	f.EtherType = etherType
	off += 2

	f.Payload = frame[off:bodyLen]
	return f, nil
}
