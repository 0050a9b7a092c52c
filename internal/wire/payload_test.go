package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

func mac(t *testing.T, s string) arpv4.MAC {
	t.Helper()
	m, err := arpv4.ParseMAC(s)
	if err != nil {
		t.Fatalf("ParseMAC(%q): %v", s, err)
	}
	return m
}

func ip(t *testing.T, s string) arpv4.IPv4 {
	t.Helper()
	v, err := arpv4.ParseIPv4(s)
	if err != nil {
		t.Fatalf("ParseIPv4(%q): %v", s, err)
	}
	return v
}

func TestSerializeByteExact(t *testing.T) {
	p := NewRequest(mac(t, "02:00:00:00:00:02"), ip(t, "10.0.0.2"), ip(t, "10.0.0.1"))
	got := p.Serialize()
	want := []byte{
		0x00, 0x01, // hardware type: Ethernet
		0x08, 0x00, // protocol type: IPv4
		0x06, 0x04, // address lengths
		0x00, 0x01, // op: Request
		0x02, 0x00, 0x00, 0x00, 0x00, 0x02, // sender MAC
		0x0a, 0x00, 0x00, 0x02, // sender IP
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // target MAC
		0x0a, 0x00, 0x00, 0x01, // target IP
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Serialize = % x, want % x", got, want)
	}
}

func TestParseSerializeRoundTrip(t *testing.T) {
	packets := []Packet{
		NewRequest(mac(t, "02:00:00:00:00:02"), ip(t, "10.0.0.2"), ip(t, "10.0.0.1")),
		NewReply(mac(t, "02:00:00:00:00:01"), ip(t, "10.0.0.1"), mac(t, "02:00:00:00:00:02"), ip(t, "10.0.0.2")),
		NewGratuitous(mac(t, "aa:bb:cc:dd:ee:ff"), ip(t, "192.168.1.7")),
		NewProbe(mac(t, "02:00:00:00:00:05"), ip(t, "10.0.0.5")),
		{
			HardwareType: arpv4.HardwareTypeEthernet,
			ProtocolType: arpv4.ProtocolTypeIPv4,
			HardwareLen:  arpv4.HardwareAddrLen,
			ProtocolLen:  arpv4.ProtocolAddrLen,
			Op:           arpv4.OpRARPRequest,
			SenderMAC:    mac(t, "02:00:00:00:00:09"),
			TargetMAC:    mac(t, "02:00:00:00:00:0a"),
		},
	}
	for i, p := range packets {
		got, err := Parse(p.Serialize())
		if err != nil {
			t.Fatalf("packet %d: Parse error: %v", i, err)
		}
		if got != p {
			t.Errorf("packet %d: round trip mismatch\n got %+v\nwant %+v", i, got, p)
		}
	}
}

func TestParseRejects(t *testing.T) {
	valid := NewRequest(mac(t, "02:00:00:00:00:02"), ip(t, "10.0.0.2"), ip(t, "10.0.0.1")).Serialize()

	corrupt := func(mutate func(b []byte)) []byte {
		b := make([]byte, len(valid))
		copy(b, valid)
		mutate(b)
		return b
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short", valid[:27], ErrTooShort},
		{"empty", nil, ErrTooShort},
		{"hw type", corrupt(func(b []byte) { b[1] = 3 }), ErrBadHardwareType},
		{"proto type", corrupt(func(b []byte) { b[2], b[3] = 0x86, 0xdd }), ErrBadProtocolType},
		{"hw len", corrupt(func(b []byte) { b[4] = 8 }), ErrBadLens},
		{"proto len", corrupt(func(b []byte) { b[5] = 16 }), ErrBadLens},
		{"op zero", corrupt(func(b []byte) { b[7] = 0 }), ErrBadOp},
		{"op high", corrupt(func(b []byte) { b[7] = 5 }), ErrBadOp},
	}
	for _, tt := range tests {
		_, err := Parse(tt.data)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: Parse error = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestParseIgnoresTrailingPad(t *testing.T) {
	p := NewReply(mac(t, "02:00:00:00:00:01"), ip(t, "10.0.0.1"), mac(t, "02:00:00:00:00:02"), ip(t, "10.0.0.2"))
	padded := append(p.Serialize(), make([]byte, 18)...)
	got, err := Parse(padded)
	if err != nil {
		t.Fatalf("Parse(padded) error: %v", err)
	}
	if got != p {
		t.Errorf("Parse(padded) = %+v, want %+v", got, p)
	}
}

func TestIsGratuitous(t *testing.T) {
	g := NewGratuitous(mac(t, "02:00:00:00:00:01"), ip(t, "10.0.0.1"))
	if !g.IsGratuitous() {
		t.Error("announcement not recognised as gratuitous")
	}
	probe := NewProbe(mac(t, "02:00:00:00:00:01"), ip(t, "10.0.0.1"))
	if probe.IsGratuitous() {
		t.Error("probe with zero sender IP must not count as gratuitous")
	}
	req := NewRequest(mac(t, "02:00:00:00:00:02"), ip(t, "10.0.0.2"), ip(t, "10.0.0.1"))
	if req.IsGratuitous() {
		t.Error("ordinary request must not count as gratuitous")
	}
}
