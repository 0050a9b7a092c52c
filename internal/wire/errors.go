package wire

import "errors"

// Parse and decapsulation failures. All are terminal for the frame that
// produced them; the engine turns them into silent drops.
var (
	ErrTooShort        = errors.New("packet too short")
	ErrBadHardwareType = errors.New("unsupported hardware type")
	ErrBadProtocolType = errors.New("unsupported protocol type")
	ErrBadLens         = errors.New("bad hardware/protocol address lengths")
	ErrBadOp           = errors.New("unknown ARP operation")
	ErrBadCRC          = errors.New("frame check sequence mismatch")
	ErrBadEtherType    = errors.New("not an ARP or RARP frame")
)
