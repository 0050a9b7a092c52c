package engine

// DropReason classifies why an inbound frame produced no state change.
// Drops are verdicts, not errors: every malformed or hostile input degrades
// to one of these.
type DropReason uint8

const (
	DropNone DropReason = iota
	DropTooShort
	DropBadCRC
	DropBadEtherType
	DropUnknownInterface
	DropBadHardwareType
	DropBadProtocolType
	DropBadLens
	DropBadOp
	DropBroadcastSource
	DropMulticastSource
	DropZeroSource
	DropCrossSubnet
	DropRARPDisabled
	DropRARPUnknownMAC
)

var dropNames = map[DropReason]string{
	DropNone:             "none",
	DropTooShort:         "too_short",
	DropBadCRC:           "bad_crc",
	DropBadEtherType:     "bad_ethertype",
	DropUnknownInterface: "unknown_interface",
	DropBadHardwareType:  "bad_hw_type",
	DropBadProtocolType:  "bad_proto_type",
	DropBadLens:          "bad_lens",
	DropBadOp:            "bad_op",
	DropBroadcastSource:  "broadcast_source",
	DropMulticastSource:  "multicast_source",
	DropZeroSource:       "zero_source",
	DropCrossSubnet:      "cross_subnet",
	DropRARPDisabled:     "rarp_disabled",
	DropRARPUnknownMAC:   "rarp_unknown_mac",
}

func (d DropReason) String() string {
	if s, ok := dropNames[d]; ok {
		return s
	}
	return "unknown"
}
