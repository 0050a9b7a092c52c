// Package capture adapts raw NIC access to the engine's frame contract.
// The engine works on full frames including the FCS; NIC hardware strips
// it on receive and appends it on transmit, so the adapters rebuild and
// strip it at the boundary.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/gopacket/pcap"

	"github.com/athena-arpd/athena-arpd/internal/wire"
)

// Source delivers received frames and injects outbound ones for a single
// interface.
type Source interface {
	// Run reads frames until the context is cancelled, passing each one
	// (FCS restored) to handle.
	Run(ctx context.Context, handle func(frame []byte)) error
	// Inject transmits a full frame; the FCS is stripped before the NIC
	// sees it.
	Inject(frame []byte) error
	Close() error
}

// PcapSource is a live-capture Source backed by libpcap with a kernel BPF
// filter restricting delivery to ARP/RARP frames.
type PcapSource struct {
	iface  string
	handle *pcap.Handle
	logger *slog.Logger
}

// OpenPcap opens a live capture on the named interface.
func OpenPcap(iface string, logger *slog.Logger) (*PcapSource, error) {
	handle, err := pcap.OpenLive(iface, snapLen, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("pcap open on %s: %w", iface, err)
	}

	filter, err := pcapFilter()
	if err != nil {
		handle.Close()
		return nil, err
	}
	if err := handle.SetBPFInstructionFilter(filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("installing BPF filter on %s: %w", iface, err)
	}

	logger.Info("capture opened", "interface", iface, "snaplen", snapLen)
	return &PcapSource{iface: iface, handle: handle, logger: logger}, nil
}

// Run reads frames until the context is cancelled.
func (p *PcapSource) Run(ctx context.Context, handle func(frame []byte)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, _, err := p.handle.ReadPacketData()
		if err != nil {
			if errors.Is(err, pcap.NextErrorTimeoutExpired) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading from %s: %w", p.iface, err)
		}

		frame := make([]byte, len(data))
		copy(frame, data)
		handle(wire.AppendFCS(frame))
	}
}

// Inject transmits a frame on the interface.
func (p *PcapSource) Inject(frame []byte) error {
	return p.handle.WritePacketData(wire.StripFCS(frame))
}

// Close releases the capture handle.
func (p *PcapSource) Close() error {
	p.handle.Close()
	return nil
}
