package engine

import (
	"fmt"

	"github.com/athena-arpd/athena-arpd/internal/wire"
	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

// StaticEntry is an administratively pinned IPv4→MAC binding.
type StaticEntry struct {
	IP  arpv4.IPv4
	MAC arpv4.MAC
}

// InterfaceConfig describes one attached interface at init time.
type InterfaceConfig struct {
	ID          string
	MAC         arpv4.MAC
	IP          arpv4.IPv4
	Subnet      *arpv4.Subnet
	VLAN        *wire.VLANTag
	RARPEnabled bool
	Static      []StaticEntry
}

// Interface is the per-interface slice of engine state. Instances are
// owned exclusively by the State that created them.
type Interface struct {
	ID          string
	MAC         arpv4.MAC
	IP          arpv4.IPv4
	Subnet      *arpv4.Subnet
	VLAN        *wire.VLANTag
	RARPEnabled bool

	Cache    *Cache
	Negative *NegativeCache
	Pending  *PendingQueue
	ACD      ACD
}

func newInterface(cfg InterfaceConfig, ec Config) (*Interface, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("interface with empty id")
	}
	if cfg.MAC.IsZero() || cfg.MAC.IsMulticast() {
		return nil, fmt.Errorf("interface %s: own MAC %s is not a valid unicast address", cfg.ID, cfg.MAC)
	}

	iface := &Interface{
		ID:          cfg.ID,
		MAC:         cfg.MAC,
		IP:          cfg.IP,
		Subnet:      cfg.Subnet,
		VLAN:        cfg.VLAN,
		RARPEnabled: cfg.RARPEnabled,
		Cache:       NewCache(ec.MaxCache),
		Negative:    NewNegativeCache(ec.MaxNegative, ec.NegativeTTLMs),
		Pending:     NewPendingQueue(ec.MaxPending),
	}
	for _, s := range cfg.Static {
		if !iface.Cache.PutStatic(s.IP, s.MAC) {
			return nil, fmt.Errorf("interface %s: static table exceeds cache bound", cfg.ID)
		}
	}
	return iface, nil
}
