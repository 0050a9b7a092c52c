package engine

import "github.com/athena-arpd/athena-arpd/pkg/arpv4"

// RoutingOracle answers "which interface owns destination D?". The default
// oracle scans configured subnets; deployments with real routing tables
// inject their own.
type RoutingOracle func(ip arpv4.IPv4) (ifaceID string, ok bool)

// Config enumerates every knob of the engine. Zero values take the
// defaults from pkg/arpv4.
type Config struct {
	Interfaces []InterfaceConfig
	ReverseMap map[arpv4.MAC]arpv4.IPv4

	DynamicTTLMs  int64
	NegativeTTLMs int64
	FloodWindowMs int64
	FloodMax      int

	RetryIntervalMs int64
	MaxAttempts     int

	MaxCache    int
	MaxNegative int
	MaxFlood    int
	MaxPending  int

	ProbeNum         int
	AnnounceNum      int
	DefendIntervalMs int64

	Oracle RoutingOracle
}

func (c *Config) applyDefaults() {
	if c.DynamicTTLMs <= 0 {
		c.DynamicTTLMs = arpv4.DefaultDynamicTTLMs
	}
	if c.NegativeTTLMs <= 0 {
		c.NegativeTTLMs = arpv4.DefaultNegativeTTLMs
	}
	if c.FloodWindowMs <= 0 {
		c.FloodWindowMs = arpv4.DefaultFloodWindowMs
	}
	if c.FloodMax <= 0 {
		c.FloodMax = arpv4.DefaultFloodMax
	}
	if c.RetryIntervalMs <= 0 {
		c.RetryIntervalMs = arpv4.DefaultRetryMs
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = arpv4.DefaultMaxAttempts
	}
	if c.MaxCache <= 0 {
		c.MaxCache = arpv4.DefaultMaxCache
	}
	if c.MaxNegative <= 0 {
		c.MaxNegative = arpv4.DefaultMaxNegative
	}
	if c.MaxFlood <= 0 {
		c.MaxFlood = arpv4.DefaultMaxFlood
	}
	if c.MaxPending <= 0 {
		c.MaxPending = arpv4.DefaultMaxPending
	}
	if c.ProbeNum <= 0 {
		c.ProbeNum = arpv4.ProbeNum
	}
	if c.AnnounceNum <= 0 {
		c.AnnounceNum = arpv4.AnnounceNum
	}
	if c.DefendIntervalMs <= 0 {
		c.DefendIntervalMs = arpv4.DefendIntervalMs
	}
}
