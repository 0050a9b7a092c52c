// Package config handles TOML configuration parsing, validation, and
// defaults for athena-arpd.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/athena-arpd/athena-arpd/internal/engine"
	"github.com/athena-arpd/athena-arpd/internal/wire"
	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

// Config is the top-level configuration for athena-arpd.
type Config struct {
	Server     ServerConfig      `toml:"server"`
	Engine     EngineConfig      `toml:"engine"`
	API        APIConfig         `toml:"api"`
	Names      NamesConfig       `toml:"names"`
	Interfaces []InterfaceConfig `toml:"interface"`
	Reverse    []ReverseEntry    `toml:"reverse"`
}

// ServerConfig holds core daemon settings.
type ServerConfig struct {
	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`
	StateDB         string `toml:"state_db"`
	PIDFile         string `toml:"pid_file"`
	TickInterval    string `toml:"tick_interval"`
	EventBufferSize int    `toml:"event_buffer_size"`
}

// EngineConfig holds the engine policy knobs. String durations keep the
// TOML readable; they are converted to milliseconds at build time.
type EngineConfig struct {
	DynamicTTL     string `toml:"dynamic_ttl"`
	NegativeTTL    string `toml:"negative_ttl"`
	FloodWindow    string `toml:"flood_window"`
	FloodMax       int    `toml:"flood_max"`
	RetryInterval  string `toml:"retry_interval"`
	MaxAttempts    int    `toml:"max_attempts"`
	MaxCache       int    `toml:"max_cache"`
	MaxNegative    int    `toml:"max_negative"`
	MaxFlood       int    `toml:"max_flood"`
	MaxPending     int    `toml:"max_pending"`
	ProbeNum       int    `toml:"probe_num"`
	AnnounceNum    int    `toml:"announce_num"`
	DefendInterval string `toml:"defend_interval"`
}

// APIConfig holds admin API settings.
type APIConfig struct {
	Enabled       bool   `toml:"enabled"`
	Listen        string `toml:"listen"`
	AuthTokenHash string `toml:"auth_token_hash"`
}

// NamesConfig holds PTR enrichment settings.
type NamesConfig struct {
	Enabled    bool   `toml:"enabled"`
	Nameserver string `toml:"nameserver"`
	Timeout    string `toml:"timeout"`
	CacheSize  int    `toml:"cache_size"`
}

// InterfaceConfig describes one served interface.
type InterfaceConfig struct {
	Name        string        `toml:"name"`
	MAC         string        `toml:"mac"`
	IP          string        `toml:"ip"`
	Subnet      string        `toml:"subnet"`
	VLAN        int           `toml:"vlan"`
	VLANPCP     int           `toml:"vlan_pcp"`
	RARPEnabled bool          `toml:"rarp_enabled"`
	DAD         bool          `toml:"dad"`
	Static      []StaticEntry `toml:"static"`
}

// StaticEntry pins an IPv4→MAC binding against protocol updates.
type StaticEntry struct {
	IP  string `toml:"ip"`
	MAC string `toml:"mac"`
}

// ReverseEntry maps a MAC to the IPv4 the RARP responder hands out.
type ReverseEntry struct {
	MAC string `toml:"mac"`
	IP  string `toml:"ip"`
}

// Load reads and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.LogFormat == "" {
		cfg.Server.LogFormat = "json"
	}
	if cfg.Server.StateDB == "" {
		cfg.Server.StateDB = "/var/lib/athena-arpd/state.db"
	}
	if cfg.Server.TickInterval == "" {
		cfg.Server.TickInterval = "100ms"
	}
	if cfg.Server.EventBufferSize <= 0 {
		cfg.Server.EventBufferSize = 4096
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = "127.0.0.1:8067"
	}
	if cfg.Names.Timeout == "" {
		cfg.Names.Timeout = "2s"
	}
	if cfg.Names.CacheSize <= 0 {
		cfg.Names.CacheSize = 1024
	}
}

// Validate checks the configuration for errors the daemon cannot start with.
func (c *Config) Validate() error {
	if len(c.Interfaces) == 0 {
		return fmt.Errorf("no interfaces configured")
	}
	seen := make(map[string]bool)
	for i, ic := range c.Interfaces {
		if ic.Name == "" {
			return fmt.Errorf("interface %d: missing name", i)
		}
		if seen[ic.Name] {
			return fmt.Errorf("interface %s: duplicate name", ic.Name)
		}
		seen[ic.Name] = true
		if ic.MAC != "" {
			if _, err := arpv4.ParseMAC(ic.MAC); err != nil {
				return fmt.Errorf("interface %s: %w", ic.Name, err)
			}
		}
		if ic.IP != "" {
			if _, err := arpv4.ParseIPv4(ic.IP); err != nil {
				return fmt.Errorf("interface %s: %w", ic.Name, err)
			}
		}
		if ic.Subnet != "" {
			if _, err := arpv4.ParseSubnet(ic.Subnet); err != nil {
				return fmt.Errorf("interface %s: %w", ic.Name, err)
			}
		}
		if ic.VLAN < 0 || ic.VLAN > 4094 {
			return fmt.Errorf("interface %s: vlan %d out of range", ic.Name, ic.VLAN)
		}
		for _, se := range ic.Static {
			if _, err := arpv4.ParseIPv4(se.IP); err != nil {
				return fmt.Errorf("interface %s static entry: %w", ic.Name, err)
			}
			if _, err := arpv4.ParseMAC(se.MAC); err != nil {
				return fmt.Errorf("interface %s static entry: %w", ic.Name, err)
			}
		}
	}
	for _, re := range c.Reverse {
		if _, err := arpv4.ParseMAC(re.MAC); err != nil {
			return fmt.Errorf("reverse entry: %w", err)
		}
		if _, err := arpv4.ParseIPv4(re.IP); err != nil {
			return fmt.Errorf("reverse entry: %w", err)
		}
	}
	for _, field := range []struct{ name, value string }{
		{"server.tick_interval", c.Server.TickInterval},
		{"engine.dynamic_ttl", c.Engine.DynamicTTL},
		{"engine.negative_ttl", c.Engine.NegativeTTL},
		{"engine.flood_window", c.Engine.FloodWindow},
		{"engine.retry_interval", c.Engine.RetryInterval},
		{"engine.defend_interval", c.Engine.DefendInterval},
		{"names.timeout", c.Names.Timeout},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	return nil
}

// TickInterval returns the parsed tick interval.
func (c *Config) TickInterval() time.Duration {
	d, err := time.ParseDuration(c.Server.TickInterval)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

func durationMs(s string) int64 {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d.Milliseconds()
}

// BuildEngineConfig converts the file configuration into the engine's init
// config. Validate must have passed.
func (c *Config) BuildEngineConfig() (engine.Config, error) {
	ec := engine.Config{
		DynamicTTLMs:     durationMs(c.Engine.DynamicTTL),
		NegativeTTLMs:    durationMs(c.Engine.NegativeTTL),
		FloodWindowMs:    durationMs(c.Engine.FloodWindow),
		FloodMax:         c.Engine.FloodMax,
		RetryIntervalMs:  durationMs(c.Engine.RetryInterval),
		MaxAttempts:      c.Engine.MaxAttempts,
		MaxCache:         c.Engine.MaxCache,
		MaxNegative:      c.Engine.MaxNegative,
		MaxFlood:         c.Engine.MaxFlood,
		MaxPending:       c.Engine.MaxPending,
		ProbeNum:         c.Engine.ProbeNum,
		AnnounceNum:      c.Engine.AnnounceNum,
		DefendIntervalMs: durationMs(c.Engine.DefendInterval),
		ReverseMap:       make(map[arpv4.MAC]arpv4.IPv4, len(c.Reverse)),
	}

	for _, ic := range c.Interfaces {
		eic := engine.InterfaceConfig{
			ID:          ic.Name,
			RARPEnabled: ic.RARPEnabled,
		}
		if ic.MAC != "" {
			mac, err := arpv4.ParseMAC(ic.MAC)
			if err != nil {
				return engine.Config{}, err
			}
			eic.MAC = mac
		}
		if ic.IP != "" {
			ip, err := arpv4.ParseIPv4(ic.IP)
			if err != nil {
				return engine.Config{}, err
			}
			eic.IP = ip
		}
		if ic.Subnet != "" {
			sub, err := arpv4.ParseSubnet(ic.Subnet)
			if err != nil {
				return engine.Config{}, err
			}
			eic.Subnet = &sub
		}
		if ic.VLAN > 0 {
			eic.VLAN = &wire.VLANTag{PCP: uint8(ic.VLANPCP), VID: uint16(ic.VLAN)}
		}
		for _, se := range ic.Static {
			ip, err := arpv4.ParseIPv4(se.IP)
			if err != nil {
				return engine.Config{}, err
			}
			mac, err := arpv4.ParseMAC(se.MAC)
			if err != nil {
				return engine.Config{}, err
			}
			eic.Static = append(eic.Static, engine.StaticEntry{IP: ip, MAC: mac})
		}
		ec.Interfaces = append(ec.Interfaces, eic)
	}

	for _, re := range c.Reverse {
		mac, err := arpv4.ParseMAC(re.MAC)
		if err != nil {
			return engine.Config{}, err
		}
		ip, err := arpv4.ParseIPv4(re.IP)
		if err != nil {
			return engine.Config{}, err
		}
		ec.ReverseMap[mac] = ip
	}

	return ec, nil
}
