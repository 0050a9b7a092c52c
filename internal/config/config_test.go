package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
[server]
log_level = "debug"
log_format = "text"
tick_interval = "50ms"

[engine]
dynamic_ttl = "5m"
negative_ttl = "1m"
flood_window = "1s"
flood_max = 5

[api]
enabled = true
listen = "127.0.0.1:9067"

[[interface]]
name = "eth0"
mac = "02:00:00:00:00:01"
ip = "10.0.0.1"
subnet = "10.0.0.0/24"
rarp_enabled = true

  [[interface.static]]
  ip = "10.0.0.254"
  mac = "02:00:00:00:00:fe"

[[interface]]
name = "eth1"
mac = "02:00:00:00:01:01"
ip = "192.168.1.1"
subnet = "192.168.1.0/24"
vlan = 42
vlan_pcp = 3

[[reverse]]
mac = "02:00:00:00:00:0a"
ip = "10.0.0.10"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.LogLevel != "debug" || cfg.Server.LogFormat != "text" {
		t.Errorf("server config = %+v", cfg.Server)
	}
	if len(cfg.Interfaces) != 2 {
		t.Fatalf("interfaces = %d, want 2", len(cfg.Interfaces))
	}
	if !cfg.Interfaces[0].RARPEnabled {
		t.Error("eth0 rarp_enabled lost")
	}
	if len(cfg.Interfaces[0].Static) != 1 {
		t.Errorf("eth0 static entries = %d, want 1", len(cfg.Interfaces[0].Static))
	}
	if cfg.Interfaces[1].VLAN != 42 {
		t.Errorf("eth1 vlan = %d, want 42", cfg.Interfaces[1].VLAN)
	}
	if len(cfg.Reverse) != 1 {
		t.Errorf("reverse entries = %d, want 1", len(cfg.Reverse))
	}
}

func TestBuildEngineConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	ec, err := cfg.BuildEngineConfig()
	if err != nil {
		t.Fatalf("BuildEngineConfig: %v", err)
	}

	if ec.DynamicTTLMs != 300_000 {
		t.Errorf("dynamic ttl = %d ms, want 300000", ec.DynamicTTLMs)
	}
	if ec.FloodWindowMs != 1000 || ec.FloodMax != 5 {
		t.Errorf("flood = %d ms / %d", ec.FloodWindowMs, ec.FloodMax)
	}
	if len(ec.Interfaces) != 2 {
		t.Fatalf("engine interfaces = %d, want 2", len(ec.Interfaces))
	}
	if ec.Interfaces[0].Subnet == nil || ec.Interfaces[0].Subnet.String() != "10.0.0.0/24" {
		t.Errorf("eth0 subnet = %v", ec.Interfaces[0].Subnet)
	}
	if ec.Interfaces[1].VLAN == nil || ec.Interfaces[1].VLAN.VID != 42 || ec.Interfaces[1].VLAN.PCP != 3 {
		t.Errorf("eth1 vlan = %+v", ec.Interfaces[1].VLAN)
	}
	if len(ec.ReverseMap) != 1 {
		t.Errorf("reverse map size = %d, want 1", len(ec.ReverseMap))
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no interfaces", "[server]\nlog_level = \"info\"\n"},
		{"bad mac", "[[interface]]\nname = \"eth0\"\nmac = \"zz:zz\"\n"},
		{"bad subnet", "[[interface]]\nname = \"eth0\"\nsubnet = \"10.0.0.0/40\"\n"},
		{"bad vlan", "[[interface]]\nname = \"eth0\"\nvlan = 5000\n"},
		{"duplicate name", "[[interface]]\nname = \"eth0\"\n\n[[interface]]\nname = \"eth0\"\n"},
		{"bad duration", "[engine]\ndynamic_ttl = \"fast\"\n\n[[interface]]\nname = \"eth0\"\n"},
		{"bad reverse", "[[interface]]\nname = \"eth0\"\n\n[[reverse]]\nmac = \"02:00:00:00:00:0a\"\nip = \"nope\"\n"},
	}
	for _, tt := range tests {
		if _, err := Load(writeConfig(t, tt.content)); err == nil {
			t.Errorf("%s: Load accepted invalid config", tt.name)
		}
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{Interfaces: []InterfaceConfig{{Name: "eth0"}}}
	ApplyDefaults(cfg)
	if cfg.Server.LogLevel != "info" || cfg.Server.LogFormat != "json" {
		t.Errorf("log defaults = %s/%s", cfg.Server.LogLevel, cfg.Server.LogFormat)
	}
	if cfg.TickInterval().Milliseconds() != 100 {
		t.Errorf("tick interval default = %s", cfg.TickInterval())
	}
	if cfg.API.Listen == "" {
		t.Error("api listen default missing")
	}
}
