// athena-arpd — hardened ARP/RARP responder with conflict detection.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/athena-arpd/athena-arpd/internal/api"
	"github.com/athena-arpd/athena-arpd/internal/capture"
	"github.com/athena-arpd/athena-arpd/internal/config"
	"github.com/athena-arpd/athena-arpd/internal/daemon"
	"github.com/athena-arpd/athena-arpd/internal/engine"
	"github.com/athena-arpd/athena-arpd/internal/events"
	"github.com/athena-arpd/athena-arpd/internal/logging"
	"github.com/athena-arpd/athena-arpd/internal/metrics"
	"github.com/athena-arpd/athena-arpd/internal/names"
	"github.com/athena-arpd/athena-arpd/internal/store"
	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

func main() {
	configPath := flag.String("config", "/etc/athena-arpd/config.toml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Server.LogLevel, cfg.Server.LogFormat, os.Stdout)
	logger.Info("athena-arpd starting",
		"config", *configPath,
		"interfaces", len(cfg.Interfaces))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the administrative state database.
	st, err := store.Open(cfg.Server.StateDB)
	if err != nil {
		logger.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Build the engine config from the file, then overlay persisted
	// administrative state so API-added entries survive restarts.
	engCfg, err := cfg.BuildEngineConfig()
	if err != nil {
		logger.Error("failed to build engine config", "error", err)
		os.Exit(1)
	}
	if err := overlayStore(st, &engCfg); err != nil {
		logger.Error("failed to load persisted state", "error", err)
		os.Exit(1)
	}

	state, err := engine.New(engCfg)
	if err != nil {
		logger.Error("failed to initialize engine", "error", err)
		os.Exit(1)
	}

	bus := events.NewBus(cfg.Server.EventBufferSize, logger)
	go bus.Start()
	defer bus.Stop()

	var resolver *names.Resolver
	if cfg.Names.Enabled && cfg.Names.Nameserver != "" {
		timeout, _ := time.ParseDuration(cfg.Names.Timeout)
		resolver = names.NewResolver(cfg.Names.Nameserver, timeout, cfg.Names.CacheSize, logger)
		logger.Info("PTR enrichment enabled", "nameserver", cfg.Names.Nameserver)
	}

	d := daemon.New(state, bus, logger, daemon.Options{
		Store:    st,
		Resolver: resolver,
		Tick:     cfg.TickInterval(),
	})

	// Open one capture per interface.
	for _, ic := range cfg.Interfaces {
		src, err := capture.OpenPcap(ic.Name, logger)
		if err != nil {
			logger.Error("failed to open capture", "interface", ic.Name, "error", err)
			os.Exit(1)
		}
		defer src.Close()
		d.AttachSource(ic.Name, src)
	}

	// Kick off duplicate address detection where configured.
	for _, ic := range cfg.Interfaces {
		if !ic.DAD || ic.IP == "" {
			continue
		}
		candidate, _ := arpv4.ParseIPv4(ic.IP)
		seed := uint64(time.Now().UnixNano())
		if err := d.StartDAD(ic.Name, candidate, seed); err != nil {
			logger.Warn("failed to start DAD", "interface", ic.Name, "error", err)
		} else {
			logger.Info("duplicate address detection started",
				"interface", ic.Name, "candidate", ic.IP)
		}
	}

	// Mirror security events into the log at warning level.
	go logEvents(bus.Subscribe(256), logger)

	// Start the admin API.
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(d, cfg.API.Listen, cfg.API.AuthTokenHash, logger)
		ln, err := apiServer.Listen()
		if err != nil {
			logger.Error("FATAL: API server failed to start", "error", err)
			os.Exit(1)
		}
		logger.Info("API server started", "listen", ln.Addr().String())
		go func() {
			if err := apiServer.Serve(ln); err != nil {
				logger.Error("API server failed", "error", err)
			}
		}()
	}

	if cfg.Server.PIDFile != "" {
		if err := writePIDFile(cfg.Server.PIDFile); err != nil {
			logger.Warn("failed to write PID file", "path", cfg.Server.PIDFile, "error", err)
		} else {
			defer removePIDFile(cfg.Server.PIDFile)
		}
	}

	metrics.ServerStartTime.SetToCurrentTime()

	go func() {
		if err := d.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("daemon loop failed", "error", err)
		}
	}()

	logger.Info("athena-arpd ready",
		"interfaces", len(cfg.Interfaces),
		"api", cfg.API.Enabled,
		"tick", cfg.TickInterval().String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cancel()
	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		apiServer.Stop(shutdownCtx)
		shutdownCancel()
	}
	logger.Info("athena-arpd stopped")
}

// overlayStore merges persisted static entries and reverse mappings into
// the engine config built from the file.
func overlayStore(st *store.Store, engCfg *engine.Config) error {
	statics, err := st.StaticEntries()
	if err != nil {
		return fmt.Errorf("loading static entries: %w", err)
	}
	for _, rec := range statics {
		ip, err := arpv4.ParseIPv4(rec.IP)
		if err != nil {
			return fmt.Errorf("persisted static entry %s: %w", rec.IP, err)
		}
		mac, err := arpv4.ParseMAC(rec.MAC)
		if err != nil {
			return fmt.Errorf("persisted static entry %s: %w", rec.MAC, err)
		}
		for i := range engCfg.Interfaces {
			if engCfg.Interfaces[i].ID == rec.Interface {
				engCfg.Interfaces[i].Static = append(engCfg.Interfaces[i].Static,
					engine.StaticEntry{IP: ip, MAC: mac})
			}
		}
	}

	reverses, err := st.ReverseEntries()
	if err != nil {
		return fmt.Errorf("loading reverse map: %w", err)
	}
	if engCfg.ReverseMap == nil {
		engCfg.ReverseMap = make(map[arpv4.MAC]arpv4.IPv4, len(reverses))
	}
	for _, rec := range reverses {
		mac, err := arpv4.ParseMAC(rec.MAC)
		if err != nil {
			return fmt.Errorf("persisted reverse entry %s: %w", rec.MAC, err)
		}
		ip, err := arpv4.ParseIPv4(rec.IP)
		if err != nil {
			return fmt.Errorf("persisted reverse entry %s: %w", rec.IP, err)
		}
		engCfg.ReverseMap[mac] = ip
	}
	return nil
}

// logEvents surfaces security-relevant events in the log.
func logEvents(ch chan events.Event, logger *slog.Logger) {
	for evt := range ch {
		switch evt.Type {
		case events.EventPoisonBlocked, events.EventConflict, events.EventACDConflict:
			logger.Warn("security event",
				"type", string(evt.Type), "interface", evt.Interface,
				"ip", evt.IP, "mac", evt.MAC)
		default:
			logger.Debug("event",
				"type", string(evt.Type), "interface", evt.Interface,
				"ip", evt.IP, "mac", evt.MAC, "hostname", evt.Hostname)
		}
	}
}

// writePIDFile writes the current process ID to the given path.
func writePIDFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating PID directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

// removePIDFile removes the PID file.
func removePIDFile(path string) {
	os.Remove(path)
}
