package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/alexryd/thermsmart/internal/ble"
	"github.com/alexryd/thermsmart/internal/ble/protocol"
	"github.com/alexryd/thermsmart/internal/config"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/thermsmart/config.yaml)")
	device := flag.String("device", "", "target device address for session commands (any MAC notation)")
	readTime := flag.Bool("read-time", false, "read the device clock and exit")
	syncTime := flag.Bool("sync-time", false, "set the device clock to the local time and exit")
	identify := flag.Bool("identify", false, "blink the device indicator and exit")
	devices := flag.Bool("devices", false, "run one discovery scan, list devices in range, and exit")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapter := ble.NewBlueZAdapter()

	switch {
	case *devices:
		err = listDevices(ctx, adapter, cfg.ScanWindow())
	case *readTime || *syncTime || *identify:
		err = runSession(ctx, adapter, ble.NormalizeAddress(*device), *readTime, *syncTime, *identify)
	default:
		err = runListener(ctx, adapter, cfg)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("thermsmart failed", "err", err)
		os.Exit(1)
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	// No config file, use defaults
	return config.Default(), nil
}

func setupLogging(cfg *config.Config) {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      config.ParseLogLevel(cfg.LogLevel),
		TimeFormat: time.Kitchen,
		NoColor:    cfg.NoColor,
	})))
}

// runListener scans for advertisements in windows separated by an idle
// interval and logs every decoded reading, until interrupted.
func runListener(ctx context.Context, adapter ble.Adapter, cfg *config.Config) error {
	scanner := ble.NewScanner(adapter)
	slog.Info("listening for ThermSmart sensors",
		"adapter", cfg.Adapter,
		"window", cfg.ScanWindow(),
		"idle", cfg.IdleInterval(),
		"allowlist", len(cfg.Allowlist))

	for {
		windowCtx, cancel := context.WithTimeout(ctx, cfg.ScanWindow())
		err := scanner.ScanReadings(windowCtx, logReading, cfg.Allowlist)
		cancel()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if idle := cfg.IdleInterval(); idle > 0 {
			slog.Debug("scan window closed, idling", "for", idle)
			select {
			case <-time.After(idle):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func logReading(r protocol.Reading, dev ble.Device) {
	slog.Info("reading",
		"device", dev.Name,
		"addr", dev.Address,
		"rssi", dev.RSSI,
		"kind", r.Kind.String(),
		"sensor", r.Sensor.String(),
		"value", r.Value,
		"unit", r.Symbol)
}

// listDevices runs a single discovery-only scan window and prints every
// ThermSmart device heard.
func listDevices(ctx context.Context, adapter ble.Adapter, window time.Duration) error {
	scanner := ble.NewScanner(adapter)
	slog.Info("scanning for devices", "window", window)

	scanCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()
	err := scanner.ScanDevices(scanCtx, func(dev ble.Device) {
		slog.Info("discovered", "name", dev.Name, "addr", dev.Address, "rssi", dev.RSSI)
	})
	if err != nil {
		return err
	}

	fmt.Printf("%d device(s) in range\n", len(scanner.Devices()))
	return nil
}

// sessionTimeout bounds each GATT command once the session is ready.
const sessionTimeout = 10 * time.Second

// runSession connects to the target device and executes the requested
// commands. An empty address adopts the first ThermSmart device found.
func runSession(ctx context.Context, adapter ble.Adapter, addr string, readTime, syncTime, identify bool) error {
	session := ble.NewSession(adapter, addr)
	defer session.Close()

	if err := session.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if syncTime {
		opCtx, cancel := context.WithTimeout(ctx, sessionTimeout)
		now := time.Now()
		err := session.SyncTime(opCtx, now)
		cancel()
		if err != nil {
			return fmt.Errorf("sync time: %w", err)
		}
		slog.Info("device clock set", "addr", session.Addr(), "to", now.Format(time.DateTime))
	}

	if readTime {
		opCtx, cancel := context.WithTimeout(ctx, sessionTimeout)
		at, err := session.ReadTime(opCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("read time: %w", err)
		}
		fmt.Printf("device clock: %s\n", at.Format(time.DateTime))
	}

	if identify {
		opCtx, cancel := context.WithTimeout(ctx, sessionTimeout)
		err := session.Identify(opCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("identify: %w", err)
		}
		slog.Info("identify sent", "addr", session.Addr())
	}

	return nil
}
