package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexryd/thermsmart/internal/ble/protocol"
)

// deviceNamePrefix seeds the locally-generated display name for sensors
// that advertise without a local name.
const deviceNamePrefix = "ThermSmart"

// ReadingFunc receives one decoded reading and the device it came from.
type ReadingFunc func(reading protocol.Reading, dev Device)

// DeviceFunc receives a discovered device.
type DeviceFunc func(dev Device)

// Scanner drives passive advertisement scanning on a single radio.
// Only one scan may be active per Scanner at a time; starting a second
// is a caller error, not something the scanner arbitrates.
type Scanner struct {
	adapter      Adapter
	readyTimeout time.Duration

	active atomic.Bool

	mu      sync.Mutex
	devices map[string]Device
}

// NewScanner creates a scanner on the given radio.
func NewScanner(adapter Adapter) *Scanner {
	return &Scanner{
		adapter:      adapter,
		readyTimeout: radioReadyTimeout,
		devices:      make(map[string]Device),
	}
}

// ScanReadings scans for ThermSmart advertisements and invokes
// onReading once per decoded reading, tagged with the originating
// device, until ctx is cancelled. A non-empty allowlist restricts
// delivery to those addresses; entries must already be normalized (see
// NormalizeAddress), the comparison itself is exact. Blocks until the
// scan ends: nil on cancellation, ErrRadioStateChanged if the radio
// leaves the powered-on state mid-scan, ErrScanActive if a scan is
// already running.
//
// Without an allowlist every discovered device is retained and can be
// enumerated through Devices; with one, non-matching devices are not
// kept.
func (s *Scanner) ScanReadings(ctx context.Context, onReading ReadingFunc, allowlist []string) error {
	allowed := make(map[string]bool, len(allowlist))
	for _, addr := range allowlist {
		allowed[addr] = true
	}
	return s.run(ctx, true, func(result ScanResult) {
		addr, payload, ok := checkFrame(result)
		if !ok {
			return
		}
		if len(allowed) > 0 && !allowed[addr] {
			return
		}
		dev := s.observe(result, addr, len(allowed) == 0)
		for _, reading := range protocol.DecodeReadings(payload) {
			onReading(reading, dev)
		}
	})
}

// ScanDevices scans in discovery-only mode, yielding whole devices
// without decoding readings. Used by sessions that need a connection
// target.
func (s *Scanner) ScanDevices(ctx context.Context, onDevice DeviceFunc) error {
	return s.run(ctx, false, func(result ScanResult) {
		addr, _, ok := checkFrame(result)
		if !ok {
			return
		}
		onDevice(s.observe(result, addr, true))
	})
}

// Devices returns the devices retained by unfiltered scans so far.
func (s *Scanner) Devices() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	devs := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		devs = append(devs, d)
	}
	return devs
}

// run owns one scan lifecycle: radio-ready wait, powered-on watchdog,
// the scan itself, and teardown. Listeners are deregistered before run
// returns so a stale scan cannot leak events into the next one.
func (s *Scanner) run(ctx context.Context, duplicates bool, callback func(ScanResult)) error {
	if !s.active.CompareAndSwap(false, true) {
		return ErrScanActive
	}
	defer s.active.Store(false)

	if err := awaitRadioReady(ctx, s.adapter, s.readyTimeout); err != nil {
		return err
	}

	scanCtx, cancelScan := context.WithCancel(ctx)
	defer cancelScan()

	// Watchdog: the scan must not outlive the powered-on state.
	stateCh := make(chan State, 1)
	cancelWatch := s.adapter.OnStateChange(func(st State) {
		if st != StatePoweredOn {
			select {
			case stateCh <- st:
			default:
			}
		}
	})
	defer cancelWatch()

	var (
		lostMu sync.Mutex
		lost   State
		lostOK bool
	)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case st := <-stateCh:
			lostMu.Lock()
			lost, lostOK = st, true
			lostMu.Unlock()
			cancelScan()
			_ = s.adapter.StopScan()
		case <-scanCtx.Done():
		}
	}()

	err := s.adapter.Scan(scanCtx, ScanParams{
		ServiceUUID:     ServiceUUID,
		AllowDuplicates: duplicates,
	}, callback)

	cancelScan()
	<-watchDone

	lostMu.Lock()
	defer lostMu.Unlock()
	if lostOK {
		return fmt.Errorf("%w: now %s", ErrRadioStateChanged, lost)
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

// checkFrame validates a scan result against the advertisement frame
// rules: minimum length, company identifier, and the address echoed in
// the manufacturer data matching the advertiser's own address. Spoofed
// and malformed frames are dropped here, silently.
func checkFrame(result ScanResult) (addr string, payload []byte, ok bool) {
	addr, payload, err := protocol.ParseFrame(result.ManufacturerData)
	if err != nil {
		return "", nil, false
	}
	if result.Address != "" && addr != result.Address {
		slog.Debug("[BLE] dropping frame with address echo mismatch",
			"advertiser", result.Address, "echoed", addr)
		return "", nil, false
	}
	return addr, payload, true
}

// observe builds the device identity for a frame and, for unfiltered
// scans, retains it for later enumeration.
func (s *Scanner) observe(result ScanResult, addr string, retain bool) Device {
	name := result.LocalName
	if name == "" && len(addr) >= 4 {
		name = deviceNamePrefix + "-" + addr[len(addr)-4:]
	}
	dev := Device{Name: name, Address: addr, RSSI: result.RSSI}
	if retain {
		s.mu.Lock()
		s.devices[addr] = dev
		s.mu.Unlock()
	}
	return dev
}
