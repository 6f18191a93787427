// Package ble drives ThermSmart thermometer sensors over Bluetooth Low
// Energy: passive advertisement scanning that decodes broadcast readings
// without a connection, and an active GATT session for time read/sync,
// identify, and the legacy temperature poll.
package ble

import (
	"context"
	"fmt"
	"time"
)

// ThermSmart GATT identifiers.
const (
	ServiceUUID    = "0000fff0-0000-1000-8000-00805f9b34fb"
	WriteCharUUID  = "0000fff3-0000-1000-8000-00805f9b34fb"
	NotifyCharUUID = "0000fff5-0000-1000-8000-00805f9b34fb"
)

// State is the power state of the local radio.
type State int

const (
	StateUnknown State = iota
	StatePoweredOff
	StatePoweredOn
)

func (s State) String() string {
	switch s {
	case StatePoweredOff:
		return "powered-off"
	case StatePoweredOn:
		return "powered-on"
	default:
		return "unknown"
	}
}

// ScanResult is one received advertisement.
type ScanResult struct {
	Address   string // normalized advertiser address
	LocalName string
	RSSI      int16
	// ManufacturerData is the raw manufacturer-specific blob in wire
	// order, company id prefix included.
	ManufacturerData []byte
}

// ScanParams configures one scan.
type ScanParams struct {
	ServiceUUID string
	// AllowDuplicates requests repeated delivery of advertisements from
	// the same device. Readings change between broadcasts, so the
	// reading scan needs every frame.
	AllowDuplicates bool
}

// Device is a discovered peripheral: the normalized address used as the
// correlation key, plus a display name generated locally when the
// advertisement carries none.
type Device struct {
	Name    string
	Address string
	RSSI    int16
}

// Characteristic is a resolved GATT characteristic on a live connection.
type Characteristic interface {
	// Write sends data and waits for the link-layer acknowledgement.
	Write(data []byte) error
	// WriteWithoutResponse sends data without waiting for an ack.
	WriteWithoutResponse(data []byte) error
	// Subscribe registers the notification callback for this
	// characteristic. Notifications may arrive interleaved with any
	// in-flight operation.
	Subscribe(callback func(data []byte)) error
}

// Connection is an active link to a peripheral.
type Connection interface {
	// DiscoverCharacteristic resolves a characteristic by UUID within a
	// service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the link drops,
	// whether locally initiated or because the remote device vanished.
	OnDisconnect(callback func())
}

// Adapter abstracts the local radio. The process owns a single adapter
// and injects it into scanners and sessions; the core never reaches for
// a global.
type Adapter interface {
	// Enable powers on the radio.
	Enable() error
	// State reports the current power state.
	State() State
	// OnStateChange registers a state listener; the returned func
	// removes it.
	OnStateChange(callback func(State)) (cancel func())
	// Scan delivers advertisements to callback until ctx is cancelled
	// or StopScan is called. Blocks for the duration of the scan.
	Scan(ctx context.Context, params ScanParams, callback func(ScanResult)) error
	// StopScan ends the active scan.
	StopScan() error
	// Connect establishes a connection to the device with the given
	// normalized address.
	Connect(ctx context.Context, addr string) (Connection, error)
}

// radioReadyTimeout bounds the wait for the radio to power on.
const radioReadyTimeout = 5 * time.Second

// awaitRadioReady resolves immediately if the radio is powered on,
// otherwise suspends until a power-on state change, failing with
// ErrRadioUnavailable once the timeout elapses.
func awaitRadioReady(ctx context.Context, adapter Adapter, timeout time.Duration) error {
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("%w: %w", ErrRadioUnavailable, err)
	}
	if adapter.State() == StatePoweredOn {
		return nil
	}

	ready := make(chan struct{}, 1)
	cancel := adapter.OnStateChange(func(s State) {
		if s == StatePoweredOn {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	})
	defer cancel()

	// The state may have flipped between the poll and the listener
	// registration.
	if adapter.State() == StatePoweredOn {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ready:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: radio not powered on after %s", ErrRadioUnavailable, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
