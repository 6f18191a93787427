package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"
)

// BlueZAdapter implements Adapter on top of tinygo-org/bluetooth, which
// talks to BlueZ on Linux. Addresses crossing this boundary are
// normalized MAC strings; the OS-level colon form stays internal.
type BlueZAdapter struct {
	adapter *bluetooth.Adapter

	mu          sync.Mutex
	enabled     bool
	state       State
	nextID      int
	listeners   map[int]func(State)
	connections map[string]*bluezConnection // keyed by normalized address
}

// NewBlueZAdapter creates an adapter bound to the default HCI device.
func NewBlueZAdapter() *BlueZAdapter {
	return &BlueZAdapter{
		adapter:     bluetooth.DefaultAdapter,
		listeners:   make(map[int]func(State)),
		connections: make(map[string]*bluezConnection),
	}
}

func (a *BlueZAdapter) Enable() error {
	a.mu.Lock()
	if a.enabled {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	if err := a.adapter.Enable(); err != nil {
		return err
	}

	// Adapter-level connect handler: fires with connected=false when a
	// peripheral drops, which is how disconnects reach sessions.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		addr := NormalizeAddress(device.Address.String())
		a.mu.Lock()
		conn, ok := a.connections[addr]
		delete(a.connections, addr)
		a.mu.Unlock()
		if ok {
			conn.fireDisconnect()
		}
	})

	a.mu.Lock()
	a.enabled = true
	a.state = StatePoweredOn
	listeners := make([]func(State), 0, len(a.listeners))
	for _, cb := range a.listeners {
		listeners = append(listeners, cb)
	}
	a.mu.Unlock()
	for _, cb := range listeners {
		cb(StatePoweredOn)
	}
	return nil
}

// State reports the radio power state. BlueZ exposes no power-state
// feed through this stack, so the state tracks Enable.
func (a *BlueZAdapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *BlueZAdapter) OnStateChange(callback func(State)) (cancel func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = callback
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// Scan delivers advertisements until ctx is cancelled or StopScan is
// called. BlueZ delivers every advertisement it hears; service
// filtering happens in the scan session, and duplicate suppression is
// applied here when the caller didn't ask for duplicates.
func (a *BlueZAdapter) Scan(ctx context.Context, params ScanParams, callback func(ScanResult)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = a.adapter.StopScan()
		case <-done:
		}
	}()

	seen := make(map[string]bool)
	err := a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		addr := NormalizeAddress(result.Address.String())
		if !params.AllowDuplicates {
			if seen[addr] {
				return
			}
			seen[addr] = true
		}
		mfg := rawManufacturerData(result)
		if mfg == nil {
			return
		}
		callback(ScanResult{
			Address:          addr,
			LocalName:        result.LocalName(),
			RSSI:             result.RSSI,
			ManufacturerData: mfg,
		})
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

func (a *BlueZAdapter) StopScan() error {
	return a.adapter.StopScan()
}

func (a *BlueZAdapter) Connect(ctx context.Context, addr string) (Connection, error) {
	// tinygo's Connect blocks with its own timeout; wrap it so our ctx
	// is respected too.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		var target bluetooth.Address
		target.Set(macColons(addr))
		device, err := a.adapter.Connect(target, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("ble: connect to %s: %w", addr, ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("ble: connect to %s: %w", addr, res.err)
		}
		conn := &bluezConnection{device: res.device}
		a.mu.Lock()
		a.connections[addr] = conn
		a.mu.Unlock()
		return conn, nil
	}
}

// rawManufacturerData rebuilds the wire-order manufacturer data blob:
// company id little-endian, then the payload.
func rawManufacturerData(result bluetooth.ScanResult) []byte {
	elements := result.ManufacturerData()
	if len(elements) == 0 {
		return nil
	}
	md := elements[0]
	blob := make([]byte, 0, 2+len(md.Data))
	blob = append(blob, byte(md.CompanyID), byte(md.CompanyID>>8))
	return append(blob, md.Data...)
}

// macColons rebuilds the OS-level MAC form from a normalized address.
func macColons(addr string) string {
	if len(addr) != 12 {
		return addr
	}
	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strings.ToUpper(addr[i : i+2]))
	}
	return b.String()
}

type bluezConnection struct {
	device bluetooth.Device

	mu           sync.Mutex
	disconnectCb func()
}

func (c *bluezConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: parse service UUID: %w", err)
	}
	chrUUID, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: parse characteristic UUID: %w", err)
	}

	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("ble: service %s not found", serviceUUID)
	}

	chars, err := svcs[0].DiscoverCharacteristics([]bluetooth.UUID{chrUUID})
	if err != nil {
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("ble: characteristic %s not found", charUUID)
	}

	return &bluezCharacteristic{char: chars[0]}, nil
}

func (c *bluezConnection) Disconnect() error {
	return c.device.Disconnect()
}

func (c *bluezConnection) OnDisconnect(callback func()) {
	c.mu.Lock()
	c.disconnectCb = callback
	c.mu.Unlock()
}

func (c *bluezConnection) fireDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type bluezCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

// Write maps to write-without-response: the GATT stack below handles
// the link-layer acknowledgement, and the ThermSmart write
// characteristic only accepts this mode.
func (c *bluezCharacteristic) Write(data []byte) error {
	_, err := c.char.WriteWithoutResponse(data)
	return err
}

func (c *bluezCharacteristic) WriteWithoutResponse(data []byte) error {
	_, err := c.char.WriteWithoutResponse(data)
	return err
}

func (c *bluezCharacteristic) Subscribe(callback func(data []byte)) error {
	return c.char.EnableNotifications(func(buf []byte) {
		callback(buf)
	})
}

// Compile-time interface checks.
var (
	_ Adapter        = (*BlueZAdapter)(nil)
	_ Connection     = (*bluezConnection)(nil)
	_ Characteristic = (*bluezCharacteristic)(nil)
)
