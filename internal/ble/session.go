package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexryd/thermsmart/internal/ble/protocol"
)

// SessionState is the lifecycle state of a device session.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionScanning
	SessionDiscovered
	SessionConnecting
	SessionDiscoveringServices
	SessionSubscribing
	SessionReady
	SessionDisconnected
	SessionFaulted
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionScanning:
		return "scanning"
	case SessionDiscovered:
		return "discovered"
	case SessionConnecting:
		return "connecting"
	case SessionDiscoveringServices:
		return "discovering-services"
	case SessionSubscribing:
		return "subscribing"
	case SessionReady:
		return "ready"
	case SessionDisconnected:
		return "disconnected"
	case SessionFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// discoveryTimeout bounds the scan-until-match wait when a session has
// to find its device before connecting.
const discoveryTimeout = 30 * time.Second

// pendingCommand is the single waiter slot for a command response. The
// protocol is strict request/response: the slot holds at most one
// command, and the response channel is buffered so delivery never
// blocks the notification path.
type pendingCommand struct {
	expect byte
	resp   chan []byte
}

// Session is one addressable sensor and its connection lifecycle.
//
// A session is single-use: after a disconnect, whether locally
// initiated or because the remote dropped the link, the session is
// finished and a fresh one must be created to reconnect. Characteristic
// handles from a previous connection are never reused.
type Session struct {
	adapter Adapter
	scanner *Scanner

	mu         sync.Mutex
	state      SessionState
	addr       string
	name       string
	conn       Connection
	writeChar  Characteristic
	notifyChar Characteristic
	pending    *pendingCommand
	dataFrame  []byte // cached poll response, see poll.go

	// disconnected is closed exactly once, on the first disconnect,
	// releasing every operation suspended on an event.
	disconnected chan struct{}
}

// NewSession creates a session for the sensor at addr. addr must be
// normalized (see NormalizeAddress); it may be empty, in which case
// Connect adopts the first ThermSmart device discovered.
func NewSession(adapter Adapter, addr string) *Session {
	return &Session{
		adapter:      adapter,
		scanner:      NewScanner(adapter),
		state:        SessionIdle,
		addr:         addr,
		disconnected: make(chan struct{}),
	}
}

// Addr returns the device address, empty until discovery resolves it.
func (s *Session) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect brings the session to Ready: discover the device, connect,
// resolve the write and notify characteristics, subscribe. Idempotent
// once Ready. A disconnect event arriving at any point before Ready
// cancels the in-flight connect with ErrUnexpectedDisconnect instead of
// leaving it hanging.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case SessionReady:
		s.mu.Unlock()
		return nil
	case SessionDisconnected, SessionFaulted:
		s.mu.Unlock()
		return ErrSessionClosed
	case SessionIdle:
	default:
		s.mu.Unlock()
		return fmt.Errorf("ble: connect already in progress")
	}
	s.state = SessionScanning
	addr := s.addr
	s.mu.Unlock()

	dev, err := s.discover(ctx, addr)
	if err != nil {
		s.setState(SessionIdle)
		return err
	}
	s.mu.Lock()
	s.addr = dev.Address
	s.name = dev.Name
	s.mu.Unlock()
	s.setState(SessionDiscovered)

	s.setState(SessionConnecting)
	conn, err := s.adapter.Connect(ctx, dev.Address)
	if err != nil {
		s.setState(SessionIdle)
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	conn.OnDisconnect(func() { s.handleDisconnect(true) })
	if err := s.interrupted(); err != nil {
		return err
	}

	s.setState(SessionDiscoveringServices)
	writeChar, err := conn.DiscoverCharacteristic(ServiceUUID, WriteCharUUID)
	if err != nil {
		return s.fault(fmt.Errorf("%w: write characteristic: %v", ErrProtocolMismatch, err))
	}
	notifyChar, err := conn.DiscoverCharacteristic(ServiceUUID, NotifyCharUUID)
	if err != nil {
		return s.fault(fmt.Errorf("%w: notify characteristic: %v", ErrProtocolMismatch, err))
	}
	if err := s.interrupted(); err != nil {
		return err
	}

	s.setState(SessionSubscribing)
	if err := notifyChar.Subscribe(s.handleNotify); err != nil {
		return s.fault(fmt.Errorf("%w: %w", ErrSubscribeFailed, err))
	}
	if err := s.interrupted(); err != nil {
		return err
	}

	s.mu.Lock()
	s.writeChar = writeChar
	s.notifyChar = notifyChar
	s.state = SessionReady
	s.mu.Unlock()
	slog.Info("[BLE] session ready", "addr", dev.Address, "name", dev.Name)
	return nil
}

// Write issues one command frame. When expect is protocol.RespNone the
// call resolves on the radio-level write acknowledgement. Otherwise the
// response listener is registered before the write goes out, and the
// call resolves with the first notification whose leading byte equals
// expect; notifications that don't match are unrelated channel traffic
// and are discarded, not failed on.
//
// One command may be outstanding per session. An overlapping call is a
// contract violation and fails fast with ErrCommandInFlight.
func (s *Session) Write(ctx context.Context, payload []byte, expect byte) ([]byte, error) {
	s.mu.Lock()
	if s.state != SessionReady {
		st := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("ble: write requires a ready session, state is %s", st)
	}
	writeChar := s.writeChar

	if expect == protocol.RespNone {
		s.mu.Unlock()
		if err := writeChar.Write(payload); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		return nil, nil
	}

	if s.pending != nil {
		s.mu.Unlock()
		return nil, ErrCommandInFlight
	}
	p := &pendingCommand{expect: expect, resp: make(chan []byte, 1)}
	s.pending = p
	s.mu.Unlock()

	if err := writeChar.Write(payload); err != nil {
		s.clearPending(p)
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	select {
	case resp := <-p.resp:
		return resp, nil
	case <-s.disconnected:
		// A response delivered just before the link dropped still
		// counts.
		select {
		case resp := <-p.resp:
			return resp, nil
		default:
		}
		return nil, ErrUnexpectedDisconnect
	case <-ctx.Done():
		s.clearPending(p)
		return nil, ctx.Err()
	}
}

// ReadTime reads the device clock.
func (s *Session) ReadTime(ctx context.Context) (time.Time, error) {
	resp, err := s.Write(ctx, []byte{protocol.OpTimeRead}, protocol.OpTimeRead)
	if err != nil {
		return time.Time{}, err
	}
	return protocol.DecodeTime(resp[1:])
}

// SyncTime sets the device clock to now. The device confirms with the
// read-time response code.
func (s *Session) SyncTime(ctx context.Context, now time.Time) error {
	payload, err := protocol.EncodeTime(now)
	if err != nil {
		return err
	}
	frame := append([]byte{protocol.OpTimeSet}, payload...)
	_, err = s.Write(ctx, frame, protocol.OpTimeRead)
	return err
}

// Identify triggers the physical indicator on the device.
// Fire-and-forget: no response is expected.
func (s *Session) Identify(ctx context.Context) error {
	_, err := s.Write(ctx, []byte{protocol.OpIdentify}, protocol.RespNone)
	return err
}

// Close disconnects cleanly and finishes the session.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Disconnect()
	}
	s.handleDisconnect(false)
	return nil
}

// discover runs a discovery-only scan for the target address, or the
// first ThermSmart device when no address is set.
func (s *Session) discover(ctx context.Context, addr string) (Device, error) {
	scanCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	var (
		mu    sync.Mutex
		found Device
		ok    bool
	)
	err := s.scanner.ScanDevices(scanCtx, func(dev Device) {
		mu.Lock()
		defer mu.Unlock()
		if ok || (addr != "" && dev.Address != addr) {
			return
		}
		found, ok = dev, true
		cancel()
	})

	mu.Lock()
	defer mu.Unlock()
	if ok {
		return found, nil
	}
	if err != nil && scanCtx.Err() == nil {
		return Device{}, err
	}
	if ctx.Err() != nil {
		return Device{}, ctx.Err()
	}
	return Device{}, fmt.Errorf("%w: device %q not found", ErrConnectFailed, addr)
}

// interrupted reports a disconnect that arrived between connect phases.
func (s *Session) interrupted() error {
	select {
	case <-s.disconnected:
		return ErrUnexpectedDisconnect
	default:
		return nil
	}
}

// handleDisconnect folds a disconnect, local or remote, into the
// session: handles are cleared, the state goes terminal, and any
// operation suspended on an event is released to fail rather than hang.
func (s *Session) handleDisconnect(remote bool) {
	s.mu.Lock()
	if s.state == SessionDisconnected {
		s.mu.Unlock()
		return
	}
	wasReady := s.state == SessionReady
	addr := s.addr
	s.state = SessionDisconnected
	s.conn = nil
	s.writeChar = nil
	s.notifyChar = nil
	s.pending = nil
	s.dataFrame = nil
	close(s.disconnected)
	s.mu.Unlock()

	if remote && wasReady {
		slog.Warn("[BLE] device dropped the link", "addr", addr)
	}
}

// handleNotify matches a notification against the pending command. The
// poll response frame is additionally cached for the lifetime of the
// connection (see poll.go).
func (s *Session) handleNotify(data []byte) {
	payload := make([]byte, len(data))
	copy(payload, data)

	s.mu.Lock()
	if len(payload) > 0 && payload[0] == protocol.OpGetData {
		s.dataFrame = payload
	}
	p := s.pending
	if p == nil || len(payload) == 0 || payload[0] != p.expect {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.mu.Unlock()
	p.resp <- payload
}

func (s *Session) clearPending(p *pendingCommand) {
	s.mu.Lock()
	if s.pending == p {
		s.pending = nil
	}
	s.mu.Unlock()
}

// setState advances the lifecycle unless a disconnect already went
// terminal; Disconnected and Faulted are never left.
func (s *Session) setState(st SessionState) {
	s.mu.Lock()
	if s.state != SessionDisconnected && s.state != SessionFaulted {
		s.state = st
	}
	s.mu.Unlock()
}

// fault unwinds a failed connect attempt: drop the link and mark the
// session unusable.
func (s *Session) fault(err error) error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.writeChar = nil
	s.notifyChar = nil
	if s.state != SessionDisconnected {
		s.state = SessionFaulted
	}
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Disconnect()
	}
	return err
}
