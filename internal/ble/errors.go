package ble

import "errors"

// Failure taxonomy. Callers match with errors.Is; the underlying radio
// cause stays wrapped so the caller can decide on a retry. The core
// itself never retries.
var (
	// ErrRadioUnavailable: the radio never powered on within the bound.
	ErrRadioUnavailable = errors.New("ble: radio unavailable")

	// ErrRadioStateChanged: the radio left the powered-on state while
	// an operation was running. Listeners are torn down before this is
	// returned.
	ErrRadioStateChanged = errors.New("ble: radio state changed")

	ErrConnectFailed   = errors.New("ble: connect failed")
	ErrSubscribeFailed = errors.New("ble: subscribe failed")
	ErrWriteFailed     = errors.New("ble: write failed")

	// ErrProtocolMismatch: the expected characteristics are absent;
	// wrong device or firmware.
	ErrProtocolMismatch = errors.New("ble: expected characteristics missing")

	// ErrUnexpectedDisconnect: the remote closed the link while an
	// operation was in flight. Distinct from a clean disconnect so
	// callers can decide to reconnect.
	ErrUnexpectedDisconnect = errors.New("ble: device disconnected unexpectedly")

	// ErrCommandInFlight: a second command was issued while one was
	// outstanding. The protocol is strict request/response; callers
	// must serialize commands.
	ErrCommandInFlight = errors.New("ble: command already in flight")

	// ErrScanActive: a scan was started while one was already running.
	// The radio is single-owner; arbitration belongs to the caller.
	ErrScanActive = errors.New("ble: scan already active")

	// ErrSessionClosed: the session already disconnected or faulted.
	// Sessions are single-use; create a fresh one to reconnect.
	ErrSessionClosed = errors.New("ble: session closed")
)
