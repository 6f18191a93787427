package ble

import (
	"context"
	"encoding/binary"

	"github.com/alexryd/thermsmart/internal/ble/protocol"
)

// TemperatureData is the single-sensor report produced by the legacy
// direct-poll path: the raw poll response frame narrowed through the
// same byte-offset transforms the advertisement decoder uses.
//
// This connection-oriented path serves setups that never decode
// advertisements, so it stays independent of the scan pipeline.
type TemperatureData struct {
	frame []byte // response frame, leading opcode included
}

// LoadTemperatureData connects if needed, polls the sensor once, and
// returns its report. The response frame is cached for the lifetime of
// the connection, so repeated calls answer without another radio round
// trip.
func (s *Session) LoadTemperatureData(ctx context.Context) (*TemperatureData, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	cached := s.dataFrame
	s.mu.Unlock()
	if cached != nil {
		return &TemperatureData{frame: cached}, nil
	}

	resp, err := s.Write(ctx, []byte{protocol.OpGetData}, protocol.OpGetData)
	if err != nil {
		return nil, err
	}
	return &TemperatureData{frame: resp}, nil
}

// The response frame mirrors the advertisement reading payload, shifted
// one byte past the echoed opcode.
const pollHeaderLen = 1

// IndoorTemperature returns the indoor temperature in °C.
func (d *TemperatureData) IndoorTemperature() (float64, bool) {
	if len(d.frame) < pollHeaderLen+2 {
		return 0, false
	}
	raw := binary.LittleEndian.Uint16(d.frame[pollHeaderLen:])
	return protocol.DecodeTemperature(raw), true
}

// Humidity returns the relative humidity in percent.
func (d *TemperatureData) Humidity() (int, bool) {
	if len(d.frame) < pollHeaderLen+3 {
		return 0, false
	}
	return protocol.DecodeHumidity(d.frame[pollHeaderLen+2]), true
}

// OutdoorTemperature returns the outdoor probe temperature in °C, or
// false when no probe is attached.
func (d *TemperatureData) OutdoorTemperature() (float64, bool) {
	if len(d.frame) < pollHeaderLen+5 {
		return 0, false
	}
	raw := binary.LittleEndian.Uint16(d.frame[pollHeaderLen+3:])
	if raw == protocol.OutdoorAbsent {
		return 0, false
	}
	return protocol.DecodeTemperature(raw), true
}
