package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// ReadingKind identifies what a Reading measures.
type ReadingKind int

const (
	ReadingTemperature ReadingKind = iota
	ReadingHumidity
	ReadingBatteryLevel
)

func (k ReadingKind) String() string {
	switch k {
	case ReadingTemperature:
		return "temperature"
	case ReadingHumidity:
		return "humidity"
	case ReadingBatteryLevel:
		return "battery-level"
	default:
		return fmt.Sprintf("ReadingKind(%d)", int(k))
	}
}

// Sensor tags a reading with the physical unit that produced it.
// SensorNone marks device-wide readings such as battery level.
type Sensor int

const (
	SensorNone Sensor = iota
	SensorIndoor
	SensorOutdoor
)

func (s Sensor) String() string {
	switch s {
	case SensorNone:
		return ""
	case SensorIndoor:
		return "indoor"
	case SensorOutdoor:
		return "outdoor"
	default:
		return fmt.Sprintf("Sensor(%d)", int(s))
	}
}

// Reading is one decoded sensor value. Readings are produced fresh per
// decode and never mutated; their order within a decode reflects the
// payload layout.
type Reading struct {
	Kind   ReadingKind
	Sensor Sensor
	Value  float64
	Symbol string
}

func (r Reading) String() string {
	if r.Sensor == SensorNone {
		return fmt.Sprintf("%s %g%s", r.Kind, r.Value, r.Symbol)
	}
	return fmt.Sprintf("%s %s %g%s", r.Sensor, r.Kind, r.Value, r.Symbol)
}

// Advertisement frame: 2-byte little-endian company id, 6-byte
// little-endian device address echo, then the reading payload.
const (
	frameHeaderLen = 8

	// MinFrameLen is the shortest manufacturer data blob worth
	// decoding: the header plus at least one payload byte.
	MinFrameLen = 9
)

// Reading payload offsets, relative to the end of the frame header.
// Bytes past the battery field vary between firmware revisions and are
// left alone.
const (
	offIndoorTemp  = 0 // uint16 LE
	offHumidity    = 2
	offOutdoorTemp = 3 // uint16 LE
	offBattery     = 5
)

// OutdoorAbsent is broadcast in the outdoor temperature field when no
// outdoor probe is attached.
const OutdoorAbsent uint16 = 0xffff

// ParseFrame validates a manufacturer data blob against the ThermSmart
// frame header and splits it into the echoed device address (normalized
// form) and the reading payload.
func ParseFrame(data []byte) (addr string, payload []byte, err error) {
	if len(data) < MinFrameLen {
		return "", nil, fmt.Errorf("protocol: frame too short: %d bytes", len(data))
	}
	if id := binary.LittleEndian.Uint16(data[0:2]); id != CompanyID {
		return "", nil, fmt.Errorf("protocol: company id 0x%04x, want 0x%04x", id, CompanyID)
	}
	var mac [6]byte
	for i := range mac {
		mac[i] = data[frameHeaderLen-1-i]
	}
	return hex.EncodeToString(mac[:]), data[frameHeaderLen:], nil
}

// DecodeReadings turns a reading payload (a frame minus its header) into
// typed readings in payload order. The decode is pure: same payload,
// same sequence. Fields cut off by a short payload are skipped, not
// guessed at.
func DecodeReadings(payload []byte) []Reading {
	var readings []Reading
	if len(payload) >= offIndoorTemp+2 {
		raw := binary.LittleEndian.Uint16(payload[offIndoorTemp:])
		readings = append(readings, Reading{
			Kind:   ReadingTemperature,
			Sensor: SensorIndoor,
			Value:  DecodeTemperature(raw),
			Symbol: "°C",
		})
	}
	if len(payload) > offHumidity {
		readings = append(readings, Reading{
			Kind:   ReadingHumidity,
			Sensor: SensorIndoor,
			Value:  float64(DecodeHumidity(payload[offHumidity])),
			Symbol: "%",
		})
	}
	if len(payload) >= offOutdoorTemp+2 {
		raw := binary.LittleEndian.Uint16(payload[offOutdoorTemp:])
		if raw != OutdoorAbsent {
			readings = append(readings, Reading{
				Kind:   ReadingTemperature,
				Sensor: SensorOutdoor,
				Value:  DecodeTemperature(raw),
				Symbol: "°C",
			})
		}
	}
	if len(payload) > offBattery {
		readings = append(readings, Reading{
			Kind:   ReadingBatteryLevel,
			Value:  float64(payload[offBattery]),
			Symbol: "%",
		})
	}
	return readings
}

// DecodeTemperature converts a raw little-endian temperature field to
// degrees Celsius: 0x3000 is the zero point, one unit is 0.05 °C.
func DecodeTemperature(raw uint16) float64 {
	return (float64(raw) - 0x3000) / 20.0
}

// DecodeHumidity reads a byte whose hex digits carry the relative
// humidity as a two-digit decimal number: 0x34 means 34%, not 52%.
// Digits above 9 show up on some units and fold back into the decimal
// range, so 0x2c reads as 28%.
func DecodeHumidity(b byte) int {
	hi := int(b >> 4)
	lo := int(b & 0x0f)
	if lo > 9 {
		lo -= 4
	}
	return hi*10 + lo
}
