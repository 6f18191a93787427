package protocol

import (
	"reflect"
	"testing"
)

// frame builds a manufacturer data blob: company id (LE), address echo
// (LE), payload.
func frame(payload ...byte) []byte {
	data := []byte{0x33, 0x01, 0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa}
	return append(data, payload...)
}

func TestParseFrameAddressEcho(t *testing.T) {
	addr, payload, err := ParseFrame(frame(0x90, 0x31, 0x34))
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if addr != "aabbccddeeff" {
		t.Errorf("addr = %q, want %q", addr, "aabbccddeeff")
	}
	if len(payload) != 3 {
		t.Errorf("payload length = %d, want 3", len(payload))
	}
}

func TestParseFrameTooShort(t *testing.T) {
	// Header alone, no payload byte.
	_, _, err := ParseFrame([]byte{0x33, 0x01, 0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa})
	if err == nil {
		t.Error("ParseFrame() should reject an 8-byte frame")
	}
}

func TestParseFrameCompanyMismatch(t *testing.T) {
	data := frame(0x90, 0x31)
	data[0], data[1] = 0x4c, 0x00 // Apple, not ThermSmart
	if _, _, err := ParseFrame(data); err == nil {
		t.Error("ParseFrame() should reject a foreign company id")
	}
}

func TestDecodeTemperature(t *testing.T) {
	tests := []struct {
		raw  uint16
		want float64
	}{
		{0x3000, 0.0},
		{0x3190, 20.0}, // 0x190 = 400 units = 20 °C
		{0x2fec, -1.0},
		{0x3005, 0.25},
	}
	for _, tt := range tests {
		if got := DecodeTemperature(tt.raw); got != tt.want {
			t.Errorf("DecodeTemperature(0x%04x) = %g, want %g", tt.raw, got, tt.want)
		}
	}
}

func TestDecodeHumidity(t *testing.T) {
	tests := []struct {
		raw  byte
		want int
	}{
		{0x00, 0},
		{0x34, 34}, // hex digits read as decimal, not 52
		{0x2c, 28}, // out-of-range digit folded back, not 44
		{0x99, 99},
	}
	for _, tt := range tests {
		if got := DecodeHumidity(tt.raw); got != tt.want {
			t.Errorf("DecodeHumidity(0x%02x) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestDecodeReadingsFullPayload(t *testing.T) {
	// indoor 20.0 °C, humidity 34%, outdoor 15.0 °C, battery 95%
	payload := []byte{0x90, 0x31, 0x34, 0x2c, 0x31, 0x5f}
	want := []Reading{
		{Kind: ReadingTemperature, Sensor: SensorIndoor, Value: 20.0, Symbol: "°C"},
		{Kind: ReadingHumidity, Sensor: SensorIndoor, Value: 34, Symbol: "%"},
		{Kind: ReadingTemperature, Sensor: SensorOutdoor, Value: 15.0, Symbol: "°C"},
		{Kind: ReadingBatteryLevel, Value: 95, Symbol: "%"},
	}
	got := DecodeReadings(payload)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeReadings() = %v, want %v", got, want)
	}
}

func TestDecodeReadingsOutdoorProbeAbsent(t *testing.T) {
	payload := []byte{0x90, 0x31, 0x34, 0xff, 0xff, 0x5f}
	for _, r := range DecodeReadings(payload) {
		if r.Sensor == SensorOutdoor {
			t.Errorf("DecodeReadings() produced outdoor reading %v for absent probe", r)
		}
	}
}

func TestDecodeReadingsShortPayload(t *testing.T) {
	if got := DecodeReadings([]byte{0x90}); len(got) != 0 {
		t.Errorf("DecodeReadings(1 byte) = %v, want none", got)
	}

	// Indoor temperature and humidity fit, the rest is cut off.
	got := DecodeReadings([]byte{0x90, 0x31, 0x34})
	if len(got) != 2 {
		t.Fatalf("DecodeReadings(3 bytes) produced %d readings, want 2", len(got))
	}
	if got[0].Kind != ReadingTemperature || got[1].Kind != ReadingHumidity {
		t.Errorf("DecodeReadings(3 bytes) = %v, want indoor temperature then humidity", got)
	}
}

func TestDecodeReadingsDeterministic(t *testing.T) {
	payload := []byte{0x90, 0x31, 0x34, 0x2c, 0x31, 0x5f}
	first := DecodeReadings(payload)
	second := DecodeReadings(payload)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("DecodeReadings() not deterministic: %v vs %v", first, second)
	}
}
