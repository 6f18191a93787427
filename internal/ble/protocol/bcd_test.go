package protocol

import "testing"

func TestBCDRoundTrip(t *testing.T) {
	for v := 0; v <= 99; v++ {
		b, err := EncodeBCD(v)
		if err != nil {
			t.Fatalf("EncodeBCD(%d) error = %v", v, err)
		}
		if got := DecodeBCD(b); got != v {
			t.Errorf("DecodeBCD(EncodeBCD(%d)) = %d", v, got)
		}
	}
}

func TestEncodeBCDKnownValues(t *testing.T) {
	tests := []struct {
		v    int
		want byte
	}{
		{0, 0x00},
		{7, 0x07},
		{10, 0x10},
		{42, 0x42},
		{99, 0x99},
	}
	for _, tt := range tests {
		b, err := EncodeBCD(tt.v)
		if err != nil {
			t.Fatalf("EncodeBCD(%d) error = %v", tt.v, err)
		}
		if b != tt.want {
			t.Errorf("EncodeBCD(%d) = 0x%02x, want 0x%02x", tt.v, b, tt.want)
		}
	}
}

func TestEncodeBCDOutOfRange(t *testing.T) {
	for _, v := range []int{-1, 100, 255} {
		if _, err := EncodeBCD(v); err == nil {
			t.Errorf("EncodeBCD(%d) should fail", v)
		}
	}
}
