package ble

import "testing"

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"AA:BB:CC:DD:EE:FF", "aabbccddeeff"},
		{"aa-bb-cc-dd-ee-ff", "aabbccddeeff"},
		{"aabb.ccdd.eeff", "aabbccddeeff"},
		{"aa bb cc dd ee ff", "aabbccddeeff"},
		{"aabbccddeeff", "aabbccddeeff"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeAddress(tc.in); got != tc.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if got := NormalizeAddress(NormalizeAddress(tc.in)); got != tc.want {
			t.Errorf("NormalizeAddress not idempotent for %q", tc.in)
		}
	}
}
