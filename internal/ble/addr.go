package ble

import "strings"

// NormalizeAddress canonicalizes a device address to lower-case hex with
// separators stripped: "AA:BB:CC:DD:EE:FF" and "aabbccddeeff" come out
// identical. Idempotent. Every entry point that accepts an address
// (config allowlist, CLI flags) must pass it through here before it
// reaches the core, or a valid device will silently be filtered out.
func NormalizeAddress(addr string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '-', '.', ' ':
			return -1
		}
		return r
	}, strings.ToLower(addr))
}
