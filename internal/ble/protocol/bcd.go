package protocol

import "fmt"

// EncodeBCD packs a value in 0-99 into one byte, tens in the high
// nibble, ones in the low nibble. Values outside the range are rejected.
func EncodeBCD(v int) (byte, error) {
	if v < 0 || v > 99 {
		return 0, fmt.Errorf("protocol: value %d out of BCD range 0-99", v)
	}
	return byte(v/10<<4 | v%10), nil
}

// DecodeBCD unpacks a BCD byte. Inverse of EncodeBCD for 0-99.
func DecodeBCD(b byte) int {
	return int(b>>4)*10 + int(b&0x0f)
}
