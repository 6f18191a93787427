package protocol

import (
	"fmt"
	"time"
)

// TimePayloadLen is the length of the BCD time payload carried by the
// time-read response and the time-set command: year offset from 2000,
// month, day, hour, minute, second, one BCD byte each.
const TimePayloadLen = 6

// EncodeTime builds the BCD time payload for a time-set command.
func EncodeTime(t time.Time) ([]byte, error) {
	fields := []int{t.Year() - 2000, int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second()}
	payload := make([]byte, 0, TimePayloadLen)
	for _, f := range fields {
		b, err := EncodeBCD(f)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode time: %w", err)
		}
		payload = append(payload, b)
	}
	return payload, nil
}

// DecodeTime decodes a BCD time payload into a local calendar timestamp.
func DecodeTime(payload []byte) (time.Time, error) {
	if len(payload) < TimePayloadLen {
		return time.Time{}, fmt.Errorf("protocol: time payload too short: %d bytes", len(payload))
	}
	return time.Date(
		2000+DecodeBCD(payload[0]),
		time.Month(DecodeBCD(payload[1])),
		DecodeBCD(payload[2]),
		DecodeBCD(payload[3]),
		DecodeBCD(payload[4]),
		DecodeBCD(payload[5]),
		0, time.Local,
	), nil
}
