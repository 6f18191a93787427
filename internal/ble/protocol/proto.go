// Package protocol implements the pure codecs for the ThermSmart BLE
// protocol: advertisement reading frames, command opcodes, and the BCD
// time payload. Nothing in this package touches the radio.
package protocol

// CompanyID is the manufacturer identifier leading every ThermSmart
// advertisement frame (little-endian on the wire).
const CompanyID uint16 = 0x0133

// Command opcodes. A command frame is the opcode followed by its
// arguments; a response frame echoes the eliciting command's response
// code in its first byte.
const (
	OpGetData  byte = 0x07 // poll current readings, response 0x07
	OpTimeRead byte = 0x08 // response 0x08
	OpTimeSet  byte = 0x09 // device confirms with the OpTimeRead code
	OpIdentify byte = 0x0a // blink the display, no response
)

// RespNone marks a command that completes on write acknowledgement
// alone, with no notification expected.
const RespNone byte = 0x00
