// Package simplserial implements the master side of the SimplSerial protocol, a
// half-duplex, addressed request/response protocol for field devices sharing a
// single serial line.
//
// # Wire Format
//
// A frame is a sequence of payload bytes wrapped in control sequences. The marker
// byte 0x98 introduces a two-byte control sequence; a payload byte equal to the
// marker is stuffed as "98 00" so it cannot be mistaken for one.
//
// Request frames, written by the master:
//
//	00 98 01 | addrHi addrLo command data... | crcHi crcLo | 98 02 00
//
// Response frames, written by devices:
//
//	98 03 | addrHi addrLo result data... | crcHi crcLo | 98 04
//
// The checksum is CRC-16/MODBUS (reflected polynomial 0xA001, initial value
// 0xFFFF) over the payload bytes only, transmitted big-endian. All multi-byte
// fields are big-endian.
//
// The master's receive path completes a frame on control code 0x04 and restarts
// one on 0x03; it never sees the request end code 0x02. Devices terminate their
// replies with 0x04, which is what [EncodeResponse] produces.
//
// # Exchanges
//
// A [Bus] owns one [Transport] and serializes all exchanges on it: only one
// request, or one discovery window, is in flight at a time. Every receive pass is
// bounded by a wall-clock timeout and cannot be aborted otherwise.
//
// # Bus Management
//
// Commands 250-255 are reserved. The package implements discovery ([Bus.Discover],
// command 255), device information ([Bus.DeviceInfo], command 254) and address
// assignment ([Bus.AssignAddress], command 253).
package simplserial
