// Package simulator emulates SimplSerial field devices sharing one line.
//
// A Bus implements simplserial.Transport: frames written by the master are
// decoded by every simulated device, and replies become readable after a
// configurable delay. Devices answer discovery, address assignment and
// device-information requests, and run a Handler for every other command.
//
// Discovery replies are placed in time slots derived from the discovery seed and
// the device GUID. With collisions enabled, replies sharing a slot are interleaved
// byte by byte, producing the garbled frames a real shared line would carry.
package simulator
