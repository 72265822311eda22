// Package serialport provides a simplserial.Transport over a physical serial port.
//
// Serial drivers block a read until data arrives or an inter-character timer
// expires (at best 100ms on POSIX systems). The bus polls its transport and
// expects reads to return immediately, so Port reads the device on a background
// goroutine and serves Read from what has already arrived.
package serialport
