package simplserial

import "github.com/sigurn/crc16"

// The SimplSerial checksum is CRC-16/MODBUS: reflected polynomial 0xA001
// (0x8005 unreflected), initial value 0xFFFF, no final XOR.
var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// crcState is a running checksum owned by a single encode or decode pass.
type crcState struct {
	v uint16
}

func newCRC() crcState {
	return crcState{v: crc16.Init(crcTable)}
}

// update folds one byte into the running checksum.
func (c *crcState) update(b byte) {
	c.v = crc16.Update(c.v, []byte{b}, crcTable)
}

// sum returns the checksum of every byte folded in so far.
func (c crcState) sum() uint16 {
	return crc16.Complete(c.v, crcTable)
}

// Checksum returns the SimplSerial checksum of data.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
