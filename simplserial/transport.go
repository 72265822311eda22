package simplserial

// Transport is the byte stream a Bus exchanges frames over.
//
// Read must not block: it returns 0, nil when no byte is available. Write blocks
// until p is queued for transmission. Either may fail with a transport error,
// which the Bus reports as StatePortError.
type Transport interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
}
