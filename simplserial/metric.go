package simplserial

import "sync/atomic"

// BusMetrics contains atomic metrics for a Bus.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type BusMetrics struct {
	// FrameSendCount indicates the number of frames written to the transport.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of frames received with a valid checksum.
	FrameRecvCount atomic.Uint64
	// ChecksumErrCount indicates the number of frames rejected by checksum.
	ChecksumErrCount atomic.Uint64
	// OverflowCount indicates the number of frames discarded for exceeding the buffer.
	OverflowCount atomic.Uint64
	// TimeoutCount indicates the number of receive passes that timed out.
	TimeoutCount atomic.Uint64
	// PortErrCount indicates the number of transport read or write failures.
	PortErrCount atomic.Uint64
	// RetryCount indicates the number of request attempts repeated after a failure.
	RetryCount atomic.Uint64
	// DiscoveredCount indicates the number of distinct devices found by discovery.
	DiscoveredCount atomic.Uint64
}

func (m *BusMetrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *BusMetrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *BusMetrics) incChecksumErrCount() {
	m.ChecksumErrCount.Add(1)
}

func (m *BusMetrics) incOverflowCount() {
	m.OverflowCount.Add(1)
}

func (m *BusMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *BusMetrics) incPortErrCount() {
	m.PortErrCount.Add(1)
}

func (m *BusMetrics) incRetryCount() {
	m.RetryCount.Add(1)
}

func (m *BusMetrics) addDiscoveredCount(n int) {
	m.DiscoveredCount.Add(uint64(n)) //nolint:gosec // n is a slice length
}
