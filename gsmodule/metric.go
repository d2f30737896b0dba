package gsmodule

import (
	"sync/atomic"
)

// ModuleMetrics contains atomic counters of one Module.
// Each field can back a prometheus CounterFunc or GaugeFunc.
type ModuleMetrics struct {
	// CommandCount is the number of commands issued.
	CommandCount atomic.Uint64
	// CommandErrCount is the number of commands the module did not confirm.
	CommandErrCount atomic.Uint64

	// ConnOpenCount is the number of connections registered.
	ConnOpenCount atomic.Uint64
	// ConnCloseCount is the number of connections released.
	ConnCloseCount atomic.Uint64
	// ActiveConnGauge is the number of connections currently in the table.
	ActiveConnGauge atomic.Int64

	// TLSHandshakeCount is the number of successful TLS handshakes.
	TLSHandshakeCount atomic.Uint64
	// TLSHandshakeErrCount is the number of failed TLS handshakes.
	TLSHandshakeErrCount atomic.Uint64

	// DataWriteCount is the number of data frames written.
	DataWriteCount atomic.Uint64
	// DataWriteBytes is the number of payload bytes written.
	DataWriteBytes atomic.Uint64

	// EventCount is the number of unsolicited events handled.
	EventCount atomic.Uint64

	// NCMAssociateAttempts is the number of association attempts seen by the NCM.
	NCMAssociateAttempts atomic.Uint64
	// NCMConnectAttempts is the number of connection attempts seen by the NCM.
	NCMConnectAttempts atomic.Uint64
}

func (m *ModuleMetrics) incCommandCount() {
	m.CommandCount.Add(1)
}

func (m *ModuleMetrics) incCommandErrCount() {
	m.CommandErrCount.Add(1)
}

func (m *ModuleMetrics) connOpened() {
	m.ConnOpenCount.Add(1)
	m.ActiveConnGauge.Add(1)
}

func (m *ModuleMetrics) connClosed() {
	m.ConnCloseCount.Add(1)
	m.ActiveConnGauge.Add(-1)
}

func (m *ModuleMetrics) incTLSHandshake(ok bool) {
	if ok {
		m.TLSHandshakeCount.Add(1)
	} else {
		m.TLSHandshakeErrCount.Add(1)
	}
}

func (m *ModuleMetrics) addDataWrite(n int) {
	m.DataWriteCount.Add(1)
	m.DataWriteBytes.Add(uint64(n))
}

func (m *ModuleMetrics) incEventCount() {
	m.EventCount.Add(1)
}

func (m *ModuleMetrics) incNCMAssociateAttempts() {
	m.NCMAssociateAttempts.Add(1)
}

func (m *ModuleMetrics) incNCMConnectAttempts() {
	m.NCMConnectAttempts.Add(1)
}
