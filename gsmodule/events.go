package gsmodule

import (
	"github.com/arloliu/go-gswifi/atcmd"
)

// EventHandler receives the unsolicited events handled by HandleEvents.
// It is called synchronously after the connection table and the network
// connection manager have been updated.
type EventHandler func(ev atcmd.Event)

// AddEventHandler registers handlers invoked for every handled event.
func (m *Module) AddEventHandler(handlers ...EventHandler) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()

	m.eventHandlers = append(m.eventHandlers, handlers...)
}

// HandleEvents drains the events buffered by the transport and applies
// them. It returns the number of events handled.
//
// A DISCONNECT releases the cid. A CONNECT registers a peer accepted on a
// listening cid, or a connection opened by the module's own manager.
func (m *Module) HandleEvents() int {
	var events []atcmd.Event

	m.cmdMu.Lock()
	for {
		ev, ok := m.tr.ReadBufferedEvent()
		if !ok {
			break
		}
		events = append(events, ev)
	}
	m.cmdMu.Unlock()

	for _, ev := range events {
		m.dispatch(ev)
	}

	return len(events)
}

func (m *Module) dispatch(ev atcmd.Event) {
	m.metrics.incEventCount()
	m.logger.Debug("event received", "kind", ev.Kind, "cid", ev.CID, "raw", ev.Raw)

	switch ev.Kind {
	case atcmd.EventDisconnect:
		m.conns.release(ev.CID, "closed by module")

	case atcmd.EventConnected:
		switch {
		case !ev.CID.IsValid():
		case ev.Parent == InvalidCID && !m.ncm.moduleDriven():
			m.logger.Warn("connection without owner ignored", "cid", ev.CID)
		default:
			m.conns.register(m.connectedInfo(ev))
		}

	case atcmd.EventConnectFailed:
		if ev.CID.IsValid() {
			m.conns.release(ev.CID, "socket failure")
		}
	}

	m.ncm.onEvent(ev)

	m.handlerMu.RLock()
	handlers := m.eventHandlers
	m.handlerMu.RUnlock()

	for _, handler := range handlers {
		if handler != nil {
			handler(ev)
		}
	}
}

// connectedInfo builds the table entry of a connection opened without a
// command.
func (m *Module) connectedInfo(ev atcmd.Event) ConnInfo {
	info := ConnInfo{CID: ev.CID, Parent: ev.Parent}

	if ev.Parent != InvalidCID {
		info.Kind = KindTCPAccepted
		if parent, ok := m.conns.Get(ev.Parent); ok {
			info.LocalPort = parent.LocalPort
		}

		return info
	}

	info.Kind = KindTCPClient
	if target := m.CurrentConfig().AutoConnect; target != nil {
		switch {
		case target.Server && target.Protocol == atcmd.ProtocolUDP:
			info.Kind = KindUDPServer
		case target.Server:
			info.Kind = KindTCPServer
		case target.Protocol == atcmd.ProtocolUDP:
			info.Kind = KindUDPClient
		}
	}

	return info
}
