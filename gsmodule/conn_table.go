package gsmodule

import (
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/arloliu/go-gswifi/atcmd"
	"github.com/arloliu/go-gswifi/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// CID is a module-assigned connection identifier.
type CID = atcmd.CID

// InvalidCID is returned by every connection operation that fails.
const InvalidCID = atcmd.InvalidCID

// ConnKind distinguishes the kinds of connection the module can hold.
type ConnKind uint8

const (
	KindTCPClient ConnKind = iota
	KindUDPClient
	KindTCPServer
	KindUDPServer
	// KindTCPAccepted is a peer accepted on a listening TCP cid.
	KindTCPAccepted
)

func (k ConnKind) String() string {
	switch k {
	case KindTCPClient:
		return "tcp-client"
	case KindUDPClient:
		return "udp-client"
	case KindTCPServer:
		return "tcp-server"
	case KindUDPServer:
		return "udp-server"
	case KindTCPAccepted:
		return "tcp-accepted"
	default:
		return "unknown"
	}
}

// Protocol returns the transport protocol of the connection.
func (k ConnKind) Protocol() atcmd.Protocol {
	if k == KindUDPClient || k == KindUDPServer {
		return atcmd.ProtocolUDP
	}

	return atcmd.ProtocolTCP
}

// ConnInfo is a snapshot of one connection table entry.
type ConnInfo struct {
	CID       CID
	Kind      ConnKind
	State     ConnState
	Remote    netip.AddrPort // zero for listeners
	LocalPort uint16         // zero when chosen by the module
	Parent    CID            // listening cid for accepted peers, InvalidCID otherwise
	CertName  string         // CA certificate of a secured connection
	OpenedAt  time.Time
}

// ConnTable tracks the connections of one module.
//
// Entries exist only for cids in a non-closed state; a cid that is absent
// is Closed and may be handed out again by the module.
type ConnTable struct {
	conns    *xsync.MapOf[CID, ConnInfo]
	logger   logger.Logger
	metrics  *ModuleMetrics
	mu       sync.RWMutex
	handlers []ConnStateChangeHandler
}

func newConnTable(l logger.Logger, metrics *ModuleMetrics) *ConnTable {
	return &ConnTable{
		conns:   xsync.NewMapOf[CID, ConnInfo](),
		logger:  l,
		metrics: metrics,
	}
}

// AddHandler registers handlers invoked on every state change.
func (t *ConnTable) AddHandler(handlers ...ConnStateChangeHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handlers = append(t.handlers, handlers...)
}

// State returns the state of cid, ConnClosed if it is not in the table.
func (t *ConnTable) State(cid CID) ConnState {
	info, ok := t.conns.Load(cid)
	if !ok {
		return ConnClosed
	}

	return info.State
}

// Get returns the entry of cid.
func (t *ConnTable) Get(cid CID) (ConnInfo, bool) {
	return t.conns.Load(cid)
}

// Len returns the number of connections in the table.
func (t *ConnTable) Len() int {
	return t.conns.Size()
}

// List returns all entries ordered by cid.
func (t *ConnTable) List() []ConnInfo {
	list := make([]ConnInfo, 0, t.conns.Size())
	t.conns.Range(func(_ CID, info ConnInfo) bool {
		list = append(list, info)
		return true
	})
	sort.Slice(list, func(i, j int) bool { return list[i].CID < list[j].CID })

	return list
}

// register stores a freshly opened connection in state ConnOpen.
// A stale entry for the same cid is replaced: the module only reuses a cid
// after closing it, so the closure event was missed.
func (t *ConnTable) register(info ConnInfo) {
	info.State = ConnOpen
	if info.OpenedAt.IsZero() {
		info.OpenedAt = time.Now()
	}

	prev, loaded := t.conns.LoadAndStore(info.CID, info)
	if loaded {
		t.logger.Warn("connection id reused without closure", "cid", info.CID, "prevKind", prev.Kind, "prevState", prev.State)
		t.invokeHandlers(info.CID, prev.State, ConnClosed)
		t.metrics.connClosed()
	}

	t.metrics.connOpened()
	t.logger.Info("connection opened", "cid", info.CID, "kind", info.Kind, "remote", info.Remote)
	t.invokeHandlers(info.CID, ConnClosed, ConnOpen)
}

// transition moves cid from one of the expected states to newState and
// returns the state it left.
func (t *ConnTable) transition(cid CID, newState ConnState, expected ...ConnState) (ConnState, error) {
	var (
		prevState ConnState
		err       error
	)

	t.conns.Compute(cid, func(info ConnInfo, loaded bool) (ConnInfo, bool) {
		if !loaded {
			err = ErrConnNotOpen
			return info, true
		}

		prevState = info.State
		if !stateIn(prevState, expected) || !canTransition(prevState, newState) {
			err = fmt.Errorf("%w: cid %s %s -> %s", ErrInvalidTransition, cid, prevState, newState)
			return info, false
		}

		if newState == ConnClosed {
			return info, true
		}
		info.State = newState

		return info, false
	})

	if err != nil {
		return prevState, err
	}

	if newState == ConnClosed {
		t.metrics.connClosed()
	}
	t.logger.Debug("connection state changed", "cid", cid, "prevState", prevState, "newState", newState)
	t.invokeHandlers(cid, prevState, newState)

	return prevState, nil
}

// setCert records the CA certificate used to secure cid.
func (t *ConnTable) setCert(cid CID, certName string) {
	t.conns.Compute(cid, func(info ConnInfo, loaded bool) (ConnInfo, bool) {
		if !loaded {
			return info, true
		}
		info.CertName = certName

		return info, false
	})
}

// release removes cid regardless of its state and reports whether it was present.
func (t *ConnTable) release(cid CID, reason string) bool {
	info, loaded := t.conns.LoadAndDelete(cid)
	if !loaded {
		return false
	}

	t.metrics.connClosed()
	t.logger.Info("connection released", "cid", cid, "reason", reason, "prevState", info.State)
	t.invokeHandlers(cid, info.State, ConnClosed)

	return true
}

func (t *ConnTable) invokeHandlers(cid CID, prevState ConnState, newState ConnState) {
	t.mu.RLock()
	handlers := t.handlers
	t.mu.RUnlock()

	for _, handler := range handlers {
		if handler != nil {
			handler(cid, prevState, newState)
		}
	}
}

func stateIn(state ConnState, states []ConnState) bool {
	if len(states) == 0 {
		return true
	}

	for _, s := range states {
		if s == state {
			return true
		}
	}

	return false
}
