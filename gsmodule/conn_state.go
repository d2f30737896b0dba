package gsmodule

// ConnState is the lifecycle state of one connection identifier.
type ConnState uint32

const (
	// ConnClosed is the state of every cid that is not in the table.
	ConnClosed ConnState = iota
	// ConnOpening is reported while a connect or listen command is in flight.
	// It is never stored: the cid is unknown until the module replies.
	ConnOpening
	// ConnOpen indicates a registered plain connection.
	ConnOpen
	// ConnTLSHandshaking indicates a TLS handshake in progress.
	ConnTLSHandshaking
	// ConnSecured indicates a connection whose traffic the module encrypts.
	ConnSecured
	// ConnClosing indicates a disconnect command in flight.
	ConnClosing
)

// String returns string representation of the state.
func (s ConnState) String() string {
	switch s {
	case ConnClosed:
		return "closed"
	case ConnOpening:
		return "opening"
	case ConnOpen:
		return "open"
	case ConnTLSHandshaking:
		return "tls-handshaking"
	case ConnSecured:
		return "secured"
	case ConnClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// IsUsable reports whether data may be written in this state.
func (s ConnState) IsUsable() bool {
	return s == ConnOpen || s == ConnSecured
}

// canTransition reports whether the lifecycle allows from -> to.
// Any state may fall back to ConnClosed (module-reported closure).
func canTransition(from ConnState, to ConnState) bool {
	if to == ConnClosed {
		return true
	}

	switch from {
	case ConnOpen:
		return to == ConnTLSHandshaking || to == ConnClosing
	case ConnTLSHandshaking:
		return to == ConnSecured
	case ConnSecured:
		return to == ConnClosing
	case ConnClosing:
		// a failed disconnect restores the previous state
		return to == ConnOpen || to == ConnSecured
	default:
		return false
	}
}

// ConnStateChangeHandler is invoked after a connection changes state.
//
// Note: the handler is invoked in a blocking mode from the goroutine that
// caused the transition. Take care with long-running implementations.
type ConnStateChangeHandler func(cid CID, prevState ConnState, newState ConnState)
