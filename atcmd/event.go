package atcmd

import (
	"strings"
)

// EventKind classifies an unsolicited line emitted by the module.
type EventKind uint8

const (
	EventUnknown EventKind = iota
	// EventDisconnect reports that the module closed a connection.
	EventDisconnect
	// EventDisassociated reports loss of the wireless link.
	EventDisassociated
	// EventAssociated reports a successful (re)association by the module NCM.
	EventAssociated
	// EventAssociateFailed reports a failed association attempt by the module NCM.
	EventAssociateFailed
	// EventConnected reports a connection opened without a command:
	// an NCM client connection or a peer accepted on a listening cid.
	EventConnected
	// EventConnectFailed reports a failed connection attempt by the module NCM.
	EventConnectFailed
)

func (k EventKind) String() string {
	switch k {
	case EventDisconnect:
		return "disconnect"
	case EventDisassociated:
		return "disassociated"
	case EventAssociated:
		return "associated"
	case EventAssociateFailed:
		return "associate-failed"
	case EventConnected:
		return "connected"
	case EventConnectFailed:
		return "connect-failed"
	default:
		return "unknown"
	}
}

// Event is an unsolicited notification buffered by the transport.
type Event struct {
	Kind EventKind
	// CID is the connection the event refers to, InvalidCID if none.
	CID CID
	// Parent is the listening cid that accepted CID, InvalidCID otherwise.
	Parent CID
	// Raw is the line as received.
	Raw string
}

// ParseEvent classifies an unsolicited line. It returns false when the line
// is not a known event.
//
// Recognized forms:
//
//	DISCONNECT <cid>
//	Disassociation Event
//	NWCONN-SUCCESS
//	NWCONN-FAILURE
//	CONNECT <cid>
//	CONNECT <server cid> <cid> <ip> <port>
//	ERROR: SOCKET FAILURE <cid>
func ParseEvent(line string) (Event, bool) {
	raw := strings.TrimSpace(line)
	ev := Event{Kind: EventUnknown, CID: InvalidCID, Parent: InvalidCID, Raw: raw}
	fields := strings.Fields(raw)

	switch {
	case len(fields) == 0:
		return ev, false

	case fields[0] == "DISCONNECT" && len(fields) >= 2:
		cid, ok := ParseCID(fields[1])
		if !ok {
			return ev, false
		}
		ev.Kind, ev.CID = EventDisconnect, cid

	case strings.EqualFold(raw, "Disassociation Event"):
		ev.Kind = EventDisassociated

	case raw == "NWCONN-SUCCESS":
		ev.Kind = EventAssociated

	case raw == "NWCONN-FAILURE":
		ev.Kind = EventAssociateFailed

	case fields[0] == "CONNECT" && len(fields) == 2:
		cid, ok := ParseCID(fields[1])
		if !ok {
			return ev, false
		}
		ev.Kind, ev.CID = EventConnected, cid

	case fields[0] == "CONNECT" && len(fields) >= 3:
		parent, ok := ParseCID(fields[1])
		if !ok {
			return ev, false
		}
		cid, ok := ParseCID(fields[2])
		if !ok {
			return ev, false
		}
		ev.Kind, ev.CID, ev.Parent = EventConnected, cid, parent

	case strings.HasPrefix(raw, "ERROR: SOCKET FAILURE"):
		ev.Kind = EventConnectFailed
		if len(fields) >= 4 {
			if cid, ok := ParseCID(fields[3]); ok {
				ev.CID = cid
			}
		}

	default:
		return ev, false
	}

	return ev, true
}

// NeverAReply reports whether the event can only appear unsolicited.
// Such lines may be routed to the event buffer even while a command is
// awaiting its reply; the short CONNECT form and socket failures cannot,
// because they also answer connect commands.
func (e Event) NeverAReply() bool {
	switch e.Kind {
	case EventDisconnect, EventDisassociated, EventAssociated, EventAssociateFailed:
		return true
	case EventConnected:
		return e.Parent != InvalidCID
	default:
		return false
	}
}
