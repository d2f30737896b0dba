package atcmd

import (
	"net/netip"
	"strings"
)

// Final result lines.
const (
	ResultOK    = "OK"
	ResultError = "ERROR"
)

// Reply is the outcome of one command exchange as seen by the transport.
type Reply struct {
	// OK is true when the module answered with OK.
	OK bool
	// Lines holds the information lines received before the final result.
	Lines []string
	// Final is the final result line, e.g. "OK" or "ERROR: INVALID INPUT".
	Final string
}

// ClassifyFinal reports whether line terminates a command exchange and,
// if so, whether it is an affirmative result.
func ClassifyFinal(line string) (final bool, ok bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == ResultOK:
		return true, true
	case strings.HasPrefix(line, ResultError):
		return true, false
	case line == "INVALID INPUT":
		return true, false
	default:
		return false, false
	}
}

// ParseConnectReply extracts the cid from the "CONNECT <cid>" line the
// module prints after a successful connect or listen command.
func ParseConnectReply(lines []string) (CID, bool) {
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "CONNECT" {
			return ParseCID(fields[1])
		}
	}

	return InvalidCID, false
}

// ParseIPReply extracts the address from the "IP:<addr>" line printed by a
// DNS lookup.
func ParseIPReply(lines []string) (netip.Addr, bool) {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		rest, found := strings.CutPrefix(line, "IP:")
		if !found {
			continue
		}

		addr, err := netip.ParseAddr(strings.TrimSpace(rest))
		if err != nil {
			return netip.Addr{}, false
		}

		return addr, true
	}

	return netip.Addr{}, false
}
