package gsmodule

import (
	"time"

	"github.com/arloliu/go-gswifi/atcmd"
)

// Transport is the command channel to one physical module.
//
// Implementations own line framing, command echo, and the draining of
// replies that arrive after a timeout; a late reply must never be
// attributed to the next command. The channel is half-duplex: Module never
// issues a command before the previous one returned.
type Transport interface {
	// SendCommand writes cmd and collects the reply lines until OK, ERROR or
	// timeout. A timeout or I/O failure is returned as an error; an explicit
	// ERROR is returned as a Reply with OK set to false.
	SendCommand(cmd string, timeout time.Duration) (*atcmd.Reply, error)

	// SendCommandAwaitOK writes cmd and returns nil only if the module
	// answered OK within timeout.
	SendCommandAwaitOK(cmd string, timeout time.Duration) error

	// ReadBufferedEvent pops the oldest unsolicited event received so far.
	ReadBufferedEvent() (atcmd.Event, bool)
}

// DataWriter is the optional data plane of a Transport.
//
// Module detects it with a type assertion on the Transport passed to
// NewModule.
type DataWriter interface {
	// WriteData sends data on cid as one frame. On a UDP cid one call is one
	// datagram.
	WriteData(cid atcmd.CID, data []byte) error

	// WriteBulk streams raw bytes following a command that announced them,
	// such as a certificate upload, and waits for the module's confirmation.
	WriteBulk(data []byte, timeout time.Duration) error
}
