package gsserial

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-gswifi/atcmd"
	"github.com/arloliu/go-gswifi/internal/queue"
	"github.com/arloliu/go-gswifi/logger"
	"go.bug.st/serial"
)

var (
	// ErrTimeout indicates that no final result line arrived in time.
	ErrTimeout = errors.New("gsserial: reply timeout")
	// ErrRejected indicates that the module answered with an error.
	ErrRejected = errors.New("gsserial: command rejected")
	// ErrClosed indicates use of a closed transport.
	ErrClosed = errors.New("gsserial: transport is closed")
	// ErrFrameTooLarge indicates a payload that does not fit in one frame.
	ErrFrameTooLarge = errors.New("gsserial: payload exceeds frame size")
)

const (
	esc byte = 0x1B

	// MaxFrameSize is the largest payload of one data frame.
	MaxFrameSize = 1400
)

// Port is the serial line used by a Transport. go.bug.st/serial ports
// implement it. Read must return (0, nil) when the read timeout expires.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Transport talks to one module over a serial line. It implements
// gsmodule.Transport and gsmodule.DataWriter, and all methods are safe for
// concurrent use.
type Transport struct {
	port   Port
	cfg    *Config
	logger logger.Logger
	events queue.Queue[atcmd.Event]

	mu       sync.Mutex
	pending  []byte
	readBuf  []byte
	stale    bool
	staleCmd string // command whose reply timed out
	closed   bool
}

// Open opens the serial port of cfg in 8N1 mode and returns a Transport on it.
func Open(cfg *Config) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.portName, mode)
	if err != nil {
		return nil, fmt.Errorf("gsserial: open %s: %w", cfg.portName, err)
	}

	t, err := New(port, cfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	return t, nil
}

// New creates a Transport on an already opened port.
func New(port Port, cfg *Config) (*Transport, error) {
	if port == nil || cfg == nil {
		return nil, errors.New("gsserial: port and config are required")
	}

	if err := port.SetReadTimeout(cfg.pollInterval); err != nil {
		return nil, fmt.Errorf("gsserial: set read timeout: %w", err)
	}

	return &Transport{
		port:    port,
		cfg:     cfg,
		logger:  cfg.logger.With("port", cfg.portName),
		events:  queue.NewSliceQueue[atcmd.Event](cfg.eventQueueSize, cfg.eventQueueSize),
		readBuf: make([]byte, 256),
	}, nil
}

// Close closes the port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	return t.port.Close()
}

// SendCommand writes cmd and collects the reply until OK or ERROR.
func (t *Transport) SendCommand(cmd string, timeout time.Duration) (*atcmd.Reply, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}

	if t.stale {
		t.drainLocked()
	}

	if err := t.writeLocked([]byte(cmd + atcmd.CRLF)); err != nil {
		return nil, err
	}

	return t.awaitReplyLocked(cmd, timeout)
}

// SendCommandAwaitOK writes cmd and returns nil only if the module answered OK.
func (t *Transport) SendCommandAwaitOK(cmd string, timeout time.Duration) error {
	reply, err := t.SendCommand(cmd, timeout)
	if err != nil {
		return err
	}

	if !reply.OK {
		return fmt.Errorf("%w: %s", ErrRejected, reply.Final)
	}

	return nil
}

// ReadBufferedEvent returns the oldest buffered event. When the buffer is
// empty the line is polled once for unsolicited lines first.
func (t *Transport) ReadBufferedEvent() (atcmd.Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.events.IsEmpty() && !t.closed {
		t.pollLocked()
	}

	return t.events.Dequeue()
}

// WriteData writes data on cid as one frame.
func (t *Transport) WriteData(cid atcmd.CID, data []byte) error {
	if !cid.IsValid() {
		return fmt.Errorf("gsserial: invalid cid %d", uint8(cid))
	}

	if len(data) > MaxFrameSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(data), MaxFrameSize)
	}

	frame := make([]byte, 0, 7+len(data))
	frame = append(frame, esc, 'Z')
	frame = append(frame, cid.String()...)
	frame = fmt.Appendf(frame, "%04d", len(data))
	frame = append(frame, data...)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	return t.writeLocked(frame)
}

// WriteBulk streams data as a bulk transfer and waits for OK.
func (t *Transport) WriteBulk(data []byte, timeout time.Duration) error {
	frame := make([]byte, 0, 2+len(data))
	frame = append(frame, esc, 'W')
	frame = append(frame, data...)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	if err := t.writeLocked(frame); err != nil {
		return err
	}

	reply, err := t.awaitReplyLocked("", timeout)
	if err != nil {
		return err
	}

	if !reply.OK {
		return fmt.Errorf("%w: bulk transfer: %s", ErrRejected, reply.Final)
	}

	return nil
}

// awaitReplyLocked collects lines until a final result line. echo is the
// command text the module may echo back; empty disables echo skipping.
func (t *Transport) awaitReplyLocked(echo string, timeout time.Duration) (*atcmd.Reply, error) {
	deadline := time.Now().Add(timeout)
	reply := &atcmd.Reply{}

	for {
		line, err := t.readLineLocked(deadline)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				t.stale = true
				t.staleCmd = echo
			}

			return nil, err
		}

		if echo != "" && line == echo {
			continue
		}

		// a socket failure naming a cid is unsolicited unless a
		// connection is being opened
		if !opensConnection(echo) {
			if ev, ok := atcmd.ParseEvent(line); ok && ev.Kind == atcmd.EventConnectFailed && ev.CID.IsValid() {
				t.pushEventLocked(ev)
				continue
			}
		}

		if final, ok := atcmd.ClassifyFinal(line); final {
			reply.OK = ok
			reply.Final = line
			if !opensConnection(echo) {
				reply.Lines = t.extractEventsLocked(reply.Lines)
			}

			return reply, nil
		}

		if ev, ok := atcmd.ParseEvent(line); ok && ev.NeverAReply() {
			t.pushEventLocked(ev)
			continue
		}

		reply.Lines = append(reply.Lines, line)
	}
}

var connectCommands = []string{"AT+NCTCP=", "AT+NCUDP=", "AT+NSTCP=", "AT+NSUDP="}

// opensConnection reports whether cmd is answered with a CONNECT line.
func opensConnection(cmd string) bool {
	for _, prefix := range connectCommands {
		if strings.HasPrefix(cmd, prefix) {
			return true
		}
	}

	return false
}

// extractEventsLocked moves event lines out of the reply of a command that
// does not open a connection and returns the remaining lines.
func (t *Transport) extractEventsLocked(lines []string) []string {
	kept := lines[:0]
	for _, line := range lines {
		if ev, ok := atcmd.ParseEvent(line); ok {
			t.pushEventLocked(ev)
			continue
		}
		kept = append(kept, line)
	}

	return kept
}

// pollLocked reads the unsolicited lines already on the line.
func (t *Transport) pollLocked() {
	if t.stale {
		t.drainLocked()
		return
	}

	for {
		line, err := t.readLineLocked(time.Now())
		if err != nil {
			if !errors.Is(err, ErrTimeout) {
				t.logger.Warn("serial read failed", "error", err)
			}

			return
		}

		if !t.routeEventLocked(line) {
			t.logger.Debug("discarded unsolicited line", "line", line)
		}
	}
}

// drainLocked discards the late reply of a timed out command. Events found
// on the way are kept. The connection named by a late CONNECT reply is
// closed on the module and never reported.
func (t *Transport) drainLocked() {
	orphan := t.discardLateLocked()
	if orphan.IsValid() {
		t.closeOrphanLocked(orphan)
	}
}

// discardLateLocked reads until the line stays quiet for the drain timeout
// and returns the cid of a late CONNECT reply, InvalidCID if none.
func (t *Transport) discardLateLocked() atcmd.CID {
	deadline := time.Now().Add(t.cfg.drainTimeout)
	awaitingConnect := opensConnection(t.staleCmd)
	orphan := atcmd.InvalidCID

	for {
		line, err := t.readLineLocked(deadline)
		if err != nil {
			break
		}
		deadline = time.Now().Add(t.cfg.drainTimeout)

		if awaitingConnect {
			if ev, ok := atcmd.ParseEvent(line); ok && ev.Kind == atcmd.EventConnected && ev.Parent == atcmd.InvalidCID {
				orphan = ev.CID
				awaitingConnect = false
				t.logger.Warn("late connect reply discarded", "cmd", t.staleCmd, "cid", orphan)

				continue
			}
		}

		if !t.routeEventLocked(line) {
			t.logger.Debug("discarded late reply line", "line", line)
		}
	}

	t.pending = t.pending[:0]
	t.stale = false
	t.staleCmd = ""

	return orphan
}

// closeOrphanLocked closes a connection the host never registered.
func (t *Transport) closeOrphanLocked(cid atcmd.CID) {
	cmd := atcmd.CloseConn(cid)
	if err := t.writeLocked([]byte(cmd + atcmd.CRLF)); err != nil {
		t.logger.Warn("failed to close orphan connection", "cid", cid, "error", err)
		return
	}

	reply, err := t.awaitReplyLocked(cmd, t.cfg.drainTimeout)
	switch {
	case err != nil:
		t.logger.Warn("failed to close orphan connection", "cid", cid, "error", err)
		t.discardLateLocked()
	case !reply.OK:
		t.logger.Warn("module refused to close orphan connection", "cid", cid, "reply", reply.Final)
	default:
		t.logger.Info("orphan connection closed", "cid", cid)
	}
}

func (t *Transport) routeEventLocked(line string) bool {
	ev, ok := atcmd.ParseEvent(line)
	if !ok {
		return false
	}
	t.pushEventLocked(ev)

	return true
}

func (t *Transport) pushEventLocked(ev atcmd.Event) {
	if !t.events.Enqueue(ev) {
		t.logger.Warn("event buffer full, oldest event dropped", "size", t.cfg.eventQueueSize)
	}
	t.logger.Debug("event buffered", "kind", ev.Kind, "cid", ev.CID, "raw", ev.Raw)
}

// readLineLocked returns the next non-empty line. It reads the port at
// least once and fails with ErrTimeout when no full line arrived before
// deadline.
func (t *Transport) readLineLocked(deadline time.Time) (string, error) {
	for attempted := false; ; attempted = true {
		if line, ok := t.nextLine(); ok {
			return line, nil
		}

		if attempted && !time.Now().Before(deadline) {
			return "", ErrTimeout
		}

		n, err := t.port.Read(t.readBuf)
		if n > 0 {
			t.pending = append(t.pending, t.readBuf[:n]...)
		}

		if err != nil {
			return "", fmt.Errorf("gsserial: read: %w", err)
		}
	}
}

func (t *Transport) nextLine() (string, bool) {
	for {
		i := bytes.IndexByte(t.pending, '\n')
		if i < 0 {
			return "", false
		}

		line := strings.TrimSpace(string(t.pending[:i]))
		t.pending = t.pending[i+1:]
		if line != "" {
			return line, true
		}
	}
}

func (t *Transport) writeLocked(data []byte) error {
	for written := 0; written < len(data); {
		n, err := t.port.Write(data[written:])
		written += n

		if err != nil {
			return fmt.Errorf("gsserial: write: %w", err)
		}
	}

	return nil
}
