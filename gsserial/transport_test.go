package gsserial

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-gswifi/atcmd"
	"github.com/arloliu/go-gswifi/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)

	goleak.VerifyTestMain(m)
}

// fakePort simulates the module side of the serial line. respond is called
// with every complete command line written by the transport.
type fakePort struct {
	mu      sync.Mutex
	input   bytes.Buffer
	written bytes.Buffer
	partial []byte
	respond func(cmd string) string
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, errors.New("fake: port closed")
	}

	if p.input.Len() == 0 {
		p.mu.Unlock()
		time.Sleep(time.Millisecond)

		return 0, nil
	}
	defer p.mu.Unlock()

	return p.input.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.written.Write(b)
	if len(b) > 0 && b[0] == esc {
		return len(b), nil
	}

	p.partial = append(p.partial, b...)
	for {
		i := bytes.Index(p.partial, []byte(atcmd.CRLF))
		if i < 0 {
			break
		}
		cmd := string(p.partial[:i])
		p.partial = p.partial[i+2:]

		if p.respond != nil {
			p.input.WriteString(p.respond(cmd))
		}
	}

	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	return nil
}

func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }

// feed makes the module emit s.
func (p *fakePort) feed(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.input.WriteString(s)
}

func (p *fakePort) writtenBytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]byte(nil), p.written.Bytes()...)
}

func newTestTransport(t *testing.T, respond func(cmd string) string, opts ...Option) (*Transport, *fakePort) {
	t.Helper()

	defaults := []Option{
		WithPollInterval(MinPollInterval),
		WithDrainTimeout(20 * time.Millisecond),
	}

	cfg, err := NewConfig("/dev/ttyFAKE0", append(defaults, opts...)...)
	require.NoError(t, err)

	port := &fakePort{respond: respond}
	tr, err := New(port, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	return tr, port
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig("/dev/ttyUSB0")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.PortName())
	assert.Equal(t, DefaultBaudRate, cfg.BaudRate())
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval())
	assert.Equal(t, DefaultDrainTimeout, cfg.DrainTimeout())
	assert.Equal(t, DefaultEventQueueSize, cfg.EventQueueSize())
	assert.NotNil(t, cfg.GetLogger())

	cfg, err = NewConfig("COM3", WithBaudRate(115200), WithEventQueueSize(4))
	require.NoError(t, err)
	assert.Equal(t, 115200, cfg.BaudRate())
	assert.Equal(t, 4, cfg.EventQueueSize())

	_, err = NewConfig("")
	require.Error(t, err)
	_, err = NewConfig("COM3", WithBaudRate(0))
	require.Error(t, err)
	_, err = NewConfig("COM3", WithPollInterval(2*time.Second))
	require.Error(t, err)
	_, err = NewConfig("COM3", WithDrainTimeout(0))
	require.Error(t, err)
	_, err = NewConfig("COM3", WithEventQueueSize(0))
	require.Error(t, err)
	_, err = NewConfig("COM3", WithLogger(nil))
	require.Error(t, err)
}

func TestSendCommand_SkipsEcho(t *testing.T) {
	tr, port := newTestTransport(t, func(cmd string) string {
		if cmd == "AT+DNSLOOKUP=example.com" {
			return cmd + "\r\n\r\nIP:93.184.216.34\r\n\r\nOK\r\n"
		}
		return "\r\nOK\r\n"
	})

	reply, err := tr.SendCommand("AT+DNSLOOKUP=example.com", time.Second)
	require.NoError(t, err)
	assert.True(t, reply.OK)
	assert.Equal(t, []string{"IP:93.184.216.34"}, reply.Lines)
	assert.Equal(t, "OK", reply.Final)

	assert.Equal(t, "AT+DNSLOOKUP=example.com\r\n", string(port.writtenBytes()))
}

func TestSendCommand_Error(t *testing.T) {
	tr, _ := newTestTransport(t, func(string) string {
		return "ERROR: INVALID INPUT\r\n"
	})

	reply, err := tr.SendCommand("AT+WAUTH=9", time.Second)
	require.NoError(t, err)
	assert.False(t, reply.OK)
	assert.Equal(t, "ERROR: INVALID INPUT", reply.Final)

	err = tr.SendCommandAwaitOK("AT+WAUTH=9", time.Second)
	require.ErrorIs(t, err, ErrRejected)
}

func TestSendCommand_EventsDuringCommand(t *testing.T) {
	tr, _ := newTestTransport(t, func(cmd string) string {
		if strings.HasPrefix(cmd, "AT+NCTCP=") {
			return "DISCONNECT 1\r\nCONNECT 2\r\nOK\r\n"
		}
		return "CONNECT 4\r\nOK\r\n"
	})

	reply, err := tr.SendCommand("AT+NCTCP=10.0.0.1,80", time.Second)
	require.NoError(t, err)
	cid, ok := atcmd.ParseConnectReply(reply.Lines)
	require.True(t, ok)
	assert.Equal(t, atcmd.CID(2), cid)

	// a CONNECT line cannot answer a configuration command
	reply, err = tr.SendCommand("AT+WD", time.Second)
	require.NoError(t, err)
	assert.Empty(t, reply.Lines)

	ev, ok := tr.ReadBufferedEvent()
	require.True(t, ok)
	assert.Equal(t, atcmd.EventDisconnect, ev.Kind)
	assert.Equal(t, atcmd.CID(1), ev.CID)

	ev, ok = tr.ReadBufferedEvent()
	require.True(t, ok)
	assert.Equal(t, atcmd.EventConnected, ev.Kind)
	assert.Equal(t, atcmd.CID(4), ev.CID)

	_, ok = tr.ReadBufferedEvent()
	assert.False(t, ok)
}

func TestSendCommand_TimeoutDrainsLateReply(t *testing.T) {
	var calls int
	tr, port := newTestTransport(t, func(string) string {
		calls++
		if calls == 1 {
			return ""
		}
		return "OK\r\n"
	})

	_, err := tr.SendCommand("AT+WA=\"slow\",,0,0", 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	// the late reply of the first command arrives
	port.feed("ERROR\r\nNWCONN-SUCCESS\r\n")

	require.NoError(t, tr.SendCommandAwaitOK("AT+WD", time.Second))

	ev, ok := tr.ReadBufferedEvent()
	require.True(t, ok)
	assert.Equal(t, atcmd.EventAssociated, ev.Kind)
}

func TestSendCommand_SocketFailureDuringCommand(t *testing.T) {
	tr, _ := newTestTransport(t, func(cmd string) string {
		if cmd == "AT+WSEC=8" {
			return "ERROR: SOCKET FAILURE 1\r\nOK\r\n"
		}
		return "ERROR\r\n"
	})

	reply, err := tr.SendCommand("AT+WSEC=8", time.Second)
	require.NoError(t, err)
	assert.True(t, reply.OK)
	assert.Equal(t, "OK", reply.Final)

	// the next command gets its own reply
	reply, err = tr.SendCommand("AT+WAUTH=1", time.Second)
	require.NoError(t, err)
	assert.False(t, reply.OK)

	ev, ok := tr.ReadBufferedEvent()
	require.True(t, ok)
	assert.Equal(t, atcmd.EventConnectFailed, ev.Kind)
	assert.Equal(t, atcmd.CID(1), ev.CID)
}

func TestSendCommand_LateConnectReplyClosed(t *testing.T) {
	var calls int
	tr, port := newTestTransport(t, func(cmd string) string {
		calls++
		if calls == 1 {
			return ""
		}
		return "OK\r\n"
	})

	_, err := tr.SendCommand("AT+NCTCP=10.0.0.1,80", 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	port.feed("CONNECT 0\r\nOK\r\n")

	_, ok := tr.ReadBufferedEvent()
	assert.False(t, ok, "a late connect reply is not an event")
	assert.Contains(t, string(port.writtenBytes()), "AT+NCLOSE=0\r\n")

	reply, err := tr.SendCommand("AT+WD", time.Second)
	require.NoError(t, err)
	assert.True(t, reply.OK)
	assert.Empty(t, reply.Lines)
}

func TestSendCommand_LateReplyKeepsModuleConnect(t *testing.T) {
	var calls int
	tr, port := newTestTransport(t, func(string) string {
		calls++
		if calls == 1 {
			return ""
		}
		return "OK\r\n"
	})

	_, err := tr.SendCommand("AT+WD", 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	// not an answer to AT+WD: a connection opened by the module
	port.feed("OK\r\nCONNECT 3\r\n")

	ev, ok := tr.ReadBufferedEvent()
	require.True(t, ok)
	assert.Equal(t, atcmd.EventConnected, ev.Kind)
	assert.Equal(t, atcmd.CID(3), ev.CID)
	assert.NotContains(t, string(port.writtenBytes()), "AT+NCLOSE")
}

func TestReadBufferedEvent_Polls(t *testing.T) {
	tr, port := newTestTransport(t, nil)

	port.feed("Disassociation Event\r\nsome noise\r\nCONNECT 0 3 10.0.0.9 5000\r\n")

	ev, ok := tr.ReadBufferedEvent()
	require.True(t, ok)
	assert.Equal(t, atcmd.EventDisassociated, ev.Kind)

	ev, ok = tr.ReadBufferedEvent()
	require.True(t, ok)
	assert.Equal(t, atcmd.EventConnected, ev.Kind)
	assert.Equal(t, atcmd.CID(3), ev.CID)
	assert.Equal(t, atcmd.CID(0), ev.Parent)

	_, ok = tr.ReadBufferedEvent()
	assert.False(t, ok)
}

func TestReadBufferedEvent_DropsOldest(t *testing.T) {
	tr, port := newTestTransport(t, nil, WithEventQueueSize(2))

	port.feed("DISCONNECT 1\r\nDISCONNECT 2\r\nDISCONNECT 3\r\n")

	ev, ok := tr.ReadBufferedEvent()
	require.True(t, ok)
	assert.Equal(t, atcmd.CID(2), ev.CID)

	ev, ok = tr.ReadBufferedEvent()
	require.True(t, ok)
	assert.Equal(t, atcmd.CID(3), ev.CID)
}

func TestWriteData_Framing(t *testing.T) {
	tr, port := newTestTransport(t, nil)

	require.NoError(t, tr.WriteData(0xA, bytes.Repeat([]byte{'x'}, 10)))
	require.NoError(t, tr.WriteData(0xA, bytes.Repeat([]byte{'y'}, 20)))

	want := append([]byte{esc, 'Z', 'a', '0', '0', '1', '0'}, bytes.Repeat([]byte{'x'}, 10)...)
	want = append(want, esc, 'Z', 'a', '0', '0', '2', '0')
	want = append(want, bytes.Repeat([]byte{'y'}, 20)...)
	assert.Equal(t, want, port.writtenBytes())
}

func TestWriteData_Rejected(t *testing.T) {
	tr, port := newTestTransport(t, nil)

	require.Error(t, tr.WriteData(atcmd.InvalidCID, []byte("x")))
	require.ErrorIs(t, tr.WriteData(1, make([]byte, MaxFrameSize+1)), ErrFrameTooLarge)
	assert.Empty(t, port.writtenBytes())

	require.NoError(t, tr.Close())
	require.ErrorIs(t, tr.WriteData(1, []byte("x")), ErrClosed)
	_, err := tr.SendCommand("AT", time.Second)
	require.ErrorIs(t, err, ErrClosed)
}

func TestWriteBulk(t *testing.T) {
	tr, port := newTestTransport(t, nil)

	port.feed("OK\r\n")
	require.NoError(t, tr.WriteBulk([]byte{0x30, 0x82}, time.Second))
	assert.Equal(t, []byte{esc, 'W', 0x30, 0x82}, port.writtenBytes())

	port.feed("ERROR\r\n")
	require.ErrorIs(t, tr.WriteBulk([]byte{0x30}, time.Second), ErrRejected)
}
