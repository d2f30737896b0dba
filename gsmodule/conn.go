package gsmodule

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/arloliu/go-gswifi/atcmd"
)

var errMissingConnect = errors.New("reply has no CONNECT line")

func checkIPv4(ip netip.Addr) error {
	if !ip.IsValid() || !ip.Unmap().Is4() {
		return ErrInvalidAddress
	}

	return nil
}

// ConnectTCP opens a TCP client connection to ip:port.
func (m *Module) ConnectTCP(ip netip.Addr, port uint16) (CID, error) {
	if err := checkIPv4(ip); err != nil {
		return InvalidCID, err
	}
	ip = ip.Unmap()

	return m.open(atcmd.ConnectTCP(ip, port), ConnInfo{
		Kind:   KindTCPClient,
		Remote: netip.AddrPortFrom(ip, port),
	})
}

// ConnectUDP opens a UDP client connection to ip:port. A localPort of 0 lets
// the module choose one.
func (m *Module) ConnectUDP(ip netip.Addr, port uint16, localPort uint16) (CID, error) {
	if err := checkIPv4(ip); err != nil {
		return InvalidCID, err
	}
	ip = ip.Unmap()

	return m.open(atcmd.ConnectUDP(ip, port, localPort), ConnInfo{
		Kind:      KindUDPClient,
		Remote:    netip.AddrPortFrom(ip, port),
		LocalPort: localPort,
	})
}

// ListenUDP opens a UDP server on port.
func (m *Module) ListenUDP(port uint16) (CID, error) {
	return m.open(atcmd.ListenUDP(port), ConnInfo{Kind: KindUDPServer, LocalPort: port})
}

// ListenTCP opens a TCP server on port. Accepted peers are reported by
// events and registered by HandleEvents.
func (m *Module) ListenTCP(port uint16) (CID, error) {
	return m.open(atcmd.ListenTCP(port), ConnInfo{Kind: KindTCPServer, LocalPort: port})
}

func (m *Module) open(cmd string, info ConnInfo) (CID, error) {
	reply, err := m.query(cmd, m.cfg.connectTimeout)
	if err != nil {
		return InvalidCID, err
	}

	cid, ok := atcmd.ParseConnectReply(reply.Lines)
	if !ok || !cid.IsValid() {
		return InvalidCID, m.commandFailed(cmd, errMissingConnect)
	}

	info.CID = cid
	info.Parent = InvalidCID
	m.conns.register(info)

	return cid, nil
}

// Disconnect closes cid and releases it.
//
// On failure the connection keeps the state it had.
func (m *Module) Disconnect(cid CID) error {
	if !cid.IsValid() {
		return ErrInvalidCID
	}

	prev, err := m.conns.transition(cid, ConnClosing, ConnOpen, ConnSecured)
	if err != nil {
		return closeErr(err)
	}

	if err := m.exec(atcmd.CloseConn(cid), m.cfg.commandTimeout); err != nil {
		if _, terr := m.conns.transition(cid, prev, ConnClosing); terr != nil {
			m.logger.Debug("connection changed while closing", "cid", cid, "error", terr)
		}

		return err
	}

	if _, err := m.conns.transition(cid, ConnClosed); err != nil {
		// released by a DISCONNECT event handled concurrently
		m.logger.Debug("connection already released", "cid", cid)
	}

	return nil
}

// closeErr maps a table rejection to the caller error of Disconnect.
func closeErr(err error) error {
	if errors.Is(err, ErrConnNotOpen) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrConnNotOpen, err)
}

// WriteData sends data on cid as exactly one frame; on a UDP cid this is
// one datagram. Frames are never coalesced or split.
func (m *Module) WriteData(cid CID, data []byte) error {
	if !cid.IsValid() {
		return ErrInvalidCID
	}

	if !m.conns.State(cid).IsUsable() {
		return ErrConnNotOpen
	}

	if m.data == nil {
		return ErrNoDataPath
	}

	m.cmdMu.Lock()
	err := m.data.WriteData(cid, data)
	m.cmdMu.Unlock()

	if err != nil {
		m.logger.Warn("data write failed", "cid", cid, "size", len(data), "error", err)
		return err
	}

	m.metrics.addDataWrite(len(data))

	return nil
}
