package gsmodule

import (
	"github.com/arloliu/go-gswifi/atcmd"
)

// Secure runs a TLS handshake on the open connection cid, authenticating
// the server against the CA certificate certName.
//
// The module verifies the certificate chain only; the server hostname is
// not checked. On handshake failure the module drops the connection and cid
// is released.
func (m *Module) Secure(cid CID, certName string) error {
	if !cid.IsValid() {
		return ErrInvalidCID
	}

	if m.conns.State(cid) != ConnOpen {
		return ErrConnNotOpen
	}

	if !m.certs.Has(certName) {
		return ErrCertNotFound
	}

	if _, err := m.conns.transition(cid, ConnTLSHandshaking, ConnOpen); err != nil {
		return closeErr(err)
	}

	if err := m.exec(atcmd.SSLOpen(cid, certName), m.cfg.tlsTimeout); err != nil {
		m.metrics.incTLSHandshake(false)
		m.conns.release(cid, "tls handshake failed")

		return err
	}

	m.metrics.incTLSHandshake(true)
	m.conns.setCert(cid, certName)
	if _, err := m.conns.transition(cid, ConnSecured, ConnTLSHandshaking); err != nil {
		// closed by the module right after the handshake
		return closeErr(err)
	}

	return nil
}
