package gsmodule

import (
	"testing"

	"github.com/arloliu/go-gswifi/atcmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecure(t *testing.T) {
	m, ft := newTestModule(t)

	require.NoError(t, m.AddCert("ca", atcmd.StorageFlash, testDER))
	cid, err := m.ConnectTCP(testPeer, 443)
	require.NoError(t, err)

	require.NoError(t, m.Secure(cid, "ca"))
	assert.Equal(t, ConnSecured, m.Conns().State(cid))
	assert.Equal(t, 1, ft.count("AT+SSLOPEN="+cid.String()+",ca"))

	info, ok := m.Conns().Get(cid)
	require.True(t, ok)
	assert.Equal(t, "ca", info.CertName)
	assert.Equal(t, uint64(1), m.Metrics().TLSHandshakeCount.Load())

	// a secured connection can still carry data and be closed
	require.NoError(t, m.WriteData(cid, []byte("GET / HTTP/1.0\r\n\r\n")))
	require.NoError(t, m.Disconnect(cid))
	assert.Equal(t, ConnClosed, m.Conns().State(cid))
}

func TestSecure_UnknownCert(t *testing.T) {
	m, ft := newTestModule(t)

	cid, err := m.ConnectTCP(testPeer, 443)
	require.NoError(t, err)

	require.ErrorIs(t, m.Secure(cid, "nope"), ErrCertNotFound)
	assert.Equal(t, ConnOpen, m.Conns().State(cid))
	assert.Zero(t, ft.count("AT+SSLOPEN="))
}

func TestSecure_RequiresOpen(t *testing.T) {
	m, ft := newTestModule(t)
	require.NoError(t, m.AddCert("ca", atcmd.StorageFlash, testDER))

	require.ErrorIs(t, m.Secure(InvalidCID, "ca"), ErrInvalidCID)
	require.ErrorIs(t, m.Secure(7, "ca"), ErrConnNotOpen)

	cid, err := m.ConnectTCP(testPeer, 443)
	require.NoError(t, err)
	require.NoError(t, m.Secure(cid, "ca"))
	require.ErrorIs(t, m.Secure(cid, "ca"), ErrConnNotOpen, "already secured")

	assert.Equal(t, 1, ft.count("AT+SSLOPEN="))
}

func TestSecure_HandshakeFailure(t *testing.T) {
	m, ft := newTestModule(t)
	require.NoError(t, m.AddCert("ca", atcmd.StorageVolatile, testDER))

	cid, err := m.ConnectTCP(testPeer, 443)
	require.NoError(t, err)

	ft.fail("AT+SSLOPEN=")
	require.ErrorIs(t, m.Secure(cid, "ca"), ErrCommandFailed)
	assert.Equal(t, ConnClosed, m.Conns().State(cid))
	assert.Zero(t, m.Conns().Len())
	assert.Equal(t, uint64(1), m.Metrics().TLSHandshakeErrCount.Load())
}
