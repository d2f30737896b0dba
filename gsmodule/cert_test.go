package gsmodule

import (
	"errors"
	"testing"

	"github.com/arloliu/go-gswifi/atcmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDER = []byte{0x30, 0x82, 0x01, 0x0a, 0x02, 0x82}

func TestAddCert(t *testing.T) {
	m, ft := newTestModule(t)

	require.NoError(t, m.AddCert("ca", atcmd.StorageFlash, testDER))
	assert.Equal(t, []string{"AT+TCERTADD=ca,0,6,0"}, ft.commands())
	require.Len(t, ft.bulk, 1)
	assert.Equal(t, testDER, ft.bulk[0])

	info, ok := m.Certs().Get("ca", atcmd.StorageFlash)
	require.True(t, ok)
	assert.Equal(t, CertInfo{Name: "ca", Storage: atcmd.StorageFlash, Size: len(testDER)}, info)

	require.ErrorIs(t, m.AddCert("ca", atcmd.StorageFlash, testDER), ErrCertExists)
	assert.Len(t, ft.commands(), 1, "duplicate add must not send a command")

	// the same name may exist once per storage class
	require.NoError(t, m.AddCert("ca", atcmd.StorageVolatile, testDER))
	assert.Len(t, m.Certs().List(), 2)
}

func TestAddCert_Rejected(t *testing.T) {
	m, ft := newTestModule(t)

	require.ErrorIs(t, m.AddCert("ca", atcmd.StorageFlash, nil), ErrEmptyCert)

	noData, err := NewModule(commandOnlyTransport{ft: ft}, nil)
	require.NoError(t, err)
	require.ErrorIs(t, noData.AddCert("ca", atcmd.StorageFlash, testDER), ErrNoDataPath)

	assert.Empty(t, ft.commands())
}

func TestAddCert_Failure(t *testing.T) {
	m, ft := newTestModule(t)

	ft.fail("AT+TCERTADD=")
	require.ErrorIs(t, m.AddCert("ca", atcmd.StorageFlash, testDER), ErrCommandFailed)
	assert.Empty(t, ft.bulk)
	assert.False(t, m.Certs().Has("ca"))

	ft.on("AT+TCERTADD=", okReply(), nil)
	ft.bulkErr = errors.New("fake: bulk rejected")
	require.ErrorIs(t, m.AddCert("ca", atcmd.StorageFlash, testDER), ErrCommandFailed)
	assert.False(t, m.Certs().Has("ca"))
}

func TestAddCert_EscapesName(t *testing.T) {
	m, ft := newTestModule(t)

	require.NoError(t, m.AddCert(`my"ca`, atcmd.StorageVolatile, testDER))
	assert.Equal(t, []string{`AT+TCERTADD=my\"ca,0,6,1`}, ft.commands())

	// the store keeps the unescaped name; every command escapes it the same way
	assert.True(t, m.Certs().Has(`my"ca`))
	assert.False(t, m.Certs().Has(`my\"ca`))

	cid, err := m.ConnectTCP(testPeer, 443)
	require.NoError(t, err)
	require.NoError(t, m.Secure(cid, `my"ca`))
	require.NoError(t, m.DeleteCert(`my"ca`))

	assert.Equal(t, 1, ft.count("AT+SSLOPEN="+cid.String()+`,my\"ca`))
	assert.Equal(t, 1, ft.count(`AT+TCERTDEL=my\"ca`))
	assert.False(t, m.Certs().Has(`my"ca`))
}

func TestDeleteCert(t *testing.T) {
	m, ft := newTestModule(t)

	require.ErrorIs(t, m.DeleteCert("ca"), ErrCertNotFound)
	assert.Empty(t, ft.commands())

	require.NoError(t, m.AddCert("ca", atcmd.StorageFlash, testDER))
	require.NoError(t, m.AddCert("ca", atcmd.StorageVolatile, testDER))

	require.NoError(t, m.DeleteCert("ca"))
	_, inVolatile := m.Certs().Get("ca", atcmd.StorageVolatile)
	_, inFlash := m.Certs().Get("ca", atcmd.StorageFlash)
	assert.False(t, inVolatile, "volatile copy is removed first")
	assert.True(t, inFlash)

	require.NoError(t, m.DeleteCert("ca"))
	assert.False(t, m.Certs().Has("ca"))
	assert.Equal(t, 2, ft.count("AT+TCERTDEL=ca"))

	require.ErrorIs(t, m.DeleteCert("ca"), ErrCertNotFound)
	assert.Equal(t, 2, ft.count("AT+TCERTDEL="))
}

func TestDeleteCert_Failure(t *testing.T) {
	m, ft := newTestModule(t)

	require.NoError(t, m.AddCert("ca", atcmd.StorageFlash, testDER))
	ft.fail("AT+TCERTDEL=")

	require.ErrorIs(t, m.DeleteCert("ca"), ErrCommandFailed)
	assert.True(t, m.Certs().Has("ca"))
}

func TestCertStore_Track(t *testing.T) {
	m, ft := newTestModule(t)

	m.Certs().Track(CertInfo{Name: "boot-ca", Storage: atcmd.StorageFlash})
	assert.True(t, m.Certs().Has("boot-ca"))
	assert.Empty(t, ft.commands())

	cid, err := m.ConnectTCP(testPeer, 443)
	require.NoError(t, err)
	require.NoError(t, m.Secure(cid, "boot-ca"))

	require.NoError(t, m.DeleteCert("boot-ca"))
	assert.False(t, m.Certs().Has("boot-ca"))
}
