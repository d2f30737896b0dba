package gsmodule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-gswifi/atcmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retries(associate, connect uint16) ModuleOption {
	return WithRetryPolicy(RetryPolicy{Associate: associate, Connect: connect, Zero: ZeroRetryOnce})
}

func TestNCM_HostDriver_AssociateRetryBound(t *testing.T) {
	m, ft := newTestModule(t, retries(3, 3))
	ncm := m.NCM()

	require.NoError(t, ncm.Enable(NCMOptions{Driver: DriverHost}))
	assert.Empty(t, ft.commands(), "host driver sends nothing on enable")
	assert.Equal(t, NCMAssociating, ncm.State())

	ft.fail("AT+WA=")
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, ncm.Step(), ErrCommandFailed)
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, ncm.Step())
	}

	assert.Equal(t, 3, ft.count("AT+WA="))
	assert.True(t, ncm.Halted())
	assert.True(t, ncm.Enabled())
	assert.Equal(t, NCMAssociating, ncm.State())
	associate, _ := ncm.Attempts()
	assert.Equal(t, uint32(3), associate)
	assert.Equal(t, uint64(3), m.Metrics().NCMAssociateAttempts.Load())

	// an association event restarts the halted manager
	ft.push("NWCONN-SUCCESS")
	m.HandleEvents()
	assert.False(t, ncm.Halted())
	assert.Equal(t, NCMAssociateOnlyIdle, ncm.State())
}

func TestNCM_ModuleDriver_AssociateRetryBound(t *testing.T) {
	m, ft := newTestModule(t, retries(3, 3))
	ncm := m.NCM()

	require.NoError(t, ncm.Enable(NCMOptions{Driver: DriverModule}))
	assert.Equal(t, []string{"AT+NCMAUTO=0,1,1,0"}, ft.commands())

	ft.push("NWCONN-FAILURE", "NWCONN-FAILURE", "NWCONN-FAILURE", "NWCONN-FAILURE", "NWCONN-FAILURE")
	assert.Equal(t, 5, m.HandleEvents())

	associate, _ := ncm.Attempts()
	assert.Equal(t, uint32(3), associate)
	assert.True(t, ncm.Halted())
	assert.Equal(t, NCMAssociating, ncm.State())

	require.NoError(t, ncm.Step(), "module driver has nothing to step")
	assert.Len(t, ft.commands(), 1)
}

func TestNCM_ZeroRetryPolicy(t *testing.T) {
	m, ft := newTestModule(t, WithRetryPolicy(RetryPolicy{Zero: ZeroRetryOnce}))
	require.NoError(t, m.NCM().Enable(NCMOptions{Driver: DriverHost}))
	ft.fail("AT+WA=")

	for i := 0; i < 3; i++ {
		_ = m.NCM().Step()
	}
	assert.Equal(t, 1, ft.count("AT+WA="))
	assert.True(t, m.NCM().Halted())

	m, ft = newTestModule(t, WithRetryPolicy(RetryPolicy{Zero: ZeroRetryUnlimited}))
	require.NoError(t, m.NCM().Enable(NCMOptions{Driver: DriverHost}))
	ft.fail("AT+WA=")

	for i := 0; i < 5; i++ {
		_ = m.NCM().Step()
	}
	assert.Equal(t, 5, ft.count("AT+WA="))
	assert.False(t, m.NCM().Halted())
}

func TestNCM_HostDriver_Connect(t *testing.T) {
	m, ft := newTestModule(t)
	ncm := m.NCM()

	var (
		mu     sync.Mutex
		states []NCMState
	)
	ncm.AddStateChangeHandler(func(_ NCMState, newState NCMState) {
		mu.Lock()
		states = append(states, newState)
		mu.Unlock()
	})

	require.NoError(t, m.SetAutoAssociate(AutoAssociate{SSID: "plant", Channel: 11}))
	require.NoError(t, m.SetAutoConnectClient(AutoConnect{Host: "10.0.0.1", Port: 5000, Protocol: atcmd.ProtocolTCP}))
	require.NoError(t, ncm.Enable(NCMOptions{Driver: DriverHost}))

	require.NoError(t, ncm.Step())
	assert.Equal(t, NCMConnecting, ncm.State())
	require.NoError(t, ncm.Step())
	assert.Equal(t, NCMConnected, ncm.State())

	cid := ncm.CID()
	assert.Equal(t, ConnOpen, m.Conns().State(cid))
	assert.Equal(t, 1, ft.count(`AT+WA="plant",,11,1`))
	assert.Equal(t, 1, ft.count("AT+NCTCP=10.0.0.1,5000"))

	// the module drops the connection: reconnect
	ft.push("DISCONNECT " + cid.String())
	m.HandleEvents()
	assert.Equal(t, ConnClosed, m.Conns().State(cid))
	assert.Equal(t, NCMConnecting, ncm.State())
	assert.Equal(t, InvalidCID, ncm.CID())

	require.NoError(t, ncm.Step())
	assert.Equal(t, NCMConnected, ncm.State())
	assert.Equal(t, 2, ft.count("AT+NCTCP="))

	// link loss restarts from association
	ft.push("Disassociation Event")
	m.HandleEvents()
	assert.Equal(t, NCMAssociating, ncm.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []NCMState{
		NCMAssociating, NCMAssociated, NCMConnecting, NCMConnected,
		NCMConnecting, NCMConnected, NCMAssociating,
	}, states)
}

func TestNCM_HostDriver_HostnameTarget(t *testing.T) {
	m, ft := newTestModule(t)

	ft.on("AT+DNSLOOKUP=broker.local", okReply("IP:10.1.2.3"), nil)
	require.NoError(t, m.SetAutoAssociate(AutoAssociate{SSID: "plant"}))
	require.NoError(t, m.SetAutoConnectClient(AutoConnect{Host: "broker.local", Port: 1883, Protocol: atcmd.ProtocolUDP}))
	require.NoError(t, m.NCM().Enable(NCMOptions{Driver: DriverHost}))

	require.NoError(t, m.NCM().Step())
	require.NoError(t, m.NCM().Step())

	assert.Equal(t, NCMConnected, m.NCM().State())
	assert.Equal(t, 1, ft.count("AT+NCUDP=10.1.2.3,1883"))
}

func TestNCM_HostDriver_ServerTarget(t *testing.T) {
	m, ft := newTestModule(t)

	require.NoError(t, m.SetAutoAssociate(AutoAssociate{SSID: "plant"}))
	require.NoError(t, m.SetAutoConnectServer(7000, atcmd.ProtocolTCP))
	require.NoError(t, m.NCM().Enable(NCMOptions{Driver: DriverHost}))

	require.NoError(t, m.NCM().Step())
	require.NoError(t, m.NCM().Step())

	assert.Equal(t, NCMConnected, m.NCM().State())
	assert.Equal(t, 1, ft.count("AT+NSTCP=7000"))

	info, ok := m.Conns().Get(m.NCM().CID())
	require.True(t, ok)
	assert.Equal(t, KindTCPServer, info.Kind)
}

func TestNCM_ConnectRetryBound(t *testing.T) {
	m, ft := newTestModule(t, retries(3, 2))
	ncm := m.NCM()

	require.NoError(t, m.SetAutoAssociate(AutoAssociate{SSID: "plant"}))
	require.NoError(t, m.SetAutoConnectClient(AutoConnect{Host: "10.0.0.1", Port: 80, Protocol: atcmd.ProtocolTCP}))
	require.NoError(t, ncm.Enable(NCMOptions{Driver: DriverHost}))
	require.NoError(t, ncm.Step())

	ft.fail("AT+NCTCP=")
	for i := 0; i < 4; i++ {
		_ = ncm.Step()
	}

	assert.Equal(t, 2, ft.count("AT+NCTCP="))
	assert.True(t, ncm.Halted())
	assert.Equal(t, NCMConnecting, ncm.State())
	_, connect := ncm.Attempts()
	assert.Equal(t, uint32(2), connect)
}

func TestNCM_AssociateOnlyTakesPrecedence(t *testing.T) {
	m, ft := newTestModule(t)

	require.NoError(t, m.SetAutoAssociate(AutoAssociate{SSID: "plant"}))
	require.NoError(t, m.SetAutoConnectClient(AutoConnect{Host: "10.0.0.1", Port: 80, Protocol: atcmd.ProtocolTCP}))
	require.NoError(t, m.NCM().Enable(NCMOptions{Driver: DriverHost, AssociateOnly: true}))

	require.NoError(t, m.NCM().Step())
	require.NoError(t, m.NCM().Step())

	assert.Equal(t, NCMAssociateOnlyIdle, m.NCM().State())
	assert.Zero(t, ft.count("AT+NCTCP="))
}

func TestNCM_NoAutoAssociateIsAssociateOnly(t *testing.T) {
	m, ft := newTestModule(t)

	require.NoError(t, m.SetAutoConnectClient(AutoConnect{Host: "10.0.0.1", Port: 80, Protocol: atcmd.ProtocolTCP}))
	require.NoError(t, m.NCM().Enable(NCMOptions{Driver: DriverHost}))

	require.NoError(t, m.NCM().Step())
	require.NoError(t, m.NCM().Step())

	assert.Equal(t, NCMAssociateOnlyIdle, m.NCM().State())
	assert.Equal(t, []string{"AT+NAUTO=0,1,10.0.0.1,80", `AT+WA="",,0,0`}, ft.commands())
	assert.Equal(t, InvalidCID, m.NCM().CID())

	// the module driver settles the same way on its association event
	m, ft = newTestModule(t)
	require.NoError(t, m.SetAutoConnectClient(AutoConnect{Host: "10.0.0.1", Port: 80, Protocol: atcmd.ProtocolTCP}))
	require.NoError(t, m.NCM().Enable(NCMOptions{Driver: DriverModule}))

	ft.push("NWCONN-SUCCESS")
	m.HandleEvents()
	assert.Equal(t, NCMAssociateOnlyIdle, m.NCM().State())
}

func TestNCM_ModuleDriver_Events(t *testing.T) {
	m, ft := newTestModule(t)
	ncm := m.NCM()

	require.NoError(t, m.SetAutoAssociate(AutoAssociate{SSID: "plant"}))
	require.NoError(t, m.SetAutoConnectClient(AutoConnect{Host: "10.0.0.1", Port: 80, Protocol: atcmd.ProtocolUDP}))
	require.NoError(t, ncm.Enable(NCMOptions{Driver: DriverModule, Mode: atcmd.NCMStation, Persist: true}))
	assert.Equal(t, 1, ft.count("AT+NCMAUTO=0,1,1,1"))

	ft.push("NWCONN-SUCCESS")
	m.HandleEvents()
	assert.Equal(t, NCMConnecting, ncm.State())

	ft.push("ERROR: SOCKET FAILURE")
	m.HandleEvents()
	_, connect := ncm.Attempts()
	assert.Equal(t, uint32(1), connect)

	ft.push("CONNECT 2")
	m.HandleEvents()
	assert.Equal(t, NCMConnected, ncm.State())
	assert.Equal(t, CID(2), ncm.CID())

	info, ok := m.Conns().Get(2)
	require.True(t, ok)
	assert.Equal(t, KindUDPClient, info.Kind)

	require.NotNil(t, m.CurrentConfig().NCM)
	assert.True(t, m.CurrentConfig().NCM.Enabled)
}

func TestNCM_Disable(t *testing.T) {
	m, ft := newTestModule(t)
	ncm := m.NCM()

	require.NoError(t, m.SetAutoAssociate(AutoAssociate{SSID: "plant"}))
	require.NoError(t, m.SetAutoConnectClient(AutoConnect{Host: "10.0.0.1", Port: 80, Protocol: atcmd.ProtocolTCP}))
	require.NoError(t, ncm.Enable(NCMOptions{Driver: DriverModule, AssociateOnly: false}))
	ft.push("NWCONN-SUCCESS", "CONNECT 0")
	m.HandleEvents()
	require.Equal(t, NCMConnected, ncm.State())

	require.NoError(t, ncm.Disable())
	assert.Equal(t, 1, ft.count("AT+NCMAUTO=0,0,1,0"))
	assert.Equal(t, NCMDisabled, ncm.State())
	assert.False(t, ncm.Enabled())
	assert.Equal(t, ConnOpen, m.Conns().State(0), "disable keeps connections open")

	require.ErrorIs(t, ncm.Step(), ErrNCMDisabled)

	// events are ignored while disabled
	ft.push("NWCONN-SUCCESS")
	m.HandleEvents()
	assert.Equal(t, NCMDisabled, ncm.State())
}

func TestNCM_DisableHostDriver(t *testing.T) {
	m, ft := newTestModule(t)

	require.NoError(t, m.NCM().Enable(NCMOptions{Driver: DriverHost, Persist: true}))
	require.NoError(t, m.NCM().Disable())

	assert.Empty(t, ft.commands())
	require.NotNil(t, m.CurrentConfig().NCM)
	assert.False(t, m.CurrentConfig().NCM.Enabled)
}

func TestNCM_EnableFailure(t *testing.T) {
	m, ft := newTestModule(t)
	ft.fail("AT+NCMAUTO=")

	require.ErrorIs(t, m.NCM().Enable(NCMOptions{}), ErrCommandFailed)
	assert.False(t, m.NCM().Enabled())
	assert.Equal(t, NCMDisabled, m.NCM().State())
}

func TestNCM_Run(t *testing.T) {
	m, _ := newTestModule(t)

	require.NoError(t, m.SetAutoAssociate(AutoAssociate{SSID: "plant"}))
	require.NoError(t, m.SetAutoConnectClient(AutoConnect{Host: "10.0.0.1", Port: 80, Protocol: atcmd.ProtocolTCP}))
	require.NoError(t, m.NCM().Enable(NCMOptions{Driver: DriverHost}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.NCM().Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return m.NCM().State() == NCMConnected
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ncm loop did not stop")
	}
}

func TestNCMState_String(t *testing.T) {
	assert.Equal(t, "associate-only-idle", NCMAssociateOnlyIdle.String())
	assert.Equal(t, "disabled", NCMDisabled.String())
	assert.Equal(t, "host", DriverHost.String())
	assert.Equal(t, "module", DriverModule.String())
}
