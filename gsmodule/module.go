package gsmodule

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-gswifi/atcmd"
	"github.com/arloliu/go-gswifi/logger"
)

// Module is the session context of one physical radio module.
//
// It owns the connection table, the certificate store, the profile store and
// the network connection manager, and serializes every command on the
// half-duplex channel. Construct exactly one Module per physical module.
type Module struct {
	cfg    *ModuleConfig
	logger logger.Logger

	tr   Transport
	data DataWriter // nil when the transport has no data path

	// cmdMu guarantees a single outstanding command.
	cmdMu sync.Mutex

	conns    *ConnTable
	certs    *CertStore
	profiles *ProfileStore
	ncm      *NCM

	snapMu  sync.RWMutex
	current ConfigSnapshot

	handlerMu     sync.RWMutex
	eventHandlers []EventHandler

	metrics ModuleMetrics
}

// NewModule creates a Module driving tr. A nil cfg uses the defaults of
// NewModuleConfig.
func NewModule(tr Transport, cfg *ModuleConfig) (*Module, error) {
	if tr == nil {
		return nil, ErrTransportNil
	}

	if cfg == nil {
		var err error
		if cfg, err = NewModuleConfig(); err != nil {
			return nil, err
		}
	}

	m := &Module{
		cfg:     cfg,
		logger:  cfg.logger,
		tr:      tr,
		current: newConfigSnapshot(),
	}

	if dw, ok := tr.(DataWriter); ok {
		m.data = dw
	}

	m.conns = newConnTable(m.logger.With("component", "conn"), &m.metrics)
	m.certs = newCertStore()
	m.profiles = newProfileStore()
	m.ncm = newNCM(m)

	return m, nil
}

// Config returns the host-side configuration.
func (m *Module) Config() *ModuleConfig { return m.cfg }

// GetLogger returns the logger of the module.
func (m *Module) GetLogger() logger.Logger { return m.logger }

// Metrics returns the counters of the module.
func (m *Module) Metrics() *ModuleMetrics { return &m.metrics }

// Conns returns the connection table.
func (m *Module) Conns() *ConnTable { return m.conns }

// Certs returns the certificate store.
func (m *Module) Certs() *CertStore { return m.certs }

// Profiles returns the profile store.
func (m *Module) Profiles() *ProfileStore { return m.profiles }

// NCM returns the network connection manager.
func (m *Module) NCM() *NCM { return m.ncm }

// HasDataPath reports whether the transport can carry payloads.
func (m *Module) HasDataPath() bool { return m.data != nil }

// CurrentConfig returns a copy of the host mirror of the module's current
// configuration. Secrets are never mirrored, only whether they were set.
func (m *Module) CurrentConfig() ConfigSnapshot {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()

	return m.current.Clone()
}

func (m *Module) updateConfig(fn func(*ConfigSnapshot)) {
	m.snapMu.Lock()
	defer m.snapMu.Unlock()

	fn(&m.current)
}

func (m *Module) replaceConfig(s ConfigSnapshot) {
	m.snapMu.Lock()
	defer m.snapMu.Unlock()

	m.current = s.Clone()
}

// exec issues cmd and waits for OK.
func (m *Module) exec(cmd string, timeout time.Duration) error {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	m.metrics.incCommandCount()
	m.logger.Debug("send command", "cmd", redact(cmd), "timeout", timeout)

	if err := m.tr.SendCommandAwaitOK(cmd, timeout); err != nil {
		return m.commandFailed(cmd, err)
	}

	return nil
}

// query issues cmd and returns the reply lines of an affirmative reply.
func (m *Module) query(cmd string, timeout time.Duration) (*atcmd.Reply, error) {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	m.metrics.incCommandCount()
	m.logger.Debug("send command", "cmd", redact(cmd), "timeout", timeout)

	reply, err := m.tr.SendCommand(cmd, timeout)
	if err != nil {
		return nil, m.commandFailed(cmd, err)
	}

	if reply == nil || !reply.OK {
		final := ""
		if reply != nil {
			final = reply.Final
		}

		return nil, m.commandFailed(cmd, fmt.Errorf("module replied %q", final))
	}

	return reply, nil
}

// commandFailed logs the cause and returns the uniform failure.
func (m *Module) commandFailed(cmd string, cause error) error {
	m.metrics.incCommandErrCount()
	m.logger.Warn("command failed", "cmd", redact(cmd), "error", cause)

	return fmt.Errorf("%w: %s", ErrCommandFailed, redact(cmd))
}

var secretCommands = []string{"AT+WWPA=", "AT+WWEP1=", "AT+WPAPSK="}

// redact hides the arguments of commands carrying secrets.
func redact(cmd string) string {
	for _, prefix := range secretCommands {
		if strings.HasPrefix(cmd, prefix) {
			return prefix + "***"
		}
	}

	return cmd
}
