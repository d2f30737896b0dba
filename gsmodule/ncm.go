package gsmodule

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-gswifi/atcmd"
	"github.com/arloliu/go-gswifi/internal/pool"
	"github.com/arloliu/go-gswifi/logger"
)

// NCMState is the state of the network connection manager.
type NCMState int32

const (
	NCMDisabled NCMState = iota
	NCMAssociating
	NCMAssociated
	NCMConnecting
	NCMConnected
	// NCMAssociateOnlyIdle is the final state of an association-only session.
	NCMAssociateOnlyIdle
)

func (s NCMState) String() string {
	switch s {
	case NCMDisabled:
		return "disabled"
	case NCMAssociating:
		return "associating"
	case NCMAssociated:
		return "associated"
	case NCMConnecting:
		return "connecting"
	case NCMConnected:
		return "connected"
	case NCMAssociateOnlyIdle:
		return "associate-only-idle"
	default:
		return "unknown"
	}
}

// NCMDriver selects who drives the association and connection attempts.
type NCMDriver uint8

const (
	// DriverModule lets the module firmware retry. The host mirrors its
	// progress from events.
	DriverModule NCMDriver = iota
	// DriverHost issues association and connect commands from NCM.Step.
	DriverHost
)

func (d NCMDriver) String() string {
	if d == DriverHost {
		return "host"
	}

	return "module"
}

// ZeroRetryPolicy defines what a retry bound of 0 means.
type ZeroRetryPolicy uint8

const (
	// ZeroRetryOnce makes a bound of 0 allow a single attempt.
	ZeroRetryOnce ZeroRetryPolicy = iota
	// ZeroRetryUnlimited makes a bound of 0 retry forever.
	ZeroRetryUnlimited
)

// RetryPolicy bounds the attempts of each NCM phase.
type RetryPolicy struct {
	// Associate is the number of association attempts before halting.
	Associate uint16
	// Connect is the number of connection attempts before halting.
	Connect uint16
	// Zero defines the meaning of a bound of 0.
	Zero ZeroRetryPolicy
}

// exhausted reports whether attempts failed attempts used up bound.
func (p RetryPolicy) exhausted(attempts uint32, bound uint16) bool {
	if bound == 0 {
		return p.Zero == ZeroRetryOnce && attempts >= 1
	}

	return attempts >= uint32(bound)
}

// NCMOptions are the settings of NCM.Enable.
type NCMOptions struct {
	// AssociateOnly stops after association even if an auto connect target
	// is configured.
	AssociateOnly bool
	// Persist folds the settings into the current configuration so that the
	// next SaveProfile stores them.
	Persist bool
	Mode    atcmd.NCMMode
	Driver  NCMDriver
}

// NCMStateChangeHandler is invoked on every NCM state change.
// It is called synchronously and must not call Enable, Disable or Step.
type NCMStateChangeHandler func(prevState NCMState, newState NCMState)

type ncmChange struct {
	prev NCMState
	next NCMState
}

// NCM is the network connection manager. It keeps the module associated
// with the auto associate network and, unless associate-only, connected to
// the auto connect target.
type NCM struct {
	m      *Module
	logger logger.Logger

	// mu guards opts, cid and every state change.
	mu   sync.Mutex
	opts NCMOptions
	cid  CID

	state         atomic.Int32
	enabled       atomic.Bool
	halted        atomic.Bool
	assocAttempts atomic.Uint32
	connAttempts  atomic.Uint32

	handlerMu sync.RWMutex
	handlers  []NCMStateChangeHandler
}

func newNCM(m *Module) *NCM {
	return &NCM{
		m:      m,
		logger: m.logger.With("component", "ncm"),
		cid:    InvalidCID,
	}
}

// State returns the current state.
func (n *NCM) State() NCMState { return NCMState(n.state.Load()) }

// Enabled reports whether the manager is enabled.
func (n *NCM) Enabled() bool { return n.enabled.Load() }

// Halted reports whether the current phase used up its retry bound. A
// halted manager stays enabled and resumes on the next association event.
func (n *NCM) Halted() bool { return n.halted.Load() }

// Attempts returns the attempts of the current association and connection
// phases.
func (n *NCM) Attempts() (associate uint32, connect uint32) {
	return n.assocAttempts.Load(), n.connAttempts.Load()
}

// Options returns the options of the last Enable.
func (n *NCM) Options() NCMOptions {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.opts
}

// CID returns the connection held by the manager, InvalidCID if none.
func (n *NCM) CID() CID {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.cid
}

// AddStateChangeHandler registers handlers invoked on every state change.
func (n *NCM) AddStateChangeHandler(handlers ...NCMStateChangeHandler) {
	n.handlerMu.Lock()
	defer n.handlerMu.Unlock()

	n.handlers = append(n.handlers, handlers...)
}

// Enable starts the manager.
//
// With DriverModule the module is instructed to run its own manager; with
// DriverHost no command is sent and NCM.Step or NCM.Run drive the attempts.
// Prerequisites such as the auto associate network are not validated.
func (n *NCM) Enable(opts NCMOptions) error {
	if opts.Driver == DriverModule {
		cmd := atcmd.NCMAuto(opts.Mode, true, opts.AssociateOnly, opts.Persist)
		if err := n.m.exec(cmd, n.m.cfg.commandTimeout); err != nil {
			return err
		}
	}

	var changes []ncmChange

	n.mu.Lock()
	n.opts = opts
	n.cid = InvalidCID
	n.resetLocked()
	n.enabled.Store(true)
	n.setStateLocked(NCMAssociating, &changes)
	n.mu.Unlock()

	if opts.Persist {
		settings := NCMSettings{Enabled: true, AssociateOnly: opts.AssociateOnly, Mode: opts.Mode}
		n.m.updateConfig(func(s *ConfigSnapshot) { s.NCM = &settings })
	}

	n.logger.Info("ncm enabled", "driver", opts.Driver, "mode", opts.Mode, "associateOnly", opts.AssociateOnly, "persist", opts.Persist)
	n.notify(changes)

	return nil
}

// Disable stops the manager. Connections it opened stay open.
//
// Unless the manager runs on the host, the module is instructed to stop its
// own manager, also when this process never enabled it.
func (n *NCM) Disable() error {
	opts := n.Options()

	if !n.enabled.Load() || opts.Driver == DriverModule {
		cmd := atcmd.NCMAuto(opts.Mode, false, opts.AssociateOnly, opts.Persist)
		if err := n.m.exec(cmd, n.m.cfg.commandTimeout); err != nil {
			return err
		}
	}

	var changes []ncmChange

	n.mu.Lock()
	n.enabled.Store(false)
	n.resetLocked()
	n.setStateLocked(NCMDisabled, &changes)
	n.mu.Unlock()

	if opts.Persist {
		settings := NCMSettings{Enabled: false, AssociateOnly: opts.AssociateOnly, Mode: opts.Mode}
		n.m.updateConfig(func(s *ConfigSnapshot) { s.NCM = &settings })
	}

	n.logger.Info("ncm disabled")
	n.notify(changes)

	return nil
}

// Step performs one attempt of the current phase when the manager runs on
// the host. It returns the error of the attempt, ErrNCMDisabled when the
// manager is disabled, and nil when there is nothing to do.
func (n *NCM) Step() error {
	if !n.enabled.Load() {
		return ErrNCMDisabled
	}

	if n.Options().Driver != DriverHost || n.halted.Load() {
		return nil
	}

	switch n.State() {
	case NCMAssociating:
		return n.stepAssociate()
	case NCMConnecting:
		return n.stepConnect()
	default:
		return nil
	}
}

// Run handles events and steps the manager every retry period until ctx is
// done.
func (n *NCM) Run(ctx context.Context) error {
	period := n.m.cfg.ncmRetryPeriod
	n.logger.Debug("ncm loop started", "period", period)

	for {
		n.m.HandleEvents()

		if err := n.Step(); err != nil && !errors.Is(err, ErrNCMDisabled) {
			n.logger.Debug("ncm attempt failed", "state", n.State(), "error", err)
		}

		if err := pool.Sleep(ctx, period); err != nil {
			n.logger.Debug("ncm loop stopped")
			return nil
		}
	}
}

func (n *NCM) stepAssociate() error {
	var a Association
	if target := n.m.CurrentConfig().AutoAssociate; target != nil {
		a = Association{SSID: target.SSID, BSSID: target.BSSID, Channel: target.Channel, BestRSSI: true}
	}

	n.assocAttempts.Add(1)
	n.m.metrics.incNCMAssociateAttempts()
	err := n.m.Associate(a)

	var changes []ncmChange

	n.mu.Lock()
	if n.enabled.Load() && n.State() == NCMAssociating {
		if err == nil {
			n.associatedLocked(&changes)
		} else {
			n.failedLocked("associate", n.assocAttempts.Load(), n.m.cfg.retryPolicy.Associate)
		}
	}
	n.mu.Unlock()

	n.notify(changes)

	return err
}

func (n *NCM) stepConnect() error {
	target := n.m.CurrentConfig().AutoConnect
	if target == nil {
		return nil
	}

	n.connAttempts.Add(1)
	n.m.metrics.incNCMConnectAttempts()
	cid, err := n.connect(*target)

	var changes []ncmChange

	n.mu.Lock()
	if n.enabled.Load() && n.State() == NCMConnecting {
		if err == nil {
			n.cid = cid
			n.setStateLocked(NCMConnected, &changes)
		} else {
			n.failedLocked("connect", n.connAttempts.Load(), n.m.cfg.retryPolicy.Connect)
		}
	} else if err == nil {
		n.logger.Warn("ncm state changed during connect, leaving connection to the caller", "cid", cid)
	}
	n.mu.Unlock()

	n.notify(changes)

	return err
}

func (n *NCM) connect(target AutoConnect) (CID, error) {
	if target.Server {
		if target.Protocol == atcmd.ProtocolUDP {
			return n.m.ListenUDP(target.Port)
		}

		return n.m.ListenTCP(target.Port)
	}

	ip, err := netip.ParseAddr(target.Host)
	if err != nil {
		if ip, err = n.m.DNSLookup(target.Host); err != nil {
			return InvalidCID, err
		}
	}

	if target.Protocol == atcmd.ProtocolUDP {
		return n.m.ConnectUDP(ip, target.Port, 0)
	}

	return n.m.ConnectTCP(ip, target.Port)
}

// moduleDriven reports whether the module's own manager is running and may
// open connections without a command.
func (n *NCM) moduleDriven() bool {
	return n.enabled.Load() && n.Options().Driver == DriverModule
}

// onEvent advances the manager from an unsolicited event.
func (n *NCM) onEvent(ev atcmd.Event) {
	if !n.enabled.Load() {
		return
	}

	var changes []ncmChange

	n.mu.Lock()
	moduleDriven := n.opts.Driver == DriverModule
	state := n.State()

	switch ev.Kind {
	case atcmd.EventAssociated:
		if state != NCMDisabled {
			n.associatedLocked(&changes)
		}

	case atcmd.EventAssociateFailed:
		if moduleDriven && state == NCMAssociating && !n.halted.Load() {
			attempts := n.assocAttempts.Add(1)
			n.m.metrics.incNCMAssociateAttempts()
			n.failedLocked("associate", attempts, n.m.cfg.retryPolicy.Associate)
		}

	case atcmd.EventDisassociated:
		n.cid = InvalidCID
		n.resetLocked()
		n.setStateLocked(NCMAssociating, &changes)

	case atcmd.EventDisconnect:
		if ev.CID == n.cid {
			n.cid = InvalidCID
			n.connAttempts.Store(0)
			n.halted.Store(false)
			if state == NCMConnected {
				n.setStateLocked(NCMConnecting, &changes)
			}
		}

	case atcmd.EventConnected:
		if moduleDriven && state == NCMConnecting {
			n.cid = ev.CID
			if ev.Parent != InvalidCID {
				n.cid = ev.Parent
			}
			n.connAttempts.Store(0)
			n.setStateLocked(NCMConnected, &changes)
		}

	case atcmd.EventConnectFailed:
		if moduleDriven && state == NCMConnecting && !n.halted.Load() {
			attempts := n.connAttempts.Add(1)
			n.m.metrics.incNCMConnectAttempts()
			n.failedLocked("connect", attempts, n.m.cfg.retryPolicy.Connect)
		}
	}
	n.mu.Unlock()

	n.notify(changes)
}

// associatedLocked enters NCMAssociated and moves on to the next phase.
// Without an auto associate network the session stays association-only,
// whatever the auto connect target.
func (n *NCM) associatedLocked(changes *[]ncmChange) {
	n.resetLocked()
	n.setStateLocked(NCMAssociated, changes)

	cfg := n.m.CurrentConfig()
	if n.opts.AssociateOnly || cfg.AutoAssociate == nil || cfg.AutoConnect == nil {
		n.setStateLocked(NCMAssociateOnlyIdle, changes)
		return
	}

	n.setStateLocked(NCMConnecting, changes)
	if n.cid != InvalidCID && n.m.conns.State(n.cid).IsUsable() {
		n.setStateLocked(NCMConnected, changes)
	}
}

func (n *NCM) failedLocked(phase string, attempts uint32, bound uint16) {
	if !n.m.cfg.retryPolicy.exhausted(attempts, bound) {
		n.logger.Debug("ncm attempt failed", "phase", phase, "attempts", attempts)
		return
	}

	n.halted.Store(true)
	n.logger.Warn("ncm retries exhausted, waiting for association event", "phase", phase, "attempts", attempts)
}

func (n *NCM) resetLocked() {
	n.assocAttempts.Store(0)
	n.connAttempts.Store(0)
	n.halted.Store(false)
}

func (n *NCM) setStateLocked(next NCMState, changes *[]ncmChange) {
	prev := NCMState(n.state.Swap(int32(next)))
	if prev == next {
		return
	}

	n.logger.Info("ncm state changed", "prevState", prev, "newState", next)
	*changes = append(*changes, ncmChange{prev: prev, next: next})
}

func (n *NCM) notify(changes []ncmChange) {
	if len(changes) == 0 {
		return
	}

	n.handlerMu.RLock()
	handlers := n.handlers
	n.handlerMu.RUnlock()

	for _, c := range changes {
		for _, handler := range handlers {
			if handler != nil {
				handler(c.prev, c.next)
			}
		}
	}
}
