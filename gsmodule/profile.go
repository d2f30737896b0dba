package gsmodule

import (
	"sync"

	"github.com/arloliu/go-gswifi/atcmd"
)

// ProfileCount is the number of profile slots of the module.
const ProfileCount = 2

// ProfileStore mirrors the profile slots saved by this process.
type ProfileStore struct {
	mu         sync.RWMutex
	saved      [ProfileCount]*ConfigSnapshot
	defaultNum uint8
}

func newProfileStore() *ProfileStore {
	return &ProfileStore{}
}

// Saved returns a copy of the snapshot saved in slot n by this process.
func (p *ProfileStore) Saved(n uint8) (ConfigSnapshot, bool) {
	if n >= ProfileCount {
		return ConfigSnapshot{}, false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.saved[n] == nil {
		return ConfigSnapshot{}, false
	}

	return p.saved[n].Clone(), true
}

// Default returns the slot loaded by the module at power-on.
func (p *ProfileStore) Default() uint8 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.defaultNum
}

func (p *ProfileStore) store(n uint8, s ConfigSnapshot) {
	c := s.Clone()

	p.mu.Lock()
	p.saved[n] = &c
	p.mu.Unlock()
}

func (p *ProfileStore) setDefault(n uint8) {
	p.mu.Lock()
	p.defaultNum = n
	p.mu.Unlock()
}

func checkProfile(n uint8) error {
	if n >= ProfileCount {
		return ErrInvalidProfile
	}

	return nil
}

// SaveProfile saves the current configuration of the module into slot n.
func (m *Module) SaveProfile(n uint8) error {
	if err := checkProfile(n); err != nil {
		return err
	}

	if err := m.exec(atcmd.SaveProfile(n), m.cfg.commandTimeout); err != nil {
		return err
	}

	m.profiles.store(n, m.CurrentConfig())
	m.logger.Info("profile saved", "profile", n)

	return nil
}

// LoadProfile makes slot n the current configuration of the module.
//
// The host mirror is replaced by the snapshot saved in slot n by this
// process. If slot n was never saved by this process the mirror becomes an
// empty snapshot with Known set to false.
func (m *Module) LoadProfile(n uint8) error {
	if err := checkProfile(n); err != nil {
		return err
	}

	if err := m.exec(atcmd.LoadProfile(n), m.cfg.commandTimeout); err != nil {
		return err
	}

	s, ok := m.profiles.Saved(n)
	if !ok {
		s = ConfigSnapshot{}
	}
	m.replaceConfig(s)
	m.logger.Info("profile loaded", "profile", n, "known", ok)

	return nil
}

// SetDefaultProfile selects the slot the module loads at power-on.
func (m *Module) SetDefaultProfile(n uint8) error {
	if err := checkProfile(n); err != nil {
		return err
	}

	if err := m.exec(atcmd.SetDefaultProfile(n), m.cfg.commandTimeout); err != nil {
		return err
	}

	m.profiles.setDefault(n)
	m.logger.Info("default profile set", "profile", n)

	return nil
}
