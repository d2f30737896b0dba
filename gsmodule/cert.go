package gsmodule

import (
	"sort"

	"github.com/arloliu/go-gswifi/atcmd"
	"github.com/puzpuzpuz/xsync/v3"
)

// CertInfo describes a certificate stored on the module. The DER bytes are
// not retained by the host.
type CertInfo struct {
	Name    string
	Storage atcmd.Storage
	Size    int
}

type certKey struct {
	name    string
	storage atcmd.Storage
}

// CertStore tracks the certificates added through this process.
// A name is unique within one storage class.
type CertStore struct {
	certs *xsync.MapOf[certKey, CertInfo]
}

func newCertStore() *CertStore {
	return &CertStore{certs: xsync.NewMapOf[certKey, CertInfo]()}
}

// Get returns the certificate name stored in storage.
func (s *CertStore) Get(name string, storage atcmd.Storage) (CertInfo, bool) {
	return s.certs.Load(certKey{name: name, storage: storage})
}

// Has reports whether name exists in any storage class.
func (s *CertStore) Has(name string) bool {
	_, flash := s.Get(name, atcmd.StorageFlash)
	_, volatile := s.Get(name, atcmd.StorageVolatile)

	return flash || volatile
}

// List returns all certificates ordered by name, then storage.
func (s *CertStore) List() []CertInfo {
	list := make([]CertInfo, 0, s.certs.Size())
	s.certs.Range(func(_ certKey, info CertInfo) bool {
		list = append(list, info)
		return true
	})
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].Storage < list[j].Storage
	})

	return list
}

// Track records a certificate already stored on the module, such as one
// added by an earlier process, so that Secure and DeleteCert accept it.
// Nothing is sent to the module.
func (s *CertStore) Track(info CertInfo) {
	s.certs.Store(certKey{name: info.Name, storage: info.Storage}, info)
}

// AddCert uploads a DER encoded certificate into storage under name.
//
// The certificate is not validated by the host. Nothing is registered unless
// both the announce command and the bulk transfer succeed.
func (m *Module) AddCert(name string, storage atcmd.Storage, der []byte) error {
	if len(der) == 0 {
		return ErrEmptyCert
	}

	if _, ok := m.certs.Get(name, storage); ok {
		return ErrCertExists
	}

	if m.data == nil {
		return ErrNoDataPath
	}

	cmd := atcmd.CertAdd(name, len(der), storage)

	m.cmdMu.Lock()
	err := m.uploadLocked(cmd, der)
	m.cmdMu.Unlock()
	if err != nil {
		return err
	}

	m.certs.certs.Store(certKey{name: name, storage: storage}, CertInfo{Name: name, Storage: storage, Size: len(der)})
	m.logger.Info("certificate added", "name", name, "storage", storage, "size", len(der))

	return nil
}

// uploadLocked announces and streams a bulk transfer. cmdMu must be held so
// that no other command interleaves with the payload.
func (m *Module) uploadLocked(cmd string, payload []byte) error {
	m.metrics.incCommandCount()
	m.logger.Debug("send command", "cmd", cmd, "timeout", m.cfg.certTimeout)

	if err := m.tr.SendCommandAwaitOK(cmd, m.cfg.certTimeout); err != nil {
		return m.commandFailed(cmd, err)
	}

	if err := m.data.WriteBulk(payload, m.cfg.certTimeout); err != nil {
		return m.commandFailed(cmd, err)
	}

	return nil
}

// DeleteCert removes the certificate name from the module.
//
// If name exists in both storage classes the module removes the volatile
// copy first; the host mirror does the same.
func (m *Module) DeleteCert(name string) error {
	volatileKey := certKey{name: name, storage: atcmd.StorageVolatile}
	flashKey := certKey{name: name, storage: atcmd.StorageFlash}

	_, inVolatile := m.certs.certs.Load(volatileKey)
	_, inFlash := m.certs.certs.Load(flashKey)
	if !inVolatile && !inFlash {
		return ErrCertNotFound
	}

	if err := m.exec(atcmd.CertDelete(name), m.cfg.certTimeout); err != nil {
		return err
	}

	removed := flashKey
	if inVolatile {
		removed = volatileKey
	}
	m.certs.certs.Delete(removed)
	m.logger.Info("certificate deleted", "name", name, "storage", removed.storage)

	return nil
}
