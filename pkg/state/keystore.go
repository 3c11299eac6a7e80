package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/wgmesh/meshctl/internal/errx"
	"github.com/wgmesh/meshctl/pkg/mesh"
)

// KeyStore persists one key pair per host name as a JSON file per entry,
// the same one-file-per-record layout the teacher's subnet allocator uses
// for its own per-VM records.
type KeyStore struct {
	mu      sync.Mutex
	baseDir string
}

// NewKeyStore returns a store rooted at baseDir, creating it if needed.
func NewKeyStore(baseDir string) (*KeyStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, errx.Wrap(ErrStore, err)
	}
	return &KeyStore{baseDir: baseDir}, nil
}

func (s *KeyStore) path(host string) string {
	return filepath.Join(s.baseDir, host+".json")
}

// LoadOrCreate returns the persisted key pair for host, generating and
// persisting a fresh one on first use.
func (s *KeyStore) LoadOrCreate(host string) (mesh.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(host))
	if err == nil {
		var k mesh.Key
		if uerr := json.Unmarshal(data, &k); uerr != nil {
			return mesh.Key{}, errx.Wrap(ErrStore, uerr)
		}
		return k, nil
	}
	if !os.IsNotExist(err) {
		return mesh.Key{}, errx.Wrap(ErrStore, err)
	}

	k, err := mesh.GenerateKey()
	if err != nil {
		return mesh.Key{}, errx.Wrap(ErrStore, err)
	}
	if err := k.Dump(s.path(host)); err != nil {
		return mesh.Key{}, errx.Wrap(ErrStore, err)
	}
	return k, nil
}

// Get returns the persisted key pair for host, or ErrNotFound.
func (s *KeyStore) Get(host string) (mesh.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(host))
	if err != nil {
		if os.IsNotExist(err) {
			return mesh.Key{}, errx.With(ErrNotFound, ": %s", host)
		}
		return mesh.Key{}, errx.Wrap(ErrStore, err)
	}
	var k mesh.Key
	if err := json.Unmarshal(data, &k); err != nil {
		return mesh.Key{}, errx.Wrap(ErrStore, err)
	}
	return k, nil
}

// Remove deletes the persisted key pair for host. A missing file is not an
// error.
func (s *KeyStore) Remove(host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(host)); err != nil && !os.IsNotExist(err) {
		return errx.Wrap(ErrStore, err)
	}
	return nil
}

// List returns the host names with a persisted key pair.
func (s *KeyStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, errx.Wrap(ErrStore, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		const ext = ".json"
		if len(name) > len(ext) && name[len(name)-len(ext):] == ext {
			out = append(out, name[:len(name)-len(ext)])
		}
	}
	return out, nil
}
