package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robertjbass/spindb/internal/errs"
)

// ContainerRecord is the on-disk shape of containers/{name}.json (§6).
type ContainerRecord struct {
	Name      string    `json:"name"`
	Engine    string    `json:"engine"`
	Version   string    `json:"version"`
	Port      int       `json:"port"`
	Database  string    `json:"database"`
	Databases []string  `json:"databases"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// CatalogStore persists one JSON file per container under containers/.
// Structural operations (List, CreateIfAbsent) hold the store-wide lock
// briefly; per-container read/save/delete rely on the caller already
// holding that container's NameLocker lock, matching the Container
// Manager's serialization contract (§5).
type CatalogStore struct {
	dir string
	mu  sync.RWMutex
}

// NewCatalogStore builds a store rooted at dir (typically paths.Layout.ContainersDir()).
func NewCatalogStore(dir string) *CatalogStore {
	return &CatalogStore{dir: dir}
}

// List returns every container record currently on disk, sorted by name.
func (s *CatalogStore) List() ([]ContainerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []ContainerRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		rec, found, err := s.get(name)
		if err != nil {
			return nil, err
		}
		if found {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

// Exists reports whether a container record with this name is on disk.
func (s *CatalogStore) Exists(name string) (bool, error) {
	_, found, err := s.Get(name)
	return found, err
}

// Get loads a single container record.
func (s *CatalogStore) Get(name string) (ContainerRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(name)
}

func (s *CatalogStore) get(name string) (ContainerRecord, bool, error) {
	var rec ContainerRecord
	found, err := readInto(s.path(name), &rec)
	if err != nil {
		return ContainerRecord{}, false, err
	}
	return rec, found, nil
}

// Save writes rec, overwriting any existing record with the same name.
// Callers performing create/update semantics should hold that name's
// NameLocker lock first.
func (s *CatalogStore) Save(rec ContainerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path(rec.Name), rec)
}

// CreateIfAbsent saves rec only if no record with this name exists yet,
// returning a NameConflict error otherwise. The whole check+write happens
// under the store's lock so two concurrent creates can't both succeed.
func (s *CatalogStore) CreateIfAbsent(rec ContainerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, found, err := s.get(rec.Name)
	if err != nil {
		return err
	}
	if found {
		return errs.New(errs.KindNameConflict, "container \""+rec.Name+"\" already exists")
	}
	return writeAtomic(s.path(rec.Name), rec)
}

// Delete removes a container's catalog entry. Missing files are not an
// error (idempotent unlink, §7).
func (s *CatalogStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *CatalogStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}
