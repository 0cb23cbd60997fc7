// Package container implements the Container Manager (§4.8): catalog
// CRUD for managed containers, name/port uniqueness, and the filesystem
// operations (rename, clone, delete) that move or remove a container's
// data/log/pid paths under the Transaction Manager.
//
// The Container Manager never starts or stops an engine process itself —
// that's the Process Manager's job, invoked through an engine.Adapter by
// the Core aggregate (§9) — but it does need to ask "is this one
// running?" before destructive filesystem operations, so it holds an
// engine.Registry for that one read-only query.
package container

import (
	"context"
	"sync"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/paths"
	"github.com/robertjbass/spindb/internal/platform"
	"github.com/robertjbass/spindb/internal/store"
)

// Manager is the Container Manager. One instance is shared across a
// running core; NameLocker serializes lifecycle operations per container
// name (§5).
type Manager struct {
	layout   paths.Layout
	catalog  *store.CatalogStore
	names    *store.NameLocker
	adapters *engine.Registry

	registriesMu sync.Mutex
	registries   map[enum.Engine]*store.RegistryStore
}

// New builds a Container Manager over an already-initialized layout,
// catalog store, name locker, and adapter registry.
func New(layout paths.Layout, catalog *store.CatalogStore, names *store.NameLocker, adapters *engine.Registry) *Manager {
	return &Manager{
		layout: layout, catalog: catalog, names: names, adapters: adapters,
		registries: map[enum.Engine]*store.RegistryStore{},
	}
}

// registryFor returns (creating if needed) the file-based-engine
// registry store for tag — the name->filePath map Detach/Attach update
// alongside the catalog.
func (m *Manager) registryFor(tag enum.Engine) *store.RegistryStore {
	m.registriesMu.Lock()
	defer m.registriesMu.Unlock()
	if rs, ok := m.registries[tag]; ok {
		return rs
	}
	rs := store.NewRegistryStore(m.layout.RegistryFile(string(tag)))
	m.registries[tag] = rs
	return rs
}

// CreateOptions parametrizes Create (§4.8).
type CreateOptions struct {
	Name     string
	Engine   enum.Engine
	Version  string
	Port     int
	Database string
}

// DeleteOptions parametrizes Delete.
type DeleteOptions struct {
	// Force stops a running container before deleting instead of failing.
	Force bool
	// Detach, for file-based engines only, keeps the backing file on
	// disk instead of removing it — the zero value deletes the file,
	// matching §4.8's "delete the file (default true) or detach".
	Detach bool
}

// List returns every container record, sorted by name.
func (m *Manager) List() ([]store.ContainerRecord, error) {
	return m.catalog.List()
}

// Exists reports whether a container with this name is in the catalog.
func (m *Manager) Exists(name string) (bool, error) {
	return m.catalog.Exists(name)
}

// GetConfig loads a single container's record.
func (m *Manager) GetConfig(name string) (store.ContainerRecord, error) {
	rec, found, err := m.catalog.Get(name)
	if err != nil {
		return store.ContainerRecord{}, err
	}
	if !found {
		return store.ContainerRecord{}, errs.New(errs.KindNotFound, "no such container: "+name)
	}
	return rec, nil
}

// UpdateConfig loads name's record, applies delta, and saves the result,
// holding that container's name lock for the whole read-modify-write.
func (m *Manager) UpdateConfig(name string, delta func(*store.ContainerRecord)) (store.ContainerRecord, error) {
	unlock := m.names.Lock(name)
	defer unlock()

	rec, err := m.GetConfig(name)
	if err != nil {
		return store.ContainerRecord{}, err
	}
	delta(&rec)
	if err := m.catalog.Save(rec); err != nil {
		return store.ContainerRecord{}, err
	}
	return rec, nil
}

// AddDatabase records db against name's tracked database list,
// idempotently (§4.8).
func (m *Manager) AddDatabase(name, db string) (store.ContainerRecord, error) {
	return m.UpdateConfig(name, func(rec *store.ContainerRecord) {
		for _, existing := range rec.Databases {
			if existing == db {
				return
			}
		}
		rec.Databases = append(rec.Databases, db)
	})
}

// RemoveDatabase drops db from name's tracked database list,
// idempotently (§4.8).
func (m *Manager) RemoveDatabase(name, db string) (store.ContainerRecord, error) {
	return m.UpdateConfig(name, func(rec *store.ContainerRecord) {
		out := rec.Databases[:0]
		for _, existing := range rec.Databases {
			if existing != db {
				out = append(out, existing)
			}
		}
		rec.Databases = out
	})
}

// AdapterConfig resolves the engine.Config an Adapter needs for rec,
// deterministically from the layout and the container's own recorded
// (engine, version) — it does not depend on the Binary Manager having
// run, since the install path it computes is a pure function of those
// three inputs (§9: "adapters never hold a reference back to the
// Container Manager" — callers pass this value, not a live reference).
func (m *Manager) AdapterConfig(rec store.ContainerRecord) engine.Config {
	plat := platform.Current()
	engineTag := rec.Engine
	return engine.Config{
		Name:       rec.Name,
		Engine:     enum.Engine(engineTag),
		Version:    rec.Version,
		Port:       rec.Port,
		Database:   rec.Database,
		InstallDir: m.layout.InstallDir(engineTag, rec.Version, plat.PlatformTag(), plat.Arch),
		DataDir:    m.layout.ContainerDataDir(engineTag, rec.Name),
		LogFile:    m.layout.ContainerLogFile(engineTag, rec.Name),
		PIDFile:    m.layout.ContainerPIDFile(engineTag, rec.Name),
		SocketFile: m.layout.ContainerSocketFile(engineTag, rec.Name),
	}
}

// isRunning asks the engine's adapter whether rec's container is
// currently a live process — used by Clone/Delete/Rename to enforce
// their stop-first preconditions.
func (m *Manager) isRunning(ctx context.Context, rec store.ContainerRecord) (bool, error) {
	a, err := m.adapters.Create(enum.Engine(rec.Engine))
	if err != nil {
		return false, err
	}
	return a.IsRunning(ctx, m.AdapterConfig(rec))
}

// stop asks rec's adapter to stop the container, used by Delete's
// force-stop path.
func (m *Manager) stop(ctx context.Context, rec store.ContainerRecord) error {
	a, err := m.adapters.Create(enum.Engine(rec.Engine))
	if err != nil {
		return err
	}
	return a.Stop(ctx, m.AdapterConfig(rec))
}
