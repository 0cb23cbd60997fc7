package container

import (
	"time"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/portutil"
	"github.com/robertjbass/spindb/internal/store"
)

// Create validates name and port uniqueness and inserts a new catalog
// entry in status=created (§4.8); it does not touch the filesystem or
// start anything — InitDataDir and Start are the Core aggregate's job
// once the Binary Manager has a binary in place.
func (m *Manager) Create(opts CreateOptions) (store.ContainerRecord, error) {
	if err := engine.ValidateContainerName(opts.Name); err != nil {
		return store.ContainerRecord{}, err
	}
	if opts.Database != "" {
		if err := engine.ValidateDatabaseName(opts.Database); err != nil {
			return store.ContainerRecord{}, err
		}
	}

	unlock := m.names.Lock(opts.Name)
	defer unlock()

	if opts.Port != 0 {
		if conflict, err := m.portOwnedByAnotherRunning(opts.Port, ""); err != nil {
			return store.ContainerRecord{}, err
		} else if conflict {
			return store.ContainerRecord{}, errs.New(errs.KindPortUnavailable,
				"port already in use by another running container").
				WithRemediation("pick a different port or stop the owning container")
		}
	}

	rec := store.ContainerRecord{
		Name:      opts.Name,
		Engine:    string(opts.Engine),
		Version:   opts.Version,
		Port:      opts.Port,
		Database:  opts.Database,
		Status:    string(enum.ContainerCreated),
		CreatedAt: now(),
	}
	if opts.Database != "" {
		rec.Databases = []string{opts.Database}
	}

	if err := m.catalog.CreateIfAbsent(rec); err != nil {
		return store.ContainerRecord{}, err
	}
	return rec, nil
}

// portOwnedByAnotherRunning reports whether port is currently bound to a
// different, running container than excludeName — used so Create can
// reject an explicit port collision against a live neighbor
// rather than discovering it at start time.
func (m *Manager) portOwnedByAnotherRunning(port int, excludeName string) (bool, error) {
	records, err := m.catalog.List()
	if err != nil {
		return false, err
	}
	for _, rec := range records {
		if rec.Name == excludeName || rec.Port != port {
			continue
		}
		if rec.Status == string(enum.ContainerRunning) {
			return true, nil
		}
	}
	return false, nil
}

// findFreePort resolves a port for Clone when the source is a networked
// server engine: prefer the given port (the engine's default) if free,
// else scan the engine's configured range, skipping every port already
// assigned to a catalog entry, running or not, so the clone never shares
// a port with its (stopped) source.
func (m *Manager) findFreePort(preferred int, rng portutil.Range) (int, error) {
	records, err := m.catalog.List()
	if err != nil {
		return 0, err
	}
	owned := func(port int) bool {
		for _, rec := range records {
			if rec.Port == port {
				return true
			}
		}
		return false
	}
	return portutil.FindAvailable(preferred, rng, owned)
}

func now() time.Time { return time.Now().UTC() }
