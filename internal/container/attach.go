package container

import (
	"context"
	"os"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/store"
)

// AttachOptions parametrizes Attach.
type AttachOptions struct {
	Name     string
	Engine   enum.Engine
	Version  string
	FilePath string // backing file a prior Detach left on disk
	Database string
}

// Attach recreates a file-based container's catalog entry and registry
// mapping around a backing file left behind by Delete's Detach option
// (§8 scenario 6: "detach then re-attach a SQLite container"). Since
// file-based engines have no process, a successful Attach marks the
// container running immediately — "file exists and is registered" is
// the running signal Start/IsRunning check for these engines.
func (m *Manager) Attach(ctx context.Context, opts AttachOptions) (store.ContainerRecord, error) {
	if err := engine.ValidateContainerName(opts.Name); err != nil {
		return store.ContainerRecord{}, err
	}
	if !opts.Engine.FileBased() {
		return store.ContainerRecord{}, errs.New(errs.KindUnsupportedOperation,
			"attach is only supported for file-based engines").
			WithRemediation("server engines are attached by starting them, not by file path")
	}
	if opts.FilePath == "" {
		return store.ContainerRecord{}, errs.New(errs.KindPreconditionFailed, "attach requires a file path")
	}

	unlock := m.names.Lock(opts.Name)
	defer unlock()

	if exists, err := m.catalog.Exists(opts.Name); err != nil {
		return store.ContainerRecord{}, err
	} else if exists {
		return store.ContainerRecord{}, errs.New(errs.KindNameConflict, "container \""+opts.Name+"\" already exists")
	}
	if _, err := os.Stat(opts.FilePath); err != nil {
		return store.ContainerRecord{}, errs.Wrap(errs.KindNotFound, "backing file not found at "+opts.FilePath, err)
	}

	rec := store.ContainerRecord{
		Name:      opts.Name,
		Engine:    string(opts.Engine),
		Version:   opts.Version,
		Database:  opts.Database,
		Status:    string(enum.ContainerRunning),
		CreatedAt: now(),
	}
	if err := m.catalog.CreateIfAbsent(rec); err != nil {
		return store.ContainerRecord{}, err
	}
	if err := m.registryFor(opts.Engine).Update(opts.Name, opts.FilePath); err != nil {
		return store.ContainerRecord{}, err
	}
	return rec, nil
}
