package container

import (
	"context"
	"os"

	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
)

// Delete removes a container's data/log/pid/socket paths and catalog
// entry (§4.8). A running container fails closed unless opts.Force, in
// which case it's stopped first. For file-based engines, opts.Detach
// (default false) leaves the backing file in place and only drops its
// registry mapping; without it the file is removed with the other paths.
func (m *Manager) Delete(ctx context.Context, name string, opts DeleteOptions) error {
	unlock := m.names.Lock(name)
	defer unlock()

	rec, err := m.GetConfig(name)
	if err != nil {
		return err
	}

	running, err := m.isRunning(ctx, rec)
	if err != nil {
		return err
	}
	if running {
		if !opts.Force {
			return errs.New(errs.KindPreconditionFailed,
				"container is running").WithRemediation("stop the container first, or delete with force")
		}
		if err := m.stop(ctx, rec); err != nil {
			return err
		}
	}

	cfg := m.AdapterConfig(rec)
	engineTag := enum.Engine(rec.Engine)

	if engineTag.FileBased() && opts.Detach {
		// Leave the backing file in place but drop the registry mapping
		// that lets Start/IsRunning find it — Attach recreates it later.
		if err := m.registryFor(engineTag).Remove(name); err != nil {
			return err
		}
	} else {
		for _, path := range []string{cfg.DataDir, cfg.LogFile, cfg.PIDFile, cfg.SocketFile} {
			if path == "" {
				continue
			}
			if err := os.RemoveAll(path); err != nil {
				return err
			}
		}
	}

	return m.catalog.Delete(name)
}
