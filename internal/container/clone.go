package container

import (
	"context"
	"os"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/enginemeta"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/store"
	"github.com/robertjbass/spindb/internal/txn"
)

// Clone copies source's data directory into a newly registered target
// container, assigning a fresh free port for server engines, and
// registers the target in status=stopped (§4.8). Per Open Question
// decision #4, source must already be stopped — clone never stops a
// running server as a side effect, since that would surprise a caller
// who only asked to duplicate data.
func (m *Manager) Clone(ctx context.Context, sourceName, targetName string) (store.ContainerRecord, error) {
	if err := engine.ValidateContainerName(targetName); err != nil {
		return store.ContainerRecord{}, err
	}
	if sourceName == targetName {
		return store.ContainerRecord{}, errs.New(errs.KindInvalidName, "clone target must differ from source container \""+sourceName+"\"")
	}

	unlockSrc := m.names.Lock(sourceName)
	defer unlockSrc()
	unlockTarget := m.names.Lock(targetName)
	defer unlockTarget()

	source, err := m.GetConfig(sourceName)
	if err != nil {
		return store.ContainerRecord{}, err
	}
	if running, err := m.isRunning(ctx, source); err != nil {
		return store.ContainerRecord{}, err
	} else if running {
		return store.ContainerRecord{}, errs.New(errs.KindPreconditionFailed,
			"source container must be stopped before cloning").WithRemediation("stop the container, then clone")
	}
	if exists, err := m.catalog.Exists(targetName); err != nil {
		return store.ContainerRecord{}, err
	} else if exists {
		return store.ContainerRecord{}, errs.New(errs.KindNameConflict, "container \""+targetName+"\" already exists")
	}

	target := source
	target.Name = targetName
	target.Status = string(enum.ContainerStopped)
	target.CreatedAt = now()

	engineTag := enum.Engine(source.Engine)
	if !engineTag.FileBased() {
		desc, ok := enginemeta.Get(engineTag)
		if !ok {
			return store.ContainerRecord{}, errs.New(errs.KindUnsupportedOperation, "unknown engine "+source.Engine)
		}
		port, err := m.findFreePort(desc.DefaultPort, desc.PortRange)
		if err != nil {
			return store.ContainerRecord{}, err
		}
		target.Port = port
	}

	sourceCfg := m.AdapterConfig(source)
	targetCfg := m.AdapterConfig(target)

	tx := txn.New()
	if err := copyTree(sourceCfg.DataDir, targetCfg.DataDir); err != nil {
		return store.ContainerRecord{}, errs.Wrap(errs.KindStorePersistFailed, "copying data directory", err)
	}
	tx.AddRollback("remove cloned data directory", func(ctx context.Context) error {
		return os.RemoveAll(targetCfg.DataDir)
	})

	if err := m.catalog.CreateIfAbsent(target); err != nil {
		_ = tx.Rollback(ctx, err)
		return store.ContainerRecord{}, err
	}

	tx.Commit()
	return target, nil
}
