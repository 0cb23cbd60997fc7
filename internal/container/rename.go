package container

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/store"
	"github.com/robertjbass/spindb/internal/txn"
)

// Rename moves oldName's data/log/pid paths to newName's under the
// Transaction Manager, then updates the catalog (§4.8). Moves prefer
// os.Rename and fall back to copy+delete on any failure — per §9's
// "always catch the cross-device error, do not assume same-filesystem" —
// since a straight copy is correct (if slower) regardless of why the
// rename failed.
func (m *Manager) Rename(ctx context.Context, oldName, newName string) (store.ContainerRecord, error) {
	if err := engine.ValidateContainerName(newName); err != nil {
		return store.ContainerRecord{}, err
	}
	if oldName == newName {
		return store.ContainerRecord{}, errs.New(errs.KindInvalidName, "rename target must differ from current name \""+oldName+"\"")
	}

	unlockOld := m.names.Lock(oldName)
	defer unlockOld()
	unlockNew := m.names.Lock(newName)
	defer unlockNew()

	rec, err := m.GetConfig(oldName)
	if err != nil {
		return store.ContainerRecord{}, err
	}
	if running, err := m.isRunning(ctx, rec); err != nil {
		return store.ContainerRecord{}, err
	} else if running {
		return store.ContainerRecord{}, errs.New(errs.KindPreconditionFailed,
			"container must be stopped before renaming").WithRemediation("stop the container, then rename")
	}

	if exists, err := m.catalog.Exists(newName); err != nil {
		return store.ContainerRecord{}, err
	} else if exists {
		return store.ContainerRecord{}, errs.New(errs.KindNameConflict, "container \""+newName+"\" already exists")
	}

	oldCfg := m.AdapterConfig(rec)
	newRec := rec
	newRec.Name = newName
	newCfg := m.AdapterConfig(newRec)

	tx := txn.New()
	moves := []struct{ from, to string }{
		{oldCfg.DataDir, newCfg.DataDir},
		{oldCfg.LogFile, newCfg.LogFile},
		{oldCfg.PIDFile, newCfg.PIDFile},
	}

	for _, mv := range moves {
		if _, err := os.Stat(mv.from); os.IsNotExist(err) {
			continue
		}
		if err := moveTree(mv.from, mv.to); err != nil {
			_ = tx.Rollback(ctx, err)
			return store.ContainerRecord{}, errs.Wrap(errs.KindStorePersistFailed, "moving "+mv.from, err)
		}
		from, to := mv.from, mv.to
		tx.AddRollback("move back "+to+" -> "+from, func(ctx context.Context) error {
			if _, err := os.Stat(to); os.IsNotExist(err) {
				return nil
			}
			return moveTree(to, from)
		})
	}

	if err := m.catalog.CreateIfAbsent(newRec); err != nil {
		_ = tx.Rollback(ctx, err)
		return store.ContainerRecord{}, err
	}
	if err := m.catalog.Delete(oldName); err != nil {
		_ = tx.Rollback(ctx, err)
		return store.ContainerRecord{}, err
	}

	tx.Commit()
	return newRec, nil
}

// moveTree relocates src to dst, preferring an atomic os.Rename and
// falling back to a recursive copy followed by removing src.
func moveTree(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyTree(src, dst); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

// copyTree recursively copies src onto dst, fsyncing each regular file
// before moving to the next so a crash mid-copy never leaves a file that
// looks complete but isn't.
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFileSynced(src, dst, info.Mode())
	}

	if err := os.MkdirAll(dst, info.Mode()); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := copyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFileSynced(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
