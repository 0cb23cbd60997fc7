// Package store implements the three on-disk JSON stores §4.3 and §6
// describe: global config, the per-container catalog, and the file-based
// engine registries. Every write goes through writeAtomic: write to a
// temp file in the same directory, fsync, then rename — so a reader
// never observes a truncated file and a crash mid-write leaves the prior
// version intact.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/robertjbass/spindb/internal/errs"
)

// writeAtomic serializes v as indented JSON and atomically replaces path.
func writeAtomic(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errs.Wrap(errs.KindStorePersistFailed, "creating store directory "+dir, err)
	}

	tmp := filepath.Join(dir, ".tmp-"+filepath.Base(path)+"-"+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return errs.Wrap(errs.KindStorePersistFailed, "creating temp file for "+path, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return errs.Wrap(errs.KindStorePersistFailed, "encoding "+path, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errs.Wrap(errs.KindStorePersistFailed, "fsyncing "+path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.KindStorePersistFailed, "closing "+path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.KindStorePersistFailed, "renaming into place "+path, err)
	}
	return nil
}

// readInto loads path into v. If path doesn't exist, it returns
// (false, nil) and leaves v untouched so the caller can apply defaults.
func readInto(path string, v interface{}) (found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("parsing %s: %w", path, err)
	}
	return true, nil
}
