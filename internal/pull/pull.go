// Package pull implements the Pull Pipeline (§4.10): orchestrated
// remote-to-local data transfer in two modes, replace and clone-into,
// with Transaction Manager-backed rollback and a dry-run reporting path.
package pull

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/robertjbass/spindb/internal/container"
	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/txn"
)

// Mode selects how the pulled data lands in the target container.
type Mode string

const (
	// ModeReplace overwrites the target's primary database, optionally
	// backing it up first via a container clone.
	ModeReplace Mode = "replace"
	// ModeCloneInto restores into a newly created database named by As.
	ModeCloneInto Mode = "clone-into"
)

// Options parametrizes Run.
type Options struct {
	Target    string // target container name
	Mode      Mode
	As        string // database name for ModeCloneInto
	SourceURL string
	// Backup controls whether ModeReplace clones the target into a
	// timestamped backup container first. The field's zero value is false;
	// the pull command's --backup flag defaults to true (§4.10).
	Backup bool
	DryRun bool
}

// Result reports what Run did (or, for a dry run, would do).
type Result struct {
	Mode           Mode
	TargetDatabase string
	BackupName     string
	SourceURL      string
	Applied        bool
}

// Pipeline is the Pull Pipeline. One instance is shared across a running
// core.
type Pipeline struct {
	containers *container.Manager
	adapters   *engine.Registry
}

// New builds a Pull Pipeline over the Container Manager and engine
// adapter registry the same core aggregate already owns.
func New(containers *container.Manager, adapters *engine.Registry) *Pipeline {
	return &Pipeline{containers: containers, adapters: adapters}
}

// Run executes (or, if opts.DryRun, describes) one pull (§4.10).
func (p *Pipeline) Run(ctx context.Context, opts Options) (Result, error) {
	switch opts.Mode {
	case ModeReplace, ModeCloneInto:
	default:
		return Result{}, errs.New(errs.KindUnsupportedOperation, "unknown pull mode: "+string(opts.Mode))
	}
	if opts.SourceURL == "" {
		return Result{}, errs.New(errs.KindInvalidName, "source URL is required")
	}

	rec, err := p.containers.GetConfig(opts.Target)
	if err != nil {
		return Result{}, err
	}
	engineTag := enum.Engine(rec.Engine)

	a, err := p.adapters.Create(engineTag)
	if err != nil {
		return Result{}, err
	}
	cfg := p.containers.AdapterConfig(rec)

	if !engineTag.FileBased() {
		running, err := a.IsRunning(ctx, cfg)
		if err != nil {
			return Result{}, err
		}
		if !running {
			return Result{}, errs.New(errs.KindPreconditionFailed,
				"target container must be running to pull into it").WithRemediation("start the container, then pull")
		}
	}

	targetDatabase := rec.Database
	backupName := ""
	if opts.Mode == ModeCloneInto {
		if opts.As == "" {
			return Result{}, errs.New(errs.KindInvalidName, "--as is required for clone-into")
		}
		if err := engine.ValidateDatabaseName(opts.As); err != nil {
			return Result{}, err
		}
		targetDatabase = opts.As
	}
	if opts.Mode == ModeReplace && opts.Backup {
		backupName = fmt.Sprintf("%s-backup-%d", opts.Target, time.Now().UTC().Unix())
	}

	result := Result{Mode: opts.Mode, TargetDatabase: targetDatabase, BackupName: backupName, SourceURL: opts.SourceURL}
	if opts.DryRun {
		return result, nil
	}

	tempFile := tempDumpPath()
	defer os.Remove(tempFile)

	tx := txn.New()

	if backupName != "" {
		if err := p.runConcurrently(ctx,
			func(ctx context.Context) error {
				_, err := p.containers.Clone(ctx, opts.Target, backupName)
				return err
			},
			func(ctx context.Context) error { return a.DumpFromConnectionString(ctx, opts.SourceURL, tempFile) },
		); err != nil {
			_ = tx.Rollback(ctx, err)
			return Result{}, err
		}
		tx.AddRollback("drop cloned backup "+backupName, func(ctx context.Context) error {
			return p.containers.Delete(ctx, backupName, container.DeleteOptions{Force: true})
		})
	} else if opts.Mode == ModeCloneInto {
		if err := p.runConcurrently(ctx,
			func(ctx context.Context) error { return a.CreateDatabase(ctx, cfg, targetDatabase) },
			func(ctx context.Context) error { return a.DumpFromConnectionString(ctx, opts.SourceURL, tempFile) },
		); err != nil {
			_ = tx.Rollback(ctx, err)
			return Result{}, err
		}
		tx.AddRollback("drop created database "+targetDatabase, func(ctx context.Context) error {
			return a.DropDatabase(ctx, cfg, targetDatabase)
		})
	} else {
		if err := a.DumpFromConnectionString(ctx, opts.SourceURL, tempFile); err != nil {
			_ = tx.Rollback(ctx, err)
			return Result{}, err
		}
	}

	if _, err := a.Restore(ctx, cfg, tempFile, engine.RestoreOptions{Database: targetDatabase, CreateDatabase: false}); err != nil {
		_ = tx.Rollback(ctx, err)
		return Result{}, err
	}

	if opts.Mode == ModeCloneInto {
		if _, err := p.containers.AddDatabase(opts.Target, targetDatabase); err != nil {
			tx.AddRollback("remove database from catalog "+targetDatabase, func(ctx context.Context) error {
				_, err := p.containers.RemoveDatabase(opts.Target, targetDatabase)
				return err
			})
			_ = tx.Rollback(ctx, err)
			return Result{}, err
		}
	}

	tx.Commit()
	result.Applied = true
	return result, nil
}

// runConcurrently runs two independent steps side by side (the source
// dump has no dependency on the target-side backup/create step) and
// returns the first error, cancelling the other via the shared context
// (§5, grounded on golang.org/x/sync/errgroup's bounded-fan-out shape).
func (p *Pipeline) runConcurrently(ctx context.Context, steps ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, step := range steps {
		step := step
		g.Go(func() error { return step(gctx) })
	}
	return g.Wait()
}

func tempDumpPath() string {
	return fmt.Sprintf("%s/spindb-pull-%s.dump", os.TempDir(), uuid.NewString())
}
