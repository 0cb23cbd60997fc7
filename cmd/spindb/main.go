// Command spindb is the CLI entrypoint: one constructed core.Core per
// invocation, a command per core operation. It never embeds an HTTP
// server (out of scope per §1) — Metrics.Handler is exposed for a
// caller that wants to mount it on their own mux.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/robertjbass/spindb/internal/container"
	"github.com/robertjbass/spindb/internal/core"
	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/logger"
	"github.com/robertjbass/spindb/internal/paths"
	"github.com/robertjbass/spindb/internal/pull"
)

func main() {
	app := &cli.App{
		Name:  "spindb",
		Usage: "manage local, ephemeral database containers backed by native processes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Usage:   "spindb root directory",
				EnvVars: []string{"SPINDB_ROOT"},
			},
		},
		Commands: []*cli.Command{
			createCommand(),
			startCommand(),
			stopCommand(),
			listCommand(),
			cloneCommand(),
			renameCommand(),
			deleteCommand(),
			attachCommand(),
			deleteEngineCommand(),
			backupCommand(),
			restoreCommand(),
			pullCommand(),
			maintenanceCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, formatErr(err))
		os.Exit(1)
	}
}

// formatErr surfaces an *errs.Error's remediation hint alongside its
// message, the way a human operator needs it, rather than dumping the
// wrapped cause's Go-internal string.
func formatErr(err error) string {
	var coreErr *errs.Error
	if errors.As(err, &coreErr) && coreErr.Remediation != "" {
		return fmt.Sprintf("%s (%s)", coreErr.Error(), coreErr.Remediation)
	}
	return err.Error()
}

// newCore resolves the root directory flag (falling back to
// paths.Default) and builds one Core for the command's lifetime.
func newCore(c *cli.Context) (*core.Core, context.Context, context.CancelFunc, error) {
	var layout paths.Layout
	if root := c.String("root"); root != "" {
		layout = paths.New(root)
	} else {
		var err error
		layout, err = paths.Default()
		if err != nil {
			return nil, nil, nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx, _ = logger.PrepareLogger(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cr, err := core.New(layout)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return cr, ctx, cancel, nil
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "create a new container",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "engine", Required: true, Usage: "engine (postgresql, mysql, redis, sqlite, ...)"},
			&cli.StringFlag{Name: "version", Usage: "requested version, e.g. 16 or 16.4.2"},
			&cli.IntFlag{Name: "port", Usage: "explicit port; 0 lets spindb pick one"},
			&cli.StringFlag{Name: "database", Usage: "initial logical database name"},
		},
		Action: func(c *cli.Context) error {
			name := c.Args().First()
			if name == "" {
				return cli.Exit("NAME is required", 1)
			}
			cr, ctx, cancel, err := newCore(c)
			if err != nil {
				return err
			}
			defer cancel()

			rec, err := cr.CreateContainer(ctx, core.CreateOptions{
				Name: name, Engine: enum.Engine(c.String("engine")), Version: c.String("version"),
				Port: c.Int("port"), Database: c.String("database"),
			})
			if err != nil {
				return err
			}
			fmt.Printf("created %s (%s %s)\n", rec.Name, rec.Engine, rec.Version)
			return nil
		},
	}
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name:      "start",
		Usage:     "start a container's process",
		ArgsUsage: "NAME",
		Action: func(c *cli.Context) error {
			name := c.Args().First()
			if name == "" {
				return cli.Exit("NAME is required", 1)
			}
			cr, ctx, cancel, err := newCore(c)
			if err != nil {
				return err
			}
			defer cancel()

			result, err := cr.Start(ctx, name)
			if err != nil {
				return err
			}
			fmt.Println(result.ConnectionString)
			return nil
		},
	}
}

func stopCommand() *cli.Command {
	return &cli.Command{
		Name:      "stop",
		Usage:     "stop a container's process",
		ArgsUsage: "NAME",
		Action: func(c *cli.Context) error {
			name := c.Args().First()
			if name == "" {
				return cli.Exit("NAME is required", 1)
			}
			cr, ctx, cancel, err := newCore(c)
			if err != nil {
				return err
			}
			defer cancel()
			return cr.Stop(ctx, name)
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list containers",
		Action: func(c *cli.Context) error {
			cr, _, cancel, err := newCore(c)
			if err != nil {
				return err
			}
			defer cancel()

			records, err := cr.Containers.List()
			if err != nil {
				return err
			}
			for _, rec := range records {
				fmt.Printf("%-20s %-12s %-10s %-10s port=%d\n", rec.Name, rec.Engine, rec.Version, rec.Status, rec.Port)
			}
			return nil
		},
	}
}

func cloneCommand() *cli.Command {
	return &cli.Command{
		Name:      "clone",
		Usage:     "clone a stopped container's data into a new one",
		ArgsUsage: "SOURCE TARGET",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return cli.Exit("SOURCE and TARGET are required", 1)
			}
			cr, ctx, cancel, err := newCore(c)
			if err != nil {
				return err
			}
			defer cancel()

			rec, err := cr.Containers.Clone(ctx, c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return err
			}
			fmt.Printf("cloned into %s\n", rec.Name)
			return nil
		},
	}
}

func renameCommand() *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "rename a container",
		ArgsUsage: "OLD NEW",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return cli.Exit("OLD and NEW are required", 1)
			}
			cr, ctx, cancel, err := newCore(c)
			if err != nil {
				return err
			}
			defer cancel()

			_, err = cr.Containers.Rename(ctx, c.Args().Get(0), c.Args().Get(1))
			return err
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "delete a container",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "stop the container first instead of failing"},
			&cli.BoolFlag{Name: "detach", Usage: "for file-based engines, keep the backing file on disk"},
		},
		Action: func(c *cli.Context) error {
			name := c.Args().First()
			if name == "" {
				return cli.Exit("NAME is required", 1)
			}
			cr, ctx, cancel, err := newCore(c)
			if err != nil {
				return err
			}
			defer cancel()

			return cr.Containers.Delete(ctx, name, container.DeleteOptions{
				Force:  c.Bool("force"),
				Detach: c.Bool("detach"),
			})
		},
	}
}

func attachCommand() *cli.Command {
	return &cli.Command{
		Name:      "attach",
		Usage:     "re-attach a detached file-based container's backing file",
		ArgsUsage: "NAME FILE_PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "engine", Usage: "sqlite or duckdb", Required: true},
			&cli.StringFlag{Name: "version", Usage: "engine version the file was created with", Required: true},
			&cli.StringFlag{Name: "database", Usage: "logical database name to record"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return cli.Exit("NAME and FILE_PATH are required", 1)
			}
			cr, ctx, cancel, err := newCore(c)
			if err != nil {
				return err
			}
			defer cancel()

			rec, err := cr.Containers.Attach(ctx, container.AttachOptions{
				Name:     c.Args().Get(0),
				Engine:   enum.Engine(c.String("engine")),
				Version:  c.String("version"),
				FilePath: c.Args().Get(1),
				Database: c.String("database"),
			})
			if err != nil {
				return err
			}
			fmt.Printf("attached %s\n", rec.Name)
			return nil
		},
	}
}

func deleteEngineCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete-engine",
		Usage:     "delete an installed engine binary set",
		ArgsUsage: "ENGINE VERSION",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return cli.Exit("ENGINE and VERSION are required", 1)
			}
			cr, _, cancel, err := newCore(c)
			if err != nil {
				return err
			}
			defer cancel()

			return cr.DeleteEngine(enum.Engine(c.Args().Get(0)), c.Args().Get(1))
		},
	}
}

func backupCommand() *cli.Command {
	return &cli.Command{
		Name:      "backup",
		Usage:     "back up a container's database to a file",
		ArgsUsage: "NAME OUTPUT_PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "database", Usage: "logical database to back up"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return cli.Exit("NAME and OUTPUT_PATH are required", 1)
			}
			name, outputPath := c.Args().Get(0), c.Args().Get(1)

			cr, ctx, cancel, err := newCore(c)
			if err != nil {
				return err
			}
			defer cancel()

			rec, err := cr.Containers.GetConfig(name)
			if err != nil {
				return err
			}
			a, err := cr.Adapters.Create(enum.Engine(rec.Engine))
			if err != nil {
				return err
			}
			result, err := a.Backup(ctx, cr.Containers.AdapterConfig(rec), outputPath, engine.BackupOptions{
				Database: c.String("database"),
			})
			if err != nil {
				return err
			}
			fmt.Printf("backed up to %s (%s, %d bytes)\n", result.Path, result.Format, result.Size)
			return nil
		},
	}
}

func restoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "restore a container's database from a backup file",
		ArgsUsage: "NAME INPUT_PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "database", Usage: "target logical database"},
			&cli.BoolFlag{Name: "create-database", Usage: "create the target database if it doesn't exist"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return cli.Exit("NAME and INPUT_PATH are required", 1)
			}
			name, inputPath := c.Args().Get(0), c.Args().Get(1)

			cr, ctx, cancel, err := newCore(c)
			if err != nil {
				return err
			}
			defer cancel()

			rec, err := cr.Containers.GetConfig(name)
			if err != nil {
				return err
			}
			a, err := cr.Adapters.Create(enum.Engine(rec.Engine))
			if err != nil {
				return err
			}
			result, err := a.Restore(ctx, cr.Containers.AdapterConfig(rec), inputPath, engine.RestoreOptions{
				Database:       c.String("database"),
				CreateDatabase: c.Bool("create-database"),
			})
			if err != nil {
				return err
			}
			fmt.Printf("restored (%s)\n", result.Format)
			return nil
		},
	}
}

func pullCommand() *cli.Command {
	return &cli.Command{
		Name:      "pull",
		Usage:     "pull a remote database dump into a local container (§4.10)",
		ArgsUsage: "TARGET",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Required: true, Usage: "remote connection string to dump from"},
			&cli.StringFlag{Name: "mode", Value: string(pull.ModeReplace), Usage: "replace or clone-into"},
			&cli.StringFlag{Name: "as", Usage: "new database name, required for clone-into"},
			&cli.BoolFlag{Name: "backup", Value: true, Usage: "back up the replaced database first"},
			&cli.BoolFlag{Name: "dry-run", Usage: "validate without applying"},
		},
		Action: func(c *cli.Context) error {
			target := c.Args().First()
			if target == "" {
				return cli.Exit("TARGET is required", 1)
			}
			cr, ctx, cancel, err := newCore(c)
			if err != nil {
				return err
			}
			defer cancel()

			result, err := cr.RunPull(ctx, pull.Options{
				Target:    target,
				Mode:      pull.Mode(c.String("mode")),
				As:        c.String("as"),
				SourceURL: c.String("source"),
				Backup:    c.Bool("backup"),
				DryRun:    c.Bool("dry-run"),
			})
			if err != nil {
				return err
			}
			if result.BackupName != "" {
				fmt.Printf("backed up previous data to %s\n", result.BackupName)
			}
			fmt.Printf("pulled into %s (applied=%v)\n", result.TargetDatabase, result.Applied)
			return nil
		},
	}
}

func maintenanceCommand() *cli.Command {
	return &cli.Command{
		Name:  "maintenance",
		Usage: "binary cache and registry housekeeping (§4.3, off by default)",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run one sweep immediately",
				Action: func(c *cli.Context) error {
					cr, ctx, cancel, err := newCore(c)
					if err != nil {
						return err
					}
					defer cancel()
					cr.Maintenance.RunNow(ctx, nil)
					return nil
				},
			},
			{
				Name:  "serve",
				Usage: "run the daily sweep in the foreground until interrupted",
				Action: func(c *cli.Context) error {
					cr, ctx, cancel, err := newCore(c)
					if err != nil {
						return err
					}
					defer cancel()
					cr.Maintenance.Start()
					<-ctx.Done()
					stopCtx := cr.Maintenance.Stop()
					<-stopCtx.Done()
					return nil
				},
			},
		},
	}
}
