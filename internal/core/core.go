// Package core wires the Platform Service, Paths, Config/Registry
// Store, Binary Manager, Process Manager (via each engine adapter),
// Port Manager, Transaction Manager, Container Manager, Engine Adapter
// Registry, and Pull Pipeline into one constructed aggregate (§9:
// "constructed Core aggregate, not singleton"). Every other package in
// this module is usable standalone; Core is the one place they're all
// wired together for an embedding CLI or test harness.
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/robertjbass/spindb/internal/binary"
	"github.com/robertjbass/spindb/internal/container"
	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/engine/registerall"
	"github.com/robertjbass/spindb/internal/enginemeta"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/logger"
	"github.com/robertjbass/spindb/internal/maintenance"
	"github.com/robertjbass/spindb/internal/metrics"
	"github.com/robertjbass/spindb/internal/paths"
	"github.com/robertjbass/spindb/internal/portutil"
	"github.com/robertjbass/spindb/internal/pull"
	"github.com/robertjbass/spindb/internal/store"
)

// Core is the constructed aggregate every CLI command or test operates
// against.
type Core struct {
	Layout      paths.Layout
	Config      *store.ConfigStore
	Containers  *container.Manager
	Adapters    *engine.Registry
	Binaries    *binary.Manager
	Pull        *pull.Pipeline
	Metrics     *metrics.Metrics
	Maintenance *maintenance.Scheduler

	registriesMu sync.Mutex
	registries   map[enum.Engine]*store.RegistryStore
}

// New builds a Core rooted at layout, creating every on-disk directory
// the layout needs up front.
func New(layout paths.Layout) (*Core, error) {
	if err := layout.EnsureDirs(); err != nil {
		return nil, err
	}

	configStore := store.NewConfigStore(layout.ConfigFile())
	catalogStore := store.NewCatalogStore(layout.ContainersDir())
	names := store.NewNameLocker()
	adapters := registerall.New()
	containers := container.New(layout, catalogStore, names, adapters)
	binaries := binary.NewManager(layout, configStore)
	pullPipeline := pull.New(containers, adapters)
	metricsCollector := metrics.New()

	c := &Core{
		Layout:     layout,
		Config:     configStore,
		Containers: containers,
		Adapters:   adapters,
		Binaries:   binaries,
		Pull:       pullPipeline,
		Metrics:    metricsCollector,
		registries: map[enum.Engine]*store.RegistryStore{},
	}

	registries := map[enum.Engine]maintenance.RegistryLister{}
	for _, v := range enum.Engine("").Values() {
		tag := enum.Engine(v)
		if tag.FileBased() {
			registries[tag] = c.registryFor(tag)
		}
	}
	c.Maintenance = maintenance.New(configStore, registries)

	return c, nil
}

// registryFor returns (creating if needed) the file-based-engine
// registry store for tag.
func (c *Core) registryFor(tag enum.Engine) *store.RegistryStore {
	c.registriesMu.Lock()
	defer c.registriesMu.Unlock()
	if rs, ok := c.registries[tag]; ok {
		return rs
	}
	rs := store.NewRegistryStore(c.Layout.RegistryFile(string(tag)))
	c.registries[tag] = rs
	return rs
}

// CreateOptions mirrors container.CreateOptions plus the version
// resolution/default-port assignment Create needs before the catalog
// entry can be written.
type CreateOptions struct {
	Name     string
	Engine   enum.Engine
	Version  string // "16", "16.4", or "16.4.2"; resolved to full X.Y.Z
	Port     int    // 0 lets Create pick a free port for server engines
	Database string
}

// CreateContainer resolves the requested version and (for server
// engines) a free port, inserts the catalog entry, ensures the
// container's per-engine directories exist, and — for file-based
// engines only, which have no process to start later — creates the
// backing file and registers it so Start/IsRunning can treat "file
// exists" as the running signal (§4.2/§4.3).
func (c *Core) CreateContainer(ctx context.Context, opts CreateOptions) (store.ContainerRecord, error) {
	if !opts.Engine.Valid() {
		return store.ContainerRecord{}, errs.New(errs.KindUnsupportedOperation, "unknown engine: "+string(opts.Engine))
	}

	fullVersion, err := c.Binaries.ResolveVersion(ctx, opts.Engine, opts.Version)
	if err != nil {
		return store.ContainerRecord{}, err
	}

	port := opts.Port
	if port == 0 && !opts.Engine.FileBased() {
		desc, ok := enginemeta.Get(opts.Engine)
		if !ok {
			return store.ContainerRecord{}, errs.New(errs.KindUnsupportedOperation, "unknown engine: "+string(opts.Engine))
		}
		port, err = c.findFreePort(desc.DefaultPort, desc.PortRange)
		if err != nil {
			return store.ContainerRecord{}, err
		}
	}

	rec, err := c.Containers.Create(container.CreateOptions{
		Name: opts.Name, Engine: opts.Engine, Version: fullVersion, Port: port, Database: opts.Database,
	})
	if err != nil {
		return store.ContainerRecord{}, err
	}

	if err := c.Layout.EnsureEngineDirs(string(opts.Engine)); err != nil {
		return store.ContainerRecord{}, err
	}

	if opts.Engine.FileBased() {
		cfg := c.Containers.AdapterConfig(rec)
		a, err := c.Adapters.Create(opts.Engine)
		if err != nil {
			return store.ContainerRecord{}, err
		}
		if err := a.InitDataDir(ctx, cfg, engine.InitDataDirOptions{}); err != nil {
			return store.ContainerRecord{}, err
		}
		if filer, ok := a.(interface{ FilePath(engine.Config) string }); ok {
			if err := c.registryFor(opts.Engine).Update(opts.Name, filer.FilePath(cfg)); err != nil {
				return store.ContainerRecord{}, err
			}
		}
	}

	return rec, nil
}

func (c *Core) findFreePort(preferred int, rng portutil.Range) (int, error) {
	records, err := c.Containers.List()
	if err != nil {
		return 0, err
	}
	owned := func(port int) bool {
		for _, rec := range records {
			if rec.Port == port && rec.Status == string(enum.ContainerRunning) {
				return true
			}
		}
		return false
	}
	return portutil.FindAvailable(preferred, rng, owned)
}

// Start ensures the container's engine binary is installed, initializes
// its data directory if needed, spawns the supervised process via its
// adapter, and marks the catalog entry running (§4.5). File-based
// engines have no process to spawn; Start just confirms the backing
// file is in place and reports it running.
func (c *Core) Start(ctx context.Context, name string) (engine.StartResult, error) {
	rec, err := c.Containers.GetConfig(name)
	if err != nil {
		return engine.StartResult{}, err
	}
	tag := enum.Engine(rec.Engine)
	log := logger.GetLogger(ctx)

	a, err := c.Adapters.Create(tag)
	if err != nil {
		return engine.StartResult{}, err
	}

	if tag.FileBased() {
		cfg := c.Containers.AdapterConfig(rec)
		if _, err := a.Start(ctx, cfg); err != nil {
			return engine.StartResult{}, err
		}
		if _, err := c.Containers.UpdateConfig(name, func(r *store.ContainerRecord) { r.Status = string(enum.ContainerRunning) }); err != nil {
			return engine.StartResult{}, err
		}
		return engine.StartResult{ConnectionString: a.GetConnectionString(cfg, rec.Database)}, nil
	}

	installStart := time.Now()
	if _, err := c.Binaries.EnsureInstalled(ctx, tag, rec.Version, nil); err != nil {
		c.Metrics.RecordDownload(string(tag), "failure", time.Since(installStart))
		return engine.StartResult{}, err
	}
	c.Metrics.RecordDownload(string(tag), "success", time.Since(installStart))
	c.Metrics.RecordInstall(string(tag), "success")

	cfg := c.Containers.AdapterConfig(rec)
	if err := a.InitDataDir(ctx, cfg, engine.InitDataDirOptions{}); err != nil {
		return engine.StartResult{}, err
	}

	result, err := a.Start(ctx, cfg)
	if err != nil {
		c.Metrics.RecordProcessStart(string(tag), "failure")
		return engine.StartResult{}, err
	}
	c.Metrics.RecordProcessStart(string(tag), "success")

	if _, err := c.Containers.UpdateConfig(name, func(r *store.ContainerRecord) { r.Status = string(enum.ContainerRunning) }); err != nil {
		return engine.StartResult{}, err
	}

	log.Info("container started", zap.String("name", name), zap.String("engine", string(tag)), zap.Int("port", result.Port))
	return result, nil
}

// Stop stops the container's supervised process (a no-op status flip
// for file-based engines, which have none) and marks it stopped.
func (c *Core) Stop(ctx context.Context, name string) error {
	rec, err := c.Containers.GetConfig(name)
	if err != nil {
		return err
	}
	tag := enum.Engine(rec.Engine)

	if !tag.FileBased() {
		a, err := c.Adapters.Create(tag)
		if err != nil {
			return err
		}
		if err := a.Stop(ctx, c.Containers.AdapterConfig(rec)); err != nil {
			c.Metrics.RecordProcessStop(string(tag), "failure")
			return err
		}
		c.Metrics.RecordProcessStop(string(tag), "success")
	}

	_, err = c.Containers.UpdateConfig(name, func(r *store.ContainerRecord) { r.Status = string(enum.ContainerStopped) })
	return err
}

// IsRunning reports the container's live status by asking its adapter
// directly, rather than trusting the catalog's last-known status.
func (c *Core) IsRunning(ctx context.Context, name string) (bool, error) {
	rec, err := c.Containers.GetConfig(name)
	if err != nil {
		return false, err
	}
	tag := enum.Engine(rec.Engine)
	a, err := c.Adapters.Create(tag)
	if err != nil {
		return false, err
	}
	return a.IsRunning(ctx, c.Containers.AdapterConfig(rec))
}

// DeleteEngine removes an installed (engine, fullVersion) binary set,
// failing closed if any container still references it (§3's
// EngineInstallation ownership invariant; §8 scenario 5 "delete engine
// installation while in use").
func (c *Core) DeleteEngine(engine enum.Engine, fullVersion string) error {
	records, err := c.Containers.List()
	if err != nil {
		return err
	}

	var inUse int
	for _, rec := range records {
		if rec.Engine == string(engine) && rec.Version == fullVersion {
			inUse++
		}
	}
	if inUse > 0 {
		return errs.New(errs.KindPreconditionFailed,
			fmt.Sprintf("Cannot delete: %d container(s) are using %s %s", inUse, engine, fullVersion)).
			WithRemediation("delete or migrate those containers first")
	}

	return c.Binaries.Delete(engine, fullVersion)
}

// RunPull runs the Pull Pipeline and records its outcome and duration,
// wrapping Pull.Run the way Start/Stop wrap their own adapter calls.
func (c *Core) RunPull(ctx context.Context, opts pull.Options) (pull.Result, error) {
	start := time.Now()
	result, err := c.Pull.Run(ctx, opts)
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.Metrics.RecordPull(string(opts.Mode), status, time.Since(start))
	return result, err
}
