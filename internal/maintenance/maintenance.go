// Package maintenance runs the optional background sweep SPEC_FULL.md
// §C calls for: a 24h refresh of the binary-tool cache's staleness
// (§4.3) and a sweep of each file-based engine's registry for entries
// whose backing file has disappeared out from under spindb. It is off
// by default — "refresh is advisory and never blocks lifecycle
// operations" (§4.3) — and only ever runs if a caller explicitly starts
// it.
package maintenance

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/logger"
	"github.com/robertjbass/spindb/internal/store"
)

// cronSpec runs once every 24h, at midnight local time, in the standard
// five-field cron syntax that cron.New() parses.
const cronSpec = "0 0 * * *"

// Scheduler owns the background cron loop. The zero value is not
// usable; build one with New.
type Scheduler struct {
	cron       *cron.Cron
	config     *store.ConfigStore
	registries map[enum.Engine]RegistryLister
	entryID    cron.EntryID
}

// RegistryLister is implemented by store.RegistryStore; declared here
// so the scheduler doesn't need to know how many file-based engines
// exist to sweep them.
type RegistryLister interface {
	RemoveOrphans() (int, error)
}

// New builds a Scheduler that refreshes config's binary-tool cache and
// sweeps every registry in registries for orphaned entries on each tick.
func New(config *store.ConfigStore, registries map[enum.Engine]RegistryLister) *Scheduler {
	s := &Scheduler{cron: cron.New(), config: config, registries: registries}
	id, _ := s.cron.AddFunc(cronSpec, func() { s.runOnce(context.Background(), s.registries) })
	s.entryID = id
	return s
}

// Start begins running the scheduled sweep in the background. Calling
// Start twice on the same Scheduler is a no-op past the first call,
// matching cron.Cron's own idempotent Start.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule without interrupting an in-flight tick and
// returns at once; the returned context is done when that tick finishes.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// RunNow executes one sweep immediately, outside the schedule — used
// by a CLI "spindb maintenance run" command and by tests. A nil
// registries falls back to the set the Scheduler was built with.
func (s *Scheduler) RunNow(ctx context.Context, registries map[enum.Engine]RegistryLister) {
	if registries == nil {
		registries = s.registries
	}
	s.runOnce(ctx, registries)
}

func (s *Scheduler) runOnce(ctx context.Context, registries map[enum.Engine]RegistryLister) {
	log := logger.WithComponent(ctx, "maintenance")
	zlog := logger.GetLogger(log)

	if err := refreshBinaryCache(s.config); err != nil {
		zlog.Warn("binary cache refresh failed", zap.Error(err))
	}

	for tag, registry := range registries {
		removed, err := registry.RemoveOrphans()
		if err != nil {
			zlog.Warn("registry orphan sweep failed", zap.String("engine", string(tag)), zap.Error(err))
			continue
		}
		if removed > 0 {
			zlog.Info("removed orphaned registry entries", zap.String("engine", string(tag)), zap.Int("count", removed))
		}
	}
}

// refreshBinaryCache re-probes every recorded tool path older than
// store.StaleAfter and drops entries whose path no longer exists
// (§4.3's "a refresh re-probes --version of known paths and drops
// nonexistent entries" — the --version re-probe itself is the Binary
// Manager's concern via IsInstalled; this sweep only prunes paths that
// vanished from disk, which doesn't require spawning any binary).
func refreshBinaryCache(config *store.ConfigStore) error {
	return config.Mutate(func(cfg *store.Config) error {
		for name, entry := range cfg.Binaries {
			if time.Since(entry.CheckedAt) < store.StaleAfter {
				continue
			}
			if _, err := os.Stat(entry.Path); os.IsNotExist(err) {
				delete(cfg.Binaries, name)
				continue
			}
			entry.CheckedAt = time.Now()
			cfg.Binaries[name] = entry
		}
		return nil
	})
}
