// Package binary implements the Binary Manager (§4.4): per-(engine,
// version) resolution, download, extraction, verification, and deletion
// of the engine's own server/client binaries.
package binary

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/robertjbass/spindb/internal/enginemeta"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/logger"
	"github.com/robertjbass/spindb/internal/paths"
	"github.com/robertjbass/spindb/internal/platform"
	"github.com/robertjbass/spindb/internal/semver"
	"github.com/robertjbass/spindb/internal/store"
)

// downloadTimeout is the absolute per-attempt cap on a release download
// (§4.4, §5).
const downloadTimeout = 5 * time.Minute

// ProgressFunc receives human-readable progress messages during
// ensureInstalled (downloading, extracting, verifying).
type ProgressFunc func(stage string)

// Manager is the Binary Manager. One Manager instance is shared across
// all engines; descriptors carry the per-engine specifics.
type Manager struct {
	layout  paths.Layout
	config  *store.ConfigStore
	client  *http.Client
	group   singleflight.Group
	breaker *gobreaker.CircuitBreaker
	baseURL string
}

// NewManager builds a Binary Manager rooted at layout, persisting
// resolved tool paths into config.
func NewManager(layout paths.Layout, config *store.ConfigStore) *Manager {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "engine-download-mirror",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &Manager{
		layout:  layout,
		config:  config,
		client:  &http.Client{Timeout: downloadTimeout},
		breaker: breaker,
	}
}

// ResolveVersion turns "X", "X.Y", or "X.Y.Z" into a full X.Y.Z version.
// An exact X.Y.Z passes through unchanged (after normalization); a bare
// major or major.minor resolves through the engine's known version map to
// the latest known patch. An unknown major synthesizes "{v}.0.0" with a
// warning — it may fail later at download time.
func (m *Manager) ResolveVersion(ctx context.Context, engine enum.Engine, requested string) (string, error) {
	parts := strings.Split(requested, ".")
	if len(parts) >= 3 {
		return semver.Normalize(requested)
	}

	d, ok := enginemeta.Get(engine)
	if !ok {
		return "", errs.New(errs.KindUnsupportedOperation, "unknown engine "+string(engine))
	}

	if full, ok := d.VersionMap[parts[0]]; ok {
		if len(parts) == 1 {
			return full, nil
		}
		// major.minor requested: prefer an exact major.minor.patch match
		// from the map if present, else fall back to the major's latest.
		if full2, ok := d.VersionMap[requested]; ok {
			return full2, nil
		}
		return full, nil
	}

	logger.GetLogger(ctx).Warn("unknown engine major version, synthesizing patch 0",
		zap.String("engine", string(engine)), zap.String("requested", requested))
	return semver.Normalize(requested)
}

// IsInstalled reports whether the marker executable for (engine,
// fullVersion) exists under this platform's install directory.
func (m *Manager) IsInstalled(engine enum.Engine, fullVersion string) bool {
	d, ok := enginemeta.Get(engine)
	if !ok {
		return false
	}
	plat := platform.Current()
	marker := m.layout.InstallBinDir(string(engine), fullVersion, plat.PlatformTag(), plat.Arch)
	_, err := os.Stat(marker + "/" + d.MarkerBinary + plat.ExecExt())
	return err == nil
}

// installKey is the singleflight dedup key: (engine,version,os,arch).
func installKey(engine enum.Engine, fullVersion string, plat platform.Info) string {
	return fmt.Sprintf("%s|%s|%s|%s", engine, fullVersion, plat.PlatformTag(), plat.Arch)
}

// EnsureInstalled returns the install directory for (engine, fullVersion),
// downloading/extracting/verifying it first if necessary. Concurrent
// calls for the same (engine,version,os,arch) share one outcome.
func (m *Manager) EnsureInstalled(ctx context.Context, engine enum.Engine, fullVersion string, onProgress ProgressFunc) (string, error) {
	if m.IsInstalled(engine, fullVersion) {
		return m.installDir(engine, fullVersion), nil
	}

	plat := platform.Current()
	key := installKey(engine, fullVersion, plat)

	dir, err, _ := m.group.Do(key, func() (interface{}, error) {
		return m.installOnce(ctx, engine, fullVersion, plat, onProgress)
	})
	if err != nil {
		return "", err
	}
	return dir.(string), nil
}

func (m *Manager) installDir(engine enum.Engine, fullVersion string) string {
	plat := platform.Current()
	return m.layout.InstallDir(string(engine), fullVersion, plat.PlatformTag(), plat.Arch)
}

func (m *Manager) installOnce(ctx context.Context, engine enum.Engine, fullVersion string, plat platform.Info, onProgress ProgressFunc) (string, error) {
	log := logger.WithComponent(ctx, "binary-manager")
	zlog := logger.GetLogger(log)

	d, ok := enginemeta.Get(engine)
	if !ok {
		return "", errs.New(errs.KindUnsupportedOperation, "unknown engine "+string(engine))
	}

	installDir := m.installDir(engine, fullVersion)
	tmpDir, err := os.MkdirTemp(m.layout.BinDir(), ".install-"+uuid.NewString())
	if err != nil {
		return "", errs.Wrap(errs.KindDownloadFailed, "creating temp install directory", err)
	}
	defer os.RemoveAll(tmpDir)

	success := false
	defer func() {
		if !success {
			os.RemoveAll(installDir)
		}
	}()

	report := func(stage string) {
		zlog.Info(stage, zap.String("engine", string(engine)), zap.String("version", fullVersion))
		if onProgress != nil {
			onProgress(stage)
		}
	}

	report("downloading")
	archivePath, err := m.download(ctx, d, fullVersion, plat, tmpDir)
	if err != nil {
		return "", err
	}

	report("extracting")
	if err := extractArchive(archivePath, installDir, plat); err != nil {
		return "", errs.Wrap(errs.KindExtractFailed, "extracting "+archivePath, err)
	}
	if err := normalizeLayout(installDir); err != nil {
		return "", errs.Wrap(errs.KindExtractFailed, "normalizing install layout", err)
	}
	if plat.OS != "windows" {
		if err := chmodBinaries(installDir); err != nil {
			return "", errs.Wrap(errs.KindExtractFailed, "setting executable bits", err)
		}
	}

	report("verifying")
	reported, err := m.verify(ctx, d, installDir, fullVersion, plat)
	if err != nil {
		return "", err
	}

	if err := m.config.Mutate(func(cfg *store.Config) error {
		cfg.Binaries[d.MarkerBinary] = store.BinaryToolEntry{
			Path:      installDir + "/bin/" + d.MarkerBinary + plat.ExecExt(),
			Source:    "bundled",
			CheckedAt: time.Now(),
		}
		return nil
	}); err != nil {
		return "", errs.Wrap(errs.KindStorePersistFailed, "recording installed tool path", err)
	}

	success = true
	zlog.Info("engine installed", zap.String("engine", string(engine)),
		zap.String("version", fullVersion), zap.String("reportedVersion", reported))
	return installDir, nil
}

// Delete recursively removes the install directory for (engine,
// fullVersion). Callers (Container Manager / CLI layer) are responsible
// for checking no container still references this installation first
// (§3 ownership rule).
func (m *Manager) Delete(engine enum.Engine, fullVersion string) error {
	return os.RemoveAll(m.installDir(engine, fullVersion))
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
