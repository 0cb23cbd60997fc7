// Package paths centralizes the on-disk layout under the spindb root
// directory (§6): global config, per-container catalog entries, engine
// binary installs, per-container data/log/pid/socket paths, and the
// file-based-engine registries.
package paths

import (
	"os"
	"path/filepath"
)

const envRootOverride = "SPINDB_ROOT"

// Layout resolves every path the core needs from a single root directory.
type Layout struct {
	Root string
}

// Default resolves the root directory: SPINDB_ROOT if set, otherwise
// "$HOME/.spindb".
func Default() (Layout, error) {
	if root := os.Getenv(envRootOverride); root != "" {
		return Layout{Root: root}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Layout{}, err
	}
	return Layout{Root: filepath.Join(home, ".spindb")}, nil
}

// New builds a Layout rooted at an explicit directory, for tests and
// callers that don't want the environment consulted.
func New(root string) Layout { return Layout{Root: root} }

func (l Layout) ConfigFile() string    { return filepath.Join(l.Root, "config.json") }
func (l Layout) ContainersDir() string { return filepath.Join(l.Root, "containers") }
func (l Layout) BinDir() string        { return filepath.Join(l.Root, "bin") }
func (l Layout) DataDir() string       { return filepath.Join(l.Root, "data") }
func (l Layout) LogsDir() string       { return filepath.Join(l.Root, "logs") }
func (l Layout) RunDir() string        { return filepath.Join(l.Root, "run") }
func (l Layout) RegistryDir() string   { return filepath.Join(l.Root, "registry") }

// ContainerFile is the catalog entry for a single container:
// containers/{name}.json.
func (l Layout) ContainerFile(name string) string {
	return filepath.Join(l.ContainersDir(), name+".json")
}

// InstallDir is where a specific (engine, fullVersion, os, arch) binary
// set is unpacked: bin/{engine}-{fullVersion}-{os}-{arch}/.
func (l Layout) InstallDir(engine, fullVersion, os_, arch string) string {
	return filepath.Join(l.BinDir(), engine+"-"+fullVersion+"-"+os_+"-"+arch)
}

// InstallBinDir is where the installation's executables live, under its
// install directory's bin/ subdirectory.
func (l Layout) InstallBinDir(engine, fullVersion, os_, arch string) string {
	return filepath.Join(l.InstallDir(engine, fullVersion, os_, arch), "bin")
}

// ContainerDataDir is a container's persistent data directory:
// data/{engine}/{name}/.
func (l Layout) ContainerDataDir(engine, name string) string {
	return filepath.Join(l.DataDir(), engine, name)
}

// ContainerLogFile is where a container's supervised-process stdout/stderr
// is appended: logs/{engine}/{name}.log.
func (l Layout) ContainerLogFile(engine, name string) string {
	return filepath.Join(l.LogsDir(), engine, name+".log")
}

// ContainerPIDFile records the supervised process's PID: run/{engine}/{name}.pid.
func (l Layout) ContainerPIDFile(engine, name string) string {
	return filepath.Join(l.RunDir(), engine, name+".pid")
}

// ContainerSocketFile is the optional Unix domain socket path some
// engines listen on in addition to TCP: run/{engine}/{name}.sock.
func (l Layout) ContainerSocketFile(engine, name string) string {
	return filepath.Join(l.RunDir(), engine, name+".sock")
}

// RegistryFile is a file-based engine's name->path registry:
// registry/{engine}.json.
func (l Layout) RegistryFile(engine string) string {
	return filepath.Join(l.RegistryDir(), engine+".json")
}

// EnsureDirs creates every top-level directory the layout needs, with
// owner-only permissions (data and run directories may hold credentials
// or sockets).
func (l Layout) EnsureDirs() error {
	for _, dir := range []string{
		l.Root, l.ContainersDir(), l.BinDir(), l.DataDir(),
		l.LogsDir(), l.RunDir(), l.RegistryDir(),
	} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// EnsureEngineDirs creates the per-engine data/log/run subdirectories a
// container of the given engine needs before it can be written to.
func (l Layout) EnsureEngineDirs(engine string) error {
	for _, dir := range []string{
		filepath.Join(l.DataDir(), engine),
		filepath.Join(l.LogsDir(), engine),
		filepath.Join(l.RunDir(), engine),
	} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return nil
}
