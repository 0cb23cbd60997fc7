package binary

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/robertjbass/spindb/internal/platform"
)

// extractArchive extracts archivePath into destDir, creating destDir
// first. POSIX uses the external `tar` binary for tar.gz; Windows uses
// PowerShell's Expand-Archive for zip (§4.4: "external tar" / "system
// archiver").
func extractArchive(archivePath, destDir string, plat platform.Info) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	var cmd *exec.Cmd
	if plat.OS == "windows" {
		cmd = exec.Command("powershell", "-NoProfile", "-Command",
			fmt.Sprintf("Expand-Archive -Path %q -DestinationPath %q -Force", archivePath, destDir))
	} else {
		cmd = exec.Command("tar", "-xzf", archivePath, "-C", destDir)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %s", err, string(out))
	}
	return nil
}

// normalizeLayout flattens a single top-level directory inside destDir
// (the common "archive contains one engine-named folder" shape) so that
// {destDir}/bin/{marker} is always where callers look, regardless of
// how the upstream archive is structured.
func normalizeLayout(destDir string) error {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	nested := filepath.Join(destDir, entries[0].Name())
	nestedEntries, err := os.ReadDir(nested)
	if err != nil {
		return err
	}
	for _, e := range nestedEntries {
		if err := os.Rename(filepath.Join(nested, e.Name()), filepath.Join(destDir, e.Name())); err != nil {
			return err
		}
	}
	return os.Remove(nested)
}

// chmodBinaries sets 0755 on every file under destDir/bin (§4.4).
func chmodBinaries(destDir string) error {
	binDir := filepath.Join(destDir, "bin")
	entries, err := os.ReadDir(binDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Chmod(filepath.Join(binDir, e.Name()), 0o755); err != nil {
			return err
		}
	}
	return nil
}
