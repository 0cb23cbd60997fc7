package binary

import (
	"context"
	"os/exec"
	"path/filepath"

	"github.com/robertjbass/spindb/internal/enginemeta"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/platform"
	"github.com/robertjbass/spindb/internal/semver"
)

// verify runs the marker binary's version flag and accepts the install
// if the reported version matches requested on full version or on major
// (§4.4). It returns the reported version string for logging.
func (m *Manager) verify(ctx context.Context, d enginemeta.Descriptor, installDir, fullVersion string, plat platform.Info) (string, error) {
	marker := filepath.Join(installDir, "bin", d.MarkerBinary+plat.ExecExt())

	cmd := exec.CommandContext(ctx, marker, d.VersionFlag)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", errs.Wrap(errs.KindVerifyFailed, "running "+marker+" "+d.VersionFlag, err)
	}

	match := d.VersionRegex.FindStringSubmatch(string(out))
	if match == nil {
		return "", errs.New(errs.KindVerifyFailed, "could not parse version from "+marker+" output")
	}

	reported := match[0]
	reportedVersion, err := semver.Parse(reported)
	if err != nil {
		return "", errs.Wrap(errs.KindVerifyFailed, "parsing reported version "+reported, err)
	}
	wantVersion, err := semver.Parse(fullVersion)
	if err != nil {
		return "", errs.Wrap(errs.KindVerifyFailed, "parsing requested version "+fullVersion, err)
	}

	if semver.Compare(reportedVersion, wantVersion) == 0 || semver.MajorMinorMatch(reportedVersion, wantVersion) {
		return reportedVersion.String(), nil
	}

	return "", errs.New(errs.KindVerifyFailed,
		"installed "+d.MarkerBinary+" reports version "+reportedVersion.String()+", expected "+wantVersion.String())
}
