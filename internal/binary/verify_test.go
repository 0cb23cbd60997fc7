package binary

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertjbass/spindb/internal/enginemeta"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/platform"
)

// writeFakeMarker writes an executable shell script standing in for a
// marker binary's --version output.
func writeFakeMarker(t *testing.T, installDir, name, output string) {
	t.Helper()
	binDir := filepath.Join(installDir, "bin")
	require.NoError(t, os.MkdirAll(binDir, 0o755))

	script := "#!/bin/sh\necho '" + output + "'\n"
	path := filepath.Join(binDir, name)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
}

func TestVerifyAcceptsExactVersionMatch(t *testing.T) {
	if platform.Current().OS == "windows" {
		t.Skip("shell-script marker not applicable on windows")
	}
	m, _ := newTestManager(t)
	d, _ := enginemeta.Get(enum.EnginePostgreSQL)

	installDir := t.TempDir()
	writeFakeMarker(t, installDir, "postgres", "postgres (PostgreSQL) 16.4.0")

	reported, err := m.verify(context.Background(), d, installDir, "16.4.0", platform.Current())
	require.NoError(t, err)
	assert.Equal(t, "16.4.0", reported)
}

func TestVerifyAcceptsMajorMatchOnly(t *testing.T) {
	if platform.Current().OS == "windows" {
		t.Skip("shell-script marker not applicable on windows")
	}
	m, _ := newTestManager(t)
	d, _ := enginemeta.Get(enum.EnginePostgreSQL)

	installDir := t.TempDir()
	writeFakeMarker(t, installDir, "postgres", "postgres (PostgreSQL) 16.9.1")

	_, err := m.verify(context.Background(), d, installDir, "16.4.0", platform.Current())
	require.NoError(t, err)
}

func TestVerifyRejectsDifferentMajor(t *testing.T) {
	if platform.Current().OS == "windows" {
		t.Skip("shell-script marker not applicable on windows")
	}
	m, _ := newTestManager(t)
	d, _ := enginemeta.Get(enum.EnginePostgreSQL)

	installDir := t.TempDir()
	writeFakeMarker(t, installDir, "postgres", "postgres (PostgreSQL) 15.8.0")

	_, err := m.verify(context.Background(), d, installDir, "16.4.0", platform.Current())
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.KindVerifyFailed, e.Kind)
}
