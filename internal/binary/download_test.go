package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robertjbass/spindb/internal/enginemeta"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/platform"
)

func TestBuildURLSubstitutesAllPlaceholders(t *testing.T) {
	d, _ := enginemeta.Get(enum.EnginePostgreSQL)
	url := buildURL(d, "16.4.0", platform.Info{OS: "linux", Arch: "amd64"})

	assert.Contains(t, url, "postgresql-16.4.0")
	assert.Contains(t, url, "linux-amd64")
	assert.Contains(t, url, ".tar.gz")
	assert.NotContains(t, url, "{")
}

func TestBuildURLWindowsUsesZipAndWin32Tag(t *testing.T) {
	d, _ := enginemeta.Get(enum.EnginePostgreSQL)
	url := buildURL(d, "16.4.0", platform.Info{OS: "windows", Arch: "amd64"})

	assert.Contains(t, url, "win32-amd64")
	assert.Contains(t, url, ".zip")
}
