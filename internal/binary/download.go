package binary

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/robertjbass/spindb/internal/enginemeta"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/platform"
)

// buildURL renders a Descriptor's ArchiveURLTemplate for a concrete
// (version, platform) pair (§6).
func buildURL(d enginemeta.Descriptor, fullVersion string, plat platform.Info) string {
	ext := strings.TrimPrefix(plat.ArchiveExt(), ".")
	r := strings.NewReplacer(
		"{baseURL}", "", // already baked into the template
		"{engine}", string(d.Engine),
		"{version}", fullVersion,
		"{platform}", plat.PlatformTag(),
		"{arch}", plat.Arch,
		"{ext}", ext,
	)
	return r.Replace(d.ArchiveURLTemplate)
}

func (m *Manager) download(ctx context.Context, d enginemeta.Descriptor, fullVersion string, plat platform.Info, tmpDir string) (string, error) {
	url := buildURL(d, fullVersion, plat)

	result, err := m.breaker.Execute(func() (interface{}, error) {
		return m.downloadOnce(ctx, url, tmpDir, plat)
	})
	if err != nil {
		return "", errs.Wrap(errs.KindDownloadFailed, "downloading "+url, err)
	}
	return result.(string), nil
}

func (m *Manager) downloadOnce(ctx context.Context, url, tmpDir string, plat platform.Info) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", errs.New(errs.KindDownloadFailed, "version not available at "+url)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errs.New(errs.KindDownloadFailed, "unexpected status downloading "+url)
	}

	archivePath := filepath.Join(tmpDir, "archive"+plat.ArchiveExt())
	f, err := os.Create(archivePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	return archivePath, nil
}
