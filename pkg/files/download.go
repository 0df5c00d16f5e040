package files

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/brandonyach/teamworksams/pkg/client"
)

// Downloader saves event attachments into a directory. It satisfies the
// export package's AttachmentDownloader.
type Downloader struct {
	client *client.Client
	fs     afero.Fs
	dir    string
}

// NewDownloader builds a Downloader writing into dir. A nil fs means the OS
// filesystem.
func NewDownloader(c *client.Client, fs afero.Fs, dir string) *Downloader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Downloader{client: c, fs: fs, dir: dir}
}

// Download fetches one attachment and writes it as fileName, deduplicating
// the name when a file by that name already exists.
func (d *Downloader) Download(ctx context.Context, attachmentURL, fileName string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachmentURL, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading '%s': %w", fileName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return client.NewError(fmt.Sprintf(
			"failed to download attachment from %s: status %d", attachmentURL, resp.StatusCode))
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading '%s': %w", fileName, err)
	}

	if d.dir != "" {
		if err := d.fs.MkdirAll(d.dir, 0o755); err != nil {
			return err
		}
	}
	path := filepath.Join(d.dir, d.uniqueName(fileName))
	return afero.WriteFile(d.fs, path, content, 0o644)
}

// uniqueName returns fileName, or a uuid-tagged variant when that name is
// already taken in the target directory.
func (d *Downloader) uniqueName(fileName string) string {
	if ok, _ := afero.Exists(d.fs, filepath.Join(d.dir, fileName)); !ok {
		return fileName
	}
	ext := filepath.Ext(fileName)
	stem := strings.TrimSuffix(fileName, ext)
	return fmt.Sprintf("%s_%s%s", stem, uuid.NewString()[:8], ext)
}
