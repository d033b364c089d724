// pkg/packages/download.go

package packages

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Downloader fetches a URL to a local path.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// HTTPDownloader performs a single GET; a failed download is fatal to the
// caller and is not retried. A progress bar is drawn on Progress when set.
type HTTPDownloader struct {
	Client   *http.Client
	Progress io.Writer
}

// NewHTTPDownloader returns a downloader with a bounded client timeout that
// reports progress on stderr.
func NewHTTPDownloader() *HTTPDownloader {
	return &HTTPDownloader{Client: &http.Client{Timeout: 5 * time.Minute}, Progress: os.Stderr}
}

func (d *HTTPDownloader) Download(ctx context.Context, url, dest string) error {
	logger := otelzap.Ctx(ctx)
	logger.Info("Downloading release archive", zap.String("url", url), zap.String("dest", dest))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return cerr.Wrapf(err, "build request for %s", url)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return cerr.Wrapf(err, "download %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cerr.Newf("download %s: unexpected HTTP status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return cerr.Wrap(err, "create download temp file")
	}
	var sink io.Writer = tmp
	if d.Progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(d.Progress),
			progressbar.OptionSetDescription(filepath.Base(dest)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
		sink = io.MultiWriter(tmp, bar)
	}
	n, err := io.Copy(sink, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return cerr.Wrapf(err, "write %s", dest)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return cerr.Wrapf(err, "move download to %s", dest)
	}

	logger.Debug("Download complete", zap.String("dest", dest), zap.Int64("bytes", n))
	return nil
}
