// Package browser provisions the headless browser runtime the render engine
// drives. When the runtime is absent it downloads a pinned build into the
// cache directory, guarded by a file lock so concurrent runs on one host
// never race the download.
package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"reelforge/internal/fileutil"
	"reelforge/internal/logging"
	"reelforge/internal/services"
)

// lookPath resolves a binary on PATH. Overridable for tests.
var lookPath = exec.LookPath

// ProgressUpdate reports download progress. TotalBytes is zero when the
// server does not announce a length; Percent is fractional in [0, 1] and
// negative when unknown.
type ProgressUpdate struct {
	BytesDownloaded int64
	TotalBytes      int64
	Percent         float64
}

// Options configures a Provisioner.
type Options struct {
	// Binary is the browser executable: an absolute path, or a name looked
	// up on PATH and in the cache directory.
	Binary string
	// CacheDir receives downloaded runtimes.
	CacheDir string
	// AutoDownload enables fetching the runtime when it is absent.
	AutoDownload bool
	DownloadURL  string
	Timeout      time.Duration
	Logger       *slog.Logger
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Provisioner ensures the browser runtime is available before bundling starts.
type Provisioner struct {
	binary       string
	cacheDir     string
	autoDownload bool
	downloadURL  string
	timeout      time.Duration
	client       *http.Client
	logger       *slog.Logger
}

// New constructs a Provisioner.
func New(opts Options) *Provisioner {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Provisioner{
		binary:       strings.TrimSpace(opts.Binary),
		cacheDir:     strings.TrimSpace(opts.CacheDir),
		autoDownload: opts.AutoDownload,
		downloadURL:  strings.TrimSpace(opts.DownloadURL),
		timeout:      timeout,
		client:       client,
		logger:       logging.NewComponentLogger(opts.Logger, "browser"),
	}
}

// EnsureAvailable returns the path of a usable browser binary, downloading
// one when allowed. It must complete before bundling begins.
func (p *Provisioner) EnsureAvailable(ctx context.Context, progress func(ProgressUpdate)) (string, error) {
	if path, ok := p.locate(); ok {
		return path, nil
	}
	if !p.autoDownload {
		return "", services.Wrap(services.ErrExternalTool, "provisioning", "browser",
			fmt.Sprintf("browser binary %q not found and browser.auto_download is disabled", p.binary), nil)
	}
	if p.cacheDir == "" || p.downloadURL == "" {
		return "", services.Wrap(services.ErrExternalTool, "provisioning", "browser", "cache dir and download url required for auto download", nil)
	}

	if err := os.MkdirAll(p.cacheDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "provisioning", "browser", "create cache directory", err)
	}

	// One downloader per host: whoever loses the lock waits, then re-checks.
	lock := flock.New(filepath.Join(p.cacheDir, "download.lock"))
	if err := lock.Lock(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "provisioning", "browser", "acquire download lock", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	if path, ok := p.locate(); ok {
		return path, nil
	}

	target := p.cachedPath()
	if err := p.download(ctx, target, progress); err != nil {
		return "", err
	}
	p.logger.Info("browser runtime downloaded",
		logging.String("path", target),
		logging.String("url", p.downloadURL),
	)
	return target, nil
}

// locate checks the explicit path, PATH, and the cache directory.
func (p *Provisioner) locate() (string, bool) {
	if p.binary != "" {
		if filepath.IsAbs(p.binary) {
			if isExecutable(p.binary) {
				return p.binary, true
			}
		} else if path, err := lookPath(p.binary); err == nil {
			return path, true
		}
	}
	if cached := p.cachedPath(); cached != "" && isExecutable(cached) {
		return cached, true
	}
	return "", false
}

func (p *Provisioner) cachedPath() string {
	if p.cacheDir == "" {
		return ""
	}
	name := p.binary
	if name == "" || filepath.IsAbs(name) {
		name = "headless-chromium"
	}
	return filepath.Join(p.cacheDir, filepath.Base(name))
}

func (p *Provisioner) download(ctx context.Context, target string, progress func(ProgressUpdate)) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.downloadURL, nil)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "provisioning", "download", "build request", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "provisioning", "download", "fetch browser runtime", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrExternalTool, "provisioning", "download",
			fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, p.downloadURL), nil)
	}

	// Torn downloads must never look usable; the atomic write keeps the
	// target absent until the stream completed.
	err = fileutil.WriteAtomic(target, 0o755, func(w io.Writer) error {
		written, copyErr := copyWithProgress(w, resp.Body, resp.ContentLength, progress)
		if copyErr != nil {
			return copyErr
		}
		if resp.ContentLength > 0 && written != resp.ContentLength {
			return fmt.Errorf("truncated download: %d of %d bytes", written, resp.ContentLength)
		}
		return nil
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "provisioning", "download", "stream browser runtime", err)
	}
	return nil
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress func(ProgressUpdate)) (int64, error) {
	var written int64
	buf := make([]byte, 128*1024)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if progress != nil {
				update := ProgressUpdate{BytesDownloaded: written, TotalBytes: total, Percent: -1}
				if total > 0 {
					update.Percent = float64(written) / float64(total)
				}
				progress(update)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}
