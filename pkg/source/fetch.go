// Package source acquires upstream source trees: it downloads versioned
// archives, verifies their recorded checksums, extracts them with the
// top-level directory stripped, and applies strict textual edits.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkgsmith/pkgsmith/pkg/telemetry"
)

// ErrChecksumMismatch reports that a downloaded archive does not match its
// recorded checksum. Fatal; no retry is attempted here.
var ErrChecksumMismatch = errors.New("archive checksum mismatch")

// DownloadRecorder is notified of completed downloads. Implemented by the
// run store; nil disables recording.
type DownloadRecorder interface {
	RecordDownload(ctx context.Context, url, sha256, path string, size int64) error
}

// Fetcher downloads upstream archives into a local cache keyed by checksum.
type Fetcher struct {
	// CacheDir is the archive cache directory.
	CacheDir string

	// Client is the HTTP client, defaulting to a client with a generous
	// timeout suitable for release tarballs.
	Client *http.Client

	// Recorder is notified of completed downloads, optional.
	Recorder DownloadRecorder

	// Metrics counts downloads by outcome, optional.
	Metrics *telemetry.Metrics

	// Log is the fetcher logger, optional.
	Log *telemetry.Logger
}

// NewFetcher creates a fetcher caching into cacheDir.
func NewFetcher(cacheDir string, log *telemetry.Logger) *Fetcher {
	return &Fetcher{
		CacheDir: cacheDir,
		Client:   &http.Client{Timeout: 15 * time.Minute},
		Log:      log,
	}
}

// Fetch returns a local path for the archive at url, downloading it unless a
// cached copy with the expected checksum already exists. The checksum is
// always verified, for cached copies too.
func (f *Fetcher) Fetch(ctx context.Context, url, sha256sum string) (string, error) {
	if err := os.MkdirAll(f.CacheDir, 0o755); err != nil {
		return "", err
	}

	cached := filepath.Join(f.CacheDir, sha256sum+"-"+filepath.Base(url))
	if _, err := os.Stat(cached); err == nil {
		if err := verifyChecksum(cached, sha256sum); err != nil {
			// A corrupt cache entry is discarded, not trusted.
			os.Remove(cached)
		} else {
			if f.Log != nil {
				f.Log.WithField("path", cached).Debug("using cached archive")
			}
			f.recordMetric("cached", 0)
			return cached, nil
		}
	}

	if f.Log != nil {
		f.Log.WithField("url", url).Info("downloading source archive")
	}

	size, err := f.download(ctx, url, cached)
	if err != nil {
		f.recordMetric("failed", 0)
		return "", err
	}
	if err := verifyChecksum(cached, sha256sum); err != nil {
		os.Remove(cached)
		f.recordMetric("failed", 0)
		return "", err
	}

	f.recordMetric("success", size)
	if f.Recorder != nil {
		if err := f.Recorder.RecordDownload(ctx, url, sha256sum, cached, size); err != nil && f.Log != nil {
			f.Log.WithError(err).Warn("failed to record download")
		}
	}
	return cached, nil
}

func (f *Fetcher) recordMetric(status string, size int64) {
	if f.Metrics != nil {
		f.Metrics.RecordDownload(status, size)
	}
}

func (f *Fetcher) download(ctx context.Context, url, dest string) (int64, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Minute}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("downloading %s: unexpected status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(f.CacheDir, ".download-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("writing %s: %w", dest, err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, err
	}
	return size, nil
}

func verifyChecksum(path, expected string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return err
	}
	actual := hex.EncodeToString(h.Sum(nil))
	if actual != expected {
		return fmt.Errorf("%w: %s: expected %s, got %s", ErrChecksumMismatch, filepath.Base(path), expected, actual)
	}
	return nil
}
