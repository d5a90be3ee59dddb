package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkgsmith/pkgsmith/pkg/telemetry"
)

func checksumOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// countingRecorder counts download notifications.
type countingRecorder struct {
	calls int
	url   string
	size  int64
}

func (r *countingRecorder) RecordDownload(ctx context.Context, url, sha256, path string, size int64) error {
	r.calls++
	r.url = url
	r.size = size
	return nil
}

// TestFetchDownloadsAndCaches verifies a download is verified, cached, and
// served from the cache on the second request.
func TestFetchDownloadsAndCaches(t *testing.T) {
	payload := []byte("release tarball bytes")
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	recorder := &countingRecorder{}
	f := NewFetcher(t.TempDir(), nil)
	f.Recorder = recorder

	url := srv.URL + "/lib-1.0.tar.gz"
	sum := checksumOf(payload)

	path, err := f.Fetch(context.Background(), url, sum)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Error("fetched content does not match payload")
	}
	if recorder.calls != 1 || recorder.url != url || recorder.size != int64(len(payload)) {
		t.Errorf("recorder = %+v, want one call for %s", recorder, url)
	}

	// Second fetch must come from the cache.
	again, err := f.Fetch(context.Background(), url, sum)
	if err != nil {
		t.Fatalf("cached Fetch failed: %v", err)
	}
	if again != path {
		t.Errorf("cached path = %s, want %s", again, path)
	}
	if hits != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}
	if recorder.calls != 1 {
		t.Errorf("recorder called %d times, want 1 (cache hits are not downloads)", recorder.calls)
	}
}

// TestFetchChecksumMismatch verifies a corrupted payload fails and leaves no
// cache entry behind.
func TestFetchChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tampered bytes"))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	f := NewFetcher(cacheDir, nil)

	_, err := f.Fetch(context.Background(), srv.URL+"/lib-1.0.tar.gz", checksumOf([]byte("expected bytes")))
	if err == nil {
		t.Fatal("Fetch accepted a checksum mismatch")
	}
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("got %v, want ErrChecksumMismatch", err)
	}

	entries, _ := os.ReadDir(cacheDir)
	if len(entries) != 0 {
		t.Errorf("cache not empty after failed fetch: %v", entries)
	}
}

// TestFetchDiscardsCorruptCache verifies a cache entry with a wrong checksum
// is replaced by a fresh download.
func TestFetchDiscardsCorruptCache(t *testing.T) {
	payload := []byte("good payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	sum := checksumOf(payload)
	corrupt := filepath.Join(cacheDir, sum+"-lib-1.0.tar.gz")
	if err := os.WriteFile(corrupt, []byte("rotted"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(cacheDir, nil)
	path, err := f.Fetch(context.Background(), srv.URL+"/lib-1.0.tar.gz", sum)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != string(payload) {
		t.Error("corrupt cache entry was served")
	}
}

// scrapeMetrics returns the Prometheus exposition for m.
func scrapeMetrics(t *testing.T, m *telemetry.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

// TestFetchRecordsMetrics verifies download outcomes move the counters:
// fresh downloads, cache hits, and failures each under their own status.
func TestFetchRecordsMetrics(t *testing.T) {
	payload := []byte("release tarball bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "gone.tar.gz") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	f := NewFetcher(t.TempDir(), nil)
	f.Metrics = metrics

	url := srv.URL + "/lib-1.0.tar.gz"
	sum := checksumOf(payload)
	if _, err := f.Fetch(context.Background(), url, sum); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if _, err := f.Fetch(context.Background(), url, sum); err != nil {
		t.Fatalf("cached Fetch failed: %v", err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/gone.tar.gz", checksumOf(nil)); err == nil {
		t.Fatal("Fetch accepted a 404 response")
	}

	body := scrapeMetrics(t, metrics)
	for _, want := range []string{
		`pkgsmith_downloads_total{status="success"} 1`,
		`pkgsmith_downloads_total{status="cached"} 1`,
		`pkgsmith_downloads_total{status="failed"} 1`,
		fmt.Sprintf("pkgsmith_download_bytes_total %d", len(payload)),
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}

// TestFetchHTTPError verifies non-200 responses fail the fetch.
func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), nil)
	if _, err := f.Fetch(context.Background(), srv.URL+"/gone.tar.gz", checksumOf(nil)); err == nil {
		t.Fatal("Fetch accepted a 404 response")
	}
}
