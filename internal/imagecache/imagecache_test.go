package imagecache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/gofrs/flock"
)

type imageServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newImageServer(t *testing.T, handler http.HandlerFunc) *imageServer {
	t.Helper()
	s := &imageServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func pngHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Write([]byte("\x89PNG fake"))
}

func newCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	opts = append([]Option{WithBatchInterval(time.Millisecond)}, opts...)
	c, err := New(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c
}

func TestKey(t *testing.T) {
	got := Key("https://example.com/a.jpg")
	if len(got) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(got))
	}
	if got != Key("https://example.com/a.jpg") {
		t.Error("expected key to be deterministic")
	}
	if got == Key("https://example.com/b.jpg") {
		t.Error("expected distinct URLs to have distinct keys")
	}
	if Key("") != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("unexpected md5 of empty string: %s", Key(""))
	}
}

func TestExtensionFor(t *testing.T) {
	tc := []struct {
		name        string
		contentType string
		url         string
		want        string
	}{
		{name: "jpeg content type", contentType: "image/jpeg", url: "https://x/a.png", want: "jpg"},
		{name: "jpg content type", contentType: "image/jpg", url: "https://x/a", want: "jpg"},
		{name: "png content type", contentType: "image/png; charset=binary", url: "https://x/a", want: "png"},
		{name: "webp content type", contentType: "IMAGE/WEBP", url: "https://x/a", want: "webp"},
		{name: "png from url", contentType: "application/octet-stream", url: "https://x/A.PNG?s=1", want: "png"},
		{name: "webp from url", contentType: "", url: "https://x/a.webp", want: "webp"},
		{name: "default", contentType: "", url: "https://x/a", want: "jpg"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := extensionFor(tt.contentType, tt.url); got != tt.want {
				t.Errorf("extensionFor(%q, %q) = %q, want %q", tt.contentType, tt.url, got, tt.want)
			}
		})
	}
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("New creates directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		c, err := New(dir)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if c.Dir() != dir {
			t.Errorf("expected dir %s, got %s", dir, c.Dir())
		}
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("expected cache directory to exist: %v", err)
		}
	})

	t.Run("GetOrFetch is idempotent", func(t *testing.T) {
		srv := newImageServer(t, pngHandler)
		c := newCache(t)
		url := srv.URL + "/cover"

		first, err := c.GetOrFetch(ctx, url)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := c.GetOrFetch(ctx, url)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if first != second {
			t.Errorf("expected same path, got %s and %s", first, second)
		}
		if srv.hits.Load() != 1 {
			t.Errorf("expected exactly 1 request, got %d", srv.hits.Load())
		}
		if filepath.Base(first) != Key(url)+".png" {
			t.Errorf("expected file named by key with png extension, got %s", filepath.Base(first))
		}
	})

	t.Run("sends user agent", func(t *testing.T) {
		var ua string
		srv := newImageServer(t, func(w http.ResponseWriter, r *http.Request) {
			ua = r.Header.Get("User-Agent")
			pngHandler(w, r)
		})
		c := newCache(t, WithUserAgent("tunesync-test"))

		if _, err := c.GetOrFetch(ctx, srv.URL); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ua != "tunesync-test" {
			t.Errorf("expected user agent tunesync-test, got %q", ua)
		}
	})

	t.Run("probes existing extensions before requesting", func(t *testing.T) {
		srv := newImageServer(t, pngHandler)
		c := newCache(t)
		url := srv.URL + "/pre"

		existing := filepath.Join(c.Dir(), Key(url)+".webp")
		if err := os.WriteFile(existing, []byte("webp"), 0o644); err != nil {
			t.Fatalf("failed to seed cache: %v", err)
		}

		got, err := c.GetOrFetch(ctx, url)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != existing {
			t.Errorf("expected %s, got %s", existing, got)
		}
		if srv.hits.Load() != 0 {
			t.Errorf("expected no requests, got %d", srv.hits.Load())
		}
	})

	t.Run("empty url fails without a request", func(t *testing.T) {
		c := newCache(t)
		_, err := c.GetOrFetch(ctx, "")
		if !errors.Is(err, shared.ErrDownloadFailed) {
			t.Errorf("expected ErrDownloadFailed, got %v", err)
		}
	})

	t.Run("non-2xx status fails and writes nothing", func(t *testing.T) {
		srv := newImageServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		})
		c := newCache(t)

		_, err := c.GetOrFetch(ctx, srv.URL+"/missing")
		if !errors.Is(err, shared.ErrDownloadFailed) {
			t.Fatalf("expected ErrDownloadFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "404") {
			t.Errorf("expected status in error, got %v", err)
		}

		stats, err := c.Stats()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if stats.FileCount != 0 {
			t.Errorf("expected empty cache, got %d files", stats.FileCount)
		}
	})

	t.Run("transport error fails", func(t *testing.T) {
		srv := newImageServer(t, pngHandler)
		url := srv.URL
		srv.Close()

		c := newCache(t)
		if _, err := c.GetOrFetch(ctx, url); !errors.Is(err, shared.ErrDownloadFailed) {
			t.Errorf("expected ErrDownloadFailed, got %v", err)
		}
	})

	t.Run("timeout fails", func(t *testing.T) {
		srv := newImageServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		c := newCache(t, WithTimeout(50*time.Millisecond))

		if _, err := c.GetOrFetch(ctx, srv.URL); !errors.Is(err, shared.ErrDownloadFailed) {
			t.Errorf("expected ErrDownloadFailed, got %v", err)
		}
	})

	t.Run("concurrent fetches of one url make one request", func(t *testing.T) {
		srv := newImageServer(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(50 * time.Millisecond)
			pngHandler(w, r)
		})
		c := newCache(t)
		url := srv.URL + "/shared"

		var wg sync.WaitGroup
		paths := make([]string, 8)
		errs := make([]error, 8)
		for i := range paths {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				paths[i], errs[i] = c.GetOrFetch(ctx, url)
			}(i)
		}
		wg.Wait()

		for i := range paths {
			if errs[i] != nil {
				t.Fatalf("goroutine %d: expected no error, got %v", i, errs[i])
			}
			if paths[i] != paths[0] {
				t.Errorf("goroutine %d: expected %s, got %s", i, paths[0], paths[i])
			}
		}
		if srv.hits.Load() != 1 {
			t.Errorf("expected exactly 1 request, got %d", srv.hits.Load())
		}
	})

	t.Run("two caches sharing a directory", func(t *testing.T) {
		srv := newImageServer(t, pngHandler)
		dir := t.TempDir()
		a, _ := New(dir)
		b, _ := New(dir)

		pa, err := a.GetOrFetch(ctx, srv.URL)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		pb, err := b.GetOrFetch(ctx, srv.URL)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if pa != pb || srv.hits.Load() != 1 {
			t.Errorf("expected shared entry and 1 request, got %s, %s, %d", pa, pb, srv.hits.Load())
		}
	})
}

func TestGetOrFetchBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("skips empty urls and reports failures", func(t *testing.T) {
		srv := newImageServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/bad" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			pngHandler(w, r)
		})
		c := newCache(t)

		urls := []string{srv.URL + "/a", "", srv.URL + "/bad", srv.URL + "/a", srv.URL + "/b"}
		results := c.GetOrFetchBatch(ctx, urls)

		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if _, ok := results[""]; ok {
			t.Error("expected empty url to be skipped")
		}
		if r := results[srv.URL+"/a"]; r.Err != nil || r.Path == "" {
			t.Errorf("expected /a to succeed, got %+v", r)
		}
		if r := results[srv.URL+"/bad"]; !errors.Is(r.Err, shared.ErrDownloadFailed) {
			t.Errorf("expected /bad to fail, got %+v", r)
		}
		if srv.hits.Load() != 3 {
			t.Errorf("expected 3 requests, got %d", srv.hits.Load())
		}
	})

	t.Run("paces network requests", func(t *testing.T) {
		srv := newImageServer(t, pngHandler)
		c := newCache(t, WithBatchInterval(40*time.Millisecond))

		start := time.Now()
		c.GetOrFetchBatch(ctx, []string{srv.URL + "/1", srv.URL + "/2", srv.URL + "/3"})
		if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
			t.Errorf("expected at least 80ms between 3 requests, took %v", elapsed)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := newImageServer(t, pngHandler)
		c := newCache(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		results := c.GetOrFetchBatch(cctx, []string{srv.URL + "/x"})
		if r := results[srv.URL+"/x"]; r.Err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

func TestEvictAndStats(t *testing.T) {
	c := newCache(t)

	write := func(name string, age time.Duration) {
		p := filepath.Join(c.Dir(), name)
		if err := os.WriteFile(p, []byte("12345"), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
		mtime := time.Now().Add(-age)
		if err := os.Chtimes(p, mtime, mtime); err != nil {
			t.Fatalf("failed to set mtime on %s: %v", name, err)
		}
	}

	write("old1.jpg", 40*24*time.Hour)
	write("old2.png", 31*24*time.Hour)
	write("fresh.webp", time.Hour)

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.FileCount != 3 || stats.TotalSize != 15 {
		t.Errorf("expected 3 files totalling 15 bytes, got %+v", stats)
	}

	removed := c.EvictOlderThan(30 * 24 * time.Hour)
	if removed != 2 {
		t.Errorf("expected 2 files removed, got %d", removed)
	}

	stats, _ = c.Stats()
	if stats.FileCount != 1 {
		t.Errorf("expected 1 file left, got %d", stats.FileCount)
	}
	if _, err := os.Stat(filepath.Join(c.Dir(), "fresh.webp")); err != nil {
		t.Errorf("expected fresh file to survive: %v", err)
	}
	if _, err := os.Stat(filepath.Join(c.Dir(), lockDir)); err != nil {
		t.Errorf("expected lock directory to survive eviction: %v", err)
	}
}

func TestEvictRemovesOrphanLocks(t *testing.T) {
	ctx := context.Background()
	srv := newImageServer(t, pngHandler)
	c := newCache(t)

	var paths []string
	for i := range 3 {
		p, err := c.GetOrFetch(ctx, fmt.Sprintf("%s/img%d", srv.URL, i))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		paths = append(paths, p)
	}

	countLocks := func() int {
		entries, err := os.ReadDir(filepath.Join(c.Dir(), lockDir))
		if err != nil {
			t.Fatalf("failed to read lock directory: %v", err)
		}
		return len(entries)
	}
	if n := countLocks(); n != 3 {
		t.Fatalf("expected 3 lock files after fetching, got %d", n)
	}

	old := time.Now().Add(-40 * 24 * time.Hour)
	for _, p := range paths[:2] {
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatalf("failed to set mtime: %v", err)
		}
	}

	if removed := c.EvictOlderThan(30 * 24 * time.Hour); removed != 2 {
		t.Errorf("expected 2 images removed, got %d", removed)
	}
	if n := countLocks(); n != 1 {
		t.Errorf("expected only the cached image's lock to remain, got %d", n)
	}

	t.Run("held locks survive", func(t *testing.T) {
		key := Key(srv.URL + "/held")
		held := flock.New(filepath.Join(c.Dir(), lockDir, key+".lock"))
		if err := held.Lock(); err != nil {
			t.Fatalf("failed to take lock: %v", err)
		}
		defer held.Unlock()

		c.EvictOlderThan(30 * 24 * time.Hour)
		if _, err := os.Stat(held.Path()); err != nil {
			t.Errorf("expected held lock file to survive: %v", err)
		}
	})

	t.Run("evicting everything removes every lock", func(t *testing.T) {
		c.EvictOlderThan(0)
		if n := countLocks(); n != 0 {
			t.Errorf("expected no lock files, got %d", n)
		}
	})
}
