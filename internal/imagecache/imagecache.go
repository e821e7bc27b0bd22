// package imagecache stores remote images on local disk under content-addressed names.
package imagecache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultInterval  = 100 * time.Millisecond
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	lockDir          = ".locks"
)

// Extensions probed, in order, before any network request.
var Extensions = []string{"jpg", "png", "webp"}

// Result is the outcome of one batch entry.
type Result struct {
	Path string
	Err  error
}

// Stats describes the cache directory contents.
type Stats struct {
	Dir       string
	FileCount int
	TotalSize int64
}

// Cache maps image URLs to files on local disk.
//
// Safe for concurrent use. Identical URLs are fetched at most once per process via singleflight
// and at most once across processes via a per-key file lock.
type Cache struct {
	dir       string
	client    *http.Client
	timeout   time.Duration
	userAgent string
	interval  time.Duration
	logger    *log.Logger
	group     singleflight.Group
}

// Option configures a [Cache].
type Option func(*Cache)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) { c.client = client }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithTimeout sets the per-download timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

// WithBatchInterval sets the pause enforced between batch downloads.
func WithBatchInterval(d time.Duration) Option {
	return func(c *Cache) { c.interval = d }
}

// WithUserAgent sets the User-Agent header sent with downloads.
func WithUserAgent(ua string) Option {
	return func(c *Cache) { c.userAgent = ua }
}

// New creates a cache rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Cache, error) {
	c := &Cache{
		dir:       dir,
		client:    http.DefaultClient,
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
		interval:  defaultInterval,
		logger:    shared.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := os.MkdirAll(filepath.Join(dir, lockDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return c, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

// Key returns the cache key for a URL: the lowercase hex MD5 of its bytes.
func Key(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached path for url without touching the network.
func (c *Cache) Lookup(url string) (string, bool) {
	if url == "" {
		return "", false
	}
	return c.probe(Key(url))
}

func (c *Cache) probe(key string) (string, bool) {
	for _, ext := range Extensions {
		p := filepath.Join(c.dir, key+"."+ext)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// GetOrFetch returns the local path for url, downloading it on a cache miss.
//
// Any failure (empty URL, transport error, timeout, non-2xx status, write error) is returned
// wrapped in [shared.ErrDownloadFailed].
func (c *Cache) GetOrFetch(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("%w: empty url", shared.ErrDownloadFailed)
	}

	key := Key(url)
	if p, ok := c.probe(key); ok {
		return p, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetchLocked(ctx, key, url)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// fetchLocked holds the cross-process lock for key while re-probing and downloading.
func (c *Cache) fetchLocked(ctx context.Context, key, url string) (string, error) {
	lock := flock.New(filepath.Join(c.dir, lockDir, key+".lock"))
	locked, err := lock.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return "", fmt.Errorf("%w: lock %s: %v", shared.ErrDownloadFailed, key, err)
	}
	if !locked {
		return "", fmt.Errorf("%w: lock %s not acquired", shared.ErrDownloadFailed, key)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			c.logger.Warn("failed to release cache lock", "key", key, "error", err)
		}
	}()

	// another process may have finished while we waited
	if p, ok := c.probe(key); ok {
		return p, nil
	}
	return c.download(ctx, key, url)
}

func (c *Cache) download(ctx context.Context, key, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", shared.ErrDownloadFailed, resp.StatusCode)
	}

	ext := extensionFor(resp.Header.Get("Content-Type"), url)
	dest := filepath.Join(c.dir, key+"."+ext)

	tmp, err := os.CreateTemp(c.dir, "."+key+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}

	c.logger.Debug("cached image", "url", url, "path", dest)
	return dest, nil
}

// extensionFor picks a file extension from the response content type, then the URL, defaulting to jpg.
func extensionFor(contentType, url string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return "jpg"
	case strings.Contains(ct, "png"):
		return "png"
	case strings.Contains(ct, "webp"):
		return "webp"
	}

	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, ".png"):
		return "png"
	case strings.Contains(u, ".webp"):
		return "webp"
	}
	return "jpg"
}

// GetOrFetchBatch resolves each non-empty URL, pausing between network requests.
//
// Empty URLs are skipped and absent from the result. Cache hits do not wait.
func (c *Cache) GetOrFetchBatch(ctx context.Context, urls []string) map[string]Result {
	results := make(map[string]Result, len(urls))
	limiter := rate.NewLimiter(rate.Every(c.interval), 1)

	for _, url := range urls {
		if url == "" {
			continue
		}
		if _, done := results[url]; done {
			continue
		}
		if p, ok := c.Lookup(url); ok {
			results[url] = Result{Path: p}
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			results[url] = Result{Err: fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)}
			continue
		}

		p, err := c.GetOrFetch(ctx, url)
		if err != nil {
			c.logger.Warn("image download failed", "url", url, "error", err)
		}
		results[url] = Result{Path: p, Err: err}
	}
	return results
}

// EvictOlderThan deletes cached files last modified more than maxAge ago and returns how many were removed.
//
// Errors on individual files are logged and skipped.
func (c *Cache) EvictOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Warn("failed to read cache directory", "dir", c.dir, "error", err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			c.logger.Warn("failed to stat cache file", "name", entry.Name(), "error", err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				c.logger.Warn("failed to evict cache file", "name", entry.Name(), "error", err)
			}
			continue
		}
		removed++
	}

	c.removeOrphanLocks()
	c.logger.Info("evicted cached images", "removed", removed, "max_age", maxAge)
	return removed
}

// removeOrphanLocks deletes lock files whose key has no cached image. Locks held by another fetch
// are left alone.
func (c *Cache) removeOrphanLocks() {
	dir := filepath.Join(c.dir, lockDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.logger.Warn("failed to read lock directory", "dir", dir, "error", err)
		return
	}

	for _, entry := range entries {
		key, ok := strings.CutSuffix(entry.Name(), ".lock")
		if !ok || !entry.Type().IsRegular() {
			continue
		}
		if _, cached := c.probe(key); cached {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		lock := flock.New(path)
		locked, err := lock.TryLock()
		if err != nil || !locked {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("failed to remove lock file", "key", key, "error", err)
		}
		if err := lock.Unlock(); err != nil {
			c.logger.Debug("failed to release lock", "key", key, "error", err)
		}
	}
}

// Stats counts cached files and their total size. Hidden files (locks, partial downloads) are excluded.
func (c *Cache) Stats() (Stats, error) {
	stats := Stats{Dir: c.dir}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return stats, fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.FileCount++
		stats.TotalSize += info.Size()
	}
	return stats, nil
}
