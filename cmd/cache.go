package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tunesync/internal/formatter"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultMaxAgeDays = 30

// CacheStats prints the cache location, file count and size.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	cache, err := r.imageCache()
	if err != nil {
		return err
	}
	stats, err := cache.Stats()
	if err != nil {
		return err
	}

	r.writePlain("Cache: %s\n", cache.Dir())
	r.writePlain("Files: %s\n", formatter.FormatCount(stats.FileCount))
	r.writePlain("Size: %s\n", formatter.FormatBytes(stats.TotalSize))
	return nil
}

// CacheEvict deletes cached files older than --days, defaulting to the configured maximum age.
func (r *Runner) CacheEvict(ctx context.Context, cmd *cli.Command) error {
	days := r.settings().Cache.MaxAgeDays
	if cmd.IsSet("days") {
		days = cmd.Int("days")
	}
	if days <= 0 {
		days = defaultMaxAgeDays
	}

	cache, err := r.imageCache()
	if err != nil {
		return err
	}

	removed := cache.EvictOlderThan(time.Duration(days) * 24 * time.Hour)
	r.writePlain("✓ Removed %s files older than %d days\n", formatter.FormatCount(removed), days)
	return nil
}

// CacheFetch downloads every URL argument into the cache.
func (r *Runner) CacheFetch(ctx context.Context, cmd *cli.Command) error {
	urls := cmd.Args().Slice()
	if len(urls) == 0 {
		return fmt.Errorf("%w: at least one image url", shared.ErrMissingArgument)
	}

	cache, err := r.imageCache()
	if err != nil {
		return err
	}

	results := cache.GetOrFetchBatch(ctx, urls)
	failed := 0
	for _, u := range urls {
		res := results[u]
		if res.Err != nil {
			failed++
			r.writePlain("✗ %s: %v\n", u, res.Err)
			continue
		}
		r.writePlain("✓ %s → %s\n", u, res.Path)
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d images", shared.ErrDownloadFailed, failed, len(urls))
	}
	return nil
}
