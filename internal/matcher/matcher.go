// package matcher finds and scores target-catalog equivalents of source tracks.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
	"golang.org/x/sync/errgroup"
)

// DefaultTopK is the number of candidates requested per track when none is given.
const DefaultTopK = 3

// ImageFetcher localizes remote artwork. Implemented by imagecache.Cache.
type ImageFetcher interface {
	GetOrFetch(ctx context.Context, url string) (string, error)
}

// ProgressFunc is called once per finished track with the number of tracks done so far.
type ProgressFunc func(done, total int, track models.MatchedTrack)

// Matcher searches the target catalog for each source track and keeps the best-scoring candidate.
type Matcher struct {
	searcher services.CatalogSearcher
	images   ImageFetcher
	logger   *log.Logger
	workers  int
}

// Option configures a [Matcher].
type Option func(*Matcher)

// WithImages localizes each chosen candidate's thumbnail through f.
func WithImages(f ImageFetcher) Option {
	return func(m *Matcher) { m.images = f }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Matcher) { m.logger = logger }
}

// WithWorkers bounds the number of tracks matched concurrently. Values below 2 match sequentially.
func WithWorkers(n int) Option {
	return func(m *Matcher) { m.workers = n }
}

// New creates a Matcher backed by searcher.
func New(searcher services.CatalogSearcher, opts ...Option) *Matcher {
	m := &Matcher{searcher: searcher, workers: 1}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = shared.DiscardLogger()
	}
	if m.workers < 1 {
		m.workers = 1
	}
	return m
}

// Query builds the free-text search string for a track.
func Query(artist, title string) string {
	return artist + " " + title
}

// Search queries the catalog for "<artist> <title>" and returns the candidates scored and sorted by
// confidence, highest first. Candidates with equal confidence keep the catalog's order.
func (m *Matcher) Search(ctx context.Context, artist, title string, limit int) ([]models.ScoredCandidate, error) {
	if limit < 1 {
		limit = DefaultTopK
	}

	candidates, err := m.searcher.Search(ctx, Query(artist, title), limit)
	if err != nil {
		if errors.Is(err, shared.ErrSearchFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrSearchFailed, err)
	}

	scored := make([]models.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = models.ScoredCandidate{MatchCandidate: c, Confidence: Score(artist, title, c)}
	}

	slices.SortStableFunc(scored, func(a, b models.ScoredCandidate) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		default:
			return 0
		}
	})
	return scored, nil
}

// MatchTrack resolves a single track and never fails.
//
// An empty search yields the empty sentinel match. A failed search does too, with SearchErr set.
// A failed thumbnail download leaves ThumbnailPath empty and sets ThumbnailErr.
func (m *Matcher) MatchTrack(ctx context.Context, track models.Track, topK int) models.MatchedTrack {
	result := models.MatchedTrack{Track: track}
	artist := track.ArtistString()

	candidates, err := m.Search(ctx, artist, track.Title, topK)
	if err != nil {
		m.logger.Warn("search failed", "track", track.Title, "artist", artist, "error", err)
		result.SearchErr = err
		return result
	}
	if len(candidates) == 0 {
		m.logger.Debug("no candidates", "track", track.Title, "artist", artist)
		return result
	}

	result.Match = candidates[0]

	if m.images != nil && result.Match.ThumbnailURL != "" {
		path, err := m.images.GetOrFetch(ctx, result.Match.ThumbnailURL)
		if err != nil {
			m.logger.Warn("thumbnail download failed", "track", track.Title, "url", result.Match.ThumbnailURL, "error", err)
			result.ThumbnailErr = err
		} else {
			result.ThumbnailPath = path
		}
	}
	return result
}

// MatchPlaylist resolves every track and returns exactly one result per input, in input order.
func (m *Matcher) MatchPlaylist(ctx context.Context, tracks []models.Track, topK int) []models.MatchedTrack {
	return m.MatchPlaylistWithProgress(ctx, tracks, topK, nil)
}

// MatchPlaylistWithProgress is [Matcher.MatchPlaylist] with a per-track callback.
//
// With more than one worker, tracks are matched concurrently and progress is called from several
// goroutines, possibly out of input order. The returned slice is always in input order.
func (m *Matcher) MatchPlaylistWithProgress(ctx context.Context, tracks []models.Track, topK int, progress ProgressFunc) []models.MatchedTrack {
	results := make([]models.MatchedTrack, len(tracks))
	total := len(tracks)

	if m.workers <= 1 {
		for i, t := range tracks {
			results[i] = m.MatchTrack(ctx, t, topK)
			if progress != nil {
				progress(i+1, total, results[i])
			}
		}
		return results
	}

	var done atomic.Int64
	var g errgroup.Group
	g.SetLimit(m.workers)

	for i, t := range tracks {
		g.Go(func() error {
			results[i] = m.MatchTrack(ctx, t, topK)
			n := done.Add(1)
			if progress != nil {
				progress(int(n), total, results[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// FilterByConfidence keeps tracks whose confidence is at least threshold, preserving order.
func FilterByConfidence(tracks []models.MatchedTrack, threshold float64) []models.MatchedTrack {
	filtered := make([]models.MatchedTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.Confidence() >= threshold {
			filtered = append(filtered, t)
		}
	}
	return filtered
}
