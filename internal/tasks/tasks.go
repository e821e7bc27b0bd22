package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/matcher"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
)

// RunRecorder persists completed match runs.
type RunRecorder interface {
	Create(run *models.Run) error
}

// RunResult contains all data from a match run.
type RunResult struct {
	RunID     string                   // Stored run id, empty when no recorder is configured or saving failed
	Ref       string                   // Playlist reference as given
	Metadata  *models.PlaylistMetadata // Source playlist
	Tracks    []models.MatchedTrack    // One entry per source track, in playlist order
	Stats     models.RunStats          // Aggregates at Threshold
	TopK      int                      // Candidates requested per track
	Threshold float64                  // Confidence threshold used for Stats
}

// Pipeline runs extraction followed by matching.
type Pipeline struct {
	source  services.PlaylistSource
	matcher *matcher.Matcher
	runs    RunRecorder
	logger  *log.Logger
}

// PipelineOption configures a [Pipeline].
type PipelineOption func(*Pipeline)

// WithRunRecorder stores every successful run.
func WithRunRecorder(r RunRecorder) PipelineOption {
	return func(p *Pipeline) { p.runs = r }
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(logger *log.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// NewPipeline creates a Pipeline from a source catalog and a matcher.
func NewPipeline(source services.PlaylistSource, m *matcher.Matcher, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{source: source, matcher: m}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = shared.DiscardLogger()
	}
	return p
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full, skip this update
	}
}

// Run resolves ref, fetches the playlist's metadata and tracks, and matches every track.
//
// Errors from the extraction stages are returned as-is. Matching never fails; per-track problems are
// recorded on the matched tracks.
func (p *Pipeline) Run(ctx context.Context, ref string, topK int, threshold float64, progress chan<- ProgressUpdate) (*RunResult, error) {
	if p.source == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	if p.matcher == nil {
		return nil, fmt.Errorf("%w: matcher not initialized", shared.ErrServiceUnavailable)
	}
	if topK < 1 {
		topK = matcher.DefaultTopK
	}

	sendProgress(progress, resolveUpdate(ref))
	id, err := p.source.ExtractPlaylistID(ref)
	if err != nil {
		return nil, err
	}

	sendProgress(progress, fetchMetadataUpdate(id))
	meta, err := p.source.FetchMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	sendProgress(progress, fetchTracksUpdate(meta))
	tracks, err := p.source.FetchTracks(ctx, id)
	if err != nil {
		return nil, err
	}
	p.logger.Info("fetched playlist", "id", id, "name", meta.Name, "tracks", len(tracks))

	total := len(tracks)
	sendProgress(progress, matchTracksUpdate(0, total, nil))
	matched := p.matcher.MatchPlaylistWithProgress(ctx, tracks, topK, func(done, total int, mt models.MatchedTrack) {
		sendProgress(progress, matchTracksUpdate(done, total, &mt))
	})

	result := &RunResult{
		Ref:       ref,
		Metadata:  meta,
		Tracks:    matched,
		Stats:     models.ComputeStats(matched, threshold),
		TopK:      topK,
		Threshold: threshold,
	}

	if p.runs != nil {
		run := models.NewRun(ref, *meta, topK, threshold, matched)
		if err := p.runs.Create(run); err != nil {
			p.logger.Warn("failed to record run", "playlist", meta.Name, "error", err)
		} else {
			result.RunID = run.ID()
		}
	}

	p.logger.Info("matched playlist",
		"name", meta.Name,
		"matched", result.Stats.Matched,
		"high_confidence", result.Stats.HighConfidence,
		"total", result.Stats.Total,
	)
	return result, nil
}
