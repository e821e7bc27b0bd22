package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
)

// Result messages for syncs that never reach the append stage.
const (
	ErrMsgAuthRequired = "authentication required"
	ErrMsgNoEligible   = "no eligible tracks"
)

// DefaultVisibility is the privacy status of created playlists.
const DefaultVisibility = "private"

// Authorizer reports whether authorized playlist writes can be made.
type Authorizer interface {
	IsReady() bool
}

// PlaylistBuilder recreates a matched playlist on YouTube.
type PlaylistBuilder struct {
	auth   Authorizer
	writer services.PlaylistWriter
	logger *log.Logger
}

// NewPlaylistBuilder creates a builder. A nil logger discards output.
func NewPlaylistBuilder(auth Authorizer, writer services.PlaylistWriter, logger *log.Logger) *PlaylistBuilder {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &PlaylistBuilder{auth: auth, writer: writer, logger: logger}
}

// DefaultDescription is used when a sync is given no description.
func DefaultDescription(eligible int) string {
	return fmt.Sprintf("Created from Spotify playlist with %d tracks", eligible)
}

// Eligible returns the tracks that would be appended at threshold: confidence at least threshold and
// a target video id present. Order is preserved.
func Eligible(tracks []models.MatchedTrack, threshold float64) []models.MatchedTrack {
	eligible := make([]models.MatchedTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.Eligible(threshold) {
			eligible = append(eligible, t)
		}
	}
	return eligible
}

// Sync creates a private playlist called name and appends every eligible track once, in order.
//
// It never returns an error: every outcome, including missing authorization and a failed playlist
// creation, is described by the returned result. A failed append is recorded in Failed and does not
// stop the remaining appends.
func (b *PlaylistBuilder) Sync(ctx context.Context, name string, tracks []models.MatchedTrack, threshold float64, description string, progress chan<- ProgressUpdate) models.PlaylistCreationResult {
	total := len(tracks)
	result := models.PlaylistCreationResult{
		PlaylistName:        name,
		Failed:              []models.FailedTrack{},
		SkippedCount:        total,
		ConfidenceThreshold: threshold,
	}

	if b.auth == nil || !b.auth.IsReady() {
		result.Error = ErrMsgAuthRequired
		return result
	}

	eligible := Eligible(tracks, threshold)
	if len(eligible) == 0 {
		b.logger.Warn("no eligible tracks", "playlist", name, "threshold", threshold, "total", total)
		result.Error = ErrMsgNoEligible
		return result
	}

	if description == "" {
		description = DefaultDescription(len(eligible))
	}

	sendProgress(progress, createPlaylistUpdate(name))
	handle, err := b.writer.CreatePlaylist(ctx, name, description, DefaultVisibility)
	if err != nil {
		b.logger.Error("failed to create playlist", "playlist", name, "error", err)
		result.Error = fmt.Sprintf("failed to create playlist: %v", err)
		return result
	}
	sendProgress(progress, playlistCreatedUpdate(handle))

	result.PlaylistID = handle.ID
	result.PlaylistURL = handle.URL
	result.AttemptedCount = len(eligible)
	result.SkippedCount = total - len(eligible)

	for i, t := range eligible {
		err := b.writer.AppendTrack(ctx, handle.ID, t.Match.TargetID)
		sendProgress(progress, addTrackUpdate(i+1, len(eligible), t, err))
		if err != nil {
			b.logger.Warn("failed to add track", "track", t.Title, "video_id", t.Match.TargetID, "error", err)
			result.Failed = append(result.Failed, models.FailedTrack{
				Title:    t.Title,
				Artists:  t.ArtistString(),
				TargetID: t.Match.TargetID,
				Reason:   err.Error(),
			})
			continue
		}
		result.AddedCount++
	}

	result.Success = true
	b.logger.Info("playlist synced",
		"playlist", name,
		"url", result.PlaylistURL,
		"added", result.AddedCount,
		"failed", len(result.Failed),
		"skipped", result.SkippedCount,
	)
	return result
}
