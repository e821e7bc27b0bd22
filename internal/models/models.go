// package models defines the data model for the playlist matching pipeline
package models

import (
	"strings"
	"time"
)

// Model defines the base interface for persisted records.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// ArtistSeparator joins multiple artist names into the single display string used for searching and export.
const ArtistSeparator = ", "

// Track is one playlist entry as extracted from the source catalog.
type Track struct {
	Title     string   `json:"track_name"`
	Artists   []string `json:"artists"`
	Album     string   `json:"album"`
	SourceURL string   `json:"spotify_url"`
}

// ArtistString joins the track's artists in source order.
func (t Track) ArtistString() string {
	return strings.Join(t.Artists, ArtistSeparator)
}

// PlaylistMetadata describes a source playlist.
type PlaylistMetadata struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TrackCount  int    `json:"total_tracks"`
	Owner       string `json:"owner"`
}

// MatchCandidate is one search hit from the target catalog.
//
// Album, Duration and ThumbnailURL are empty when the search result omits them.
type MatchCandidate struct {
	Title        string   `json:"title"`
	Artists      []string `json:"artists"`
	Album        string   `json:"album"`
	Duration     string   `json:"duration"`
	TargetURL    string   `json:"youtube_url"`
	TargetID     string   `json:"video_id"`
	ThumbnailURL string   `json:"thumbnail_url"`
}

// ArtistString joins the candidate's artists.
func (c MatchCandidate) ArtistString() string {
	return strings.Join(c.Artists, ArtistSeparator)
}

// ScoredCandidate is a candidate with its heuristic confidence in [0, 1].
type ScoredCandidate struct {
	MatchCandidate
	Confidence float64 `json:"confidence"`
}

// MatchedTrack pairs a source track with its best candidate.
//
// When no candidate was found Match is the zero value, which doubles as the empty-match sentinel:
// every target field is empty and Confidence is 0.
type MatchedTrack struct {
	Track
	Match         ScoredCandidate `json:"match"`
	ThumbnailPath string          `json:"thumbnail_path"`
	SearchErr     error           `json:"-"`
	ThumbnailErr  error           `json:"-"`
}

// Confidence is the chosen candidate's confidence.
func (m MatchedTrack) Confidence() float64 {
	return m.Match.Confidence
}

// HasMatch reports whether a target URL was found.
func (m MatchedTrack) HasMatch() bool {
	return m.Match.TargetURL != ""
}

// Eligible reports whether the track can be appended to a target playlist at the given threshold.
func (m MatchedTrack) Eligible(threshold float64) bool {
	return m.Match.Confidence >= threshold && m.Match.TargetID != ""
}

// PlaylistHandle identifies a playlist created on the target catalog.
type PlaylistHandle struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// FailedTrack records a track the target API refused to append.
type FailedTrack struct {
	Title    string `json:"track_name"`
	Artists  string `json:"artist_name"`
	TargetID string `json:"video_id"`
	Reason   string `json:"error"`
}

// PlaylistCreationResult summarizes one playlist sync. It is built once and never mutated afterward.
type PlaylistCreationResult struct {
	Success             bool          `json:"success"`
	PlaylistID          string        `json:"playlist_id,omitempty"`
	PlaylistURL         string        `json:"playlist_url,omitempty"`
	PlaylistName        string        `json:"playlist_name"`
	AttemptedCount      int           `json:"total_tracks_attempted"`
	AddedCount          int           `json:"successfully_added"`
	Failed              []FailedTrack `json:"failed_tracks"`
	SkippedCount        int           `json:"skipped_low_confidence"`
	ConfidenceThreshold float64       `json:"confidence_threshold"`
	Error               string        `json:"error,omitempty"`
}

// RunStats aggregates a matched playlist.
type RunStats struct {
	Total          int     `json:"total_tracks"`
	Matched        int     `json:"matches_found"`
	HighConfidence int     `json:"high_confidence"`
	SuccessRate    float64 `json:"success_rate"`
}

// ComputeStats counts matches and high-confidence matches at threshold. SuccessRate is a percentage.
func ComputeStats(tracks []MatchedTrack, threshold float64) RunStats {
	stats := RunStats{Total: len(tracks)}
	for _, t := range tracks {
		if t.HasMatch() {
			stats.Matched++
		}
		if t.Confidence() >= threshold {
			stats.HighConfidence++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Matched) / float64(stats.Total) * 100
	}
	return stats
}
