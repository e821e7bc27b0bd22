package models

import (
	"errors"
	"time"
)

// base carries identity and timestamps shared by persisted records.
type base struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

func newBase(sequence int) base {
	now := time.Now().UTC()
	return base{sequence: sequence, createdAt: now, updatedAt: now}
}

func (b *base) ID() string { return b.id }
func (b *base) SetID(id string) { b.id = id }
func (b *base) Sequence() int { return b.sequence }
func (b *base) SetSequence(seq int) { b.sequence = seq }
func (b *base) CreatedAt() time.Time { return b.createdAt }
func (b *base) SetCreatedAt(t time.Time) { b.createdAt = t }
func (b *base) UpdatedAt() time.Time { return b.updatedAt }
func (b *base) SetUpdatedAt(t time.Time) { b.updatedAt = t }
func (b *base) DeletedAt() *time.Time { return b.deletedAt }
func (b *base) SetDeletedAt(t *time.Time) { b.deletedAt = t }

// Run is a persisted match run: one playlist, its parameters, and its matched tracks.
type Run struct {
	base
	PlaylistRef string
	Playlist    PlaylistMetadata
	TopK        int
	Threshold   float64
	Stats       RunStats
	Tracks      []MatchedTrack
}

// NewRun builds an unsaved run record.
func NewRun(ref string, meta PlaylistMetadata, topK int, threshold float64, tracks []MatchedTrack) *Run {
	return &Run{
		base:        newBase(0),
		PlaylistRef: ref,
		Playlist:    meta,
		TopK:        topK,
		Threshold:   threshold,
		Stats:       ComputeStats(tracks, threshold),
		Tracks:      tracks,
	}
}

// Validate checks the run has a playlist and a usable threshold.
func (r *Run) Validate() error {
	if r.Playlist.ID == "" {
		return errors.New("run requires a playlist id")
	}
	if r.Threshold < 0 || r.Threshold > 1 {
		return errors.New("threshold must be within [0, 1]")
	}
	if r.TopK < 1 {
		return errors.New("top_k must be at least 1")
	}
	return nil
}

// SyncRecord is a persisted playlist creation attempt.
type SyncRecord struct {
	base
	RunID  string
	Result PlaylistCreationResult
}

// NewSyncRecord builds an unsaved sync record. runID may be empty when the sync was not preceded by a stored run.
func NewSyncRecord(runID string, result PlaylistCreationResult) *SyncRecord {
	return &SyncRecord{base: newBase(0), RunID: runID, Result: result}
}

// Validate checks the record names a playlist.
func (s *SyncRecord) Validate() error {
	if s.Result.PlaylistName == "" {
		return errors.New("sync requires a playlist name")
	}
	return nil
}
