package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

const runColumns = `id, sequence, playlist_ref, playlist_id, playlist_name, owner, top_k, threshold,
	total, matched, high_confidence, created_at, updated_at, deleted_at`

// RunRepository persists match runs and their matched tracks.
//
// A run and its tracks are written in one transaction. Deleted runs are hidden from every query.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run and its tracks with a generated ID and sequence
func (r *RunRepository) Create(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := nextSequence(tx, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO runs (id, sequence, playlist_ref, playlist_id, playlist_name, owner, top_k, threshold,
			total, matched, high_confidence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		id,
		sequence,
		run.PlaylistRef,
		run.Playlist.ID,
		run.Playlist.Name,
		run.Playlist.Owner,
		run.TopK,
		run.Threshold,
		run.Stats.Total,
		run.Stats.Matched,
		run.Stats.HighConfidence,
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, t := range run.Tracks {
		if err := insertRunTrack(tx, id, i, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

func insertRunTrack(tx *sql.Tx, runID string, position int, t models.MatchedTrack) error {
	artists, err := encodeList(t.Artists)
	if err != nil {
		return err
	}
	targetArtists, err := encodeList(t.Match.Artists)
	if err != nil {
		return err
	}

	var searchErr string
	if t.SearchErr != nil {
		searchErr = t.SearchErr.Error()
	}

	query := `
		INSERT INTO run_tracks (run_id, position, title, artists, album, source_url,
			target_title, target_artists, target_album, target_url, target_id, duration,
			thumbnail_url, thumbnail_path, confidence, search_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		runID,
		position,
		t.Title,
		artists,
		t.Album,
		t.SourceURL,
		t.Match.Title,
		targetArtists,
		t.Match.Album,
		t.Match.TargetURL,
		t.Match.TargetID,
		t.Match.Duration,
		t.Match.ThumbnailURL,
		t.ThumbnailPath,
		t.Match.Confidence,
		searchErr,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track %d: %w", position, err)
	}
	return nil
}

// Get retrieves a run by ID with its tracks in playlist order, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanRun(r.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}
	return r.withTracks(run)
}

// Latest retrieves the most recently created run with its tracks
func (r *RunRepository) Latest() (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL ORDER BY sequence DESC LIMIT 1`

	run, err := scanRun(r.db.QueryRow(query))
	if err != nil {
		return nil, err
	}
	return r.withTracks(run)
}

func (r *RunRepository) withTracks(run *models.Run) (*models.Run, error) {
	tracks, err := r.Tracks(run.ID())
	if err != nil {
		return nil, err
	}
	run.Tracks = tracks
	return run, nil
}

// Tracks retrieves the matched tracks of a run in playlist order
func (r *RunRepository) Tracks(runID string) ([]models.MatchedTrack, error) {
	query := `
		SELECT title, artists, album, source_url, target_title, target_artists, target_album,
			target_url, target_id, duration, thumbnail_url, thumbnail_path, confidence, search_error
		FROM run_tracks
		WHERE run_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.MatchedTrack{}
	for rows.Next() {
		var (
			t             models.MatchedTrack
			artists       string
			targetArtists string
			searchErr     string
		)

		err := rows.Scan(
			&t.Title, &artists, &t.Album, &t.SourceURL,
			&t.Match.Title, &targetArtists, &t.Match.Album,
			&t.Match.TargetURL, &t.Match.TargetID, &t.Match.Duration,
			&t.Match.ThumbnailURL, &t.ThumbnailPath, &t.Match.Confidence, &searchErr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run track: %w", err)
		}

		if t.Artists, err = decodeList(artists); err != nil {
			return nil, err
		}
		if t.Match.Artists, err = decodeList(targetArtists); err != nil {
			return nil, err
		}
		if searchErr != "" {
			t.SearchErr = errors.New(searchErr)
		}
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	now := time.Now().UTC()

	query := `
		UPDATE runs
		SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}

	return nil
}

// List retrieves run summaries, newest first, without their tracks.
//
// Supported criteria are "playlist_id" (string) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL`

	args := []any{}

	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		query += " AND playlist_id = ?"
		args = append(args, playlistID)
	}

	query += " ORDER BY sequence DESC"

	if limit := limitFrom(criteria); limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a runs row into a [models.Run] without tracks
func scanRun(row scanner) (*models.Run, error) {
	var (
		id        string
		sequence  int
		ref       string
		meta      models.PlaylistMetadata
		topK      int
		threshold float64
		stats     models.RunStats
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &ref, &meta.ID, &meta.Name, &meta.Owner, &topK, &threshold,
		&stats.Total, &stats.Matched, &stats.HighConfidence, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	meta.TrackCount = stats.Total
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Matched) / float64(stats.Total) * 100
	}

	run := &models.Run{
		PlaylistRef: ref,
		Playlist:    meta,
		TopK:        topK,
		Threshold:   threshold,
		Stats:       stats,
	}
	run.SetID(id)
	run.SetSequence(sequence)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}
