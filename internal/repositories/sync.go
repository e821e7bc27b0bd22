package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

const syncColumns = `id, sequence, run_id, success, playlist_id, playlist_url, playlist_name,
	attempted, added, skipped, failed_tracks, threshold, error, created_at`

// ErrSyncNotFound is returned when a sync record does not exist.
var ErrSyncNotFound = errors.New("sync not found")

// SyncRepository persists playlist creation attempts. Records are append-only.
type SyncRepository struct {
	db *sql.DB
}

// NewSyncRepository creates a new SyncRepository with the given database connection
func NewSyncRepository(db *sql.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

// Create inserts a sync record with a generated ID and sequence
func (r *SyncRepository) Create(record *models.SyncRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	failed := record.Result.Failed
	if failed == nil {
		failed = []models.FailedTrack{}
	}
	failedJSON, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("failed to encode failed tracks: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := nextSequence(tx, "syncs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	var runID sql.NullString
	if record.RunID != "" {
		runID = sql.NullString{String: record.RunID, Valid: true}
	}

	res := record.Result
	query := `
		INSERT INTO syncs (id, sequence, run_id, success, playlist_id, playlist_url, playlist_name,
			attempted, added, skipped, failed, failed_tracks, threshold, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		id,
		sequence,
		runID,
		res.Success,
		res.PlaylistID,
		res.PlaylistURL,
		res.PlaylistName,
		res.AttemptedCount,
		res.AddedCount,
		res.SkippedCount,
		len(failed),
		string(failedJSON),
		res.ConfidenceThreshold,
		res.Error,
		record.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync: %w", err)
	}

	record.SetID(id)
	record.SetSequence(sequence)
	return nil
}

// Get retrieves a sync record by ID
func (r *SyncRepository) Get(id string) (*models.SyncRecord, error) {
	query := `SELECT ` + syncColumns + ` FROM syncs WHERE id = ?`
	return scanSync(r.db.QueryRow(query, id))
}

// List retrieves sync records, newest first.
//
// Supported criteria are "run_id" (string) and "limit" (int).
func (r *SyncRepository) List(criteria map[string]any) ([]*models.SyncRecord, error) {
	query := `SELECT ` + syncColumns + ` FROM syncs WHERE 1 = 1`

	args := []any{}

	if runID, ok := criteria["run_id"].(string); ok && runID != "" {
		query += " AND run_id = ?"
		args = append(args, runID)
	}

	query += " ORDER BY sequence DESC"

	if limit := limitFrom(criteria); limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query syncs: %w", err)
	}
	defer rows.Close()

	var records []*models.SyncRecord
	for rows.Next() {
		record, err := scanSync(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

func scanSync(row scanner) (*models.SyncRecord, error) {
	var (
		id         string
		sequence   int
		runID      sql.NullString
		res        models.PlaylistCreationResult
		failedJSON string
		createdAt  time.Time
	)

	err := row.Scan(
		&id, &sequence, &runID, &res.Success, &res.PlaylistID, &res.PlaylistURL, &res.PlaylistName,
		&res.AttemptedCount, &res.AddedCount, &res.SkippedCount, &failedJSON, &res.ConfidenceThreshold,
		&res.Error, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSyncNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync: %w", err)
	}

	if err := json.Unmarshal([]byte(failedJSON), &res.Failed); err != nil {
		return nil, fmt.Errorf("failed to decode failed tracks: %w", err)
	}

	record := models.NewSyncRecord(runID.String, res)
	record.SetID(id)
	record.SetSequence(sequence)
	record.SetCreatedAt(createdAt)
	record.SetUpdatedAt(createdAt)

	return record, nil
}
