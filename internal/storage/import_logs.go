package storage

import (
	"context"
	"fmt"
	"time"
)

// ImportLog represents a single catalog import or video scan outcome.
type ImportLog struct {
	ID                int64     `json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	Source            string    `json:"source"`
	Status            string    `json:"status"`
	ExercisesReceived int       `json:"exercises_received"`
	ExercisesCreated  int       `json:"exercises_created"`
	ExercisesUpdated  int       `json:"exercises_updated"`
	ExercisesSkipped  int       `json:"exercises_skipped"`
	VideosUpdated     int       `json:"videos_updated"`
	DurationMs        *int      `json:"duration_ms"`
	ErrorMessage      *string   `json:"error_message"`
}

// InsertImportLog creates a new import log entry and returns its ID.
func (db *DB) InsertImportLog(ctx context.Context, log ImportLog) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO import_logs (source, status, exercises_received, exercises_created,
		 exercises_updated, exercises_skipped, videos_updated, duration_ms, error_message)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING id`,
		log.Source, log.Status, log.ExercisesReceived, log.ExercisesCreated,
		log.ExercisesUpdated, log.ExercisesSkipped, log.VideosUpdated,
		log.DurationMs, log.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting import log: %w", err)
	}
	return id, nil
}

// UpdateImportLog updates an existing import log entry (typically from "running" to "success" or "error").
func (db *DB) UpdateImportLog(ctx context.Context, id int64, log ImportLog) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE import_logs SET
		 status = $2, exercises_received = $3, exercises_created = $4,
		 exercises_updated = $5, exercises_skipped = $6, videos_updated = $7,
		 duration_ms = $8, error_message = $9
		 WHERE id = $1`,
		id, log.Status, log.ExercisesReceived, log.ExercisesCreated,
		log.ExercisesUpdated, log.ExercisesSkipped, log.VideosUpdated,
		log.DurationMs, log.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("updating import log %d: %w", id, err)
	}
	return nil
}

// QueryImportLogs returns the most recent import logs.
func (db *DB) QueryImportLogs(ctx context.Context, limit int) ([]ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, created_at, source, status, exercises_received, exercises_created,
		 exercises_updated, exercises_skipped, videos_updated, duration_ms, error_message
		 FROM import_logs
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying import logs: %w", err)
	}
	defer rows.Close()

	var result []ImportLog
	for rows.Next() {
		var l ImportLog
		if err := rows.Scan(&l.ID, &l.CreatedAt, &l.Source, &l.Status,
			&l.ExercisesReceived, &l.ExercisesCreated, &l.ExercisesUpdated,
			&l.ExercisesSkipped, &l.VideosUpdated, &l.DurationMs, &l.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning import log: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}
