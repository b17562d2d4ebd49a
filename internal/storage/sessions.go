package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/models"
)

const sessionColumns = `s.id, s.routine_id, r.name, s.user_id, s.status, s.started_at,
	s.completed_at, s.notes, s.total_volume`

// StartSession opens an in-progress session for a routine.
func (db *DB) StartSession(ctx context.Context, routine *models.Routine, userID int) (*models.Session, error) {
	s := &models.Session{
		ID:          uuid.New(),
		RoutineID:   routine.ID,
		RoutineName: routine.Name,
		UserID:      userID,
		Status:      models.SessionInProgress,
	}
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO workout_sessions (id, routine_id, user_id, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING started_at`,
		s.ID, s.RoutineID, userID, s.Status,
	).Scan(&s.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return s, nil
}

// GetSession retrieves a session. Ownership is checked by the caller.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM workout_sessions s
		 JOIN routines r ON r.id = s.routine_id
		 WHERE s.id = $1`, id)
	var s models.Session
	if err := row.Scan(&s.ID, &s.RoutineID, &s.RoutineName, &s.UserID, &s.Status,
		&s.StartedAt, &s.CompletedAt, &s.Notes, &s.TotalVolume); err != nil {
		return nil, fmt.Errorf("querying session %s: %w", id, notFound(err))
	}
	return &s, nil
}

// ListSessions returns a user's most recent sessions, newest first.
func (db *DB) ListSessions(ctx context.Context, userID, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM workout_sessions s
		 JOIN routines r ON r.id = s.routine_id
		 WHERE s.user_id = $1
		 ORDER BY s.started_at DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.RoutineID, &s.RoutineName, &s.UserID, &s.Status,
			&s.StartedAt, &s.CompletedAt, &s.Notes, &s.TotalVolume); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// CompleteSession marks a session completed with optional notes. Completing
// an already completed session is a no-op.
func (db *DB) CompleteSession(ctx context.Context, id uuid.UUID, notes string) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE workout_sessions
		 SET status = $2, completed_at = COALESCE(completed_at, NOW()), notes = $3
		 WHERE id = $1`,
		id, models.SessionCompleted, notes)
	if err != nil {
		return fmt.Errorf("completing session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("completing session %s: %w", id, ErrNotFound)
	}
	return nil
}

// CompletedSetCounts returns the number of recorded sets per exercise.
func (db *DB) CompletedSetCounts(ctx context.Context, sessionID uuid.UUID) (map[int64]int, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT exercise_id, COUNT(*) FROM workout_sets
		 WHERE session_id = $1
		 GROUP BY exercise_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("counting session sets: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			exerciseID int64
			n          int
		)
		if err := rows.Scan(&exerciseID, &n); err != nil {
			return nil, fmt.Errorf("scanning set count: %w", err)
		}
		counts[exerciseID] = n
	}
	return counts, rows.Err()
}
