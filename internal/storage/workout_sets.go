package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/models"
)

// InsertWorkoutSet records one completed set and refreshes the session's
// total volume in the same transaction. A repeated set number for the same
// session and exercise yields ErrDuplicateSet.
func (db *DB) InsertWorkoutSet(ctx context.Context, in models.SetInput) (*models.WorkoutSet, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning set tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ws := &models.WorkoutSet{
		SessionID:  in.SessionID,
		ExerciseID: in.ExerciseID,
		SetNumber:  in.SetNumber,
		Weight:     in.Weight,
		Reps:       in.Reps,
		Volume:     models.Volume(in.Weight, in.Reps),
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO workout_sets (session_id, exercise_id, set_number, weight, reps, volume)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING completed_at`,
		ws.SessionID, ws.ExerciseID, ws.SetNumber, ws.Weight, ws.Reps, ws.Volume,
	).Scan(&ws.CompletedAt)
	switch pgCode(err) {
	case "":
		if err != nil {
			return nil, fmt.Errorf("inserting workout set: %w", err)
		}
	case pgUniqueViolation:
		return nil, fmt.Errorf("set %d of exercise %d: %w", in.SetNumber, in.ExerciseID, ErrDuplicateSet)
	case pgForeignKeyViolation:
		return nil, fmt.Errorf("exercise %d: %w", in.ExerciseID, ErrUnknownExercise)
	default:
		return nil, fmt.Errorf("inserting workout set: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE workout_sessions
		 SET total_volume = (SELECT COALESCE(SUM(volume), 0) FROM workout_sets WHERE session_id = $1)
		 WHERE id = $1`, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("updating session volume: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing workout set: %w", err)
	}
	return ws, nil
}

// QuerySessionSets returns the recorded sets of one exercise in a session,
// ordered by set number.
func (db *DB) QuerySessionSets(ctx context.Context, sessionID uuid.UUID, exerciseID int64) ([]models.WorkoutSet, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT session_id, exercise_id, set_number, weight, reps, volume, completed_at
		 FROM workout_sets
		 WHERE session_id = $1 AND exercise_id = $2
		 ORDER BY set_number ASC`,
		sessionID, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("querying session sets: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutSet
	for rows.Next() {
		var s models.WorkoutSet
		if err := rows.Scan(&s.SessionID, &s.ExerciseID, &s.SetNumber, &s.Weight,
			&s.Reps, &s.Volume, &s.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning workout set: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
