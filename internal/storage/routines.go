package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meltforce/liftlog/internal/models"
)

// CreateRoutine stores a validated routine and its ordered exercises in one
// transaction.
func (db *DB) CreateRoutine(ctx context.Context, userID int, in models.RoutineInput) (*models.Routine, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning routine tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r := &models.Routine{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		IsActive:    true,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO routines (id, user_id, name, description)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		r.ID, userID, r.Name, r.Description,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting routine: %w", err)
	}

	for i, e := range in.Exercises {
		re, err := insertRoutineExercise(ctx, tx, r.ID, i, e)
		if err != nil {
			return nil, err
		}
		r.Exercises = append(r.Exercises, re)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing routine: %w", err)
	}
	return r, nil
}

func insertRoutineExercise(ctx context.Context, tx pgx.Tx, routineID uuid.UUID, position int, e models.RoutineEntryInput) (models.RoutineExercise, error) {
	_, err := tx.Exec(ctx,
		`INSERT INTO routine_exercises (routine_id, exercise_id, sets_count, rest_time_seconds, position)
		 VALUES ($1, $2, $3, $4, $5)`,
		routineID, e.ExerciseID, e.Sets, e.RestSeconds, position)
	switch pgCode(err) {
	case "":
	case pgForeignKeyViolation:
		return models.RoutineExercise{}, fmt.Errorf("exercise %d: %w", e.ExerciseID, ErrUnknownExercise)
	case pgUniqueViolation:
		return models.RoutineExercise{}, fmt.Errorf("exercise %d: %w", e.ExerciseID, ErrDuplicateExercise)
	default:
		return models.RoutineExercise{}, fmt.Errorf("inserting routine exercise: %w", err)
	}
	if err != nil {
		return models.RoutineExercise{}, fmt.Errorf("inserting routine exercise: %w", err)
	}
	return models.RoutineExercise{
		ExerciseID:  e.ExerciseID,
		Sets:        e.Sets,
		RestSeconds: e.RestSeconds,
		Order:       position,
	}, nil
}

// GetRoutine retrieves a routine with its exercises. Ownership is checked by
// the caller.
func (db *DB) GetRoutine(ctx context.Context, id uuid.UUID) (*models.Routine, error) {
	var r models.Routine
	err := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, name, description, is_active, created_at, updated_at
		 FROM routines WHERE id = $1`, id,
	).Scan(&r.ID, &r.UserID, &r.Name, &r.Description, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("querying routine %s: %w", id, notFound(err))
	}

	byRoutine, err := db.routineExercises(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	r.Exercises = byRoutine[id]
	return &r, nil
}

// ListRoutines returns a user's active routines, newest first.
func (db *DB) ListRoutines(ctx context.Context, userID int) ([]models.Routine, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, name, description, is_active, created_at, updated_at
		 FROM routines
		 WHERE user_id = $1 AND is_active
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying routines: %w", err)
	}
	defer rows.Close()

	var (
		result []models.Routine
		ids    []uuid.UUID
	)
	for rows.Next() {
		var r models.Routine
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.Description, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning routine: %w", err)
		}
		result = append(result, r)
		ids = append(ids, r.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return result, nil
	}

	byRoutine, err := db.routineExercises(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Exercises = byRoutine[result[i].ID]
	}
	return result, nil
}

func (db *DB) routineExercises(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.RoutineExercise, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT re.routine_id, re.exercise_id, e.title, e.muscle, re.sets_count,
		 re.rest_time_seconds, re.position, re.target_reps, re.target_weight
		 FROM routine_exercises re
		 JOIN exercises e ON e.id = re.exercise_id
		 WHERE re.routine_id = ANY($1)
		 ORDER BY re.routine_id, re.position ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("querying routine exercises: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]models.RoutineExercise, len(ids))
	for rows.Next() {
		var (
			routineID uuid.UUID
			re        models.RoutineExercise
		)
		if err := rows.Scan(&routineID, &re.ExerciseID, &re.Title, &re.Muscle, &re.Sets,
			&re.RestSeconds, &re.Order, &re.TargetReps, &re.TargetWeight); err != nil {
			return nil, fmt.Errorf("scanning routine exercise: %w", err)
		}
		result[routineID] = append(result[routineID], re)
	}
	return result, rows.Err()
}

// UpdateRoutine rewrites the name, description and ordered exercise list of
// a routine owned by userID.
func (db *DB) UpdateRoutine(ctx context.Context, id uuid.UUID, userID int, in models.RoutineInput) (*models.Routine, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning routine tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r := &models.Routine{
		ID:          id,
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
	}
	err = tx.QueryRow(ctx,
		`UPDATE routines SET name = $3, description = $4, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING is_active, created_at, updated_at`,
		id, userID, in.Name, in.Description,
	).Scan(&r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("updating routine %s: %w", id, notFound(err))
	}

	if _, err := tx.Exec(ctx, `DELETE FROM routine_exercises WHERE routine_id = $1`, id); err != nil {
		return nil, fmt.Errorf("clearing routine exercises: %w", err)
	}
	for i, e := range in.Exercises {
		re, err := insertRoutineExercise(ctx, tx, id, i, e)
		if err != nil {
			return nil, err
		}
		r.Exercises = append(r.Exercises, re)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing routine: %w", err)
	}
	return r, nil
}

// DeleteRoutine removes a routine owned by userID. Its sessions cascade.
func (db *DB) DeleteRoutine(ctx context.Context, id uuid.UUID, userID int) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM routines WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting routine %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting routine %s: %w", id, ErrNotFound)
	}
	return nil
}

// CopyRoutine duplicates a routine for userID as "Copy of <name>".
func (db *DB) CopyRoutine(ctx context.Context, src *models.Routine, userID int) (*models.Routine, error) {
	in := models.RoutineInput{
		Name:        "Copy of " + src.Name,
		Description: src.Description,
	}
	for _, e := range src.Exercises {
		in.Exercises = append(in.Exercises, models.RoutineEntryInput{
			ExerciseID:  e.ExerciseID,
			Sets:        e.Sets,
			RestSeconds: e.RestSeconds,
		})
	}
	return db.CreateRoutine(ctx, userID, in)
}

// AddExerciseToRoutine appends an exercise to the end of a routine.
func (db *DB) AddExerciseToRoutine(ctx context.Context, routineID uuid.UUID, e models.RoutineEntryInput) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO routine_exercises (routine_id, exercise_id, sets_count, rest_time_seconds, position)
		 SELECT $1, $2, $3, $4, COALESCE(MAX(position) + 1, 0)
		 FROM routine_exercises WHERE routine_id = $1`,
		routineID, e.ExerciseID, e.Sets, e.RestSeconds)
	switch pgCode(err) {
	case "":
		if err != nil {
			return fmt.Errorf("adding exercise to routine: %w", err)
		}
		_, err = db.Pool.Exec(ctx, `UPDATE routines SET updated_at = NOW() WHERE id = $1`, routineID)
		if err != nil {
			return fmt.Errorf("touching routine %s: %w", routineID, err)
		}
		return nil
	case pgUniqueViolation:
		return fmt.Errorf("exercise %d: %w", e.ExerciseID, ErrDuplicateExercise)
	case pgForeignKeyViolation:
		return fmt.Errorf("exercise %d: %w", e.ExerciseID, ErrUnknownExercise)
	default:
		return fmt.Errorf("adding exercise to routine: %w", err)
	}
}

// RestTime returns the planned rest for an exercise within a routine.
func (db *DB) RestTime(ctx context.Context, routineID uuid.UUID, exerciseID int64) (int, bool, error) {
	var rest int
	err := db.Pool.QueryRow(ctx,
		`SELECT rest_time_seconds FROM routine_exercises WHERE routine_id = $1 AND exercise_id = $2`,
		routineID, exerciseID).Scan(&rest)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("querying rest time: %w", err)
	}
	return rest, true, nil
}
