package storage

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/meltforce/liftlog/internal/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const exerciseColumns = `id, title, slug, description, equipment, muscle, difficulty,
	instructions, videos, has_videos, force, grips, mechanic, created_at, updated_at`

// ExerciseQuery is a normalized catalog filter. Zero fields do not constrain.
type ExerciseQuery struct {
	Search     string
	Muscle     string
	Equipment  models.Equipment
	Difficulty models.Difficulty
	// VideosFirst orders exercises with demonstration videos ahead of the rest.
	VideosFirst bool
	Limit       int
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// exerciseFilter builds the AND of every constrained dimension.
func exerciseFilter(q ExerciseQuery) sq.And {
	where := sq.And{}
	if q.Search != "" {
		pattern := "%" + escapeLike(q.Search) + "%"
		where = append(where, sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"description": pattern},
		})
	}
	if q.Muscle != "" {
		where = append(where, sq.Expr("lower(muscle) = lower(?)", q.Muscle))
	}
	if q.Equipment != "" {
		where = append(where, sq.Eq{"equipment": string(q.Equipment)})
	}
	if q.Difficulty != "" {
		where = append(where, sq.Eq{"difficulty": string(q.Difficulty)})
	}
	return where
}

// SearchExercises returns exercises matching q ordered by title then id.
func (db *DB) SearchExercises(ctx context.Context, q ExerciseQuery) ([]models.Exercise, error) {
	b := psql.Select(exerciseColumns).From("exercises")
	if where := exerciseFilter(q); len(where) > 0 {
		b = b.Where(where)
	}
	if q.VideosFirst {
		b = b.OrderBy("has_videos DESC")
	}
	b = b.OrderBy("title ASC", "id ASC")
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building exercise search: %w", err)
	}
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching exercises: %w", err)
	}
	defer rows.Close()

	return scanExercises(rows)
}

// CountExercises returns how many exercises match q, ignoring its limit.
func (db *DB) CountExercises(ctx context.Context, q ExerciseQuery) (int, error) {
	b := psql.Select("COUNT(*)").From("exercises")
	if where := exerciseFilter(q); len(where) > 0 {
		b = b.Where(where)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building exercise count: %w", err)
	}
	var n int
	if err := db.Pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting exercises: %w", err)
	}
	return n, nil
}

// GetExercise retrieves one exercise by ID.
func (db *DB) GetExercise(ctx context.Context, id int64) (*models.Exercise, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+exerciseColumns+` FROM exercises WHERE id = $1`, id)
	e, err := scanExercise(row)
	if err != nil {
		return nil, fmt.Errorf("querying exercise %d: %w", id, notFound(err))
	}
	return e, nil
}

// GetExerciseBySlug retrieves one exercise by slug.
func (db *DB) GetExerciseBySlug(ctx context.Context, slug string) (*models.Exercise, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+exerciseColumns+` FROM exercises WHERE slug = $1`, slug)
	e, err := scanExercise(row)
	if err != nil {
		return nil, fmt.Errorf("querying exercise %q: %w", slug, notFound(err))
	}
	return e, nil
}

// RelatedExercises returns up to limit other exercises training the same muscle.
func (db *DB) RelatedExercises(ctx context.Context, e models.Exercise, limit int) ([]models.Exercise, error) {
	if e.Muscle == "" {
		return nil, nil
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT `+exerciseColumns+` FROM exercises
		 WHERE lower(muscle) = lower($1) AND id <> $2
		 ORDER BY has_videos DESC, title ASC
		 LIMIT $3`,
		e.Muscle, e.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying related exercises: %w", err)
	}
	defer rows.Close()
	return scanExercises(rows)
}

// UpsertExercise inserts or updates an exercise keyed by slug. Returns true
// when a new row was created.
func (db *DB) UpsertExercise(ctx context.Context, e models.Exercise) (bool, error) {
	instructions := e.Instructions
	if instructions == nil {
		instructions = []string{}
	}
	videos := e.Videos
	if videos == nil {
		videos = models.Videos{}
	}

	var created bool
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO exercises (title, slug, description, equipment, muscle, difficulty,
		 instructions, videos, has_videos, force, grips, mechanic)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 ON CONFLICT (slug) DO UPDATE SET
			title = EXCLUDED.title, description = EXCLUDED.description,
			equipment = EXCLUDED.equipment, muscle = EXCLUDED.muscle,
			difficulty = EXCLUDED.difficulty, instructions = EXCLUDED.instructions,
			videos = EXCLUDED.videos, has_videos = EXCLUDED.has_videos,
			force = EXCLUDED.force, grips = EXCLUDED.grips, mechanic = EXCLUDED.mechanic,
			updated_at = NOW()
		 RETURNING (xmax = 0)`,
		e.Title, e.Slug, e.Description, string(e.Equipment), e.Muscle, string(e.Difficulty),
		instructions, videos, e.HasVideos, e.Force, e.Grips, e.Mechanic,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upserting exercise %q: %w", e.Slug, err)
	}
	return created, nil
}

// ListMuscleGroups returns the distinct muscle categories with exercise counts.
func (db *DB) ListMuscleGroups(ctx context.Context) ([]models.MuscleGroup, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT muscle, COUNT(*) FROM exercises
		 WHERE muscle <> ''
		 GROUP BY muscle
		 ORDER BY muscle ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying muscle groups: %w", err)
	}
	defer rows.Close()

	var result []models.MuscleGroup
	for rows.Next() {
		var g models.MuscleGroup
		if err := rows.Scan(&g.Name, &g.ExerciseCount); err != nil {
			return nil, fmt.Errorf("scanning muscle group: %w", err)
		}
		g.Label = models.MuscleLabel(g.Name)
		result = append(result, g)
	}
	return result, rows.Err()
}

// ListExercisesWithoutVideos returns exercises whose has_videos flag is false.
func (db *DB) ListExercisesWithoutVideos(ctx context.Context) ([]models.Exercise, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+exerciseColumns+` FROM exercises WHERE NOT has_videos ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying exercises without videos: %w", err)
	}
	defer rows.Close()
	return scanExercises(rows)
}

// UpdateExerciseVideos replaces an exercise's video references.
func (db *DB) UpdateExerciseVideos(ctx context.Context, id int64, videos models.Videos, hasVideos bool) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE exercises SET videos = $2, has_videos = $3, updated_at = NOW() WHERE id = $1`,
		id, videos, hasVideos)
	if err != nil {
		return fmt.Errorf("updating videos for exercise %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating videos for exercise %d: %w", id, ErrNotFound)
	}
	return nil
}

func scanExercise(row interface{ Scan(dest ...any) error }) (*models.Exercise, error) {
	var (
		e                     models.Exercise
		equipment, difficulty string
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Slug, &e.Description, &equipment, &e.Muscle, &difficulty,
		&e.Instructions, &e.Videos, &e.HasVideos, &e.Force, &e.Grips, &e.Mechanic,
		&e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Equipment = models.Equipment(equipment)
	e.Difficulty = models.Difficulty(difficulty)
	return &e, nil
}

func scanExercises(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]models.Exercise, error) {
	var result []models.Exercise
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}
