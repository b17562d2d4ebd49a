package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/catalog"
	"github.com/meltforce/liftlog/internal/client"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both Local and
// client.HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	SearchExercises(ctx context.Context, c models.Criteria, limit int) (*models.SearchResponse, error)
	GetExercise(ctx context.Context, id int64) (*models.ExerciseDetail, error)
	ListMuscleGroups(ctx context.Context) ([]models.MuscleGroup, error)
	ListRoutines(ctx context.Context, userID int) ([]models.Routine, error)
	QuerySessionSets(ctx context.Context, sessionID uuid.UUID, exerciseID int64, userID int) ([]models.WorkoutSet, error)
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*client.HTTPClient)(nil)

// ErrForbidden is returned when a session belongs to another user.
var ErrForbidden = errors.New("session belongs to another user")

// LocalStore is the subset of *storage.DB that Local reads.
type LocalStore interface {
	GetExercise(ctx context.Context, id int64) (*models.Exercise, error)
	RelatedExercises(ctx context.Context, e models.Exercise, limit int) ([]models.Exercise, error)
	ListMuscleGroups(ctx context.Context) ([]models.MuscleGroup, error)
	ListRoutines(ctx context.Context, userID int) ([]models.Routine, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	QuerySessionSets(ctx context.Context, sessionID uuid.UUID, exerciseID int64) ([]models.WorkoutSet, error)
}

var _ LocalStore = (*storage.DB)(nil)

// Local serves MCP requests in-process from the catalog engine and the
// database.
type Local struct {
	catalog *catalog.Service
	db      LocalStore
}

var _ DataSource = (*Local)(nil)

func NewLocal(cat *catalog.Service, db LocalStore) *Local {
	return &Local{catalog: cat, db: db}
}

func (l *Local) SearchExercises(ctx context.Context, c models.Criteria, limit int) (*models.SearchResponse, error) {
	return l.catalog.Search(ctx, c, limit)
}

const relatedLimit = 4

func (l *Local) GetExercise(ctx context.Context, id int64) (*models.ExerciseDetail, error) {
	e, err := l.db.GetExercise(ctx, id)
	if err != nil {
		return nil, err
	}
	related, err := l.db.RelatedExercises(ctx, *e, relatedLimit)
	if err != nil {
		return nil, err
	}
	d := &models.ExerciseDetail{Exercise: e, Related: make([]models.ExerciseSummary, 0, len(related))}
	for _, r := range related {
		d.Related = append(d.Related, r.Summary())
	}
	return d, nil
}

func (l *Local) ListMuscleGroups(ctx context.Context) ([]models.MuscleGroup, error) {
	return l.db.ListMuscleGroups(ctx)
}

func (l *Local) ListRoutines(ctx context.Context, userID int) ([]models.Routine, error) {
	return l.db.ListRoutines(ctx, userID)
}

func (l *Local) QuerySessionSets(ctx context.Context, sessionID uuid.UUID, exerciseID int64, userID int) ([]models.WorkoutSet, error) {
	s, err := l.db.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrForbidden)
	}
	return l.db.QuerySessionSets(ctx, sessionID, exerciseID)
}
