package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/catalog"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

const testCSRFKey = "test-csrf-key-0123456789"

type setKey struct {
	session  uuid.UUID
	exercise int64
	number   int
}

// fakeStore is an in-memory Store. Methods a test does not touch panic via
// the nil embedded interface.
type fakeStore struct {
	Store

	mu        sync.Mutex
	pingErr   error
	exercises map[int64]models.Exercise
	routines  map[uuid.UUID]*models.Routine
	sessions  map[uuid.UUID]*models.Session
	sets      map[setKey]models.WorkoutSet
	users     map[string]int
	queryErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		exercises: make(map[int64]models.Exercise),
		routines:  make(map[uuid.UUID]*models.Routine),
		sessions:  make(map[uuid.UUID]*models.Session),
		sets:      make(map[setKey]models.WorkoutSet),
		users:     make(map[string]int),
	}
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) GetOrCreateUser(_ context.Context, login, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.users[login]; ok {
		return id, nil
	}
	id := len(f.users) + 2
	f.users[login] = id
	return id, nil
}

func (f *fakeStore) GetExercise(_ context.Context, id int64) (*models.Exercise, error) {
	e, ok := f.exercises[id]
	if !ok {
		return nil, fmt.Errorf("exercise %d: %w", id, storage.ErrNotFound)
	}
	return &e, nil
}

func (f *fakeStore) RelatedExercises(_ context.Context, e models.Exercise, limit int) ([]models.Exercise, error) {
	var out []models.Exercise
	for _, other := range f.exercises {
		if other.ID != e.ID && other.Muscle == e.Muscle && len(out) < limit {
			out = append(out, other)
		}
	}
	return out, nil
}

func (f *fakeStore) ListMuscleGroups(context.Context) ([]models.MuscleGroup, error) {
	counts := map[string]int{}
	for _, e := range f.exercises {
		counts[e.Muscle]++
	}
	var out []models.MuscleGroup
	for m, n := range counts {
		out = append(out, models.MuscleGroup{Name: m, Label: models.MuscleLabel(m), ExerciseCount: n})
	}
	return out, nil
}

func (f *fakeStore) CreateRoutine(_ context.Context, userID int, in models.RoutineInput) (*models.Routine, error) {
	r := &models.Routine{ID: uuid.New(), UserID: userID, Name: in.Name, Description: in.Description, IsActive: true}
	for i, e := range in.Exercises {
		ex, ok := f.exercises[e.ExerciseID]
		if !ok {
			return nil, storage.ErrUnknownExercise
		}
		r.Exercises = append(r.Exercises, models.RoutineExercise{
			ExerciseID: e.ExerciseID, Title: ex.Title, Muscle: ex.Muscle,
			Sets: e.Sets, RestSeconds: e.RestSeconds, Order: i,
		})
	}
	f.mu.Lock()
	f.routines[r.ID] = r
	f.mu.Unlock()
	return r, nil
}

func (f *fakeStore) GetRoutine(_ context.Context, id uuid.UUID) (*models.Routine, error) {
	r, ok := f.routines[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) ListRoutines(_ context.Context, userID int) ([]models.Routine, error) {
	var out []models.Routine
	for _, r := range f.routines {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteRoutine(_ context.Context, id uuid.UUID, userID int) error {
	r, ok := f.routines[id]
	if !ok || r.UserID != userID {
		return storage.ErrNotFound
	}
	delete(f.routines, id)
	return nil
}

func (f *fakeStore) UpdateRoutine(_ context.Context, id uuid.UUID, userID int, in models.RoutineInput) (*models.Routine, error) {
	r, ok := f.routines[id]
	if !ok || r.UserID != userID {
		return nil, storage.ErrNotFound
	}
	var entries []models.RoutineExercise
	for i, e := range in.Exercises {
		ex, ok := f.exercises[e.ExerciseID]
		if !ok {
			return nil, storage.ErrUnknownExercise
		}
		entries = append(entries, models.RoutineExercise{
			ExerciseID: e.ExerciseID, Title: ex.Title, Muscle: ex.Muscle,
			Sets: e.Sets, RestSeconds: e.RestSeconds, Order: i,
		})
	}
	r.Name, r.Description, r.Exercises = in.Name, in.Description, entries
	cp := *r
	return &cp, nil
}

func (f *fakeStore) CopyRoutine(ctx context.Context, src *models.Routine, userID int) (*models.Routine, error) {
	in := models.RoutineInput{Name: "Copy of " + src.Name}
	for _, e := range src.Exercises {
		in.Exercises = append(in.Exercises, models.RoutineEntryInput{ExerciseID: e.ExerciseID, Sets: e.Sets, RestSeconds: e.RestSeconds})
	}
	return f.CreateRoutine(ctx, userID, in)
}

func (f *fakeStore) AddExerciseToRoutine(_ context.Context, routineID uuid.UUID, e models.RoutineEntryInput) error {
	r := f.routines[routineID]
	for _, re := range r.Exercises {
		if re.ExerciseID == e.ExerciseID {
			return storage.ErrDuplicateExercise
		}
	}
	if _, ok := f.exercises[e.ExerciseID]; !ok {
		return storage.ErrUnknownExercise
	}
	r.Exercises = append(r.Exercises, models.RoutineExercise{
		ExerciseID: e.ExerciseID, Sets: e.Sets, RestSeconds: e.RestSeconds, Order: len(r.Exercises),
	})
	return nil
}

func (f *fakeStore) RestTime(_ context.Context, routineID uuid.UUID, exerciseID int64) (int, bool, error) {
	r, ok := f.routines[routineID]
	if !ok {
		return 0, false, nil
	}
	for _, re := range r.Exercises {
		if re.ExerciseID == exerciseID {
			return re.RestSeconds, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeStore) StartSession(_ context.Context, routine *models.Routine, userID int) (*models.Session, error) {
	s := &models.Session{ID: uuid.New(), RoutineID: routine.ID, RoutineName: routine.Name, UserID: userID, Status: models.SessionInProgress}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeStore) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) ListSessions(_ context.Context, userID, limit int) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.sessions {
		if s.UserID == userID && len(out) < limit {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) CompleteSession(_ context.Context, id uuid.UUID, notes string) error {
	s, ok := f.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.Status = models.SessionCompleted
	s.Notes = notes
	return nil
}

func (f *fakeStore) CompletedSetCounts(_ context.Context, sessionID uuid.UUID) (map[int64]int, error) {
	counts := map[int64]int{}
	for k := range f.sets {
		if k.session == sessionID {
			counts[k.exercise]++
		}
	}
	return counts, nil
}

func (f *fakeStore) InsertWorkoutSet(_ context.Context, in models.SetInput) (*models.WorkoutSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := setKey{in.SessionID, in.ExerciseID, in.SetNumber}
	if _, dup := f.sets[k]; dup {
		return nil, storage.ErrDuplicateSet
	}
	if _, ok := f.exercises[in.ExerciseID]; !ok {
		return nil, storage.ErrUnknownExercise
	}
	ws := models.WorkoutSet{
		SessionID: in.SessionID, ExerciseID: in.ExerciseID, SetNumber: in.SetNumber,
		Weight: in.Weight, Reps: in.Reps, Volume: models.Volume(in.Weight, in.Reps),
	}
	f.sets[k] = ws
	f.sessions[in.SessionID].TotalVolume += ws.Volume
	return &ws, nil
}

func (f *fakeStore) QuerySessionSets(_ context.Context, sessionID uuid.UUID, exerciseID int64) ([]models.WorkoutSet, error) {
	var out []models.WorkoutSet
	for n := 1; ; n++ {
		ws, ok := f.sets[setKey{sessionID, exerciseID, n}]
		if !ok {
			return out, nil
		}
		out = append(out, ws)
	}
}

func (f *fakeStore) GetTrainingStats(context.Context, int) (*storage.TrainingStats, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &storage.TrainingStats{TotalSessions: int64(len(f.sessions))}, nil
}

func (f *fakeStore) QueryImportLogs(context.Context, int) ([]storage.ImportLog, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []storage.ImportLog{}, nil
}

var errBoom = errors.New("boom")

func testExercises() []models.Exercise {
	return []models.Exercise{
		{ID: 1, Title: "Dumbbell Curl", Slug: "dumbbell-curl", Equipment: models.EquipmentDumbbells, Muscle: "biceps", Difficulty: models.DifficultyBeginner},
		{ID: 2, Title: "Barbell Curl", Slug: "barbell-curl", Equipment: models.EquipmentBarbell, Muscle: "biceps", Difficulty: models.DifficultyBeginner},
		{ID: 3, Title: "Goblet Squat", Slug: "goblet-squat", Equipment: models.EquipmentKettlebells, Muscle: "quads", Difficulty: models.DifficultyNovice, HasVideos: true},
		{ID: 4, Title: "Push Up", Slug: "push-up", Equipment: models.EquipmentBodyweight, Muscle: "chest", Difficulty: models.DifficultyNovice},
	}
}

// newTestServer wires a Server over a fakeStore and a memory-backed catalog
// holding testExercises.
func newTestServer(t *testing.T) (*Server, *fakeStore) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	fs := newFakeStore()
	exercises := testExercises()
	for _, e := range exercises {
		fs.exercises[e.ID] = e
	}
	cat := catalog.NewService(catalog.NewMemoryStore(exercises), log)
	return New(fs, cat, testCSRFKey, log), fs
}

// seedSession creates a routine with curls (2 sets, 90s rest) and squats
// (1 set, 60s rest) and an in-progress session for userID.
func seedSession(fs *fakeStore, userID int) (*models.Routine, *models.Session) {
	r := &models.Routine{
		ID: uuid.New(), UserID: userID, Name: "Legs and arms", IsActive: true,
		Exercises: []models.RoutineExercise{
			{ExerciseID: 1, Title: "Dumbbell Curl", Sets: 2, RestSeconds: 90},
			{ExerciseID: 3, Title: "Goblet Squat", Sets: 1, RestSeconds: 60, Order: 1},
		},
	}
	fs.routines[r.ID] = r
	s := &models.Session{ID: uuid.New(), RoutineID: r.ID, RoutineName: r.Name, UserID: userID, Status: models.SessionInProgress}
	fs.sessions[s.ID] = s
	return r, s
}
