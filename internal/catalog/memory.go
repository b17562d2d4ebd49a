package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

// MemoryStore is an in-memory Store with the same matching rules as the
// PostgreSQL repository.
type MemoryStore struct {
	mu        sync.RWMutex
	exercises []models.Exercise
}

// NewMemoryStore creates a store holding a copy of exercises.
func NewMemoryStore(exercises []models.Exercise) *MemoryStore {
	m := &MemoryStore{}
	for _, e := range exercises {
		m.Upsert(e)
	}
	return m
}

// Upsert inserts or replaces an exercise by slug. Returns true when created.
func (m *MemoryStore) Upsert(e models.Exercise) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.exercises {
		if m.exercises[i].Slug == e.Slug {
			e.ID = m.exercises[i].ID
			m.exercises[i] = e
			return false
		}
	}
	if e.ID == 0 {
		e.ID = int64(len(m.exercises) + 1)
	}
	m.exercises = append(m.exercises, e)
	return true
}

// Len returns the number of stored exercises.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.exercises)
}

func (m *MemoryStore) SearchExercises(_ context.Context, q storage.ExerciseQuery) ([]models.Exercise, error) {
	m.mu.RLock()
	var result []models.Exercise
	for _, e := range m.exercises {
		if matches(e, q) {
			result = append(result, e)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if q.VideosFirst && a.HasVideos != b.HasVideos {
			return a.HasVideos
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func (m *MemoryStore) CountExercises(_ context.Context, q storage.ExerciseQuery) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.exercises {
		if matches(e, q) {
			n++
		}
	}
	return n, nil
}

func matches(e models.Exercise, q storage.ExerciseQuery) bool {
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(e.Title), needle) &&
			!strings.Contains(strings.ToLower(e.Description), needle) {
			return false
		}
	}
	if q.Muscle != "" && !strings.EqualFold(e.Muscle, q.Muscle) {
		return false
	}
	if q.Equipment != "" && e.Equipment != q.Equipment {
		return false
	}
	if q.Difficulty != "" && e.Difficulty != q.Difficulty {
		return false
	}
	return true
}

// UpsertExercise lets the store stand in for the database during an import
// dry run.
func (m *MemoryStore) UpsertExercise(_ context.Context, e models.Exercise) (bool, error) {
	return m.Upsert(e), nil
}

// ListExercisesWithoutVideos returns exercises whose has_videos flag is false.
func (m *MemoryStore) ListExercisesWithoutVideos(_ context.Context) ([]models.Exercise, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.Exercise
	for _, e := range m.exercises {
		if !e.HasVideos {
			result = append(result, e)
		}
	}
	return result, nil
}

// UpdateExerciseVideos replaces an exercise's video references.
func (m *MemoryStore) UpdateExerciseVideos(_ context.Context, id int64, videos models.Videos, hasVideos bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.exercises {
		if m.exercises[i].ID == id {
			m.exercises[i].Videos = videos
			m.exercises[i].HasVideos = hasVideos
			return nil
		}
	}
	return fmt.Errorf("updating videos for exercise %d: %w", id, storage.ErrNotFound)
}

// Get returns the exercise with the given slug.
func (m *MemoryStore) Get(slug string) (models.Exercise, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.exercises {
		if e.Slug == slug {
			return e, true
		}
	}
	return models.Exercise{}, false
}
