package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Bounds for per-exercise routine parameters.
const (
	MinSets        = 1
	MaxSets        = 10
	DefaultSets    = 3
	MinRestSeconds = 30
	MaxRestSeconds = 300
	RestStep       = 15
	DefaultRest    = 60

	minutesPerSet = 3
)

// ErrInvalidRoutine is wrapped by every RoutineInput validation failure.
var ErrInvalidRoutine = errors.New("invalid routine")

// ValidSets reports whether n is an allowed set count.
func ValidSets(n int) bool {
	return n >= MinSets && n <= MaxSets
}

// ValidRest reports whether s is an allowed rest time.
func ValidRest(s int) bool {
	return s >= MinRestSeconds && s <= MaxRestSeconds && (s-MinRestSeconds)%RestStep == 0
}

// Routine is a user's saved workout plan.
type Routine struct {
	ID          uuid.UUID         `json:"id"`
	UserID      int               `json:"user_id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	IsActive    bool              `json:"is_active"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Exercises   []RoutineExercise `json:"exercises"`
}

// RoutineExercise is one ordered entry of a routine.
type RoutineExercise struct {
	ExerciseID   int64    `json:"exercise_id"`
	Title        string   `json:"title,omitempty"`
	Muscle       string   `json:"muscle,omitempty"`
	Sets         int      `json:"sets"`
	RestSeconds  int      `json:"rest_seconds"`
	Order        int      `json:"order"`
	TargetReps   string   `json:"target_reps,omitempty"`
	TargetWeight *float64 `json:"target_weight,omitempty"`
}

// TotalSets sums the planned sets.
func (r Routine) TotalSets() int {
	total := 0
	for _, e := range r.Exercises {
		total += e.Sets
	}
	return total
}

// EstimatedMinutes is a rough duration at three minutes per set.
func (r Routine) EstimatedMinutes() int {
	return r.TotalSets() * minutesPerSet
}

// RoutineEntryInput is one requested routine exercise.
type RoutineEntryInput struct {
	ExerciseID  int64 `json:"exercise_id"`
	Sets        int   `json:"sets"`
	RestSeconds int   `json:"rest_seconds"`
}

// RoutineInput is the routine-creation payload.
type RoutineInput struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Exercises   []RoutineEntryInput `json:"exercises"`
}

// Validate checks name, entry bounds and duplicates.
func (in *RoutineInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRoutine)
	}
	if len(in.Exercises) == 0 {
		return fmt.Errorf("%w: at least one exercise is required", ErrInvalidRoutine)
	}
	seen := make(map[int64]bool, len(in.Exercises))
	for _, e := range in.Exercises {
		if e.ExerciseID <= 0 {
			return fmt.Errorf("%w: invalid exercise id %d", ErrInvalidRoutine, e.ExerciseID)
		}
		if seen[e.ExerciseID] {
			return fmt.Errorf("%w: exercise %d listed twice", ErrInvalidRoutine, e.ExerciseID)
		}
		seen[e.ExerciseID] = true
		if !ValidSets(e.Sets) {
			return fmt.Errorf("%w: sets must be %d-%d", ErrInvalidRoutine, MinSets, MaxSets)
		}
		if !ValidRest(e.RestSeconds) {
			return fmt.Errorf("%w: rest must be %d-%ds in %ds steps", ErrInvalidRoutine, MinRestSeconds, MaxRestSeconds, RestStep)
		}
	}
	return nil
}
