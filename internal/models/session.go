package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session statuses.
const (
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionPaused     = "paused"
	SessionCancelled  = "cancelled"
)

// Session is one performed workout of a routine.
type Session struct {
	ID          uuid.UUID  `json:"id"`
	RoutineID   uuid.UUID  `json:"routine_id"`
	RoutineName string     `json:"routine_name"`
	UserID      int        `json:"user_id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	TotalVolume float64    `json:"total_volume"`
}

// Duration is elapsed time, up to now while still running.
func (s Session) Duration(now time.Time) time.Duration {
	if s.CompletedAt != nil {
		return s.CompletedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

// WorkoutSet is one completed set. Rows are never updated.
type WorkoutSet struct {
	SessionID   uuid.UUID `json:"session_id"`
	ExerciseID  int64     `json:"exercise_id"`
	SetNumber   int       `json:"set_number"`
	Weight      float64   `json:"weight"`
	Reps        int       `json:"reps"`
	Volume      float64   `json:"volume"`
	CompletedAt time.Time `json:"completed_at"`
}

// Volume is weight × reps rounded to two decimals.
func Volume(weight float64, reps int) float64 {
	return math.Round(weight*float64(reps)*100) / 100
}

// SetError is a field-level validation failure of a set submission.
type SetError struct {
	Field   string `json:"field"`
	Message string `json:"error"`
}

func (e *SetError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// SetInput is a raw set submission.
type SetInput struct {
	SessionID  uuid.UUID
	ExerciseID int64
	SetNumber  int
	Weight     float64
	Reps       int
}

// ParseSetInput parses form-encoded string values. Every failure is a
// *SetError naming the offending field.
func ParseSetInput(sessionID, exerciseID, setNumber, weight, reps string) (SetInput, error) {
	var in SetInput
	sid, err := uuid.Parse(strings.TrimSpace(sessionID))
	if err != nil {
		return in, &SetError{Field: "session_id", Message: "invalid session id"}
	}
	in.SessionID = sid

	eid, err := strconv.ParseInt(strings.TrimSpace(exerciseID), 10, 64)
	if err != nil {
		return in, &SetError{Field: "exercise_id", Message: "invalid exercise id"}
	}
	in.ExerciseID = eid

	n, err := strconv.Atoi(strings.TrimSpace(setNumber))
	if err != nil {
		return in, &SetError{Field: "set_number", Message: "set number must be a whole number"}
	}
	in.SetNumber = n

	w, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) {
		return in, &SetError{Field: "weight", Message: "weight must be a number"}
	}
	in.Weight = w

	r, err := strconv.Atoi(strings.TrimSpace(reps))
	if err != nil {
		return in, &SetError{Field: "reps", Message: "reps must be a whole number"}
	}
	in.Reps = r

	return in, in.Validate()
}

// Validate enforces positive weight, reps and set number.
func (in SetInput) Validate() error {
	switch {
	case in.ExerciseID <= 0:
		return &SetError{Field: "exercise_id", Message: "invalid exercise id"}
	case in.SetNumber <= 0:
		return &SetError{Field: "set_number", Message: "set number must be positive"}
	case in.Weight <= 0:
		return &SetError{Field: "weight", Message: "weight must be greater than zero"}
	case in.Reps <= 0:
		return &SetError{Field: "reps", Message: "reps must be greater than zero"}
	}
	return nil
}

// SaveSetResponse is the set recorder's JSON reply.
type SaveSetResponse struct {
	Success  bool    `json:"success"`
	Volume   float64 `json:"volume,omitempty"`
	RestTime *int    `json:"rest_time,omitempty"`
	Message  string  `json:"message,omitempty"`
	Error    string  `json:"error,omitempty"`
	Field    string  `json:"field,omitempty"`
}

// ExerciseProgress is a routine exercise's standing within a session.
type ExerciseProgress struct {
	RoutineExercise
	CompletedSets int  `json:"completed_sets"`
	Percent       int  `json:"percent"`
	IsComplete    bool `json:"is_complete"`
	IsCurrent     bool `json:"is_current"`
}

// Progress computes per-exercise progress; the first unfinished exercise is
// current. done reports whether every planned set is recorded.
func Progress(plan []RoutineExercise, completed map[int64]int) (progress []ExerciseProgress, done bool) {
	current := false
	for _, re := range plan {
		n := completed[re.ExerciseID]
		p := ExerciseProgress{RoutineExercise: re, CompletedSets: n}
		if re.Sets > 0 {
			p.Percent = min(n*100/re.Sets, 100)
		}
		p.IsComplete = n >= re.Sets
		if !current && !p.IsComplete {
			p.IsCurrent = true
			current = true
		}
		progress = append(progress, p)
	}
	return progress, len(plan) > 0 && !current
}
