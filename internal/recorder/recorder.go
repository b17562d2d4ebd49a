// Package recorder is the client side of set logging: it validates a set row
// locally, submits it, locks the row once saved and starts the rest
// countdown the server asks for.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/models"
)

// ErrRowLocked is returned when a row is saving or already saved.
var ErrRowLocked = errors.New("set row is not editable")

// RowState is the lifecycle of one set row.
type RowState int

const (
	Editable RowState = iota
	Saving
	Complete
)

func (s RowState) String() string {
	switch s {
	case Editable:
		return "editable"
	case Saving:
		return "saving"
	case Complete:
		return "complete"
	}
	return "RowState(" + strconv.Itoa(int(s)) + ")"
}

// Row is one set's input fields and status.
type Row struct {
	ExerciseID int64
	SetNumber  int
	Weight     string
	Reps       string
	State      RowState
	Volume     float64
	// Err is the last rejection, cleared by a successful save.
	Err error
}

// Saver submits a set to the server.
type Saver interface {
	SaveSet(ctx context.Context, in models.SetInput) (*models.SaveSetResponse, error)
}

// Countdown is the rest timer; resttimer.Timer satisfies it.
type Countdown interface {
	Start(ctx context.Context, d time.Duration, onTick func(remaining time.Duration), onDone func())
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithRestCallbacks sets the countdown display callbacks.
func WithRestCallbacks(onTick func(time.Duration), onDone func()) Option {
	return func(r *Recorder) {
		r.onTick = onTick
		r.onDone = onDone
	}
}

type rowKey struct {
	exerciseID int64
	setNumber  int
}

// Recorder tracks the set rows of one workout session.
type Recorder struct {
	sessionID uuid.UUID
	saver     Saver
	timer     Countdown
	log       *slog.Logger
	onTick    func(time.Duration)
	onDone    func()

	mu   sync.Mutex
	rows map[rowKey]*Row
}

func New(sessionID uuid.UUID, saver Saver, timer Countdown, log *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		sessionID: sessionID,
		saver:     saver,
		timer:     timer,
		log:       log,
		rows:      make(map[rowKey]*Row),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Row returns a copy of a row's current state; unseen rows are editable.
func (r *Recorder) Row(exerciseID int64, setNumber int) Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.row(exerciseID, setNumber)
}

func (r *Recorder) row(exerciseID int64, setNumber int) *Row {
	k := rowKey{exerciseID, setNumber}
	row, ok := r.rows[k]
	if !ok {
		row = &Row{ExerciseID: exerciseID, SetNumber: setNumber}
		r.rows[k] = row
	}
	return row
}

// Save validates and submits one set. Invalid input never reaches the
// server and leaves the row editable with a *models.SetError. A saved row is
// locked against resubmission.
func (r *Recorder) Save(ctx context.Context, exerciseID int64, setNumber int, weight, reps string) (*models.SaveSetResponse, error) {
	r.mu.Lock()
	row := r.row(exerciseID, setNumber)
	if row.State != Editable {
		r.mu.Unlock()
		return nil, fmt.Errorf("set %d of exercise %d is %s: %w", setNumber, exerciseID, row.State, ErrRowLocked)
	}
	row.Weight, row.Reps = weight, reps

	in, err := models.ParseSetInput(r.sessionID.String(), strconv.FormatInt(exerciseID, 10),
		strconv.Itoa(setNumber), weight, reps)
	if err != nil {
		row.Err = err
		r.mu.Unlock()
		return nil, err
	}
	row.State = Saving
	r.mu.Unlock()

	resp, err := r.saver.SaveSet(ctx, in)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		row.State = Editable
		row.Err = err
		r.log.Warn("set not saved", "exercise_id", exerciseID, "set_number", setNumber, "error", err)
		return nil, err
	}
	row.State = Complete
	row.Volume = resp.Volume
	row.Err = nil

	// The countdown outlives the save request.
	if resp.RestTime != nil && r.timer != nil {
		r.timer.Start(context.WithoutCancel(ctx), time.Duration(*resp.RestTime)*time.Second, r.onTick, r.onDone)
	}
	return resp, nil
}
