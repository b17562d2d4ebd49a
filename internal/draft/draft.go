// Package draft composes a routine on the client before it is submitted.
// The draft survives restarts through a Store and is cleared only once the
// server has confirmed the routine.
package draft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/meltforce/liftlog/internal/models"
)

var (
	ErrDuplicate  = errors.New("exercise already in draft")
	ErrOutOfRange = errors.New("value out of range")
	ErrNotInDraft = errors.New("exercise not in draft")
	ErrEmpty      = errors.New("draft has no available exercises")
)

// Entry is one planned exercise. Available is recomputed against the
// currently rendered exercise list and never persisted.
type Entry struct {
	ExerciseID  int64  `json:"exercise_id"`
	Title       string `json:"title"`
	Sets        int    `json:"sets"`
	RestSeconds int    `json:"rest_seconds"`
	Available   bool   `json:"-"`
}

// Store persists the ordered entry list under a single key.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
	Clear(ctx context.Context) error
}

// Creator is the server call that turns a draft into a routine.
type Creator interface {
	CreateRoutine(ctx context.Context, in models.RoutineInput) (*models.Routine, error)
}

// Option configures a Composer.
type Option func(*Composer)

// WithNotice sets the callback for user-visible notices such as a rejected
// duplicate.
func WithNotice(fn func(msg string)) Option {
	return func(c *Composer) {
		c.notice = fn
	}
}

// Composer owns the draft. All methods are safe for concurrent use.
type Composer struct {
	store  Store
	log    *slog.Logger
	notice func(string)

	mu      sync.Mutex
	entries []Entry
}

func New(store Store, log *slog.Logger, opts ...Option) *Composer {
	c := &Composer{store: store, log: log, notice: func(string) {}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Entries returns a copy of the draft in order.
func (c *Composer) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.entries)
}

func (c *Composer) index(id int64) int {
	return slices.IndexFunc(c.entries, func(e Entry) bool { return e.ExerciseID == id })
}

// persist saves the draft, putting prev back in memory when the save fails
// so the draft never drifts from its stored copy. Callers hold mu.
func (c *Composer) persist(ctx context.Context, prev []Entry) error {
	if err := c.store.Save(ctx, c.entries); err != nil {
		c.log.Error("persisting draft", "entries", len(c.entries), "error", err)
		c.entries = prev
		return err
	}
	return nil
}

// Add appends an exercise with default sets and rest. Adding an exercise
// already in the draft changes nothing and raises a notice.
func (c *Composer) Add(ctx context.Context, ex models.ExerciseSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index(ex.ID) >= 0 {
		c.notice(fmt.Sprintf("%s is already in your routine", ex.Title))
		return fmt.Errorf("exercise %d: %w", ex.ID, ErrDuplicate)
	}
	prev := slices.Clone(c.entries)
	c.entries = append(c.entries, Entry{
		ExerciseID:  ex.ID,
		Title:       ex.Title,
		Sets:        models.DefaultSets,
		RestSeconds: models.DefaultRest,
		Available:   true,
	})
	return c.persist(ctx, prev)
}

func (c *Composer) Remove(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return fmt.Errorf("exercise %d: %w", id, ErrNotInDraft)
	}
	prev := slices.Clone(c.entries)
	c.entries = slices.Delete(c.entries, i, i+1)
	return c.persist(ctx, prev)
}

// SetSets changes an entry's set count within models.MinSets..MaxSets.
func (c *Composer) SetSets(ctx context.Context, id int64, n int) error {
	if !models.ValidSets(n) {
		return fmt.Errorf("sets %d not in %d-%d: %w", n, models.MinSets, models.MaxSets, ErrOutOfRange)
	}
	return c.update(ctx, id, func(e *Entry) { e.Sets = n })
}

// SetRest changes an entry's rest time; it must be a RestStep multiple
// between MinRestSeconds and MaxRestSeconds.
func (c *Composer) SetRest(ctx context.Context, id int64, seconds int) error {
	if !models.ValidRest(seconds) {
		return fmt.Errorf("rest %ds not in %d-%ds by %ds: %w", seconds,
			models.MinRestSeconds, models.MaxRestSeconds, models.RestStep, ErrOutOfRange)
	}
	return c.update(ctx, id, func(e *Entry) { e.RestSeconds = seconds })
}

func (c *Composer) update(ctx context.Context, id int64, fn func(*Entry)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return fmt.Errorf("exercise %d: %w", id, ErrNotInDraft)
	}
	prev := slices.Clone(c.entries)
	fn(&c.entries[i])
	return c.persist(ctx, prev)
}

// Restore replaces the in-memory draft with the persisted one and marks
// entries whose exercise is not in rendered as unavailable. Running it again
// yields the same draft.
func (c *Composer) Restore(ctx context.Context, rendered []models.ExerciseSummary) error {
	entries, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("restoring draft: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	c.markAvailable(rendered)
	c.log.Debug("draft restored", "entries", len(entries))
	return nil
}

// SetAvailable recomputes availability after the exercise list re-renders.
func (c *Composer) SetAvailable(rendered []models.ExerciseSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markAvailable(rendered)
}

func (c *Composer) markAvailable(rendered []models.ExerciseSummary) {
	shown := make(map[int64]bool, len(rendered))
	for _, ex := range rendered {
		shown[ex.ID] = true
	}
	for i := range c.entries {
		c.entries[i].Available = shown[c.entries[i].ExerciseID]
	}
}

// Input packages the available entries as routine-creation input.
func (c *Composer) Input(name, description string) models.RoutineInput {
	c.mu.Lock()
	defer c.mu.Unlock()

	in := models.RoutineInput{Name: name, Description: description}
	for _, e := range c.entries {
		if !e.Available {
			continue
		}
		in.Exercises = append(in.Exercises, models.RoutineEntryInput{
			ExerciseID:  e.ExerciseID,
			Sets:        e.Sets,
			RestSeconds: e.RestSeconds,
		})
	}
	return in
}

// Submit creates the routine from the available entries. The draft and its
// persisted copy are cleared only after the server confirms; on any failure
// both are left as they were.
func (c *Composer) Submit(ctx context.Context, creator Creator, name, description string) (*models.Routine, error) {
	in := c.Input(name, description)
	if len(in.Exercises) == 0 {
		return nil, ErrEmpty
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	routine, err := creator.CreateRoutine(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("creating routine: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn("clearing submitted draft", "routine_id", routine.ID, "error", err)
	}
	c.entries = nil
	return routine, nil
}
