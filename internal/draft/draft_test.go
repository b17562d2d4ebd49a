package draft

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T, dir string) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	curl  = models.ExerciseSummary{ID: 1, Title: "Dumbbell Curl"}
	squat = models.ExerciseSummary{ID: 2, Title: "Goblet Squat"}
	press = models.ExerciseSummary{ID: 3, Title: "Overhead Press"}
)

type fakeCreator struct {
	got models.RoutineInput
	err error
}

func (f *fakeCreator) CreateRoutine(_ context.Context, in models.RoutineInput) (*models.Routine, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.Routine{ID: uuid.New(), Name: in.Name}, nil
}

func tuples(entries []Entry) [][3]int64 {
	out := make([][3]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, [3]int64{e.ExerciseID, int64(e.Sets), int64(e.RestSeconds)})
	}
	return out
}

func TestDraftRoundTripAcrossReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c := New(openStore(t, dir), testLogger())
	require.NoError(t, c.Add(ctx, curl))
	require.NoError(t, c.Add(ctx, squat))
	require.NoError(t, c.SetSets(ctx, curl.ID, 5))
	require.NoError(t, c.SetRest(ctx, squat.ID, 120))
	want := tuples(c.Entries())

	reloaded := New(openStore(t, dir), testLogger())
	require.NoError(t, reloaded.Restore(ctx, []models.ExerciseSummary{curl, squat}))
	assert.Equal(t, want, tuples(reloaded.Entries()))
	assert.Equal(t, [][3]int64{{1, 5, 60}, {2, 3, 120}}, want)
}

func TestAddDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	var notices []string
	c := New(openStore(t, t.TempDir()), testLogger(), WithNotice(func(msg string) { notices = append(notices, msg) }))

	require.NoError(t, c.Add(ctx, curl))
	err := c.Add(ctx, curl)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Len(t, c.Entries(), 1)
	assert.Equal(t, []string{"Dumbbell Curl is already in your routine"}, notices)
}

func TestBoundsEnforced(t *testing.T) {
	ctx := context.Background()
	c := New(openStore(t, t.TempDir()), testLogger())
	require.NoError(t, c.Add(ctx, curl))

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"zero sets", func() error { return c.SetSets(ctx, curl.ID, 0) }, ErrOutOfRange},
		{"eleven sets", func() error { return c.SetSets(ctx, curl.ID, 11) }, ErrOutOfRange},
		{"rest below minimum", func() error { return c.SetRest(ctx, curl.ID, 15) }, ErrOutOfRange},
		{"rest above maximum", func() error { return c.SetRest(ctx, curl.ID, 315) }, ErrOutOfRange},
		{"rest off step", func() error { return c.SetRest(ctx, curl.ID, 40) }, ErrOutOfRange},
		{"unknown exercise", func() error { return c.SetSets(ctx, 99, 3) }, ErrNotInDraft},
		{"remove unknown", func() error { return c.Remove(ctx, 99) }, ErrNotInDraft},
		{"max sets", func() error { return c.SetSets(ctx, curl.ID, 10) }, nil},
		{"max rest", func() error { return c.SetRest(ctx, curl.ID, 300) }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRestoreMarksUnrenderedUnavailable(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())
	c := New(store, testLogger())
	for _, ex := range []models.ExerciseSummary{curl, squat, press} {
		require.NoError(t, c.Add(ctx, ex))
	}

	restored := New(store, testLogger())
	rendered := []models.ExerciseSummary{curl, press}
	require.NoError(t, restored.Restore(ctx, rendered))
	first := restored.Entries()
	require.NoError(t, restored.Restore(ctx, rendered))
	assert.Equal(t, first, restored.Entries(), "restore is idempotent")

	require.Len(t, first, 3)
	assert.True(t, first[0].Available)
	assert.False(t, first[1].Available)
	assert.Equal(t, "Goblet Squat", first[1].Title, "unavailable entries stay visible")

	assert.Equal(t, []int64{1, 3}, exerciseIDs(restored.Input("Mixed", "")))

	restored.SetAvailable([]models.ExerciseSummary{squat})
	assert.Equal(t, []int64{2}, exerciseIDs(restored.Input("Legs", "")))
}

func exerciseIDs(in models.RoutineInput) []int64 {
	var ids []int64
	for _, e := range in.Exercises {
		ids = append(ids, e.ExerciseID)
	}
	return ids
}

func TestSubmitClearsOnlyAfterConfirmation(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())
	c := New(store, testLogger())
	require.NoError(t, c.Add(ctx, curl))
	require.NoError(t, c.Add(ctx, squat))

	failing := &fakeCreator{err: errors.New("connection refused")}
	_, err := c.Submit(ctx, failing, "Arms", "")
	require.Error(t, err)
	saved, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, saved, 2, "failed submit keeps the persisted draft")
	assert.Len(t, c.Entries(), 2)

	ok := &fakeCreator{}
	r, err := c.Submit(ctx, ok, "Arms", "biceps day")
	require.NoError(t, err)
	assert.Equal(t, "Arms", r.Name)
	assert.Equal(t, []int64{1, 2}, exerciseIDs(ok.got))
	assert.Equal(t, "biceps day", ok.got.Description)

	saved, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, saved)
	assert.Empty(t, c.Entries())
}

func TestSubmitRejectsInvalidDraft(t *testing.T) {
	ctx := context.Background()
	c := New(openStore(t, t.TempDir()), testLogger())
	creator := &fakeCreator{}

	_, err := c.Submit(ctx, creator, "Empty", "")
	assert.ErrorIs(t, err, ErrEmpty)

	require.NoError(t, c.Add(ctx, curl))
	_, err = c.Submit(ctx, creator, "  ", "")
	assert.ErrorIs(t, err, models.ErrInvalidRoutine)
	assert.Empty(t, creator.got.Exercises, "server never called")
}

func TestRemovePersists(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())
	c := New(store, testLogger())
	require.NoError(t, c.Add(ctx, curl))
	require.NoError(t, c.Add(ctx, squat))
	require.NoError(t, c.Remove(ctx, curl.ID))

	saved, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, squat.ID, saved[0].ExerciseID)
}

// flakyStore fails every Save while failing is set.
type flakyStore struct {
	Store
	failing bool
}

func (f *flakyStore) Save(ctx context.Context, entries []Entry) error {
	if f.failing {
		return errors.New("disk full")
	}
	return f.Store.Save(ctx, entries)
}

func TestFailedSaveLeavesDraftUnchanged(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := &flakyStore{Store: openStore(t, dir)}
	c := New(store, testLogger())
	require.NoError(t, c.Add(ctx, curl))
	require.NoError(t, c.Add(ctx, squat))
	want := tuples(c.Entries())

	store.failing = true
	assert.EqualError(t, c.Add(ctx, press), "disk full")
	assert.EqualError(t, c.Remove(ctx, curl.ID), "disk full")
	assert.EqualError(t, c.SetSets(ctx, squat.ID, 6), "disk full")
	assert.EqualError(t, c.SetRest(ctx, curl.ID, 150), "disk full")
	assert.Equal(t, want, tuples(c.Entries()))

	store.failing = false
	require.NoError(t, c.Add(ctx, press), "retry after a failed save")

	reloaded := New(openStore(t, dir), testLogger())
	require.NoError(t, reloaded.Restore(ctx, []models.ExerciseSummary{curl, squat, press}))
	assert.Equal(t, tuples(c.Entries()), tuples(reloaded.Entries()))
	assert.Len(t, reloaded.Entries(), 3)
}
