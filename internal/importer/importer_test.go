package importer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/meltforce/liftlog/internal/catalog"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

const sampleCatalog = `{
  "metadata": {"source": "test", "count": 4},
  "exercises": [
    {
      "title": "Dumbbell Curl",
      "slug": "dumbbell-curl",
      "equipment": "dumbbells",
      "muscle": "biceps",
      "difficulty": "Beginner",
      "instructions": ["Stand tall.", "Curl the weights."],
      "videos": {"male": {"front": "m-f.mp4", "side": "m-s.mp4"}, "female": {}},
      "has_videos": false,
      "force": "pull",
      "mechanic": "isolation"
    },
    {
      "title": "Cable Crunch",
      "slug": "cable-crunch",
      "equipment": "cable",
      "muscle": "abdominals",
      "difficulty": "expert"
    },
    {
      "title": "Mystery Lift",
      "slug": "mystery-lift",
      "equipment": "trampoline"
    },
    {
      "title": "",
      "slug": "no-title"
    }
  ]
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCatalog(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "exercise_db.json")
	if err := os.WriteFile(p, []byte(sampleCatalog), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

// TestParse verifies entry mapping: aliases, unknown equipment falling back
// to "other", default difficulty and muscle, and skipped incomplete entries.
func TestParse(t *testing.T) {
	exercises, skipped, err := Parse(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if len(exercises) != 3 {
		t.Fatalf("got %d exercises, want 3", len(exercises))
	}

	curl := exercises[0]
	if !curl.HasVideos {
		t.Error("curl should have videos (male front+side)")
	}
	if len(curl.Instructions) != 2 || curl.Force != "pull" {
		t.Errorf("curl = %+v", curl)
	}

	crunch := exercises[1]
	if crunch.Equipment != models.EquipmentCables {
		t.Errorf("crunch equipment = %q, want cables", crunch.Equipment)
	}
	if crunch.Difficulty != models.DifficultyBeginner {
		t.Errorf("crunch difficulty = %q, want Beginner", crunch.Difficulty)
	}

	mystery := exercises[2]
	if mystery.Equipment != models.EquipmentOther || mystery.Muscle != "general" {
		t.Errorf("mystery = %+v", mystery)
	}
	if mystery.Instructions == nil {
		t.Error("instructions should be an empty slice, not nil")
	}
}

func TestParseInvalidJSON(t *testing.T) {
	if _, _, err := Parse(strings.NewReader("{not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

type recordingLogs struct {
	inserted []storage.ImportLog
	updated  []storage.ImportLog
}

func (r *recordingLogs) InsertImportLog(_ context.Context, l storage.ImportLog) (int64, error) {
	r.inserted = append(r.inserted, l)
	return int64(len(r.inserted)), nil
}

func (r *recordingLogs) UpdateImportLog(_ context.Context, _ int64, l storage.ImportLog) error {
	r.updated = append(r.updated, l)
	return nil
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.n++
	return nil
}

// TestImportFileIdempotent verifies a second import of the same file only
// updates rows, and that each run is logged and invalidates the cache.
func TestImportFileIdempotent(t *testing.T) {
	store := catalog.NewMemoryStore(nil)
	logs := &recordingLogs{}
	inv := &countingInvalidator{}
	p := writeCatalog(t)

	first, err := New(store, testLogger(), false, WithLogStore(logs), WithInvalidator(inv)).
		ImportFile(context.Background(), p)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if first.Created != 3 || first.Updated != 0 || first.Skipped != 1 || first.Received != 4 {
		t.Errorf("first stats = %+v", first)
	}

	second, err := New(store, testLogger(), false, WithLogStore(logs), WithInvalidator(inv)).
		ImportFile(context.Background(), p)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if second.Created != 0 || second.Updated != 3 {
		t.Errorf("second stats = %+v", second)
	}
	if store.Len() != 3 {
		t.Errorf("store has %d exercises, want 3", store.Len())
	}
	if inv.n != 2 {
		t.Errorf("invalidations = %d, want 2", inv.n)
	}
	if len(logs.updated) != 2 || logs.updated[1].Status != "success" || logs.updated[1].ExercisesUpdated != 3 {
		t.Errorf("logs = %+v", logs.updated)
	}
}

func TestImportFileDryRunSkipsSideEffects(t *testing.T) {
	logs := &recordingLogs{}
	inv := &countingInvalidator{}
	imp := New(catalog.NewMemoryStore(nil), testLogger(), true, WithLogStore(logs), WithInvalidator(inv))

	if _, err := imp.ImportFile(context.Background(), writeCatalog(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs.inserted) != 0 || inv.n != 0 {
		t.Errorf("dry run touched logs (%d) or cache (%d)", len(logs.inserted), inv.n)
	}
}

func TestImportFileMissing(t *testing.T) {
	logs := &recordingLogs{}
	imp := New(catalog.NewMemoryStore(nil), testLogger(), false, WithLogStore(logs))
	if _, err := imp.ImportFile(context.Background(), "/nonexistent/exercise_db.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
	if len(logs.updated) != 1 || logs.updated[0].Status != "error" {
		t.Errorf("logs = %+v", logs.updated)
	}
}

func TestExpectedVideoFiles(t *testing.T) {
	files := ExpectedVideoFiles(models.Exercise{Title: "Back Extension", Muscle: "lower-back"})
	if _, ok := files["Lower Back - Back Extension - Male-front.mp4"]; !ok {
		t.Errorf("missing male front name in %v", files)
	}
	if len(files) != 4 {
		t.Errorf("got %d names, want 4", len(files))
	}
	if ExpectedVideoFiles(models.Exercise{Title: "No Muscle"}) != nil {
		t.Error("exercise without muscle should expect no files")
	}
}

// TestScanVideos verifies has_videos is only set when one gender has both
// angles and that partial matches still store the references found.
func TestScanVideos(t *testing.T) {
	store := catalog.NewMemoryStore([]models.Exercise{
		{Title: "Goblet Squat", Slug: "goblet-squat", Muscle: "quads"},
		{Title: "Push Up", Slug: "push-up", Muscle: "chest"},
		{Title: "Plank", Slug: "plank", Muscle: "abdominals"},
	})
	dir := t.TempDir()
	for _, name := range []string{
		"Quads - Goblet Squat - Female-front.mp4",
		"Quads - Goblet Squat - Female-side.mp4",
		"Chest - Push Up - Male-front.mp4",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := New(store, testLogger(), false).ScanVideos(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.VideoFiles != 3 || stats.VideosChecked != 3 || stats.VideosUpdated != 2 || stats.StillNoVideos != 1 {
		t.Errorf("stats = %+v", stats)
	}

	squat, _ := store.Get("goblet-squat")
	if !squat.HasVideos {
		t.Error("goblet squat should have videos")
	}
	if got := squat.Videos[models.GenderFemale][models.AngleSide]; got != "videos/Quads - Goblet Squat - Female-side.mp4" {
		t.Errorf("female side = %q", got)
	}

	pushUp, _ := store.Get("push-up")
	if pushUp.HasVideos {
		t.Error("push up has one angle only and should not be marked")
	}
	if pushUp.Videos[models.GenderMale][models.AngleFront] == "" {
		t.Error("push up should keep its partial video reference")
	}
}

func TestScanVideosDryRun(t *testing.T) {
	store := catalog.NewMemoryStore([]models.Exercise{
		{Title: "Goblet Squat", Slug: "goblet-squat", Muscle: "quads"},
	})
	dir := t.TempDir()
	for _, name := range []string{
		"Quads - Goblet Squat - Male-front.mp4",
		"Quads - Goblet Squat - Male-side.mp4",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := New(store, testLogger(), true).ScanVideos(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.VideosUpdated != 1 {
		t.Errorf("would-update count = %d, want 1", stats.VideosUpdated)
	}
	if squat, _ := store.Get("goblet-squat"); squat.HasVideos {
		t.Error("dry run must not write")
	}
}
