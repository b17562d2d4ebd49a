package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

// Target receives imported exercises. *storage.DB and *catalog.MemoryStore
// both satisfy it.
type Target interface {
	UpsertExercise(ctx context.Context, e models.Exercise) (bool, error)
	ListExercisesWithoutVideos(ctx context.Context) ([]models.Exercise, error)
	UpdateExerciseVideos(ctx context.Context, id int64, videos models.Videos, hasVideos bool) error
}

// LogStore records import runs.
type LogStore interface {
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	UpdateImportLog(ctx context.Context, id int64, log storage.ImportLog) error
}

// Invalidator drops cached search results after the catalog changes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Stats tracks import progress.
type Stats struct {
	Received int
	Created  int
	Updated  int
	Skipped  int

	VideoFiles    int
	VideosChecked int
	VideosUpdated int
	StillNoVideos int
}

// Importer loads the exercise catalog JSON and scans the video directory.
type Importer struct {
	target Target
	logs   LogStore
	cache  Invalidator
	log    *slog.Logger
	dryRun bool
	stats  Stats
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogStore records each run in the import log.
func WithLogStore(s LogStore) Option {
	return func(imp *Importer) { imp.logs = s }
}

// WithInvalidator bumps the search cache generation after a run.
func WithInvalidator(inv Invalidator) Option {
	return func(imp *Importer) { imp.cache = inv }
}

// New creates a new Importer. In dry-run mode video updates are reported but
// not written, and no import log or cache invalidation happens.
func New(target Target, log *slog.Logger, dryRun bool, opts ...Option) *Importer {
	imp := &Importer{target: target, log: log, dryRun: dryRun}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Stats returns the counters accumulated so far.
func (imp *Importer) Stats() Stats { return imp.stats }

type catalogFile struct {
	Metadata  json.RawMessage `json:"metadata"`
	Exercises []catalogEntry  `json:"exercises"`
}

type catalogEntry struct {
	Title        string                       `json:"title"`
	Slug         string                       `json:"slug"`
	Description  string                       `json:"description"`
	Equipment    string                       `json:"equipment"`
	Muscle       string                       `json:"muscle"`
	Difficulty   string                       `json:"difficulty"`
	Instructions []string                     `json:"instructions"`
	Videos       map[string]map[string]string `json:"videos"`
	HasVideos    bool                         `json:"has_videos"`
	Force        string                       `json:"force"`
	Grips        string                       `json:"grips"`
	Mechanic     string                       `json:"mechanic"`
}

// Parse decodes a catalog document. Entries without a title or slug are
// dropped and counted in skipped.
func Parse(r io.Reader) (exercises []models.Exercise, skipped int, err error) {
	var doc catalogFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, 0, fmt.Errorf("decoding catalog: %w", err)
	}
	for _, entry := range doc.Exercises {
		e, ok := entry.toExercise()
		if !ok {
			skipped++
			continue
		}
		exercises = append(exercises, e)
	}
	return exercises, skipped, nil
}

func (c catalogEntry) toExercise() (models.Exercise, bool) {
	title := strings.TrimSpace(c.Title)
	slug := strings.TrimSpace(c.Slug)
	if title == "" || slug == "" {
		return models.Exercise{}, false
	}

	equipment, ok := models.ParseEquipment(c.Equipment)
	if !ok {
		equipment = models.EquipmentOther
	}
	difficulty, ok := models.ParseDifficulty(c.Difficulty)
	if !ok {
		difficulty = models.DifficultyBeginner
	}
	muscle := strings.TrimSpace(c.Muscle)
	if muscle == "" {
		muscle = "general"
	}

	videos := models.Videos{}
	for _, g := range []models.Gender{models.GenderMale, models.GenderFemale} {
		for _, a := range []models.Angle{models.AngleFront, models.AngleSide} {
			if p := c.Videos[string(g)][string(a)]; p != "" {
				if videos[g] == nil {
					videos[g] = map[models.Angle]string{}
				}
				videos[g][a] = p
			}
		}
	}

	instructions := c.Instructions
	if instructions == nil {
		instructions = []string{}
	}

	return models.Exercise{
		Title:        title,
		Slug:         slug,
		Description:  strings.TrimSpace(c.Description),
		Equipment:    equipment,
		Muscle:       muscle,
		Difficulty:   difficulty,
		Instructions: instructions,
		Videos:       videos,
		HasVideos:    c.HasVideos || videos.Complete(),
		Force:        c.Force,
		Grips:        c.Grips,
		Mechanic:     c.Mechanic,
	}, true
}

// ImportFile upserts every valid exercise from the catalog file at p, keyed
// by slug. Re-running with the same file only updates rows.
func (imp *Importer) ImportFile(ctx context.Context, p string) (*Stats, error) {
	start := time.Now()
	logID := imp.beginLog(ctx, "catalog:"+filepath.Base(p))

	f, err := os.Open(p)
	if err != nil {
		imp.finishLog(ctx, logID, start, err)
		return &imp.stats, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	exercises, skipped, err := Parse(f)
	if err != nil {
		imp.finishLog(ctx, logID, start, err)
		return &imp.stats, err
	}
	imp.stats.Received += len(exercises) + skipped
	imp.stats.Skipped += skipped

	for _, e := range exercises {
		if err := ctx.Err(); err != nil {
			imp.finishLog(ctx, logID, start, err)
			return &imp.stats, err
		}
		created, err := imp.target.UpsertExercise(ctx, e)
		if err != nil {
			imp.log.Warn("upsert failed", "slug", e.Slug, "error", err)
			imp.stats.Skipped++
			continue
		}
		if created {
			imp.stats.Created++
			imp.log.Debug("created exercise", "slug", e.Slug)
		} else {
			imp.stats.Updated++
			imp.log.Debug("updated exercise", "slug", e.Slug)
		}
	}

	imp.invalidate(ctx)
	imp.finishLog(ctx, logID, start, nil)
	return &imp.stats, nil
}

// VideoURLPrefix is prepended to matched file names.
const VideoURLPrefix = "videos/"

// ExpectedVideoFiles returns the file names the video downloader produces for
// an exercise: "<Muscle Label> - <Title> - <Gender>-<angle>.mp4".
func ExpectedVideoFiles(e models.Exercise) map[string][2]string {
	if e.Muscle == "" {
		return nil
	}
	prefix := models.MuscleLabel(e.Muscle) + " - " + e.Title + " - "
	return map[string][2]string{
		prefix + "Male-front.mp4":   {string(models.GenderMale), string(models.AngleFront)},
		prefix + "Male-side.mp4":    {string(models.GenderMale), string(models.AngleSide)},
		prefix + "Female-front.mp4": {string(models.GenderFemale), string(models.AngleFront)},
		prefix + "Female-side.mp4":  {string(models.GenderFemale), string(models.AngleSide)},
	}
}

// ScanVideos matches .mp4 files in dir against exercises that have no videos
// yet and stores the references found. has_videos is set once one gender has
// both angles.
func (imp *Importer) ScanVideos(ctx context.Context, dir string) (*Stats, error) {
	start := time.Now()
	logID := imp.beginLog(ctx, "videos:"+filepath.Base(dir))

	entries, err := os.ReadDir(dir)
	if err != nil {
		imp.finishLog(ctx, logID, start, err)
		return &imp.stats, fmt.Errorf("reading %s: %w", dir, err)
	}
	files := make(map[string]bool)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".mp4") {
			files[entry.Name()] = true
		}
	}
	imp.stats.VideoFiles = len(files)

	exercises, err := imp.target.ListExercisesWithoutVideos(ctx)
	if err != nil {
		imp.finishLog(ctx, logID, start, err)
		return &imp.stats, err
	}
	imp.stats.VideosChecked = len(exercises)

	for _, e := range exercises {
		videos := models.Videos{}
		for name, key := range ExpectedVideoFiles(e) {
			if !files[name] {
				continue
			}
			g, a := models.Gender(key[0]), models.Angle(key[1])
			if videos[g] == nil {
				videos[g] = map[models.Angle]string{}
			}
			videos[g][a] = VideoURLPrefix + name
		}
		if len(videos) == 0 {
			continue
		}

		if imp.dryRun {
			imp.log.Info("would update videos", "slug", e.Slug, "genders", len(videos))
		} else {
			for g, angles := range e.Videos {
				if _, ok := videos[g]; !ok {
					videos[g] = angles
				}
			}
			if err := imp.target.UpdateExerciseVideos(ctx, e.ID, videos, videos.Complete()); err != nil {
				imp.finishLog(ctx, logID, start, err)
				return &imp.stats, err
			}
			imp.log.Info("updated videos", "slug", e.Slug, "complete", videos.Complete())
		}
		imp.stats.VideosUpdated++
	}
	imp.stats.StillNoVideos = imp.stats.VideosChecked - imp.stats.VideosUpdated

	imp.invalidate(ctx)
	imp.finishLog(ctx, logID, start, nil)
	return &imp.stats, nil
}

func (imp *Importer) invalidate(ctx context.Context) {
	if imp.dryRun || imp.cache == nil {
		return
	}
	if err := imp.cache.Invalidate(ctx); err != nil {
		imp.log.Warn("search cache invalidation failed", "error", err)
	}
}

func (imp *Importer) beginLog(ctx context.Context, source string) int64 {
	if imp.dryRun || imp.logs == nil {
		return 0
	}
	id, err := imp.logs.InsertImportLog(ctx, storage.ImportLog{Source: source, Status: "running"})
	if err != nil {
		imp.log.Warn("creating import log failed", "error", err)
		return 0
	}
	return id
}

func (imp *Importer) finishLog(ctx context.Context, id int64, start time.Time, runErr error) {
	if id == 0 {
		return
	}
	ms := int(time.Since(start).Milliseconds())
	entry := storage.ImportLog{
		Status:            "success",
		ExercisesReceived: imp.stats.Received,
		ExercisesCreated:  imp.stats.Created,
		ExercisesUpdated:  imp.stats.Updated,
		ExercisesSkipped:  imp.stats.Skipped,
		VideosUpdated:     imp.stats.VideosUpdated,
		DurationMs:        &ms,
	}
	if runErr != nil {
		msg := runErr.Error()
		entry.Status = "error"
		entry.ErrorMessage = &msg
	}
	if err := imp.logs.UpdateImportLog(ctx, id, entry); err != nil {
		imp.log.Warn("updating import log failed", "id", id, "error", err)
	}
}
