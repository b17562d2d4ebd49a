package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/meltforce/liftlog/internal/cache"
	"github.com/meltforce/liftlog/internal/catalog"
	"github.com/meltforce/liftlog/internal/config"
	"github.com/meltforce/liftlog/internal/importer"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	file := flag.String("file", "", "path to the exercise catalog JSON")
	videos := flag.String("videos", "", "directory of downloaded exercise videos to match")
	dryRun := flag.Bool("dry-run", false, "parse and report without writing to the database")
	query := flag.String("query", "", "with -dry-run, preview a filter query string (e.g. \"muscle=biceps&equipment=dumbbells\")")
	flag.Parse()

	if *file == "" && *videos == "" {
		fmt.Fprintf(os.Stderr, "Usage: liftlog-import -config config.yaml [-file catalog.json] [-videos dir] [-dry-run [-query q]]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx := context.Background()

	if *dryRun {
		log := config.NewLogger(os.Stdout, "info")
		log.Info("DRY RUN mode: no data will be written to the database")
		if err := preview(ctx, *file, *videos, *query, log); err != nil {
			log.Error("dry run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := config.NewLogger(os.Stdout, cfg.Log.Level)

	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	opts := []importer.Option{importer.WithLogStore(db)}
	if cfg.Cache.Enabled() {
		rc := cache.New(cache.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		defer rc.Close()
		opts = append(opts, importer.WithInvalidator(rc))
	}

	imp := importer.New(db, log, false, opts...)
	if err := runImport(ctx, imp, *file, *videos); err != nil {
		log.Error("import failed", "error", err)
		printStats(log, imp.Stats())
		os.Exit(1)
	}
	printStats(log, imp.Stats())
	log.Info("import complete")
}

func runImport(ctx context.Context, imp *importer.Importer, file, videos string) error {
	if file != "" {
		if _, err := imp.ImportFile(ctx, file); err != nil {
			return err
		}
	}
	if videos != "" {
		if _, err := imp.ScanVideos(ctx, videos); err != nil {
			return err
		}
	}
	return nil
}

// preview imports into memory and optionally runs one filter query against
// the result, so a catalog file can be checked before it touches the database.
func preview(ctx context.Context, file, videos, query string, log *slog.Logger) error {
	mem := catalog.NewMemoryStore(nil)
	imp := importer.New(mem, log, false)
	if err := runImport(ctx, imp, file, videos); err != nil {
		return err
	}
	printStats(log, imp.Stats())

	if query == "" {
		return nil
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return fmt.Errorf("parsing -query: %w", err)
	}
	resp, err := catalog.NewService(mem, log).Search(ctx, models.CriteriaFromValues(values), 0)
	if err != nil {
		return err
	}
	fmt.Println(catalog.CountMessage(resp))
	for _, e := range resp.Exercises {
		fmt.Printf("  %-40s %-14s %-12s %s\n", e.Title, models.MuscleLabel(e.Muscle), e.EquipmentLabel, e.Difficulty)
	}
	return nil
}

func printStats(log *slog.Logger, stats importer.Stats) {
	log.Info("import stats",
		"received", stats.Received,
		"created", stats.Created,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
	)
	if stats.VideoFiles > 0 || stats.VideosChecked > 0 {
		log.Info("video stats",
			"files", stats.VideoFiles,
			"checked", stats.VideosChecked,
			"updated", stats.VideosUpdated,
			"still_without", stats.StillNoVideos,
		)
	}
}
