// Package catalog implements the exercise filter query engine on top of a
// catalog store, with an optional result cache.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLimit = 24
	MaxResults   = 50
)

// Store is the read side of the exercise catalog.
type Store interface {
	SearchExercises(ctx context.Context, q storage.ExerciseQuery) ([]models.Exercise, error)
	CountExercises(ctx context.Context, q storage.ExerciseQuery) (int, error)
}

// Cache stores search responses. Keys embed a catalog generation, so bumping
// the generation invalidates every cached page at once.
type Cache interface {
	Get(ctx context.Context, key string) (*models.SearchResponse, bool, error)
	Set(ctx context.Context, key string, resp *models.SearchResponse) error
	Generation(ctx context.Context) (int64, error)
	Invalidate(ctx context.Context) error
}

// Option configures the service.
type Option func(*Service)

// WithLimits sets the default-view size and the filtered-result cap.
func WithLimits(defaultLimit, maxResults int) Option {
	return func(s *Service) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxResults > 0 {
			s.maxResults = maxResults
		}
	}
}

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// Service answers filter queries.
type Service struct {
	store        Store
	cache        Cache
	logger       *slog.Logger
	defaultLimit int
	maxResults   int
}

// NewService creates a filter query engine over store.
func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:        store,
		logger:       logger,
		defaultLimit: DefaultLimit,
		maxResults:   MaxResults,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultLimit returns the size of the unfiltered default subset.
func (s *Service) DefaultLimit() int { return s.defaultLimit }

// MaxResults returns the filtered-result cap.
func (s *Service) MaxResults() int { return s.maxResults }

// Search returns exercises matching every non-empty dimension of c.
//
// Empty criteria yield a bounded default subset, exercises with videos first,
// with Count set to the catalog size. An unknown equipment or difficulty
// value matches nothing. limit narrows the cap when positive and below it.
func (s *Service) Search(ctx context.Context, c models.Criteria, limit int) (*models.SearchResponse, error) {
	q, ok := normalize(c)
	if !ok {
		return &models.SearchResponse{Exercises: []models.ExerciseSummary{}, Filtered: true}, nil
	}

	filtered := q.Search != "" || q.Muscle != "" || q.Equipment != "" || q.Difficulty != ""
	capN := s.maxResults
	if !filtered {
		capN = s.defaultLimit
		q.VideosFirst = true
	}
	if limit > 0 && limit < capN {
		capN = limit
	}
	q.Limit = capN

	key := ""
	if s.cache != nil {
		key = s.cacheKey(ctx, q)
		if key != "" {
			resp, hit, err := s.cache.Get(ctx, key)
			if err != nil {
				s.logger.Warn("search cache get failed", "error", err)
			} else if hit {
				return resp, nil
			}
		}
	}

	var (
		exercises []models.Exercise
		count     int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		exercises, err = s.store.SearchExercises(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		count, err = s.store.CountExercises(gctx, storage.ExerciseQuery{
			Search:     q.Search,
			Muscle:     q.Muscle,
			Equipment:  q.Equipment,
			Difficulty: q.Difficulty,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("searching catalog: %w", err)
	}

	resp := &models.SearchResponse{
		Exercises: make([]models.ExerciseSummary, 0, len(exercises)),
		Count:     count,
		HasMore:   count > len(exercises),
		Filtered:  filtered,
	}
	for _, e := range exercises {
		resp.Exercises = append(resp.Exercises, e.Summary())
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, resp); err != nil {
			s.logger.Warn("search cache set failed", "error", err)
		}
	}
	return resp, nil
}

// Invalidate drops every cached search page. It is a no-op without a cache.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

func (s *Service) cacheKey(ctx context.Context, q storage.ExerciseQuery) string {
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.logger.Warn("search cache generation failed", "error", err)
		return ""
	}
	v := url.Values{}
	v.Set("search", strings.ToLower(q.Search))
	v.Set("muscle", strings.ToLower(q.Muscle))
	v.Set("equipment", string(q.Equipment))
	v.Set("difficulty", string(q.Difficulty))
	v.Set("videos", strconv.FormatBool(q.VideosFirst))
	v.Set("limit", strconv.Itoa(q.Limit))
	return fmt.Sprintf("search:%d:%s", gen, v.Encode())
}

// normalize maps criteria onto a store query. ok is false when an enum
// dimension holds an unknown value, which can never match.
func normalize(c models.Criteria) (q storage.ExerciseQuery, ok bool) {
	q.Search = strings.TrimSpace(c.Search)
	q.Muscle = strings.TrimSpace(c.MuscleGroup)
	if v := strings.TrimSpace(c.Equipment); v != "" {
		eq, known := models.ParseEquipment(v)
		if !known {
			return q, false
		}
		q.Equipment = eq
	}
	if v := strings.TrimSpace(c.Difficulty); v != "" {
		d, known := models.ParseDifficulty(v)
		if !known {
			return q, false
		}
		q.Difficulty = d
	}
	return q, true
}
