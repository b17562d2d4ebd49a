package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/catalog"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

// Store is the persistence the handlers need. *storage.DB implements it.
type Store interface {
	Ping(ctx context.Context) error
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)

	GetExercise(ctx context.Context, id int64) (*models.Exercise, error)
	RelatedExercises(ctx context.Context, e models.Exercise, limit int) ([]models.Exercise, error)
	ListMuscleGroups(ctx context.Context) ([]models.MuscleGroup, error)

	CreateRoutine(ctx context.Context, userID int, in models.RoutineInput) (*models.Routine, error)
	GetRoutine(ctx context.Context, id uuid.UUID) (*models.Routine, error)
	ListRoutines(ctx context.Context, userID int) ([]models.Routine, error)
	DeleteRoutine(ctx context.Context, id uuid.UUID, userID int) error
	UpdateRoutine(ctx context.Context, id uuid.UUID, userID int, in models.RoutineInput) (*models.Routine, error)
	CopyRoutine(ctx context.Context, src *models.Routine, userID int) (*models.Routine, error)
	AddExerciseToRoutine(ctx context.Context, routineID uuid.UUID, e models.RoutineEntryInput) error
	RestTime(ctx context.Context, routineID uuid.UUID, exerciseID int64) (int, bool, error)

	StartSession(ctx context.Context, routine *models.Routine, userID int) (*models.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListSessions(ctx context.Context, userID, limit int) ([]models.Session, error)
	CompleteSession(ctx context.Context, id uuid.UUID, notes string) error
	CompletedSetCounts(ctx context.Context, sessionID uuid.UUID) (map[int64]int, error)
	InsertWorkoutSet(ctx context.Context, in models.SetInput) (*models.WorkoutSet, error)
	QuerySessionSets(ctx context.Context, sessionID uuid.UUID, exerciseID int64) ([]models.WorkoutSet, error)

	GetTrainingStats(ctx context.Context, userID int) (*storage.TrainingStats, error)
	QueryImportLogs(ctx context.Context, limit int) ([]storage.ImportLog, error)
}

var _ Store = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db      Store
	catalog *catalog.Service
	log     *slog.Logger
	csrfKey string
	pages   *pages
	whois   whoIser
	router  chi.Router
}

// New creates a new Server with all routes configured.
func New(db Store, cat *catalog.Service, csrfKey string, log *slog.Logger) *Server {
	s := &Server{
		db:      db,
		catalog: cat,
		log:     log,
		csrfKey: csrfKey,
		pages:   mustParsePages(),
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale switches identity from the local dev user to Tailscale WhoIs.
func (s *Server) SetTailscale(lc whoIser) {
	s.whois = lc
}

// SetMCP mounts an MCP endpoint at /mcp behind the same identity as the
// pages. Use RequestUserID to carry the user into MCP tool contexts.
func (s *Server) SetMCP(h http.Handler) {
	s.router.With(s.identity).Mount("/mcp", h)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(s.identity)

		// Pages
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/exercises", http.StatusFound)
		})
		r.Get("/exercises", s.handleExercisesPage)
		r.Get("/exercises/{id}", s.handleExercisePage)
		r.Get("/routines", s.handleRoutinesPage)
		r.Get("/routines/new", s.handleRoutineBuilderPage)
		r.Get("/routines/{id}", s.handleRoutinePage)
		r.Get("/routines/{id}/edit", s.handleEditRoutinePage)
		r.Get("/sessions", s.handleSessionsPage)
		r.Get("/sessions/{id}", s.handleSessionPage)
		r.Get("/sessions/{id}/complete", s.handleCompletePage)

		r.Group(func(r chi.Router) {
			r.Use(s.requireCSRF)
			r.Post("/routines", s.handleCreateRoutineForm)
			r.Post("/routines/{id}/edit", s.handleEditRoutineForm)
			r.Post("/routines/{id}/delete", s.handleDeleteRoutine)
			r.Post("/routines/{id}/copy", s.handleCopyRoutine)
			r.Post("/routines/{id}/start", s.handleStartSession)
			r.Post("/sessions/{id}/sets", s.handleSaveSetForm)
			r.Post("/sessions/{id}/complete", s.handleCompleteSession)
		})

		// JSON API
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Content-Type", csrfHeader},
				MaxAge:         300,
			}))

			r.Get("/exercises", s.handleSearchExercises)
			r.Get("/exercises/{id}", s.handleGetExercise)
			r.Get("/muscle-groups", s.handleMuscleGroups)
			r.Get("/csrf", s.handleCSRFToken)
			r.Get("/routines", s.handleListRoutines)
			r.Get("/sessions/{id}/exercises/{exerciseID}/sets", s.handleSessionSets)
			r.Get("/me", s.handleMe)
			r.Get("/stats", s.handleStats)
			r.Get("/import-logs", s.handleImportLogs)

			r.Group(func(r chi.Router) {
				r.Use(s.requireCSRF)
				r.Post("/routines", s.handleCreateRoutine)
				r.Post("/routines/{id}/exercises", s.handleAddRoutineExercise)
				r.Post("/sets", s.handleSaveSet)
			})
		})
	})
}
