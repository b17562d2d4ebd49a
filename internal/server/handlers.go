package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

const relatedLimit = 4

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSearchExercises serves the filter API. Malformed filter values never
// produce an error status; they simply match nothing.
func (s *Server) handleSearchExercises(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	resp, err := s.catalog.Search(r.Context(), models.CriteriaFromValues(q), limit)
	if err != nil {
		s.log.Error("exercise search failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "search failed"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) loadExercise(r *http.Request) (*models.ExerciseDetail, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	e, err := s.db.GetExercise(r.Context(), id)
	if err != nil {
		return nil, err
	}
	related, err := s.db.RelatedExercises(r.Context(), *e, relatedLimit)
	if err != nil {
		return nil, err
	}
	d := &models.ExerciseDetail{Exercise: e, Related: make([]models.ExerciseSummary, 0, len(related))}
	for _, rel := range related {
		d.Related = append(d.Related, rel.Summary())
	}
	return d, nil
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	d, err := s.loadExercise(r)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "exercise not found"})
		return
	}
	if err != nil {
		s.log.Error("loading exercise", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleMuscleGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.db.ListMuscleGroups(r.Context())
	if err != nil {
		s.log.Error("listing muscle groups", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if groups == nil {
		groups = []models.MuscleGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"token": s.csrfToken(userIDFromContext(r))})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleListRoutines(w http.ResponseWriter, r *http.Request) {
	routines, err := s.db.ListRoutines(r.Context(), userIDFromContext(r))
	if err != nil {
		s.log.Error("listing routines", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if routines == nil {
		routines = []models.Routine{}
	}
	writeJSON(w, http.StatusOK, routines)
}

func (s *Server) handleCreateRoutine(w http.ResponseWriter, r *http.Request) {
	var in models.RoutineInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := in.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	routine, err := s.db.CreateRoutine(r.Context(), userIDFromContext(r), in)
	switch {
	case errors.Is(err, storage.ErrUnknownExercise), errors.Is(err, storage.ErrDuplicateExercise):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case err != nil:
		s.log.Error("creating routine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	s.log.Info("routine created", "routine_id", routine.ID, "exercises", len(routine.Exercises))
	writeJSON(w, http.StatusCreated, routine)
}

// ownedRoutine loads a routine and checks it belongs to the acting user.
// Returns storage.ErrNotFound or errForbidden.
func (s *Server) ownedRoutine(r *http.Request) (*models.Routine, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, storage.ErrNotFound
	}
	routine, err := s.db.GetRoutine(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if routine.UserID != userIDFromContext(r) {
		return nil, errForbidden
	}
	return routine, nil
}

// ownedSession is ownedRoutine for sessions.
func (s *Server) ownedSession(r *http.Request) (*models.Session, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, storage.ErrNotFound
	}
	return s.sessionFor(r, id)
}

func (s *Server) sessionFor(r *http.Request, id uuid.UUID) (*models.Session, error) {
	session, err := s.db.GetSession(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if session.UserID != userIDFromContext(r) {
		return nil, errForbidden
	}
	return session, nil
}

var errForbidden = errors.New("forbidden")

// writeLookupError maps ownership and lookup failures onto API statuses.
func (s *Server) writeLookupError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": what + " not found"})
	case errors.Is(err, errForbidden):
		writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "error": "not your " + what})
	default:
		s.log.Error("loading "+what, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "internal error"})
	}
}

func (s *Server) handleAddRoutineExercise(w http.ResponseWriter, r *http.Request) {
	routine, err := s.ownedRoutine(r)
	if err != nil {
		s.writeLookupError(w, "routine", err)
		return
	}

	in := models.RoutineEntryInput{Sets: models.DefaultSets, RestSeconds: models.DefaultRest}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid JSON: " + err.Error()})
		return
	}
	if in.ExerciseID <= 0 || !models.ValidSets(in.Sets) || !models.ValidRest(in.RestSeconds) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   fmt.Sprintf("sets must be %d-%d and rest %d-%ds in %ds steps", models.MinSets, models.MaxSets, models.MinRestSeconds, models.MaxRestSeconds, models.RestStep),
		})
		return
	}

	err = s.db.AddExerciseToRoutine(r.Context(), routine.ID, in)
	switch {
	case errors.Is(err, storage.ErrDuplicateExercise):
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "error": "exercise already in routine"})
		return
	case errors.Is(err, storage.ErrUnknownExercise):
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "unknown exercise"})
		return
	case err != nil:
		s.log.Error("adding routine exercise", "routine_id", routine.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "internal error"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "Exercise added to " + routine.Name})
}

// handleSaveSet records one completed set. Validation happens before any
// database access; failures name the offending field.
func (s *Server) handleSaveSet(w http.ResponseWriter, r *http.Request) {
	in, err := models.ParseSetInput(
		r.PostFormValue("session_id"),
		r.PostFormValue("exercise_id"),
		r.PostFormValue("set_number"),
		r.PostFormValue("weight"),
		r.PostFormValue("reps"),
	)
	var se *models.SetError
	if errors.As(err, &se) {
		writeJSON(w, http.StatusBadRequest, models.SaveSetResponse{Error: se.Message, Field: se.Field})
		return
	}

	session, err := s.sessionFor(r, in.SessionID)
	if err != nil {
		s.writeLookupError(w, "session", err)
		return
	}
	resp, status := s.recordSet(r.Context(), session, in)
	writeJSON(w, status, resp)
}

// recordSet stores a parsed set against session and attaches the planned
// rest. The returned status is what the outcome maps to over HTTP.
func (s *Server) recordSet(ctx context.Context, session *models.Session, in models.SetInput) (models.SaveSetResponse, int) {
	if session.Status == models.SessionCompleted || session.Status == models.SessionCancelled {
		return models.SaveSetResponse{Error: "session is " + session.Status}, http.StatusConflict
	}

	rest, ok, err := s.db.RestTime(ctx, session.RoutineID, in.ExerciseID)
	if err != nil {
		s.log.Error("looking up rest time", "session_id", session.ID, "error", err)
		return models.SaveSetResponse{Error: "could not save set"}, http.StatusInternalServerError
	}
	if !ok {
		return models.SaveSetResponse{Error: "exercise is not part of this routine", Field: "exercise_id"}, http.StatusBadRequest
	}

	ws, err := s.db.InsertWorkoutSet(ctx, in)
	switch {
	case errors.Is(err, storage.ErrDuplicateSet):
		return models.SaveSetResponse{
			Error: fmt.Sprintf("set %d already recorded", in.SetNumber),
			Field: "set_number",
		}, http.StatusConflict
	case errors.Is(err, storage.ErrUnknownExercise):
		return models.SaveSetResponse{Error: "unknown exercise", Field: "exercise_id"}, http.StatusBadRequest
	case err != nil:
		s.log.Error("saving set", "session_id", in.SessionID, "error", err)
		return models.SaveSetResponse{Error: "could not save set"}, http.StatusInternalServerError
	}

	return models.SaveSetResponse{
		Success:  true,
		Volume:   ws.Volume,
		RestTime: &rest,
		Message:  fmt.Sprintf("Set %d saved: %g × %d = %g", ws.SetNumber, ws.Weight, ws.Reps, ws.Volume),
	}, http.StatusOK
}

func (s *Server) handleSessionSets(w http.ResponseWriter, r *http.Request) {
	session, err := s.ownedSession(r)
	if err != nil {
		s.writeLookupError(w, "session", err)
		return
	}
	exerciseID, err := strconv.ParseInt(chi.URLParam(r, "exerciseID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid exercise ID"})
		return
	}
	sets, err := s.db.QuerySessionSets(r.Context(), session.ID, exerciseID)
	if err != nil {
		s.log.Error("querying session sets", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if sets == nil {
		sets = []models.WorkoutSet{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sets": sets})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetTrainingStats(r.Context(), userIDFromContext(r))
	if err != nil {
		s.log.Error("querying training stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := s.db.QueryImportLogs(r.Context(), limit)
	if err != nil {
		s.log.Error("querying import logs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
