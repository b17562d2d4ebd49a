package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/meltforce/liftlog/internal/catalog"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

const sessionHistoryLimit = 50

type pages struct {
	byName map[string]*template.Template
}

var pageFuncs = template.FuncMap{
	"muscleLabel": models.MuscleLabel,
	"ago":         humanize.Time,
	"inc":         func(n int) int { return n + 1 },
	"kg":          func(v float64) string { return humanize.FormatFloat("#,###.##", v) },
	"duration": func(s *models.Session) string {
		return s.Duration(time.Now()).Round(time.Minute).String()
	},
	"query": func(c models.Criteria) template.URL {
		return template.URL(c.Values().Encode())
	},
}

// shared templates are parsed into every page.
var shared = map[string]bool{"layout.html": true, "filters.html": true}

// mustParsePages parses every page against the shared layout.
func mustParsePages() *pages {
	layout := template.Must(template.New("layout.html").Funcs(pageFuncs).
		ParseFS(templateFS, "templates/layout.html", "templates/filters.html"))
	names, err := templateFS.ReadDir("templates")
	if err != nil {
		panic(err)
	}
	p := &pages{byName: make(map[string]*template.Template)}
	for _, n := range names {
		if shared[n.Name()] {
			continue
		}
		t := template.Must(template.Must(layout.Clone()).ParseFS(templateFS, "templates/"+n.Name()))
		p.byName[strings.TrimSuffix(n.Name(), ".html")] = t
	}
	return p
}

// pageData is the layout's view of every page.
type pageData struct {
	Title string
	User  UserInfo
	CSRF  string
	Flash string
	Body  any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name, title string, body any) {
	t, ok := s.pages.byName[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	data := pageData{
		Title: title,
		User:  userInfoFromContext(r),
		CSRF:  s.csrfToken(userIDFromContext(r)),
		Flash: r.URL.Query().Get("msg"),
		Body:  body,
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		s.log.Error("rendering page", "page", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// redirectMsg sends the browser to path with a flash message.
func redirectMsg(w http.ResponseWriter, r *http.Request, path, msg string) {
	http.Redirect(w, r, path+"?msg="+url.QueryEscape(msg), http.StatusSeeOther)
}

// pageError redirects on lookup failures and reports anything else.
func (s *Server) pageError(w http.ResponseWriter, r *http.Request, back, what string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		redirectMsg(w, r, back, what+" not found")
	case errors.Is(err, errForbidden):
		redirectMsg(w, r, back, "That "+what+" belongs to someone else")
	default:
		s.log.Error("loading "+what, "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

type filterPage struct {
	Criteria     models.Criteria
	Result       *models.SearchResponse
	Message      string
	MuscleGroups []models.MuscleGroup
	Equipment    []models.Equipment
	Difficulties []models.Difficulty
}

func (s *Server) filterPage(r *http.Request) (*filterPage, error) {
	c := models.CriteriaFromValues(r.URL.Query())
	resp, err := s.catalog.Search(r.Context(), c, 0)
	if err != nil {
		return nil, err
	}
	groups, err := s.db.ListMuscleGroups(r.Context())
	if err != nil {
		return nil, err
	}
	return &filterPage{
		Criteria:     c,
		Result:       resp,
		Message:      catalog.CountMessage(resp),
		MuscleGroups: groups,
		Equipment:    models.AllEquipment,
		Difficulties: models.AllDifficulties,
	}, nil
}

func (s *Server) handleExercisesPage(w http.ResponseWriter, r *http.Request) {
	fp, err := s.filterPage(r)
	if err != nil {
		s.log.Error("exercise page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "exercises", "Exercises", fp)
}

func (s *Server) handleExercisePage(w http.ResponseWriter, r *http.Request) {
	d, err := s.loadExercise(r)
	if err != nil {
		s.pageError(w, r, "/exercises", "Exercise", err)
		return
	}
	s.render(w, r, "exercise", d.Exercise.Title, d)
}

func (s *Server) handleRoutinesPage(w http.ResponseWriter, r *http.Request) {
	routines, err := s.db.ListRoutines(r.Context(), userIDFromContext(r))
	if err != nil {
		s.log.Error("listing routines", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "routines", "Routines", routines)
}

// routineForm backs the builder and edit pages. Routine is nil when building
// a new routine.
type routineForm struct {
	*filterPage
	Routine *models.Routine

	MinSets, MaxSets, DefaultSets, MinRest, MaxRest, RestStep, DefaultRest int
}

func newRoutineForm(fp *filterPage, routine *models.Routine) routineForm {
	return routineForm{
		filterPage:  fp,
		Routine:     routine,
		MinSets:     models.MinSets,
		MaxSets:     models.MaxSets,
		DefaultSets: models.DefaultSets,
		MinRest:     models.MinRestSeconds,
		MaxRest:     models.MaxRestSeconds,
		RestStep:    models.RestStep,
		DefaultRest: models.DefaultRest,
	}
}

// Planned reports whether the routine being edited already holds exercise id.
func (f routineForm) Planned(id int64) bool {
	if f.Routine == nil {
		return false
	}
	for _, e := range f.Routine.Exercises {
		if e.ExerciseID == id {
			return true
		}
	}
	return false
}

func (s *Server) handleRoutineBuilderPage(w http.ResponseWriter, r *http.Request) {
	fp, err := s.filterPage(r)
	if err != nil {
		s.log.Error("routine builder", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "builder", "New routine", newRoutineForm(fp, nil))
}

func (s *Server) handleEditRoutinePage(w http.ResponseWriter, r *http.Request) {
	routine, err := s.ownedRoutine(r)
	if err != nil {
		s.pageError(w, r, "/routines", "Routine", err)
		return
	}
	fp, err := s.filterPage(r)
	if err != nil {
		s.log.Error("routine editor", "routine_id", routine.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "edit", "Edit "+routine.Name, newRoutineForm(fp, routine))
}

func (s *Server) handleRoutinePage(w http.ResponseWriter, r *http.Request) {
	routine, err := s.ownedRoutine(r)
	if err != nil {
		s.pageError(w, r, "/routines", "Routine", err)
		return
	}
	s.render(w, r, "routine", routine.Name, routine)
}

// routineFromForm reads the builder form. Each selected exercise posts
// exercise_<id>, with sets_<id>, rest_<id> and an optional order_<id>.
func routineFromForm(form url.Values) models.RoutineInput {
	in := models.RoutineInput{
		Name:        form.Get("name"),
		Description: strings.TrimSpace(form.Get("description")),
	}
	type entry struct {
		models.RoutineEntryInput
		order int
	}
	var entries []entry
	for key := range form {
		raw, ok := strings.CutPrefix(key, "exercise_")
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		e := entry{RoutineEntryInput: models.RoutineEntryInput{
			ExerciseID:  id,
			Sets:        formInt(form, "sets_"+raw, models.DefaultSets),
			RestSeconds: formInt(form, "rest_"+raw, models.DefaultRest),
		}}
		e.order = formInt(form, "order_"+raw, math.MaxInt)
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].order != entries[j].order {
			return entries[i].order < entries[j].order
		}
		return entries[i].ExerciseID < entries[j].ExerciseID
	})
	for _, e := range entries {
		in.Exercises = append(in.Exercises, e.RoutineEntryInput)
	}
	return in
}

func formInt(form url.Values, key string, def int) int {
	if n, err := strconv.Atoi(form.Get(key)); err == nil {
		return n
	}
	return def
}

func (s *Server) handleCreateRoutineForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectMsg(w, r, "/routines/new", "Could not read the form")
		return
	}
	in := routineFromForm(r.PostForm)
	if err := in.Validate(); err != nil {
		redirectMsg(w, r, "/routines/new", strings.TrimPrefix(err.Error(), models.ErrInvalidRoutine.Error()+": "))
		return
	}
	routine, err := s.db.CreateRoutine(r.Context(), userIDFromContext(r), in)
	if errors.Is(err, storage.ErrUnknownExercise) || errors.Is(err, storage.ErrDuplicateExercise) {
		redirectMsg(w, r, "/routines/new", "One of the selected exercises is not available")
		return
	}
	if err != nil {
		s.log.Error("creating routine", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.log.Info("routine created", "routine_id", routine.ID, "exercises", len(routine.Exercises))
	redirectMsg(w, r, "/routines/"+routine.ID.String(), "Routine created")
}

func (s *Server) handleEditRoutineForm(w http.ResponseWriter, r *http.Request) {
	routine, err := s.ownedRoutine(r)
	if err != nil {
		s.pageError(w, r, "/routines", "Routine", err)
		return
	}
	back := "/routines/" + routine.ID.String()
	if err := r.ParseForm(); err != nil {
		redirectMsg(w, r, back+"/edit", "Could not read the form")
		return
	}
	in := routineFromForm(r.PostForm)
	if err := in.Validate(); err != nil {
		redirectMsg(w, r, back+"/edit", strings.TrimPrefix(err.Error(), models.ErrInvalidRoutine.Error()+": "))
		return
	}
	updated, err := s.db.UpdateRoutine(r.Context(), routine.ID, userIDFromContext(r), in)
	switch {
	case errors.Is(err, storage.ErrUnknownExercise) || errors.Is(err, storage.ErrDuplicateExercise):
		redirectMsg(w, r, back+"/edit", "One of the selected exercises is not available")
		return
	case err != nil:
		s.pageError(w, r, "/routines", "Routine", err)
		return
	}
	s.log.Info("routine updated", "routine_id", updated.ID, "exercises", len(updated.Exercises))
	redirectMsg(w, r, back, fmt.Sprintf("Routine %q updated", updated.Name))
}

func (s *Server) handleDeleteRoutine(w http.ResponseWriter, r *http.Request) {
	routine, err := s.ownedRoutine(r)
	if err != nil {
		s.pageError(w, r, "/routines", "Routine", err)
		return
	}
	if err := s.db.DeleteRoutine(r.Context(), routine.ID, routine.UserID); err != nil {
		s.pageError(w, r, "/routines", "Routine", err)
		return
	}
	redirectMsg(w, r, "/routines", fmt.Sprintf("Deleted %q", routine.Name))
}

func (s *Server) handleCopyRoutine(w http.ResponseWriter, r *http.Request) {
	routine, err := s.ownedRoutine(r)
	if err != nil {
		s.pageError(w, r, "/routines", "Routine", err)
		return
	}
	copied, err := s.db.CopyRoutine(r.Context(), routine, userIDFromContext(r))
	if err != nil {
		s.log.Error("copying routine", "routine_id", routine.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	redirectMsg(w, r, "/routines/"+copied.ID.String(), "Routine copied")
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	routine, err := s.ownedRoutine(r)
	if err != nil {
		s.pageError(w, r, "/routines", "Routine", err)
		return
	}
	if len(routine.Exercises) == 0 {
		redirectMsg(w, r, "/routines/"+routine.ID.String(), "Add exercises before starting a workout")
		return
	}
	session, err := s.db.StartSession(r.Context(), routine, userIDFromContext(r))
	if err != nil {
		s.log.Error("starting session", "routine_id", routine.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.log.Info("session started", "session_id", session.ID, "routine_id", routine.ID)
	http.Redirect(w, r, "/sessions/"+session.ID.String(), http.StatusSeeOther)
}

func (s *Server) handleSessionsPage(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.db.ListSessions(r.Context(), userIDFromContext(r), sessionHistoryLimit)
	if err != nil {
		s.log.Error("listing sessions", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "sessions", "History", sessions)
}

type sessionView struct {
	Session  *models.Session
	Progress []models.ExerciseProgress
}

func (s *Server) sessionView(r *http.Request) (*sessionView, bool, error) {
	session, err := s.ownedSession(r)
	if err != nil {
		return nil, false, err
	}
	routine, err := s.db.GetRoutine(r.Context(), session.RoutineID)
	if err != nil {
		return nil, false, err
	}
	counts, err := s.db.CompletedSetCounts(r.Context(), session.ID)
	if err != nil {
		return nil, false, err
	}
	progress, done := models.Progress(routine.Exercises, counts)
	return &sessionView{Session: session, Progress: progress}, done, nil
}

func (s *Server) handleSessionPage(w http.ResponseWriter, r *http.Request) {
	v, done, err := s.sessionView(r)
	if err != nil {
		s.pageError(w, r, "/sessions", "Session", err)
		return
	}
	if done || v.Session.Status == models.SessionCompleted {
		http.Redirect(w, r, "/sessions/"+v.Session.ID.String()+"/complete", http.StatusSeeOther)
		return
	}
	s.render(w, r, "session", v.Session.RoutineName, v)
}

// handleSaveSetForm is the session page's way to record a set. The outcome
// comes back as a flash message.
func (s *Server) handleSaveSetForm(w http.ResponseWriter, r *http.Request) {
	session, err := s.ownedSession(r)
	if err != nil {
		s.pageError(w, r, "/sessions", "Session", err)
		return
	}
	back := "/sessions/" + session.ID.String()
	in, err := models.ParseSetInput(
		session.ID.String(),
		r.PostFormValue("exercise_id"),
		r.PostFormValue("set_number"),
		r.PostFormValue("weight"),
		r.PostFormValue("reps"),
	)
	if err != nil {
		redirectMsg(w, r, back, err.Error())
		return
	}

	resp, status := s.recordSet(r.Context(), session, in)
	switch {
	case status == http.StatusInternalServerError:
		http.Error(w, "internal error", status)
	case !resp.Success:
		msg := resp.Error
		if resp.Field != "" {
			msg = resp.Field + ": " + msg
		}
		redirectMsg(w, r, back, msg)
	default:
		rest := time.Duration(*resp.RestTime) * time.Second
		redirectMsg(w, r, back, fmt.Sprintf("%s. Rest %s.", resp.Message, rest))
	}
}

func (s *Server) handleCompletePage(w http.ResponseWriter, r *http.Request) {
	v, _, err := s.sessionView(r)
	if err != nil {
		s.pageError(w, r, "/sessions", "Session", err)
		return
	}
	s.render(w, r, "complete", "Workout complete", v)
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.ownedSession(r)
	if err != nil {
		s.pageError(w, r, "/sessions", "Session", err)
		return
	}
	if err := s.db.CompleteSession(r.Context(), session.ID, strings.TrimSpace(r.PostFormValue("notes"))); err != nil {
		s.pageError(w, r, "/sessions", "Session", err)
		return
	}
	s.log.Info("session completed", "session_id", session.ID)
	redirectMsg(w, r, "/sessions", "Workout saved")
}
