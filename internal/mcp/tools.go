package mcp

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/liftlog/internal/catalog"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

// --- Tool definitions ---

var toolSearchExercises = mcp.NewTool("search_exercises",
	mcp.WithDescription("Search the exercise catalog. Filters combine with AND; leave a filter out to not constrain it. Without any filter a default sample is returned, exercises with videos first."),
	mcp.WithString("search", mcp.Description("Case-insensitive text matched against title and description (e.g. 'curl')")),
	mcp.WithString("muscle_group", mcp.Description("Muscle group name as listed in liftlog://muscle_groups (e.g. 'biceps')")),
	mcp.WithString("equipment", mcp.Description("Equipment type"), mcp.Enum("barbell", "dumbbells", "bodyweight", "machine", "kettlebells", "cables", "bands", "other")),
	mcp.WithString("difficulty", mcp.Description("Difficulty level"), mcp.Enum("Novice", "Beginner", "Intermediate", "Advanced")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of exercises to return. Capped by the server.")),
)

var toolGetExercise = mcp.NewTool("get_exercise",
	mcp.WithDescription("Full exercise detail including step-by-step instructions, demonstration videos and related exercises for the same muscle."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Exercise ID from search_exercises")),
)

var toolListRoutines = mcp.NewTool("list_routines",
	mcp.WithDescription("List the user's active workout routines with their exercises, planned sets and rest times."),
)

var toolGetSessionSets = mcp.NewTool("get_session_sets",
	mcp.WithDescription("Sets recorded for one exercise in a workout session: set number, weight, reps and volume."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Workout session UUID")),
	mcp.WithNumber("exercise_id", mcp.Required(), mcp.Description("Exercise ID")),
)

// --- Tool handlers ---

// searchResult adds the human-readable count line to the filter envelope.
type searchResult struct {
	*models.SearchResponse
	Message string `json:"message"`
}

func (h *handlers) searchExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c := models.Criteria{
		Search:      req.GetString("search", ""),
		MuscleGroup: req.GetString("muscle_group", ""),
		Equipment:   req.GetString("equipment", ""),
		Difficulty:  req.GetString("difficulty", ""),
	}
	limit := req.GetInt("limit", 0)

	resp, err := h.ds.SearchExercises(ctx, c, limit)
	if err != nil {
		h.log.Error("mcp search_exercises", "error", err)
		return mcp.NewToolResultError("search failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(searchResult{SearchResponse: resp, Message: catalog.CountMessage(resp)})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	d, err := h.ds.GetExercise(ctx, int64(id))
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError("exercise not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_exercise", "id", id, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(d)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listRoutines(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	routines, err := h.ds.ListRoutines(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp list_routines", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if routines == nil {
		routines = []models.Routine{}
	}

	result, err := mcp.NewToolResultJSON(map[string]any{"routines": routines})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSessionSets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawSession, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	sessionID, err := uuid.Parse(rawSession)
	if err != nil {
		return mcp.NewToolResultError("invalid session_id: " + err.Error()), nil
	}
	exerciseID, err := req.RequireInt("exercise_id")
	if err != nil {
		return mcp.NewToolResultError("exercise_id parameter is required"), nil
	}

	sets, err := h.ds.QuerySessionSets(ctx, sessionID, int64(exerciseID), UserIDFromContext(ctx))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return mcp.NewToolResultError("session not found"), nil
	case errors.Is(err, ErrForbidden):
		return mcp.NewToolResultError("session belongs to another user"), nil
	case err != nil:
		h.log.Error("mcp get_session_sets", "session_id", sessionID, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if sets == nil {
		sets = []models.WorkoutSet{}
	}

	result, err := mcp.NewToolResultJSON(map[string]any{"sets": sets})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
