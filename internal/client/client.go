// Package client is a typed client for the LiftLog JSON API. The terminal
// client and the remote MCP server use it to reach a server over the tailnet.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/models"
)

const csrfHeader = "X-CSRF-Token"

// APIError is a non-success response that carries no field-level detail.
type APIError struct {
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("httpclient: %s returned %d: %s", e.Path, e.Status, e.Message)
}

// Identity is the caller as the server sees it.
type Identity struct {
	UserID      int    `json:"user_id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// HTTPClient calls the LiftLog REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends a request and returns the body of any response; callers decide
// which statuses are errors.
func (c *HTTPClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("httpclient: %s: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("httpclient: read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, v any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	body, status, err := c.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return apiError(path, status, body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

// post sends a state-changing request with the anti-forgery token, fetching
// a fresh token and retrying once when the server rejects the cached one.
func (c *HTTPClient) post(ctx context.Context, path, contentType, payload string) ([]byte, int, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.CSRFToken(ctx)
		if err != nil {
			return nil, 0, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(payload))
		if err != nil {
			return nil, 0, fmt.Errorf("httpclient: create request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(csrfHeader, token)

		body, status, err := c.do(req)
		if err == nil && status == http.StatusForbidden && attempt == 0 {
			c.mu.Lock()
			c.token = ""
			c.mu.Unlock()
			continue
		}
		return body, status, err
	}
}

func apiError(path string, status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &APIError{Path: path, Status: status, Message: msg}
}

// CSRFToken returns the anti-forgery token for the caller, cached after the
// first request.
func (c *HTTPClient) CSRFToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.get(ctx, "/api/v1/csrf", nil, &resp); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return resp.Token, nil
}

func (c *HTTPClient) SearchExercises(ctx context.Context, criteria models.Criteria, limit int) (*models.SearchResponse, error) {
	params := criteria.Values()
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var resp models.SearchResponse
	if err := c.get(ctx, "/api/v1/exercises", params, &resp); err != nil {
		return nil, err
	}
	if resp.Exercises == nil {
		resp.Exercises = []models.ExerciseSummary{}
	}
	return &resp, nil
}

func (c *HTTPClient) GetExercise(ctx context.Context, id int64) (*models.ExerciseDetail, error) {
	var d models.ExerciseDetail
	if err := c.get(ctx, "/api/v1/exercises/"+strconv.FormatInt(id, 10), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *HTTPClient) ListMuscleGroups(ctx context.Context) ([]models.MuscleGroup, error) {
	var groups []models.MuscleGroup
	if err := c.get(ctx, "/api/v1/muscle-groups", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// ListRoutines lists the caller's routines; the server derives the user.
func (c *HTTPClient) ListRoutines(ctx context.Context, _ int) ([]models.Routine, error) {
	var routines []models.Routine
	if err := c.get(ctx, "/api/v1/routines", nil, &routines); err != nil {
		return nil, err
	}
	return routines, nil
}

func (c *HTTPClient) CreateRoutine(ctx context.Context, in models.RoutineInput) (*models.Routine, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("httpclient: encode routine: %w", err)
	}
	const path = "/api/v1/routines"
	body, status, err := c.post(ctx, path, "application/json", string(payload))
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, apiError(path, status, body)
	}
	var r models.Routine
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("httpclient: decode routine: %w", err)
	}
	return &r, nil
}

// SaveSet records one set. Rejections that name a field come back as
// *models.SetError.
func (c *HTTPClient) SaveSet(ctx context.Context, in models.SetInput) (*models.SaveSetResponse, error) {
	form := url.Values{
		"session_id":  {in.SessionID.String()},
		"exercise_id": {strconv.FormatInt(in.ExerciseID, 10)},
		"set_number":  {strconv.Itoa(in.SetNumber)},
		"weight":      {strconv.FormatFloat(in.Weight, 'f', -1, 64)},
		"reps":        {strconv.Itoa(in.Reps)},
	}
	const path = "/api/v1/sets"
	body, status, err := c.post(ctx, path, "application/x-www-form-urlencoded", form.Encode())
	if err != nil {
		return nil, err
	}

	var resp models.SaveSetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apiError(path, status, body)
	}
	if status == http.StatusOK && resp.Success {
		return &resp, nil
	}
	if resp.Field != "" {
		return nil, &models.SetError{Field: resp.Field, Message: resp.Error}
	}
	return nil, apiError(path, status, body)
}

// QuerySessionSets lists recorded sets; the server enforces ownership.
func (c *HTTPClient) QuerySessionSets(ctx context.Context, sessionID uuid.UUID, exerciseID int64, _ int) ([]models.WorkoutSet, error) {
	var resp struct {
		Sets []models.WorkoutSet `json:"sets"`
	}
	path := fmt.Sprintf("/api/v1/sessions/%s/exercises/%d/sets", sessionID, exerciseID)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sets, nil
}

func (c *HTTPClient) Me(ctx context.Context) (*Identity, error) {
	var id Identity
	if err := c.get(ctx, "/api/v1/me", nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var e *APIError
	return errors.As(err, &e) && e.Status == status
}
