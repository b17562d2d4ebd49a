// Package filter drives the exercise list from the user's filter inputs.
//
// The Controller is an explicit state machine: Idle → Loading → Rendered or
// Errored, and back to Loading on the next apply. Search keystrokes are
// debounced; dropdowns and badges apply at once. Responses are applied only
// when they answer the latest request; an older response that arrives late
// is dropped.
package filter

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/meltforce/liftlog/internal/catalog"
	"github.com/meltforce/liftlog/internal/models"
)

// State of the controller.
type State int

const (
	Idle State = iota
	Loading
	Rendered
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Rendered:
		return "rendered"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// DefaultDebounce is the search debounce delay.
const DefaultDebounce = 300 * time.Millisecond

// Searcher fetches a filtered exercise list; client.HTTPClient satisfies it.
type Searcher interface {
	SearchExercises(ctx context.Context, c models.Criteria, limit int) (*models.SearchResponse, error)
}

// View renders controller output. Render replaces the whole card list, so
// any per-card handlers must be attached again by the view.
//
// Callbacks run without the controller's lock and one at a time, in the
// order the controller produced them. A callback may call back into the
// Controller; view calls that triggers are delivered after it returns.
type View interface {
	Loading(c models.Criteria)
	Render(c models.Criteria, resp *models.SearchResponse, message string)
	Error(err error, retry func())
}

// Location mirrors criteria into the address (the browser URL bar or its
// terminal equivalent) without navigating. ReplaceQuery runs with the
// controller's lock held, so the address is current when the changing call
// returns; it must not call back into the Controller.
type Location interface {
	ReplaceQuery(v url.Values)
}

// Stopper is a pending timer; *time.Timer satisfies it.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Stopper

// Dimension names a badge-clickable criteria field.
type Dimension int

const (
	Muscle Dimension = iota
	Equipment
	Difficulty
)

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce sets the search debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		c.debounce = d
	}
}

// WithAfterFunc replaces time.AfterFunc, letting tests fire the debounce
// deterministically.
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Controller) {
		c.afterFunc = fn
	}
}

// WithLimit caps each request; zero leaves the cap to the server.
func WithLimit(n int) Option {
	return func(c *Controller) {
		c.limit = n
	}
}

// Controller owns the filter state, the debounce timer and the request
// token. All methods are safe for concurrent use.
type Controller struct {
	searcher  Searcher
	view      View
	location  Location
	log       *slog.Logger
	debounce  time.Duration
	afterFunc AfterFunc
	limit     int

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	criteria models.Criteria
	token    uint64
	inFlight bool
	pending  Stopper
	events   []viewCall
	draining bool
}

// viewCall is a queued View callback for the request token it answers.
type viewCall struct {
	token uint64
	fn    func()
}

func New(searcher Searcher, view View, location Location, log *slog.Logger, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		searcher: searcher,
		view:     view,
		location: location,
		log:      log,
		debounce: DefaultDebounce,
		afterFunc: func(d time.Duration, f func()) Stopper {
			return time.AfterFunc(d, f)
		},
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Criteria returns the current criteria.
func (c *Controller) Criteria() models.Criteria {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.criteria
}

// Init loads criteria from an address (a reload or shared link) and applies
// them.
func (c *Controller) Init(q url.Values) {
	c.mu.Lock()
	c.criteria = models.CriteriaFromValues(q)
	c.applyLocked()
	c.mu.Unlock()
	c.flush()
}

// SetSearch records the search text and (re)starts the debounce timer. Only
// the last value typed within the window is applied.
func (c *Controller) SetSearch(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.criteria.Search = s
	c.stopPendingLocked()

	var timer Stopper
	timer = c.afterFunc(c.debounce, func() {
		c.mu.Lock()
		if c.pending != timer {
			c.mu.Unlock()
			return
		}
		c.pending = nil
		c.applyLocked()
		c.mu.Unlock()
		c.flush()
	})
	c.pending = timer
}

func (c *Controller) SetMuscle(v string)     { c.set(func(cr *models.Criteria) { cr.MuscleGroup = v }) }
func (c *Controller) SetEquipment(v string)  { c.set(func(cr *models.Criteria) { cr.Equipment = v }) }
func (c *Controller) SetDifficulty(v string) { c.set(func(cr *models.Criteria) { cr.Difficulty = v }) }

// ToggleBadge applies a badge click: selecting the active value clears it.
func (c *Controller) ToggleBadge(d Dimension, v string) {
	c.set(func(cr *models.Criteria) {
		field := &cr.MuscleGroup
		switch d {
		case Equipment:
			field = &cr.Equipment
		case Difficulty:
			field = &cr.Difficulty
		}
		if *field == v {
			*field = ""
		} else {
			*field = v
		}
	})
}

// Clear resets every dimension.
func (c *Controller) Clear() {
	c.set(func(cr *models.Criteria) { *cr = models.Criteria{} })
}

// Retry re-applies the current criteria.
func (c *Controller) Retry() {
	c.set(func(*models.Criteria) {})
}

// set changes criteria and applies immediately. The applied criteria already
// include any typed search, so a pending debounce is dropped.
func (c *Controller) set(fn func(*models.Criteria)) {
	c.mu.Lock()
	fn(&c.criteria)
	c.stopPendingLocked()
	c.applyLocked()
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) stopPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

// applyLocked issues a new request token, mirrors criteria into the address
// and fetches. While a fetch is outstanding no second one starts; its
// response will be found stale and the latest criteria fetched instead.
func (c *Controller) applyLocked() {
	c.token++
	c.state = Loading
	criteria := c.criteria
	c.location.ReplaceQuery(criteria.Values())
	c.emitLocked(func() { c.view.Loading(criteria) })
	if c.inFlight {
		return
	}
	c.fetchLocked()
}

func (c *Controller) fetchLocked() {
	c.inFlight = true
	token, criteria := c.token, c.criteria
	go func() {
		resp, err := c.searcher.SearchExercises(c.ctx, criteria, c.limit)
		c.complete(token, criteria, resp, err)
	}()
}

func (c *Controller) complete(token uint64, criteria models.Criteria, resp *models.SearchResponse, err error) {
	c.mu.Lock()
	c.inFlight = false
	switch {
	case c.ctx.Err() != nil:
	case token != c.token:
		c.log.Debug("discarding stale filter response", "token", token, "latest", c.token)
		c.fetchLocked()
	case err != nil:
		c.state = Errored
		c.log.Warn("filter request failed", "error", err)
		c.emitLocked(func() { c.view.Error(err, c.Retry) })
	default:
		c.state = Rendered
		message := catalog.CountMessage(resp)
		c.emitLocked(func() { c.view.Render(criteria, resp, message) })
	}
	c.mu.Unlock()
	c.flush()
}

// emitLocked queues a view callback for the current token. Callers hold mu
// and call flush once they release it.
func (c *Controller) emitLocked(fn func()) {
	c.events = append(c.events, viewCall{token: c.token, fn: fn})
}

// flush delivers queued view callbacks in order. One goroutine delivers at a
// time; anything queued meanwhile, including from inside a callback, goes out
// before it stops. A callback whose token has been superseded is dropped.
func (c *Controller) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draining {
		return
	}
	c.draining = true
	for len(c.events) > 0 {
		ev := c.events[0]
		c.events = c.events[1:]
		if ev.token != c.token || c.ctx.Err() != nil {
			continue
		}
		c.mu.Unlock()
		ev.fn()
		c.mu.Lock()
	}
	c.draining = false
}

// Close stops the debounce timer and drops any outstanding response.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopPendingLocked()
	c.cancel()
	c.events = nil
}
