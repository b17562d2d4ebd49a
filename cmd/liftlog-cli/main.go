// Command liftlog-cli is a terminal front end for a LiftLog server: it
// filters the exercise library, composes routine drafts and logs sets with a
// rest countdown.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/client"
	"github.com/meltforce/liftlog/internal/config"
	"github.com/meltforce/liftlog/internal/draft"
	"github.com/meltforce/liftlog/internal/filter"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/recorder"
	"github.com/meltforce/liftlog/internal/resttimer"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const help = `commands:
  search <text>              filter by text (debounced)
  muscle|equipment|difficulty <value>   set a dropdown ("" clears)
  badge <muscle|equipment|difficulty> <value>   toggle a badge
  clear                      reset all filters
  retry                      repeat a failed request
  link                       print a shareable link for the current filters
  add <id>                   add a listed exercise to the draft
  remove <id>                remove an exercise from the draft
  sets <id> <n>              set planned sets (1-10)
  rest <id> <seconds>        set planned rest (30-300, step 15)
  draft                      show the draft
  save <name> [| description]   create a routine from the draft
  session <id>               start logging sets for a session
  set <exercise> <n> <weight> <reps>   record a set
  quit`

func main() {
	configPath := flag.String("config", "liftlog-cli.yaml", "path to config file (optional)")
	query := flag.String("query", "", "initial filters, e.g. \"muscle=biceps&difficulty=beginner\"")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("liftlog-cli", Version)
		return
	}

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	// Logs go to stderr so they don't interleave with the listing.
	log := config.NewLogger(os.Stderr, cfg.Log.Level)

	initial, err := url.ParseQuery(*query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: parsing -query: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, initial, os.Stdin, os.Stdout, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, initial url.Values, in io.Reader, out io.Writer, log *slog.Logger) error {
	api := client.NewHTTPClient(cfg.Client.ServerURL)

	store, err := draft.OpenSQLiteStore(cfg.Client.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	sh := &shell{
		ctx:     ctx,
		api:     api,
		out:     out,
		log:     log,
		baseURL: cfg.Client.ServerURL,
		timer:   resttimer.New(),
	}
	sh.composer = draft.New(store, log, draft.WithNotice(func(msg string) { sh.printf("! %s\n", msg) }))
	if err := sh.composer.Restore(ctx, nil); err != nil {
		return err
	}
	sh.ctrl = filter.New(api, sh, sh, log, filter.WithDebounce(cfg.Client.Debounce))
	defer sh.ctrl.Close()
	defer sh.timer.Stop()

	if me, err := api.Me(ctx); err != nil {
		log.Warn("could not identify user", "error", err)
	} else {
		sh.printf("Signed in as %s\n", me.DisplayName)
	}

	sh.ctrl.Init(initial)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := sh.exec(strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

// shell is the terminal view of the filter controller and the owner of the
// draft and the active session.
type shell struct {
	ctx      context.Context
	api      *client.HTTPClient
	ctrl     *filter.Controller
	composer *draft.Composer
	timer    *resttimer.Timer
	log      *slog.Logger
	baseURL  string

	outMu sync.Mutex
	out   io.Writer

	mu       sync.Mutex
	listed   map[int64]models.ExerciseSummary
	query    url.Values
	retry    func()
	recorder *recorder.Recorder
}

func (sh *shell) printf(format string, args ...any) {
	sh.outMu.Lock()
	defer sh.outMu.Unlock()
	fmt.Fprintf(sh.out, format, args...)
}

// ReplaceQuery records the filters as the shareable link.
func (sh *shell) ReplaceQuery(v url.Values) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.query = v
}

func (sh *shell) Loading(models.Criteria) {
	sh.printf("loading...\n")
}

func (sh *shell) Render(_ models.Criteria, resp *models.SearchResponse, message string) {
	listed := make(map[int64]models.ExerciseSummary, len(resp.Exercises))
	for _, e := range resp.Exercises {
		listed[e.ID] = e
	}
	sh.mu.Lock()
	sh.listed = listed
	sh.retry = nil
	sh.mu.Unlock()
	sh.composer.SetAvailable(resp.Exercises)

	sh.outMu.Lock()
	defer sh.outMu.Unlock()
	fmt.Fprintln(sh.out, message)
	for _, e := range resp.Exercises {
		video := ""
		if e.HasVideos {
			video = " [video]"
		}
		fmt.Fprintf(sh.out, "  %5d  %-40s %-14s %-14s %s%s\n",
			e.ID, e.Title, models.MuscleLabel(e.Muscle), e.EquipmentLabel, e.Difficulty, video)
	}
}

func (sh *shell) Error(err error, retry func()) {
	sh.mu.Lock()
	sh.retry = retry
	sh.mu.Unlock()
	sh.printf("Could not load exercises: %v (type \"retry\")\n", err)
}

// exec runs one command line and reports whether to quit.
func (sh *shell) exec(line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	var err error
	switch cmd {
	case "":
	case "quit", "exit":
		return true
	case "help":
		sh.printf("%s\n", help)
	case "search":
		sh.ctrl.SetSearch(rest)
	case "muscle":
		sh.ctrl.SetMuscle(unquote(rest))
	case "equipment":
		sh.ctrl.SetEquipment(unquote(rest))
	case "difficulty":
		sh.ctrl.SetDifficulty(unquote(rest))
	case "badge":
		err = sh.badge(args)
	case "clear":
		sh.ctrl.Clear()
	case "retry":
		sh.mu.Lock()
		retry := sh.retry
		sh.mu.Unlock()
		if retry != nil {
			retry()
		}
	case "link":
		sh.mu.Lock()
		q := sh.query.Encode()
		sh.mu.Unlock()
		link := sh.baseURL + "/exercises"
		if q != "" {
			link += "?" + q
		}
		sh.printf("%s\n", link)
	case "add":
		err = sh.add(args)
	case "remove":
		err = withID(args, 1, func(id int64, _ []int) error { return sh.composer.Remove(sh.ctx, id) })
	case "sets":
		err = withID(args, 2, func(id int64, n []int) error { return sh.composer.SetSets(sh.ctx, id, n[0]) })
	case "rest":
		err = withID(args, 2, func(id int64, n []int) error { return sh.composer.SetRest(sh.ctx, id, n[0]) })
	case "draft":
		sh.printDraft()
	case "save":
		err = sh.save(rest)
	case "session":
		err = sh.startSession(args)
	case "set":
		err = sh.recordSet(args)
	default:
		err = fmt.Errorf("unknown command %q (try \"help\")", cmd)
	}
	if err != nil {
		sh.printf("! %v\n", err)
	}
	return false
}

func unquote(s string) string {
	if s == `""` {
		return ""
	}
	return s
}

func (sh *shell) badge(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: badge <muscle|equipment|difficulty> <value>")
	}
	dims := map[string]filter.Dimension{
		"muscle":     filter.Muscle,
		"equipment":  filter.Equipment,
		"difficulty": filter.Difficulty,
	}
	d, ok := dims[args[0]]
	if !ok {
		return fmt.Errorf("unknown badge %q", args[0])
	}
	sh.ctrl.ToggleBadge(d, args[1])
	return nil
}

// withID parses "<id> [ints...]" and calls fn.
func withID(args []string, want int, fn func(id int64, n []int) error) error {
	if len(args) != want {
		return fmt.Errorf("expected %d arguments", want)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid exercise id %q", args[0])
	}
	var nums []int
	for _, a := range args[1:] {
		n, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("invalid number %q", a)
		}
		nums = append(nums, n)
	}
	return fn(id, nums)
}

func (sh *shell) add(args []string) error {
	return withID(args, 1, func(id int64, _ []int) error {
		sh.mu.Lock()
		ex, ok := sh.listed[id]
		sh.mu.Unlock()
		if !ok {
			return fmt.Errorf("exercise %d is not in the current list", id)
		}
		return sh.composer.Add(sh.ctx, ex)
	})
}

func (sh *shell) printDraft() {
	entries := sh.composer.Entries()
	if len(entries) == 0 {
		sh.printf("Draft is empty.\n")
		return
	}
	for i, e := range entries {
		note := ""
		if !e.Available {
			note = " (not in current list, will be skipped)"
		}
		sh.printf("  %d. %-40s %d sets, %s rest%s\n", i+1, e.Title, e.Sets,
			time.Duration(e.RestSeconds)*time.Second, note)
	}
}

func (sh *shell) save(rest string) error {
	name, desc, _ := strings.Cut(rest, "|")
	routine, err := sh.composer.Submit(sh.ctx, sh.api, strings.TrimSpace(name), strings.TrimSpace(desc))
	if err != nil {
		return err
	}
	sh.printf("Routine %q created with %d exercises: %s/routines/%s\n",
		routine.Name, len(routine.Exercises), sh.baseURL, routine.ID)
	return nil
}

func (sh *shell) startSession(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: session <id>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q", args[0])
	}
	sh.timer.Stop()
	rec := recorder.New(id, sh.api, sh.timer, sh.log, recorder.WithRestCallbacks(
		func(remaining time.Duration) { sh.printf("rest %s\n", remaining.Round(time.Second)) },
		func() { sh.printf("Rest complete! Time for your next set.\n") },
	))
	sh.mu.Lock()
	sh.recorder = rec
	sh.mu.Unlock()
	sh.printf("Logging sets for session %s\n", id)
	return nil
}

func (sh *shell) recordSet(args []string) error {
	sh.mu.Lock()
	rec := sh.recorder
	sh.mu.Unlock()
	if rec == nil {
		return errors.New("no session; use: session <id>")
	}
	if len(args) != 4 {
		return errors.New("usage: set <exercise> <n> <weight> <reps>")
	}
	exerciseID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid exercise id %q", args[0])
	}
	setNumber, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid set number %q", args[1])
	}

	resp, err := rec.Save(sh.ctx, exerciseID, setNumber, args[2], args[3])
	if err != nil {
		return err
	}
	sh.printf("%s (volume %s kg)\n", resp.Message, humanize.FormatFloat("#,###.##", resp.Volume))
	return nil
}
