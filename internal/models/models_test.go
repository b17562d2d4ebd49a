package models

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestParseEquipment(t *testing.T) {
	tests := []struct {
		in     string
		want   Equipment
		wantOK bool
	}{
		{"dumbbells", EquipmentDumbbells, true},
		{"Dumbbell", EquipmentDumbbells, true},
		{" KETTLEBELLS ", EquipmentKettlebells, true},
		{"cable", EquipmentCables, true},
		{"other", EquipmentOther, true},
		{"trampoline", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseEquipment(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseEquipment(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestEquipmentLabel(t *testing.T) {
	if got := EquipmentDumbbells.Label(); got != "Dumbbells" {
		t.Errorf("Label() = %q, want Dumbbells", got)
	}
	if got := Equipment("").Label(); got != "" {
		t.Errorf("empty Label() = %q, want empty", got)
	}
}

// TestDifficultyOrdering verifies levels follow Novice < Beginner < Intermediate < Advanced.
func TestDifficultyOrdering(t *testing.T) {
	prev := 0
	for _, d := range AllDifficulties {
		if d.Level() <= prev {
			t.Errorf("%s level %d not above %d", d, d.Level(), prev)
		}
		prev = d.Level()
	}
	if d, ok := ParseDifficulty("intermediate"); !ok || d != DifficultyIntermediate {
		t.Errorf("ParseDifficulty(intermediate) = %q, %v", d, ok)
	}
	if _, ok := ParseDifficulty("expert"); ok {
		t.Error("ParseDifficulty(expert) should fail")
	}
	if Difficulty("expert").Level() != 0 {
		t.Error("unknown difficulty level should be 0")
	}
}

func TestExcerpt(t *testing.T) {
	short := "Curl the weight up."
	if got := Excerpt(short, 140); got != short {
		t.Errorf("Excerpt(short) = %q", got)
	}

	long := strings.Repeat("lift slowly ", 30)
	got := Excerpt(long, 40)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("Excerpt(long) = %q, want ellipsis", got)
	}
	if n := len([]rune(got)); n > 41 {
		t.Errorf("Excerpt(long) has %d runes, want <= 41", n)
	}
}

// TestSummaryOmitsInstructions verifies the card payload falls back to the first
// instruction for its excerpt and carries derived labels.
func TestSummaryOmitsInstructions(t *testing.T) {
	e := Exercise{
		ID: 7, Title: "Dumbbell Curl", Slug: "dumbbell-curl",
		Equipment: EquipmentDumbbells, Muscle: "biceps", Difficulty: DifficultyBeginner,
		Instructions: []string{"Stand tall.", "Curl."},
	}
	s := e.Summary()
	if s.Excerpt != "Stand tall." {
		t.Errorf("excerpt = %q", s.Excerpt)
	}
	if s.EquipmentLabel != "Dumbbells" || s.DifficultyLevel != 2 {
		t.Errorf("labels = %q/%d", s.EquipmentLabel, s.DifficultyLevel)
	}
}

func TestVideosComplete(t *testing.T) {
	v := Videos{GenderMale: {AngleFront: "a.mp4"}}
	if v.Complete() {
		t.Error("single angle should not be complete")
	}
	v[GenderFemale] = map[Angle]string{AngleFront: "b.mp4", AngleSide: "c.mp4"}
	if !v.Complete() {
		t.Error("female front+side should be complete")
	}
}

func TestCriteriaFromValues(t *testing.T) {
	c := CriteriaFromValues(url.Values{"search": {" curl "}, "muscle": {"biceps"}})
	if c.Search != "curl" || c.MuscleGroup != "biceps" {
		t.Errorf("criteria = %+v", c)
	}
	if c.IsEmpty() {
		t.Error("criteria should not be empty")
	}
	if got := c.Values().Encode(); got != "muscle_group=biceps&search=curl" {
		t.Errorf("Values() = %q", got)
	}
	if !(Criteria{}).IsEmpty() {
		t.Error("zero criteria should be empty")
	}
}

func TestVolume(t *testing.T) {
	if got := Volume(62.5, 8); got != 500.0 {
		t.Errorf("Volume(62.5, 8) = %v, want 500", got)
	}
	if got := Volume(22.33, 3); got != 66.99 {
		t.Errorf("Volume(22.33, 3) = %v, want 66.99", got)
	}
}

// TestParseSetInput verifies that zero or malformed weight/reps are rejected
// with the offending field named.
func TestParseSetInput(t *testing.T) {
	sid := uuid.NewString()
	tests := []struct {
		name      string
		weight    string
		reps      string
		setNumber string
		wantField string
	}{
		{name: "valid", weight: "62.5", reps: "8", setNumber: "1"},
		{name: "zero weight", weight: "0", reps: "8", setNumber: "1", wantField: "weight"},
		{name: "negative weight", weight: "-5", reps: "8", setNumber: "1", wantField: "weight"},
		{name: "zero reps", weight: "60", reps: "0", setNumber: "1", wantField: "reps"},
		{name: "fractional reps", weight: "60", reps: "7.5", setNumber: "1", wantField: "reps"},
		{name: "text weight", weight: "heavy", reps: "5", setNumber: "1", wantField: "weight"},
		{name: "zero set", weight: "60", reps: "5", setNumber: "0", wantField: "set_number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ParseSetInput(sid, "3", tt.setNumber, tt.weight, tt.reps)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if in.Weight != 62.5 || in.Reps != 8 {
					t.Errorf("parsed %+v", in)
				}
				return
			}
			var se *SetError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *SetError", err)
			}
			if se.Field != tt.wantField {
				t.Errorf("field = %q, want %q", se.Field, tt.wantField)
			}
		})
	}

	if _, err := ParseSetInput("nope", "3", "1", "10", "5"); err == nil {
		t.Error("expected error for bad session id")
	}
}

func TestRoutineInputValidate(t *testing.T) {
	valid := func() RoutineInput {
		return RoutineInput{Name: " Push ", Exercises: []RoutineEntryInput{
			{ExerciseID: 1, Sets: 3, RestSeconds: 60},
			{ExerciseID: 2, Sets: 10, RestSeconds: 300},
		}}
	}

	in := valid()
	if err := in.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Name != "Push" {
		t.Errorf("name not trimmed: %q", in.Name)
	}

	mutations := map[string]func(*RoutineInput){
		"no name":      func(in *RoutineInput) { in.Name = "" },
		"no exercises": func(in *RoutineInput) { in.Exercises = nil },
		"duplicate":    func(in *RoutineInput) { in.Exercises[1].ExerciseID = 1 },
		"sets high":    func(in *RoutineInput) { in.Exercises[0].Sets = 11 },
		"rest low":     func(in *RoutineInput) { in.Exercises[0].RestSeconds = 15 },
		"rest step":    func(in *RoutineInput) { in.Exercises[0].RestSeconds = 50 },
	}
	for name, mutate := range mutations {
		in := valid()
		mutate(&in)
		if err := in.Validate(); !errors.Is(err, ErrInvalidRoutine) {
			t.Errorf("%s: error = %v, want ErrInvalidRoutine", name, err)
		}
	}
}

func TestProgress(t *testing.T) {
	plan := []RoutineExercise{
		{ExerciseID: 1, Sets: 3},
		{ExerciseID: 2, Sets: 2},
	}
	progress, done := Progress(plan, map[int64]int{1: 3, 2: 1})
	if done {
		t.Fatal("should not be done")
	}
	if !progress[0].IsComplete || progress[0].IsCurrent {
		t.Errorf("first = %+v", progress[0])
	}
	if !progress[1].IsCurrent || progress[1].Percent != 50 {
		t.Errorf("second = %+v", progress[1])
	}

	_, done = Progress(plan, map[int64]int{1: 3, 2: 2})
	if !done {
		t.Error("should be done once every set is recorded")
	}

	r := Routine{Exercises: plan}
	if r.TotalSets() != 5 || r.EstimatedMinutes() != 15 {
		t.Errorf("totals = %d sets, %d min", r.TotalSets(), r.EstimatedMinutes())
	}
}
