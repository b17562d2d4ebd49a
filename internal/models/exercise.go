package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Equipment is the kind of equipment an exercise needs.
type Equipment string

const (
	EquipmentBarbell     Equipment = "barbell"
	EquipmentDumbbells   Equipment = "dumbbells"
	EquipmentBodyweight  Equipment = "bodyweight"
	EquipmentMachine     Equipment = "machine"
	EquipmentKettlebells Equipment = "kettlebells"
	EquipmentCables      Equipment = "cables"
	EquipmentBands       Equipment = "bands"
	EquipmentOther       Equipment = "other"
)

// AllEquipment lists every equipment value in display order.
var AllEquipment = []Equipment{
	EquipmentBarbell, EquipmentDumbbells, EquipmentBodyweight, EquipmentMachine,
	EquipmentKettlebells, EquipmentCables, EquipmentBands, EquipmentOther,
}

var equipmentAliases = map[string]Equipment{
	"dumbbell":   EquipmentDumbbells,
	"kettlebell": EquipmentKettlebells,
	"cable":      EquipmentCables,
	"band":       EquipmentBands,
	"machines":   EquipmentMachine,
	"barbells":   EquipmentBarbell,
}

var titleCaser = cases.Title(language.English)

// ParseEquipment resolves s (case-insensitive, singular forms accepted) to a
// known Equipment value.
func ParseEquipment(s string) (Equipment, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, e := range AllEquipment {
		if string(e) == v {
			return e, true
		}
	}
	if e, ok := equipmentAliases[v]; ok {
		return e, true
	}
	return "", false
}

// Label returns the display label, e.g. "Dumbbells".
func (e Equipment) Label() string {
	if e == "" {
		return ""
	}
	return titleCaser.String(string(e))
}

// Difficulty is an ordered skill level.
type Difficulty string

const (
	DifficultyNovice       Difficulty = "Novice"
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

// AllDifficulties lists difficulties from easiest to hardest.
var AllDifficulties = []Difficulty{
	DifficultyNovice, DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced,
}

// ParseDifficulty resolves s case-insensitively.
func ParseDifficulty(s string) (Difficulty, bool) {
	v := strings.TrimSpace(s)
	for _, d := range AllDifficulties {
		if strings.EqualFold(string(d), v) {
			return d, true
		}
	}
	return "", false
}

// Level is 1 (Novice) through 4 (Advanced), 0 when unknown.
func (d Difficulty) Level() int {
	for i, known := range AllDifficulties {
		if d == known {
			return i + 1
		}
	}
	return 0
}

// Gender and Angle key the demonstration videos.
type (
	Gender string
	Angle  string
)

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"

	AngleFront Angle = "front"
	AngleSide  Angle = "side"
)

// Videos maps demonstrator gender to camera angle to a video path.
type Videos map[Gender]map[Angle]string

// Complete reports whether at least one gender has both angles.
func (v Videos) Complete() bool {
	for _, angles := range v {
		if angles[AngleFront] != "" && angles[AngleSide] != "" {
			return true
		}
	}
	return false
}

// Exercise is a catalog entry.
type Exercise struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Description  string     `json:"description,omitempty"`
	Equipment    Equipment  `json:"equipment"`
	Muscle       string     `json:"muscle"`
	Difficulty   Difficulty `json:"difficulty"`
	Instructions []string   `json:"instructions"`
	Videos       Videos     `json:"videos,omitempty"`
	HasVideos    bool       `json:"has_videos"`
	Force        string     `json:"force,omitempty"`
	Grips        string     `json:"grips,omitempty"`
	Mechanic     string     `json:"mechanic,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// MuscleLabel returns the muscle as a display label ("lower-back" → "Lower Back").
func (e Exercise) MuscleLabel() string {
	return MuscleLabel(e.Muscle)
}

// MuscleLabel formats a muscle category for display.
func MuscleLabel(muscle string) string {
	return titleCaser.String(strings.ReplaceAll(muscle, "-", " "))
}

// ExerciseSummary carries what an exercise card renders. Instructions are
// deliberately absent.
type ExerciseSummary struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	Equipment       Equipment  `json:"equipment"`
	EquipmentLabel  string     `json:"equipment_label"`
	Muscle          string     `json:"muscle"`
	Difficulty      Difficulty `json:"difficulty"`
	DifficultyLevel int        `json:"difficulty_level"`
	Videos          Videos     `json:"videos,omitempty"`
	HasVideos       bool       `json:"has_videos"`
	Excerpt         string     `json:"excerpt"`
}

const excerptLen = 140

// Summary projects e onto the card payload.
func (e Exercise) Summary() ExerciseSummary {
	text := e.Description
	if text == "" && len(e.Instructions) > 0 {
		text = e.Instructions[0]
	}
	return ExerciseSummary{
		ID:              e.ID,
		Title:           e.Title,
		Slug:            e.Slug,
		Equipment:       e.Equipment,
		EquipmentLabel:  e.Equipment.Label(),
		Muscle:          e.Muscle,
		Difficulty:      e.Difficulty,
		DifficultyLevel: e.Difficulty.Level(),
		Videos:          e.Videos,
		HasVideos:       e.HasVideos,
		Excerpt:         Excerpt(text, excerptLen),
	}
}

// Excerpt shortens s to at most n runes, cutting at a word boundary and
// appending an ellipsis when something was removed.
func Excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)[:n]
	cut := string(r)
	if i := strings.LastIndex(cut, " "); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

// ExerciseDetail is an exercise with a few others training the same muscle.
type ExerciseDetail struct {
	Exercise *Exercise         `json:"exercise"`
	Related  []ExerciseSummary `json:"related"`
}

// MuscleGroup is a distinct muscle category with its catalog count.
type MuscleGroup struct {
	Name          string `json:"name"`
	Label         string `json:"label"`
	ExerciseCount int    `json:"exercise_count"`
}
