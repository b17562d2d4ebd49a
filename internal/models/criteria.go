package models

import (
	"net/url"
	"strings"
)

// Criteria is the user's current exercise filter. Empty fields do not
// constrain the result.
type Criteria struct {
	Search      string `json:"search"`
	MuscleGroup string `json:"muscle_group"`
	Equipment   string `json:"equipment"`
	Difficulty  string `json:"difficulty"`
}

// Query parameter names shared by the API, the pages and the address bar.
const (
	ParamSearch      = "search"
	ParamMuscleGroup = "muscle_group"
	ParamMuscle      = "muscle"
	ParamEquipment   = "equipment"
	ParamDifficulty  = "difficulty"
)

// CriteriaFromValues reads criteria from query parameters. "muscle" is
// accepted as an alias for "muscle_group".
func CriteriaFromValues(v url.Values) Criteria {
	c := Criteria{
		Search:      strings.TrimSpace(v.Get(ParamSearch)),
		MuscleGroup: strings.TrimSpace(v.Get(ParamMuscleGroup)),
		Equipment:   strings.TrimSpace(v.Get(ParamEquipment)),
		Difficulty:  strings.TrimSpace(v.Get(ParamDifficulty)),
	}
	if c.MuscleGroup == "" {
		c.MuscleGroup = strings.TrimSpace(v.Get(ParamMuscle))
	}
	return c
}

// Values encodes the non-empty criteria as query parameters.
func (c Criteria) Values() url.Values {
	v := url.Values{}
	if c.Search != "" {
		v.Set(ParamSearch, c.Search)
	}
	if c.MuscleGroup != "" {
		v.Set(ParamMuscleGroup, c.MuscleGroup)
	}
	if c.Equipment != "" {
		v.Set(ParamEquipment, c.Equipment)
	}
	if c.Difficulty != "" {
		v.Set(ParamDifficulty, c.Difficulty)
	}
	return v
}

// IsEmpty reports whether no dimension is constrained.
func (c Criteria) IsEmpty() bool {
	return c.Search == "" && c.MuscleGroup == "" && c.Equipment == "" && c.Difficulty == ""
}

// SearchResponse is the Filter API envelope. Count is the number of matches
// before the display cap.
type SearchResponse struct {
	Exercises []ExerciseSummary `json:"exercises"`
	Count     int               `json:"count"`
	HasMore   bool              `json:"has_more"`
	Filtered  bool              `json:"filtered"`
}
