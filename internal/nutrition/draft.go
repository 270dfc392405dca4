// Package nutrition rescales food analyses, derives daily targets and keeps
// the food journal.
package nutrition

import (
	"errors"
	"math"
)

// DefaultWeightGrams is assumed when an analysis carries no weight estimate.
const DefaultWeightGrams = 100

var (
	// ErrNoAnalysis is returned when a user has no draft to edit or confirm.
	ErrNoAnalysis = errors.New("no food analysis in review")
	// ErrNegativeWeight is returned for a negative target weight.
	ErrNegativeWeight = errors.New("weight must not be negative")
)

// Analysis is the coaching model's estimate for a dish.
type Analysis struct {
	DishName        string  `json:"dish_name"`
	Calories        float64 `json:"calories"`
	Protein         float64 `json:"protein"`
	Fat             float64 `json:"fat"`
	Carbs           float64 `json:"carbs"`
	EstimatedWeight float64 `json:"estimated_weight_grams"`
	Advice          string  `json:"advice,omitempty"`
}

// Macros are rounded nutrient totals.
type Macros struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Fat      int `json:"fat"`
	Carbs    int `json:"carbs"`
}

// Add returns the element-wise sum.
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Calories: m.Calories + o.Calories,
		Protein:  m.Protein + o.Protein,
		Fat:      m.Fat + o.Fat,
		Carbs:    m.Carbs + o.Carbs,
	}
}

// Review is what the user sees while adjusting a draft.
type Review struct {
	DishName string  `json:"dish_name"`
	Advice   string  `json:"advice,omitempty"`
	Weight   float64 `json:"estimated_weight_grams"`
	Macros
}

type perGram struct {
	calories, protein, fat, carbs float64
}

// Draft holds an analysis under review. Per-gram ratios are captured once so
// repeated weight edits never compound rounding.
type Draft struct {
	analysis Analysis
	ratios   perGram
	weight   float64
}

// NewDraft captures the per-gram ratios of a.
func NewDraft(a Analysis) *Draft {
	weight := a.EstimatedWeight
	if weight <= 0 {
		weight = DefaultWeightGrams
	}
	return &Draft{
		analysis: a,
		weight:   weight,
		ratios: perGram{
			calories: a.Calories / weight,
			protein:  a.Protein / weight,
			fat:      a.Fat / weight,
			carbs:    a.Carbs / weight,
		},
	}
}

// SetWeight rescales the draft. Negative weights are rejected and leave the
// draft untouched.
func (d *Draft) SetWeight(grams float64) error {
	if grams < 0 || math.IsNaN(grams) {
		return ErrNegativeWeight
	}
	d.weight = grams
	return nil
}

// Review derives the current values from the original ratios.
func (d *Draft) Review() Review {
	return Review{
		DishName: d.analysis.DishName,
		Advice:   d.analysis.Advice,
		Weight:   d.weight,
		Macros: Macros{
			Calories: round(d.ratios.calories * d.weight),
			Protein:  round(d.ratios.protein * d.weight),
			Fat:      round(d.ratios.fat * d.weight),
			Carbs:    round(d.ratios.carbs * d.weight),
		},
	}
}

// round rounds half up, matching what users see in the client.
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}
