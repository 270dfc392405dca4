package nutrition

import (
	"strings"

	"example.com/coach/internal/domain"
)

// Targets are the daily calorie and macro goals for a profile.
type Targets struct {
	Calories int `json:"target_calories"`
	Protein  int `json:"target_protein"`
	Fat      int `json:"target_fat"`
	Carbs    int `json:"target_carbs"`
}

const (
	fallbackWeight    = 70
	fallbackHeight    = 170
	fallbackAge       = 25
	fallbackFrequency = 3
)

// CalculateTargets applies Mifflin-St Jeor, a frequency-based activity
// multiplier and a goal adjustment, then splits calories into macros.
func CalculateTargets(p domain.Profile) Targets {
	weight := p.Weight
	if weight <= 0 {
		weight = fallbackWeight
	}
	height := p.Height
	if height <= 0 {
		height = fallbackHeight
	}
	age := float64(p.Age)
	if age <= 0 {
		age = fallbackAge
	}

	sex := 5.0
	if strings.EqualFold(p.Gender, "female") {
		sex = -161
	}
	bmr := 10*weight + 6.25*height - 5*age + sex

	freq := p.Frequency
	if freq <= 0 {
		freq = fallbackFrequency
	}
	var multiplier float64
	switch {
	case freq <= 2:
		multiplier = 1.375
	case freq <= 4:
		multiplier = 1.55
	default:
		multiplier = 1.725
	}
	calories := bmr * multiplier

	goal := strings.ToLower(p.Goal)
	switch {
	case containsAny(goal, "loss", "cut", "похудение", "сушка"):
		calories *= 0.80
	case containsAny(goal, "gain", "muscle", "мышцы", "набор"):
		calories *= 1.10
	}

	t := Targets{
		Calories: round(calories),
		Protein:  round(2 * weight),
		Fat:      round(0.8 * weight),
	}
	remaining := float64(t.Calories - (t.Protein*4 + t.Fat*9))
	t.Carbs = max(0, round(remaining/4))
	return t
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
