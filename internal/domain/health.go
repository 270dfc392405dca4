package domain

import "time"

// DailyMetric is one calendar day's wellbeing snapshot, unique per user and day.
type DailyMetric struct {
	UserID       string    `json:"user_id"`
	Date         time.Time `json:"date"`
	SleepHours   float64   `json:"sleep_hours"`
	SleepQuality string    `json:"sleep_quality"`
	EnergyLevel  int       `json:"energy_level"`
	StressLevel  *int      `json:"stress_level,omitempty"`
	Weight       *float64  `json:"weight,omitempty"`
}

// BodyMeasurement records body weight for a day, unique per user and day.
type BodyMeasurement struct {
	UserID string    `json:"user_id"`
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
}

// WeightPoint is one entry of the body-weight series.
type WeightPoint struct {
	Date   time.Time
	Weight float64
}

// VolumePoint is one entry of the per-session volume series.
type VolumePoint struct {
	Date   time.Time
	Volume int
	Title  string
}

// Profile holds the athlete attributes used for targets and gamification.
type Profile struct {
	UserID    string  `json:"user_id"`
	Name      string  `json:"name"`
	Gender    string  `json:"gender"`
	Age       int     `json:"age"`
	Height    float64 `json:"height"`
	Weight    float64 `json:"weight"`
	Goal      string  `json:"goal"`
	Level     string  `json:"level"`
	Frequency int     `json:"frequency"`
	XP        int     `json:"xp"`
}

// FoodLog is a logged meal.
type FoodLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Date      time.Time `json:"date"`
	DishName  string    `json:"dish_name"`
	MealType  string    `json:"meal_type,omitempty"`
	Calories  int       `json:"calories"`
	Protein   int       `json:"protein"`
	Fat       int       `json:"fat"`
	Carbs     int       `json:"carbs"`
	Weight    int       `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}

// ScheduledWorkout is a planned workout on a calendar day.
type ScheduledWorkout struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Date      time.Time    `json:"date"`
	Title     string       `json:"title"`
	Plan      *WorkoutPlan `json:"plan,omitempty"`
	Completed bool         `json:"completed"`
}
