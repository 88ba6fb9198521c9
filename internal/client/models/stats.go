package models

// EggStats aggregates consumption figures. Computed server-side from the
// event list, never stored locally.
type EggStats struct {
	EggsPerUser   []UserCount  `json:"eggsPerUser"`
	EggsPerDay    []DateCount  `json:"eggsPerDay"`
	EggsPerWeek   []WeekCount  `json:"eggsPerWeek"`
	EggsPerMonth  []MonthCount `json:"eggsPerMonth"`
	TotalConsumed int          `json:"totalConsumed"`
	Prediction    *Prediction  `json:"prediction,omitempty"`
}

type UserCount struct {
	Username string `json:"username"`
	Count    int    `json:"count"`
}

type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type WeekCount struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type Prediction struct {
	NextWeek int `json:"nextWeek"`
}
