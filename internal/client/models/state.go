package models

import "time"

// EggState is the singleton snapshot of the box, overwritten wholesale on
// every successful fetch. The cached copy is a read-only fallback when the
// network is unavailable.
type EggState struct {
	BoxID            string    `json:"boxId"`
	CurrentCount     int       `json:"currentCount"`
	PreviousCount    int       `json:"previousCount"`
	LastUpdated      time.Time `json:"lastUpdated"`
	LastImageURL     string    `json:"lastImageUrl"`
	PreviousImageURL string    `json:"previousImageUrl"`
}
