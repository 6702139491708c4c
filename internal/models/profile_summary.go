package models

import "time"

// ProfileSummary is the library listing entry for a stored curing profile.
// The full tree is fetched separately; listings stay cheap.
type ProfileSummary struct {
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	ManualStop      bool      `json:"manual_stop"`
	TotalDurationMs int64     `json:"total_duration_ms"` // -1 when unbounded (manual-stop)
	UpdatedAt       time.Time `json:"updated_at"`
}
