package service

import "time"

// StandardParams configures a standard-mode run. Zero values fall back to
// the configured defaults.
type StandardParams struct {
	DurationMs   int64   // emission time
	IntensityPct float64 // constant panel intensity
}

// StandardDefaults are the config-driven fallbacks for standard runs.
type StandardDefaults struct {
	DurationMs   int64
	IntensityPct float64
}

// AuthConfig carries the JWT signing material from config.
type AuthConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "START", "STOP", "PAUSE", "RESUME", "COMPLETE", "FAULT", ...
}
