package profile

import "fmt"

// Kind discriminates profile tree records. The segment kinds form a closed
// set evaluated by the control engine; "loop" wraps an ordered body.
type Kind string

const (
	KindConstant Kind = "constant"
	KindRamp     Kind = "ramp"
	KindStep     Kind = "step"
	KindPulse    Kind = "pulse"
	KindLoop     Kind = "loop"
)

// Authoring limits. Runs longer than the declared-total cap are almost
// certainly authoring mistakes, and the cap keeps duration arithmetic far
// from overflow even at full loop depth.
const (
	MaxLoopDepth       = 4
	MaxRepeatCount     = 10_000
	MaxPulseCount      = 100_000
	MaxSegmentMs       = 7 * 24 * 60 * 60 * 1000  // 7 days
	MaxTotalMs         = 30 * 24 * 60 * 60 * 1000 // 30 days
	RepeatUntilStopped = 0                        // loop repeat count meaning "until stopped"
)

// Unbounded is returned by duration helpers when a profile or node has no
// finite declared duration (contains an until-stopped loop).
const Unbounded int64 = -1

// Node is one record of a profile tree: a timed irradiance segment
// (constant, ramp, step, pulse) or a loop over an ordered body.
// Intensities are percent of full panel output; durations are milliseconds.
// For pulse segments the duration is derived from (on+off)*count and
// DurationMs is ignored. EndIntensity is read by ramp and step only.
type Node struct {
	Kind Kind `json:"kind" yaml:"kind" mapstructure:"kind"`

	StartIntensity float64 `json:"start_intensity,omitempty" yaml:"start_intensity,omitempty" mapstructure:"start_intensity"`
	EndIntensity   float64 `json:"end_intensity,omitempty" yaml:"end_intensity,omitempty" mapstructure:"end_intensity"`
	DurationMs     int64   `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty" mapstructure:"duration_ms"`
	OnMs           int64   `json:"on_ms,omitempty" yaml:"on_ms,omitempty" mapstructure:"on_ms"`
	OffMs          int64   `json:"off_ms,omitempty" yaml:"off_ms,omitempty" mapstructure:"off_ms"`
	PulseCount     int     `json:"pulse_count,omitempty" yaml:"pulse_count,omitempty" mapstructure:"pulse_count"`

	// Loop fields. RepeatCount == RepeatUntilStopped (0) runs until the
	// user stops the run and is legal only in manual-stop profiles.
	Name        string `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	RepeatCount int    `json:"repeat_count,omitempty" yaml:"repeat_count,omitempty" mapstructure:"repeat_count"`
	Body        []Node `json:"body,omitempty" yaml:"body,omitempty" mapstructure:"body"`
}

// Profile is the root of one curing run: an ordered sequence of loop/segment
// entries. It is immutable once loaded for execution.
type Profile struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	ManualStop  bool   `json:"manual_stop,omitempty" yaml:"manual_stop,omitempty" mapstructure:"manual_stop"`
	Entries     []Node `json:"entries" yaml:"entries" mapstructure:"entries"`
}

// IsLoop reports whether the node is a loop record.
func (n *Node) IsLoop() bool { return n.Kind == KindLoop }

// SegmentDurationMs returns the node's own duration: DurationMs for timed
// segments, the derived (on+off)*count for pulse trains, 0 for loops.
func (n *Node) SegmentDurationMs() int64 {
	switch n.Kind {
	case KindPulse:
		return mulSat(n.OnMs+n.OffMs, int64(n.PulseCount))
	case KindLoop:
		return 0
	default:
		return n.DurationMs
	}
}

// TotalDurationMs returns the declared duration of the whole profile:
// segment durations multiplied through enclosing repeat counts. Returns
// Unbounded when any loop runs until stopped.
func (p *Profile) TotalDurationMs() int64 {
	return entriesDurationMs(p.Entries)
}

func entriesDurationMs(entries []Node) int64 {
	var total int64
	for i := range entries {
		n := &entries[i]
		var d int64
		if n.IsLoop() {
			if n.RepeatCount == RepeatUntilStopped {
				return Unbounded
			}
			body := entriesDurationMs(n.Body)
			if body == Unbounded {
				return Unbounded
			}
			d = mulSat(body, int64(n.RepeatCount))
		} else {
			d = n.SegmentDurationMs()
		}
		total = addSat(total, d)
	}
	return total
}

// Depth returns the deepest loop nesting in the profile (0 for a flat
// sequence of segments).
func (p *Profile) Depth() int {
	return entriesDepth(p.Entries)
}

func entriesDepth(entries []Node) int {
	deepest := 0
	for i := range entries {
		if entries[i].IsLoop() {
			d := 1 + entriesDepth(entries[i].Body)
			if d > deepest {
				deepest = d
			}
		}
	}
	return deepest
}

// Standard builds the single-segment profile behind a standard-mode run:
// constant intensity for a fixed duration.
func Standard(durationMs int64, intensityPct float64) Profile {
	return Profile{
		Name: "standard",
		Entries: []Node{{
			Kind:           KindConstant,
			StartIntensity: intensityPct,
			DurationMs:     durationMs,
		}},
	}
}

// NextFreeName returns the first unused "P-NN" library name, the naming the
// on-device creation flow uses.
func NextFreeName(taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, t := range taken {
		used[t] = struct{}{}
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("P-%02d", i)
		if _, ok := used[name]; !ok {
			return name
		}
	}
}

// mulSat multiplies non-negative ms counts, saturating at MaxTotalMs+1 so
// validation can flag over-cap totals without overflowing.
func mulSat(a, b int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > (MaxTotalMs+1)/b {
		return MaxTotalMs + 1
	}
	return a * b
}

func addSat(a, b int64) int64 {
	s := a + b
	if s > MaxTotalMs+1 || s < 0 {
		return MaxTotalMs + 1
	}
	return s
}
