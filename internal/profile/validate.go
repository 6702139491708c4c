package profile

import "fmt"

// Validation reject codes.
const (
	CodeEmptyName      = "empty_name"
	CodeEmptyProfile   = "empty_profile"
	CodeBadKind        = "bad_kind"
	CodeEmptyLoop      = "empty_loop"
	CodeLoopDepth      = "loop_depth"
	CodeBadRepeat      = "bad_repeat"
	CodeBadDuration    = "bad_duration"
	CodeIntensityRange = "intensity_range"
	CodeBadPulse       = "bad_pulse"
	CodeTooLong        = "too_long"
)

// ValidationError reports the first rule a profile breaks. Path addresses
// the offending node, e.g. "entries[1].body[0]".
type ValidationError struct {
	Code   string `json:"code"`
	Path   string `json:"path"`
	Detail string `json:"detail"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("profile invalid (%s): %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("profile invalid (%s) at %s: %s", e.Code, e.Path, e.Detail)
}

func reject(code, path, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Path: path, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks a profile against the authoring rules before it is stored
// or loaded for a run. Until-stopped loops (repeat count 0) are accepted
// only when the profile is marked manual-stop; every other profile must
// declare a finite total duration within the 30-day cap.
func Validate(p *Profile) error {
	if p.Name == "" {
		return reject(CodeEmptyName, "", "profile name must not be empty")
	}
	if len(p.Entries) == 0 {
		return reject(CodeEmptyProfile, "", "profile has no entries")
	}
	if err := validateEntries(p.Entries, "entries", 0, p.ManualStop); err != nil {
		return err
	}
	if total := p.TotalDurationMs(); total != Unbounded && total > MaxTotalMs {
		return reject(CodeTooLong, "", "declared duration %dms exceeds %dms cap", total, int64(MaxTotalMs))
	}
	return nil
}

func validateEntries(entries []Node, path string, depth int, manualStop bool) error {
	for i := range entries {
		if err := validateNode(&entries[i], fmt.Sprintf("%s[%d]", path, i), depth, manualStop); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(n *Node, path string, depth int, manualStop bool) error {
	switch n.Kind {
	case KindLoop:
		if depth+1 > MaxLoopDepth {
			return reject(CodeLoopDepth, path, "loops nest deeper than %d levels", MaxLoopDepth)
		}
		if n.RepeatCount < 0 || n.RepeatCount > MaxRepeatCount {
			return reject(CodeBadRepeat, path, "repeat count %d outside 0..%d", n.RepeatCount, MaxRepeatCount)
		}
		if n.RepeatCount == RepeatUntilStopped && !manualStop {
			return reject(CodeBadRepeat, path, "until-stopped loop requires a manual-stop profile")
		}
		if len(n.Body) == 0 {
			return reject(CodeEmptyLoop, path, "loop body is empty")
		}
		return validateEntries(n.Body, path+".body", depth+1, manualStop)

	case KindConstant:
		if err := checkIntensity(n.StartIntensity, path); err != nil {
			return err
		}
		return checkDuration(n.DurationMs, path)

	case KindRamp, KindStep:
		if err := checkIntensity(n.StartIntensity, path); err != nil {
			return err
		}
		if err := checkIntensity(n.EndIntensity, path); err != nil {
			return err
		}
		return checkDuration(n.DurationMs, path)

	case KindPulse:
		if err := checkIntensity(n.StartIntensity, path); err != nil {
			return err
		}
		if n.OnMs <= 0 || n.OffMs <= 0 {
			return reject(CodeBadPulse, path, "pulse on/off times must be positive, got on=%dms off=%dms", n.OnMs, n.OffMs)
		}
		if n.PulseCount < 1 || n.PulseCount > MaxPulseCount {
			return reject(CodeBadPulse, path, "pulse count %d outside 1..%d", n.PulseCount, MaxPulseCount)
		}
		if d := n.SegmentDurationMs(); d > MaxSegmentMs {
			return reject(CodeBadDuration, path, "pulse train runs %dms, above the %dms segment cap", d, int64(MaxSegmentMs))
		}
		return nil

	default:
		return reject(CodeBadKind, path, "unknown node kind %q", n.Kind)
	}
}

func checkIntensity(pct float64, path string) error {
	if pct < 0 || pct > 100 {
		return reject(CodeIntensityRange, path, "intensity %.2f%% outside 0..100", pct)
	}
	return nil
}

func checkDuration(ms int64, path string) error {
	if ms <= 0 {
		return reject(CodeBadDuration, path, "duration must be positive, got %dms", ms)
	}
	if ms > MaxSegmentMs {
		return reject(CodeBadDuration, path, "duration %dms above the %dms segment cap", ms, int64(MaxSegmentMs))
	}
	return nil
}
