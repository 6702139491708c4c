package control

import "uvchamber/internal/hal"

// InterlockState is the debounced lid position the kernel acts on.
type InterlockState string

const (
	InterlockClosed InterlockState = "CLOSED"
	InterlockOpen   InterlockState = "OPEN"
)

// DefaultDebounceMs is the lid switch debounce window.
const DefaultDebounceMs = 50

// Interlock turns raw lid switch samples into a debounced state. A raw
// transition must persist for the full debounce window before the reported
// state follows it, so mechanical switch bounce cannot gate UV output on
// and off. Sensor fault reads skip the debounce entirely and drop the state
// to Open at once.
//
// Interlock is not safe for concurrent use; the controller owns it and
// serializes every Poll.
type Interlock struct {
	debounceMs uint32

	state        InterlockState
	pending      InterlockState
	pendingSince uint32
	hasPending   bool
}

// NewInterlock builds a supervisor reporting Open until a debounced closed
// sample proves otherwise. debounceMs 0 selects the default window.
func NewInterlock(debounceMs uint32) *Interlock {
	if debounceMs == 0 {
		debounceMs = DefaultDebounceMs
	}
	return &Interlock{debounceMs: debounceMs, state: InterlockOpen}
}

// Poll applies one raw lid sample taken at nowMs and returns the debounced
// state.
func (i *Interlock) Poll(sample hal.DoorSample, nowMs uint32) InterlockState {
	if sample.Fault {
		// Unknown lid position is treated as open, immediately.
		i.state = InterlockOpen
		i.hasPending = false
		return i.state
	}

	raw := InterlockOpen
	if sample.Closed {
		raw = InterlockClosed
	}

	if raw == i.state {
		i.hasPending = false
		return i.state
	}
	if !i.hasPending || i.pending != raw {
		i.pending = raw
		i.pendingSince = nowMs
		i.hasPending = true
		return i.state
	}
	if TicksDiff(nowMs, i.pendingSince) >= int32(i.debounceMs) {
		i.state = raw
		i.hasPending = false
	}
	return i.state
}

// State returns the last debounced state without applying a new sample.
func (i *Interlock) State() InterlockState { return i.state }

// IsSafeToEmit reports whether UV emission is permitted.
func (i *Interlock) IsSafeToEmit() bool { return i.state == InterlockClosed }
