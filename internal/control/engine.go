package control

import (
	"fmt"
	"strings"

	"uvchamber/internal/profile"
)

// node is one arena entry of a compiled profile: a segment with its
// evaluation parameters pre-derived, or a loop holding arena indices of its
// body. Index addressing keeps the cursor a flat index path with no pointer
// cycles.
type node struct {
	isLoop bool

	// Segment fields. totalMs is the segment's full duration; for pulse
	// trains it is derived from (on+off)*count at compile time.
	kind    profile.Kind
	startI  float64
	endI    float64
	totalMs int64
	onMs    int64
	offMs   int64

	// Loop fields.
	repeat   int
	children []int
}

// frame is one open loop on the cursor stack: which arena node, which child
// is current, and how many iterations remain including the current one.
// remaining -1 means the loop runs until the user stops the run. iter is
// the 1-based current iteration, kept for progress reporting.
type frame struct {
	node      int
	pos       int
	remaining int
	iter      int
}

// Engine interprets one compiled profile against accumulated run time,
// producing a requested intensity per tick. The cursor (frames, active
// segment, elapsed) is owned by the engine alone and mutated only in Tick.
type Engine struct {
	arena []node

	frames  []frame
	active  int   // arena index of the active segment, -1 when none
	elapsed int64 // ms inside the active segment

	runElapsed    int64
	declaredTotal int64 // profile.Unbounded for manual-stop profiles
	done          bool
}

// Compile validates a profile and flattens it into an engine arena. Arena
// slot 0 is a synthetic single-pass loop over the profile's entries, which
// gives the cursor a uniform stack shape.
func Compile(p *profile.Profile) (*Engine, error) {
	if err := profile.Validate(p); err != nil {
		return nil, err
	}

	e := &Engine{declaredTotal: p.TotalDurationMs()}
	e.arena = append(e.arena, node{isLoop: true, repeat: 1})
	e.arena[0].children = e.build(p.Entries)
	e.Reset()
	return e, nil
}

func (e *Engine) build(entries []profile.Node) []int {
	indices := make([]int, 0, len(entries))
	for i := range entries {
		pn := &entries[i]
		idx := len(e.arena)
		if pn.IsLoop() {
			e.arena = append(e.arena, node{isLoop: true, repeat: pn.RepeatCount})
			children := e.build(pn.Body)
			e.arena[idx].children = children
		} else {
			e.arena = append(e.arena, node{
				kind:    pn.Kind,
				startI:  pn.StartIntensity,
				endI:    pn.EndIntensity,
				totalMs: pn.SegmentDurationMs(),
				onMs:    pn.OnMs,
				offMs:   pn.OffMs,
			})
		}
		indices = append(indices, idx)
	}
	return indices
}

// Reset rewinds the cursor to the top of the profile.
func (e *Engine) Reset() {
	e.frames = append(e.frames[:0], frame{node: 0, pos: 0, remaining: 1, iter: 1})
	e.active = -1
	e.elapsed = 0
	e.runElapsed = 0
	e.done = false
}

// Tick advances the run by deltaMs and returns the requested intensity for
// this tick. The boolean reports profile completion; once true the engine
// stays done (and dark) until Reset.
//
// Order per tick: select a segment if none is active, advance elapsed time,
// evaluate intensity, then retire the segment when its duration is spent.
// The retirement tick still emits the segment's boundary value; the next
// segment is selected on the following tick.
func (e *Engine) Tick(deltaMs uint32) (float64, bool) {
	if e.done {
		return 0, true
	}
	if e.active < 0 && !e.selectSegment() {
		return 0, true
	}

	e.elapsed += int64(deltaMs)
	e.runElapsed += int64(deltaMs)

	n := &e.arena[e.active]
	intensity := evaluate(n, e.elapsed)

	if e.elapsed >= n.totalMs {
		e.active = -1
		e.frames[len(e.frames)-1].pos++
	}
	return intensity, false
}

// selectSegment walks the cursor to the next segment, opening loop frames
// on descent and closing iterations as bodies exhaust. Returns false when
// the whole profile is spent.
func (e *Engine) selectSegment() bool {
	for len(e.frames) > 0 {
		f := &e.frames[len(e.frames)-1]
		body := e.arena[f.node].children

		if f.pos < len(body) {
			next := body[f.pos]
			if e.arena[next].isLoop {
				e.frames = append(e.frames, frame{
					node:      next,
					remaining: iterations(e.arena[next].repeat),
					iter:      1,
				})
				continue
			}
			e.active = next
			e.elapsed = 0
			return true
		}

		// Body exhausted: one iteration done.
		if f.remaining > 0 {
			f.remaining--
		}
		if f.remaining != 0 {
			f.pos = 0
			f.iter++
			continue
		}
		e.frames = e.frames[:len(e.frames)-1]
		if len(e.frames) > 0 {
			e.frames[len(e.frames)-1].pos++
		}
	}
	e.done = true
	return false
}

func iterations(repeat int) int {
	if repeat == profile.RepeatUntilStopped {
		return -1
	}
	return repeat
}

// evaluate computes one segment kind's intensity at elapsed ms. The closed
// set of kinds is dispatched here and nowhere else so the whole intensity
// computation reads as one unit.
func evaluate(n *node, elapsed int64) float64 {
	if elapsed >= n.totalMs {
		// Boundary value: ramps and steps land on their end intensity,
		// pulse trains end inside their final off window.
		switch n.kind {
		case profile.KindRamp, profile.KindStep:
			return n.endI
		case profile.KindPulse:
			return 0
		default:
			return n.startI
		}
	}

	switch n.kind {
	case profile.KindConstant:
		return n.startI

	case profile.KindRamp:
		frac := float64(elapsed) / float64(n.totalMs)
		return n.startI + (n.endI-n.startI)*frac

	case profile.KindStep:
		if elapsed < n.totalMs/2 {
			return n.startI
		}
		return n.endI

	case profile.KindPulse:
		if phase := elapsed % (n.onMs + n.offMs); phase < n.onMs {
			return n.startI
		}
		return 0

	default:
		return 0
	}
}

// SegmentPath renders the cursor position for progress displays: one
// "L<iter>/<count>" per open loop (until-stopped loops show "-" for the
// count) and "S<n>/<len>" for the innermost body, e.g. "L1/3 S2/5". Empty
// once the profile completes.
func (e *Engine) SegmentPath() string {
	if e.done || len(e.frames) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range e.frames {
		n := &e.arena[f.node]
		if i > 0 { // slot 0 is the synthetic single pass
			if n.repeat == profile.RepeatUntilStopped {
				fmt.Fprintf(&b, "L%d/- ", f.iter)
			} else {
				fmt.Fprintf(&b, "L%d/%d ", f.iter, n.repeat)
			}
		}
		if i == len(e.frames)-1 {
			pos := f.pos
			if pos >= len(n.children) {
				pos = len(n.children) - 1
			}
			fmt.Fprintf(&b, "S%d/%d", pos+1, len(n.children))
		}
	}
	return b.String()
}

// ElapsedMs returns run time consumed so far.
func (e *Engine) ElapsedMs() int64 { return e.runElapsed }

// RemainingMs returns declared run time left, or profile.Unbounded for
// manual-stop profiles.
func (e *Engine) RemainingMs() int64 {
	if e.declaredTotal == profile.Unbounded {
		return profile.Unbounded
	}
	if rem := e.declaredTotal - e.runElapsed; rem > 0 {
		return rem
	}
	return 0
}

// Done reports whether the profile has completed.
func (e *Engine) Done() bool { return e.done }
