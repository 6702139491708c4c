package service

import (
	"context"
	"time"

	"uvchamber/internal/control"
	"uvchamber/internal/metrics"
)

// Runner drives the controller tick loop. It is the only goroutine calling
// Tick; HTTP commands serialize against it on the controller's own mutex.
type Runner struct {
	ctrl *control.Controller
	met  *metrics.Chamber
}

// NewRunner returns a runner. met may be nil when metrics are disabled.
func NewRunner(ctrl *control.Controller, met *metrics.Chamber) *Runner {
	return &Runner{ctrl: ctrl, met: met}
}

// Run ticks at the given interval until ctx is canceled. One tick runs
// immediately so the interlock is polled before the first period elapses.
// On the way out any active run is stopped, which forces the panel dark.
func (r *Runner) Run(ctx context.Context, tick time.Duration) {
	r.ctrl.Tick()

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = r.ctrl.Stop()
			return
		case <-t.C:
			started := time.Now()
			r.ctrl.Tick()
			if r.met != nil {
				r.met.TickDuration.Observe(time.Since(started).Seconds())
				r.observe()
			}
		}
	}
}

var runStates = []control.SystemState{
	control.StateIdle,
	control.StateRunning,
	control.StatePaused,
	control.StateFault,
}

func (r *Runner) observe() {
	st := r.ctrl.Status()
	r.met.Intensity.Set(st.Intensity)
	r.met.DoseMJ.Set(st.DoseMJ)
	for _, s := range runStates {
		v := 0.0
		if s == st.State {
			v = 1
		}
		r.met.State.WithLabelValues(string(s)).Set(v)
	}
}
