package service

import (
	"context"
	"time"

	"uvchamber/internal/control"
	"uvchamber/internal/hal"
	"uvchamber/internal/logger"
	"uvchamber/internal/metrics"
	"uvchamber/internal/models"
	"uvchamber/internal/repository"
)

const appendTimeout = 2 * time.Second

// Recorder fans controller events out to the event log, the annunciator
// and metrics. It runs on the emitting goroutine after the controller lock
// is released, so slow sinks never stall a tick mid-update.
type Recorder struct {
	events repository.EventRepo
	ann    hal.Annunciator
	met    *metrics.Chamber
	log    *logger.Logger
}

// NewRecorder wires the fan-out. ann and met may be nil.
func NewRecorder(events repository.EventRepo, ann hal.Annunciator, met *metrics.Chamber, log *logger.Logger) *Recorder {
	if ann == nil {
		ann = hal.SilentAnnunciator{}
	}
	return &Recorder{events: events, ann: ann, met: met, log: log}
}

// Sink adapts the recorder to the controller's event callback.
func (r *Recorder) Sink() control.EventSink {
	return func(evs []control.Event) {
		for _, ev := range evs {
			r.record(ev)
		}
	}
}

func (r *Recorder) record(ev control.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	err := r.events.Append(ctx, models.ChamberEvent{
		Type:        ev.Type,
		Description: ev.Message,
		Metadata:    map[string]any{"at_ms": ev.AtMs},
	})
	if err != nil {
		r.log.Errorw("event_append_failed", "type", ev.Type, "err", err)
	}

	if r.met != nil {
		r.met.Events.WithLabelValues(ev.Type).Inc()
		switch ev.Type {
		case models.EventInterlockOpen:
			r.met.InterlockTransitions.WithLabelValues("open").Inc()
		case models.EventInterlockClosed:
			r.met.InterlockTransitions.WithLabelValues("closed").Inc()
		}
	}

	if p, ok := patternFor(ev.Type); ok {
		if err := r.ann.Play(p); err != nil {
			r.log.Warnw("annunciator_failed", "pattern", p, "err", err)
		}
	}
}

// patternFor maps lifecycle events to buzzer patterns: a start melody, the
// triple done beep, the alarm on faults and lid openings, and a short
// confirm chirp for accepted user commands.
func patternFor(eventType string) (hal.Pattern, bool) {
	switch eventType {
	case models.EventStart:
		return hal.PatternStart, true
	case models.EventComplete:
		return hal.PatternDone, true
	case models.EventFault, models.EventInterlockOpen:
		return hal.PatternAlarm, true
	case models.EventStop, models.EventPause, models.EventResume, models.EventFaultAck:
		return hal.PatternConfirm, true
	}
	return "", false
}
