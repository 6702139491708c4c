package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"uvchamber/internal/models"
	"uvchamber/internal/repository"
)

var errInvalidTimeRange = errors.New("invalid time range: From must be <= To")

// EventLogService answers history queries from the chamber event store.
type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var _ EventLog = (*EventLogService)(nil)

// normalized returns the filter with both bounds in UTC and the type in its
// stored uppercase form. Zero bounds stay zero, meaning unbounded.
func (f LogFilter) normalized() (LogFilter, error) {
	out := LogFilter{
		From: utcOrZero(f.From),
		To:   utcOrZero(f.To),
		Type: strings.ToUpper(strings.TrimSpace(f.Type)),
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return LogFilter{}, errInvalidTimeRange
	}
	return out, nil
}

func utcOrZero(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// List returns history entries matching the filter, oldest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.ChamberEvent, error) {
	nf, err := f.normalized()
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, nf.From, nf.To, nf.Type)
}
