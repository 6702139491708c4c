package service

import (
	"context"
	"fmt"
	"strings"

	"uvchamber/internal/control"
	"uvchamber/internal/profile"
	"uvchamber/internal/repository"
)

// ChamberService is the thin command surface over the control kernel. The
// kernel owns all run state and refuses transitions itself; this layer only
// normalizes inputs and resolves library profiles.
type ChamberService struct {
	ctrl     *control.Controller
	profiles repository.ProfileRepo
	defaults StandardDefaults
}

func NewChamberService(ctrl *control.Controller, profiles repository.ProfileRepo, defaults StandardDefaults) *ChamberService {
	return &ChamberService{ctrl: ctrl, profiles: profiles, defaults: defaults}
}

var _ Chamber = (*ChamberService)(nil)

// SelectMode switches between STANDARD and CUSTOM runs. Unknown strings are
// refused by the kernel with an invalid_mode reject.
func (s *ChamberService) SelectMode(ctx context.Context, mode string) error {
	m := control.Mode(strings.ToUpper(strings.TrimSpace(mode)))
	return s.ctrl.SelectMode(m)
}

// LoadProfile stages a custom profile for the next run.
func (s *ChamberService) LoadProfile(ctx context.Context, p profile.Profile) error {
	return s.ctrl.LoadProfile(&p)
}

// LoadProfileByName fetches a stored profile and stages it.
func (s *ChamberService) LoadProfileByName(ctx context.Context, name string) error {
	p, err := s.profiles.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	return s.ctrl.LoadProfile(&p)
}

// Start begins the staged custom profile run.
func (s *ChamberService) Start(ctx context.Context) error {
	return s.ctrl.Start()
}

// StartStandard begins a fixed time-and-intensity run. Zero params fall
// back to the configured defaults.
func (s *ChamberService) StartStandard(ctx context.Context, params StandardParams) error {
	durationMs := params.DurationMs
	if durationMs == 0 {
		durationMs = s.defaults.DurationMs
	}
	intensity := params.IntensityPct
	if intensity == 0 {
		intensity = s.defaults.IntensityPct
	}
	return s.ctrl.StartStandard(durationMs, intensity)
}

func (s *ChamberService) Pause(ctx context.Context) error {
	return s.ctrl.Pause()
}

func (s *ChamberService) Resume(ctx context.Context) error {
	return s.ctrl.Resume()
}

func (s *ChamberService) Stop(ctx context.Context) error {
	return s.ctrl.Stop()
}

func (s *ChamberService) AcknowledgeFault(ctx context.Context) error {
	return s.ctrl.AcknowledgeFault()
}
