package service

import (
	"context"

	"uvchamber/internal/control"
	"uvchamber/internal/models"
	"uvchamber/internal/profile"
	"uvchamber/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Chamber exposes run control: mode selection, profile loading and the run
// lifecycle. Refusals surface as *control.Reject.
type Chamber interface {
	SelectMode(ctx context.Context, mode string) error
	LoadProfile(ctx context.Context, p profile.Profile) error
	LoadProfileByName(ctx context.Context, name string) error
	Start(ctx context.Context) error
	StartStandard(ctx context.Context, params StandardParams) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	AcknowledgeFault(ctx context.Context) error
}

// Library is the persisted profile store plus YAML import/export.
type Library interface {
	Save(ctx context.Context, p profile.Profile) (profile.Profile, error)
	Get(ctx context.Context, name string) (profile.Profile, error)
	List(ctx context.Context) ([]models.ProfileSummary, error)
	Delete(ctx context.Context, name string) error
	Import(ctx context.Context, doc []byte) (profile.Profile, error)
	Export(ctx context.Context, name string) ([]byte, error)
}

// Monitoring exposes the live status snapshot.
type Monitoring interface {
	Status(ctx context.Context) (control.Status, error)
}

// EventLog exposes the append-only history with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ChamberEvent, error)
}

//
// Root Service aggregates all sub-services.
//

type Service struct {
	Chamber
	Library
	Monitoring
	EventLog
	Authorization
}

// Deps carries everything the sub-services need: the control kernel, the
// repositories and the config-driven knobs.
type Deps struct {
	Controller *control.Controller
	Repos      *repository.Repository
	Standard   StandardDefaults
	Auth       AuthConfig
}

func NewService(d Deps) *Service {
	return &Service{
		Chamber:       NewChamberService(d.Controller, d.Repos.ProfileRepo, d.Standard),
		Library:       NewLibraryService(d.Repos.ProfileRepo),
		Monitoring:    NewMonitoringService(d.Controller),
		EventLog:      NewEventLogService(d.Repos.EventRepo),
		Authorization: NewAuthService(d.Repos.Auth, d.Auth),
	}
}
