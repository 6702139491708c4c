package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"uvchamber/internal/models"
	"uvchamber/internal/profile"
)

// ErrNotFound reports a lookup for a profile name that is not in the library.
var ErrNotFound = errors.New("not found")

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

type ProfileRepo interface {
	Save(ctx context.Context, p profile.Profile) error
	Get(ctx context.Context, name string) (profile.Profile, error)
	List(ctx context.Context) ([]models.ProfileSummary, error)
	Delete(ctx context.Context, name string) error
	Names(ctx context.Context) ([]string, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.ChamberEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.ChamberEvent, error)
}

type Repository struct {
	ProfileRepo ProfileRepo
	EventRepo   EventRepo
	Auth        Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		ProfileRepo: NewProfileSQLite(db),
		EventRepo:   NewEventSQLite(db),
		Auth:        NewUserRepository(db),
	}
}
