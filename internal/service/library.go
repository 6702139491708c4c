package service

import (
	"context"
	"errors"
	"fmt"

	"uvchamber/internal/models"
	"uvchamber/internal/profile"
	"uvchamber/internal/repository"
)

// ErrBadDocument marks an import payload that failed to decode, as opposed
// to one that decoded but broke a profile rule.
var ErrBadDocument = errors.New("bad profile document")

// LibraryService manages the persisted profile store. Saving under a taken
// name overwrites; an empty name gets the next free auto-name.
type LibraryService struct {
	profiles repository.ProfileRepo
}

func NewLibraryService(profiles repository.ProfileRepo) *LibraryService {
	return &LibraryService{profiles: profiles}
}

var _ Library = (*LibraryService)(nil)

// Save validates and stores the profile, returning it with the final name.
func (s *LibraryService) Save(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if p.Name == "" {
		name, err := s.nextFreeName(ctx)
		if err != nil {
			return profile.Profile{}, err
		}
		p.Name = name
	}
	if err := profile.Validate(&p); err != nil {
		return profile.Profile{}, err
	}
	if err := s.profiles.Save(ctx, p); err != nil {
		return profile.Profile{}, fmt.Errorf("save profile %q: %w", p.Name, err)
	}
	return p, nil
}

func (s *LibraryService) Get(ctx context.Context, name string) (profile.Profile, error) {
	return s.profiles.Get(ctx, name)
}

func (s *LibraryService) List(ctx context.Context) ([]models.ProfileSummary, error) {
	return s.profiles.List(ctx)
}

func (s *LibraryService) Delete(ctx context.Context, name string) error {
	return s.profiles.Delete(ctx, name)
}

// Import decodes a YAML profile document, validates it and stores it.
func (s *LibraryService) Import(ctx context.Context, doc []byte) (profile.Profile, error) {
	p, err := profile.DecodeDocument(doc)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	return s.Save(ctx, *p)
}

// Export fetches a stored profile and renders its YAML document.
func (s *LibraryService) Export(ctx context.Context, name string) ([]byte, error) {
	p, err := s.profiles.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return profile.EncodeDocument(&p)
}

// nextFreeName picks the first "P-NN" not in the store.
func (s *LibraryService) nextFreeName(ctx context.Context) (string, error) {
	taken, err := s.profiles.Names(ctx)
	if err != nil {
		return "", fmt.Errorf("list profile names: %w", err)
	}
	return profile.NextFreeName(taken), nil
}
