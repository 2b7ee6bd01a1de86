package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/listenupapp/labelsync/internal/color"
	"github.com/listenupapp/labelsync/internal/domain"
	domainerrors "github.com/listenupapp/labelsync/internal/errors"
	"github.com/listenupapp/labelsync/internal/search"
	"github.com/listenupapp/labelsync/internal/store"
	"github.com/listenupapp/labelsync/internal/util"
)

// ProfileInput describes an external profile as scraped by the client.
type ProfileInput struct {
	URL   string `json:"url" validate:"required,profileurl"`
	Name  string `json:"name" validate:"max=256"`
	Image string `json:"image,omitempty" validate:"omitempty,url"`
}

// ProfileService caches external profiles and serves profile search.
type ProfileService struct {
	store  *store.Store
	index  *search.ProfileIndex
	logger *slog.Logger
	clock  clock
}

// NewProfileService creates a new profile service. index may be nil, in which
// case Search reports the index as unavailable.
func NewProfileService(store *store.Store, index *search.ProfileIndex, logger *slog.Logger) *ProfileService {
	return &ProfileService{store: store, index: index, logger: logger}
}

// Upsert creates the profile identified by in.URL on first sight and refreshes
// its name and image when they change. The stored profile is returned.
func (s *ProfileService) Upsert(ctx context.Context, in ProfileInput) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate.Validate(in); err != nil {
		return nil, err
	}

	var out *domain.Profile
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		p, err := s.upsertTx(tx, in)
		out = p
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return out, nil
}

// upsertTx is Upsert inside an existing transaction. in must be validated.
func (s *ProfileService) upsertTx(tx *store.Tx, in ProfileInput) (*domain.Profile, error) {
	profileID, err := util.ProfileIDFromURL(in.URL)
	if err != nil {
		return nil, domainerrors.Validationf("cannot derive a profile id from %q", in.URL)
	}
	now := s.clock.now()

	p, err := s.store.Profiles.GetTx(tx, profileID)
	if errors.Is(err, store.ErrNotFound) {
		p = newProfile(profileID, in, now)
		if err := s.store.Profiles.CreateTx(tx, profileID, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	if err != nil {
		return nil, err
	}

	if !refreshProfile(p, in) {
		return p, nil
	}
	p.LastUpdated = now
	if err := s.store.Profiles.PutTx(tx, profileID, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a cached profile.
func (s *ProfileService) Get(ctx context.Context, profileID string) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.store.Profiles.Get(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", profileID, err)
	}
	return p, nil
}

// Search finds cached profiles by name or id.
func (s *ProfileService) Search(ctx context.Context, query string, limit int) (*search.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.index == nil {
		return nil, domainerrors.Internal("profile search is not available")
	}
	res, err := s.index.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	return res, nil
}

func newProfile(profileID string, in ProfileInput, now time.Time) *domain.Profile {
	p := &domain.Profile{
		ID:          profileID,
		Name:        in.Name,
		URL:         in.URL,
		LastUpdated: now,
	}
	code := color.AvatarCode(profileID, in.Name)
	p.AvatarCode = &code
	if in.Image != "" {
		img := in.Image
		p.Image = &img
	}
	return p
}

// refreshProfile copies changed, non-empty fields of in onto p.
func refreshProfile(p *domain.Profile, in ProfileInput) bool {
	changed := false
	if in.Name != "" && in.Name != p.Name {
		p.Name = in.Name
		code := color.AvatarCode(p.ID, in.Name)
		p.AvatarCode = &code
		changed = true
	}
	if p.URL == "" && in.URL != "" {
		p.URL = in.URL
		changed = true
	}
	if in.Image != "" && (p.Image == nil || *p.Image != in.Image) {
		img := in.Image
		p.Image = &img
		changed = true
	}
	return changed
}
