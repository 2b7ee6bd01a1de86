package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/listenupapp/labelsync/internal/domain"
	"github.com/listenupapp/labelsync/internal/store"
)

// UserService manages Access Index documents.
type UserService struct {
	store  *store.Store
	logger *slog.Logger
	clock  clock
}

// NewUserService creates a new user service.
func NewUserService(store *store.Store, logger *slog.Logger) *UserService {
	return &UserService{store: store, logger: logger}
}

// EnsureUserRequest identifies the caller on first contact.
type EnsureUserRequest struct {
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	DisplayName string `json:"displayName,omitempty" validate:"max=128"`
}

// EnsureUser returns the caller's Access Index, creating an empty one on
// first sight. A changed email or display name is written back.
func (s *UserService) EnsureUser(ctx context.Context, userID string, req EnsureUserRequest) (*domain.UserAccess, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	var (
		out     *domain.UserAccess
		created bool
	)
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		now := s.clock.now()
		u, err := s.store.Users.GetTx(tx, userID)
		if errors.Is(err, store.ErrNotFound) {
			out = domain.NewUserAccess(userID, req.Email, req.DisplayName, now)
			created = true
			return s.store.Users.CreateTx(tx, userID, out)
		}
		if err != nil {
			return err
		}

		changed := false
		if req.Email != "" && req.Email != u.Email {
			u.Email = req.Email
			changed = true
		}
		if req.DisplayName != "" && req.DisplayName != u.DisplayName {
			u.DisplayName = req.DisplayName
			changed = true
		}
		out, created = u, false
		if !changed {
			return nil
		}
		u.Touch(now)
		return s.store.Users.PutTx(tx, userID, u)
	})
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	if created {
		s.logger.Info("access index created", "user_id", userID)
	}
	return out, nil
}

// GetUser returns a user's Access Index.
func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.UserAccess, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return u, nil
}

// UpdateSettingsRequest changes client preferences. Empty fields are left alone.
type UpdateSettingsRequest struct {
	Theme   string `json:"theme,omitempty" validate:"omitempty,oneof=light dark"`
	Locale  string `json:"locale,omitempty" validate:"omitempty,min=2,max=16"`
	SheetID string `json:"sheetId,omitempty" validate:"max=256"`
}

// UpdateSettings applies req to the caller's settings.
func (s *UserService) UpdateSettings(ctx context.Context, userID string, req UpdateSettingsRequest) (*domain.UserAccess, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	u, err := s.store.Users.Mutate(ctx, userID, func(u *domain.UserAccess) error {
		if req.Theme != "" {
			u.Settings.Theme = req.Theme
		}
		if req.Locale != "" {
			u.Settings.Locale = req.Locale
		}
		if req.SheetID != "" {
			u.Settings.SheetID = req.SheetID
		}
		u.Touch(s.clock.now())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return u, nil
}
