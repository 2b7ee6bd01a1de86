package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/listenupapp/labelsync/internal/color"
	"github.com/listenupapp/labelsync/internal/domain"
	domainerrors "github.com/listenupapp/labelsync/internal/errors"
	"github.com/listenupapp/labelsync/internal/id"
	"github.com/listenupapp/labelsync/internal/store"
	"github.com/listenupapp/labelsync/internal/util"
)

// LabelService manages labels and their members.
type LabelService struct {
	store    *store.Store
	profiles *ProfileService
	logger   *slog.Logger
	clock    clock
}

// NewLabelService creates a new label service.
func NewLabelService(store *store.Store, profiles *ProfileService, logger *slog.Logger) *LabelService {
	return &LabelService{store: store, profiles: profiles, logger: logger}
}

// CreateLabelRequest names a new label. Color defaults to a colour derived from the label id.
type CreateLabelRequest struct {
	Name  string `json:"name" validate:"nonblank,max=64"`
	Color string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// UpdateLabelRequest renames or recolours a label. Nil fields are left alone.
type UpdateLabelRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,nonblank,max=64"`
	Color *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// CreateLabel writes a new label owned by ownerID together with the owned
// reference on the owner's Access Index, in one transaction. Label names are
// stored upper-cased.
func (s *LabelService) CreateLabel(ctx context.Context, ownerID string, req CreateLabelRequest) (*domain.Label, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	now := s.clock.now()
	labelID, err := id.Label(now)
	if err != nil {
		return nil, fmt.Errorf("generate label id: %w", err)
	}
	label := &domain.Label{
		ID:               labelID,
		Name:             util.NormalizeLabelName(req.Name),
		Color:            req.Color,
		OwnerID:          ownerID,
		MemberProfileIDs: []string{},
		LastUpdated:      now,
	}
	if label.Color == "" {
		label.Color = color.ForProfile(labelID)
	}

	err = s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		owner, err := s.store.Users.GetTx(tx, ownerID)
		if err != nil {
			return fmt.Errorf("get owner: %w", err)
		}
		if err := s.store.Labels.CreateTx(tx, labelID, label); err != nil {
			return err
		}
		owner.Data.Add(domain.KindLabel, domain.OwnedReference(labelID))
		owner.Touch(now)
		return s.store.Users.PutTx(tx, ownerID, owner)
	})
	if err != nil {
		return nil, fmt.Errorf("create label: %w", err)
	}

	s.logger.Info("label created", "label_id", labelID, "owner_id", ownerID)
	return label, nil
}

// UpdateLabel renames or recolours a label. Only the owner may do so.
func (s *LabelService) UpdateLabel(ctx context.Context, ownerID, labelID string, req UpdateLabelRequest) (*domain.Label, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	label, err := s.store.Labels.Mutate(ctx, labelID, func(l *domain.Label) error {
		if err := requireLabelOwner(l, ownerID); err != nil {
			return err
		}
		if req.Name != nil {
			l.Name = util.NormalizeLabelName(*req.Name)
		}
		if req.Color != nil {
			l.Color = *req.Color
		}
		l.LastUpdated = s.clock.now()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update label: %w", err)
	}
	return label, nil
}

// AddProfile upserts the profile described by in and adds it to the label's
// members. Adding an existing member only refreshes the profile.
func (s *LabelService) AddProfile(ctx context.Context, ownerID, labelID string, in ProfileInput) (*domain.Label, *domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := validate.Validate(in); err != nil {
		return nil, nil, err
	}

	var (
		label   *domain.Label
		profile *domain.Profile
	)
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		l, err := s.store.Labels.GetTx(tx, labelID)
		if err != nil {
			return err
		}
		if err := requireLabelOwner(l, ownerID); err != nil {
			return err
		}

		p, err := s.profiles.upsertTx(tx, in)
		if err != nil {
			return err
		}
		label, profile = l, p

		if !l.AddMember(p.ID) {
			return nil
		}
		l.LastUpdated = s.clock.now()
		return s.store.Labels.PutTx(tx, labelID, l)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("add profile to label: %w", err)
	}

	s.logger.Debug("profile added to label", "label_id", labelID, "profile_id", profile.ID)
	return label, profile, nil
}

// RemoveProfile drops profileID from the label's members. Removing a
// non-member is not an error.
func (s *LabelService) RemoveProfile(ctx context.Context, ownerID, labelID, profileID string) (*domain.Label, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	label, err := s.store.Labels.Mutate(ctx, labelID, func(l *domain.Label) error {
		if err := requireLabelOwner(l, ownerID); err != nil {
			return err
		}
		if l.RemoveMember(profileID) {
			l.LastUpdated = s.clock.now()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("remove profile from label: %w", err)
	}
	return label, nil
}

// DeleteLabel removes the label document and the owner's reference to it.
// Recipients keep their shared references; their readers drop the label as
// missing.
func (s *LabelService) DeleteLabel(ctx context.Context, ownerID, labelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		l, err := s.store.Labels.GetTx(tx, labelID)
		if err != nil {
			return err
		}
		if err := requireLabelOwner(l, ownerID); err != nil {
			return err
		}
		if err := s.store.Labels.DeleteTx(tx, labelID); err != nil {
			return err
		}

		return removeOwnedRef(s.store, tx, ownerID, domain.KindLabel, labelID, s.clock)
	})
	if err != nil {
		return fmt.Errorf("delete label: %w", err)
	}

	s.logger.Info("label deleted", "label_id", labelID, "owner_id", ownerID)
	return nil
}

func requireLabelOwner(l *domain.Label, callerID string) error {
	if l.OwnerID != callerID {
		return domainerrors.Forbiddenf("label %s is not owned by the caller", l.ID)
	}
	return nil
}
