package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/listenupapp/labelsync/internal/domain"
	domainerrors "github.com/listenupapp/labelsync/internal/errors"
	"github.com/listenupapp/labelsync/internal/id"
	"github.com/listenupapp/labelsync/internal/store"
)

// TemplateService manages message templates.
type TemplateService struct {
	store  *store.Store
	logger *slog.Logger
	clock  clock
}

// NewTemplateService creates a new template service.
func NewTemplateService(store *store.Store, logger *slog.Logger) *TemplateService {
	return &TemplateService{store: store, logger: logger}
}

// CreateTemplateRequest is a reusable message.
type CreateTemplateRequest struct {
	Title string `json:"title" validate:"nonblank,max=128"`
	Body  string `json:"body" validate:"max=20000"`
}

// CreateTemplate writes a template and the owned reference under the owner's templates.
func (s *TemplateService) CreateTemplate(ctx context.Context, ownerID string, req CreateTemplateRequest) (*domain.MessageTemplate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	now := s.clock.now()
	templateID, err := id.Template(now)
	if err != nil {
		return nil, fmt.Errorf("generate template id: %w", err)
	}
	tmpl := &domain.MessageTemplate{
		ID:          templateID,
		Title:       req.Title,
		Body:        req.Body,
		OwnerID:     ownerID,
		LastUpdated: now,
	}

	err = s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		owner, err := s.store.Users.GetTx(tx, ownerID)
		if err != nil {
			return fmt.Errorf("get owner: %w", err)
		}
		if err := s.store.Templates.CreateTx(tx, templateID, tmpl); err != nil {
			return err
		}
		owner.Data.Add(domain.KindTemplate, domain.OwnedReference(templateID))
		owner.Touch(now)
		return s.store.Users.PutTx(tx, ownerID, owner)
	})
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return tmpl, nil
}

// DeleteTemplate removes a template and the owner's reference to it.
func (s *TemplateService) DeleteTemplate(ctx context.Context, ownerID, templateID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		t, err := s.store.Templates.GetTx(tx, templateID)
		if err != nil {
			return err
		}
		if t.OwnerID != ownerID {
			return domainerrors.Forbiddenf("template %s is not owned by the caller", templateID)
		}
		if err := s.store.Templates.DeleteTx(tx, templateID); err != nil {
			return err
		}
		return removeOwnedRef(s.store, tx, ownerID, domain.KindTemplate, templateID, s.clock)
	})
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}
