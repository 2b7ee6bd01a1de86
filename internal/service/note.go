package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/listenupapp/labelsync/internal/domain"
	domainerrors "github.com/listenupapp/labelsync/internal/errors"
	"github.com/listenupapp/labelsync/internal/id"
	"github.com/listenupapp/labelsync/internal/store"
)

// NoteService manages notes.
type NoteService struct {
	store    *store.Store
	profiles *ProfileService
	logger   *slog.Logger
	clock    clock
}

// NewNoteService creates a new note service.
func NewNoteService(store *store.Store, profiles *ProfileService, logger *slog.Logger) *NoteService {
	return &NoteService{store: store, profiles: profiles, logger: logger}
}

// CreateNoteRequest attaches text to a profile.
type CreateNoteRequest struct {
	Profile ProfileInput `json:"profile"`
	Content string       `json:"content" validate:"max=20000"`
}

// CreateNote upserts the note's profile and writes the note with an owned
// reference on the owner's Access Index, in one transaction.
func (s *NoteService) CreateNote(ctx context.Context, ownerID string, req CreateNoteRequest) (*domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	now := s.clock.now()
	noteID, err := id.Note(now)
	if err != nil {
		return nil, fmt.Errorf("generate note id: %w", err)
	}

	var note *domain.Note
	err = s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		owner, err := s.store.Users.GetTx(tx, ownerID)
		if err != nil {
			return fmt.Errorf("get owner: %w", err)
		}
		p, err := s.profiles.upsertTx(tx, req.Profile)
		if err != nil {
			return err
		}

		note = &domain.Note{
			ID:          noteID,
			Content:     req.Content,
			OwnerID:     ownerID,
			ProfileID:   p.ID,
			LastUpdated: now,
		}
		if err := s.store.Notes.CreateTx(tx, noteID, note); err != nil {
			return err
		}
		owner.Data.Add(domain.KindNote, domain.OwnedReference(noteID))
		owner.Touch(now)
		return s.store.Users.PutTx(tx, ownerID, owner)
	})
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	s.logger.Info("note created", "note_id", noteID, "owner_id", ownerID, "profile_id", note.ProfileID)
	return note, nil
}

// UpdateNote replaces a note's content. Only the owner may do so.
func (s *NoteService) UpdateNote(ctx context.Context, ownerID, noteID, content string) (*domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate.Var("content", content, "max=20000"); err != nil {
		return nil, err
	}

	note, err := s.store.Notes.Mutate(ctx, noteID, func(n *domain.Note) error {
		if n.OwnerID != ownerID {
			return domainerrors.Forbiddenf("note %s is not owned by the caller", noteID)
		}
		n.Content = content
		n.LastUpdated = s.clock.now()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return note, nil
}

// DeleteNote removes the note and the owner's reference to it.
func (s *NoteService) DeleteNote(ctx context.Context, ownerID, noteID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		n, err := s.store.Notes.GetTx(tx, noteID)
		if err != nil {
			return err
		}
		if n.OwnerID != ownerID {
			return domainerrors.Forbiddenf("note %s is not owned by the caller", noteID)
		}
		if err := s.store.Notes.DeleteTx(tx, noteID); err != nil {
			return err
		}
		return removeOwnedRef(s.store, tx, ownerID, domain.KindNote, noteID, s.clock)
	})
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	s.logger.Info("note deleted", "note_id", noteID, "owner_id", ownerID)
	return nil
}

// removeOwnedRef drops id from the kind list of userID's Access Index, if both exist.
func removeOwnedRef(st *store.Store, tx *store.Tx, userID string, kind domain.Kind, id string, c clock) error {
	u, err := st.Users.GetTx(tx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !u.Data.Remove(kind, id) {
		return nil
	}
	u.Touch(c.now())
	return st.Users.PutTx(tx, userID, u)
}
