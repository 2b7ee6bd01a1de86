package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/listenupapp/labelsync/internal/domain"
	domainerrors "github.com/listenupapp/labelsync/internal/errors"
	"github.com/listenupapp/labelsync/internal/store"
	"github.com/listenupapp/labelsync/internal/util"
)

// SharingService grants read access to labels and notes and records the
// recipients' answers. Sharing state lives only on Access Index documents.
type SharingService struct {
	store  *store.Store
	logger *slog.Logger
	clock  clock
}

// NewSharingService creates a new sharing service.
func NewSharingService(store *store.Store, logger *slog.Logger) *SharingService {
	return &SharingService{store: store, logger: logger}
}

// RecipientGrant reports what one recipient received.
type RecipientGrant struct {
	UserID string `json:"userId"`
	// Added lists ids appended as new pending references.
	Added []string `json:"added"`
	// Skipped lists ids the recipient already had in some form.
	Skipped []string `json:"skipped"`
}

// ShareResult lists the recipients whose Access Index was written, in order.
// When a share fails part way, it holds the recipients completed before the failure.
type ShareResult struct {
	Recipients []RecipientGrant `json:"recipients"`
}

// RespondResult reports which references an accept or decline touched.
type RespondResult struct {
	Updated []string `json:"updated"`
	Ignored []string `json:"ignored"`
}

// ShareLabels offers labelIDs, all owned by callerID, to each recipient.
//
// Each recipient's Access Index is updated in its own transaction that both
// checks for existing references and appends the new ones, so a concurrent
// share of the same label cannot insert it twice. Recipients are processed in
// order and the first failure stops the batch; recipients already written stay
// written and are returned alongside the error.
func (s *SharingService) ShareLabels(ctx context.Context, callerID string, labelIDs, recipientIDs []string) (*ShareResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	labelIDs, recipientIDs = dedupe(labelIDs), dedupe(recipientIDs)
	if err := checkShareInput(callerID, labelIDs, recipientIDs, "label"); err != nil {
		return nil, err
	}

	for _, labelID := range labelIDs {
		l, err := s.store.Labels.Get(ctx, labelID)
		if err != nil {
			return nil, fmt.Errorf("get label %s: %w", labelID, err)
		}
		if err := requireLabelOwner(l, callerID); err != nil {
			return nil, err
		}
	}

	res, err := s.grant(ctx, callerID, domain.KindLabel, labelIDs, recipientIDs)
	s.logger.Info("labels shared",
		"shared_by", callerID,
		"label_count", len(labelIDs),
		"recipients", len(recipientIDs),
		"completed", len(res.Recipients),
		"error", err,
	)
	return res, err
}

// ShareNotes offers noteIDs, all owned by callerID, to each recipient. It
// follows the same per-recipient policy as ShareLabels.
func (s *SharingService) ShareNotes(ctx context.Context, callerID string, noteIDs, recipientIDs []string) (*ShareResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	noteIDs, recipientIDs = dedupe(noteIDs), dedupe(recipientIDs)
	if err := checkShareInput(callerID, noteIDs, recipientIDs, "note"); err != nil {
		return nil, err
	}

	for _, noteID := range noteIDs {
		n, err := s.store.Notes.Get(ctx, noteID)
		if err != nil {
			return nil, fmt.Errorf("get note %s: %w", noteID, err)
		}
		if n.OwnerID != callerID {
			return nil, domainerrors.Forbiddenf("note %s is not owned by the caller", noteID)
		}
	}

	res, err := s.grant(ctx, callerID, domain.KindNote, noteIDs, recipientIDs)
	s.logger.Info("notes shared",
		"shared_by", callerID,
		"note_count", len(noteIDs),
		"recipients", len(recipientIDs),
		"completed", len(res.Recipients),
		"error", err,
	)
	return res, err
}

// ShareAllNotes offers every note the caller currently owns.
func (s *SharingService) ShareAllNotes(ctx context.Context, callerID string, recipientIDs []string) (*ShareResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	caller, err := s.store.Users.Get(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("get caller: %w", err)
	}
	owned, _ := domain.Partition(caller.Data.Notes)
	if len(owned) == 0 {
		return nil, domainerrors.Validation("there are no notes to share")
	}
	return s.ShareNotes(ctx, callerID, owned, recipientIDs)
}

func checkShareInput(callerID string, ids, recipientIDs []string, what string) error {
	if len(ids) == 0 {
		return domainerrors.Validationf("select at least one %s to share", what)
	}
	if len(recipientIDs) == 0 {
		return domainerrors.Validation("select at least one recipient")
	}
	for _, r := range recipientIDs {
		if r == callerID {
			return domainerrors.Validationf("you cannot share a %s with yourself", what)
		}
	}
	return nil
}

// grant appends pending shared references for ids to each recipient in turn.
// The returned result is never nil.
func (s *SharingService) grant(ctx context.Context, callerID string, kind domain.Kind, ids, recipientIDs []string) (*ShareResult, error) {
	res := &ShareResult{Recipients: []RecipientGrant{}}

	caller, err := s.store.Users.Get(ctx, callerID)
	if err != nil {
		return res, fmt.Errorf("get caller: %w", err)
	}
	byName := caller.Name()

	for _, recipientID := range recipientIDs {
		var rg RecipientGrant
		err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
			rg = RecipientGrant{UserID: recipientID, Added: []string{}, Skipped: []string{}}

			recipient, err := s.store.Users.GetTx(tx, recipientID)
			if errors.Is(err, store.ErrNotFound) {
				return domainerrors.NotFoundf("recipient %s has no account", recipientID)
			}
			if err != nil {
				return err
			}

			now := s.clock.now()
			for _, id := range ids {
				if recipient.Data.Add(kind, domain.SharedReference(id, callerID, byName, now)) {
					rg.Added = append(rg.Added, id)
				} else {
					rg.Skipped = append(rg.Skipped, id)
				}
			}
			if len(rg.Added) == 0 {
				return nil
			}
			recipient.Touch(now)
			return s.store.Users.PutTx(tx, recipientID, recipient)
		})
		if err != nil {
			return res, fmt.Errorf("share with %s: %w", recipientID, err)
		}
		res.Recipients = append(res.Recipients, rg)
	}
	return res, nil
}

// RespondToShares accepts or declines shared references on the caller's own
// Access Index in a single transaction. Accepting marks the reference active;
// declining removes it. Ids that are not shared references on the index are
// ignored. A missing Access Index fails the whole call without writing.
func (s *SharingService) RespondToShares(ctx context.Context, callerID string, referenceIDs []string, accept bool) (*RespondResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	referenceIDs = dedupe(referenceIDs)
	if len(referenceIDs) == 0 {
		return nil, domainerrors.Validation("select at least one share to respond to")
	}

	var res *RespondResult
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		res = &RespondResult{Updated: []string{}, Ignored: []string{}}

		u, err := s.store.Users.GetTx(tx, callerID)
		if err != nil {
			return err
		}

		for _, refID := range referenceIDs {
			if respond(&u.Data, domain.KindLabel, refID, accept) || respond(&u.Data, domain.KindNote, refID, accept) {
				res.Updated = append(res.Updated, refID)
			} else {
				res.Ignored = append(res.Ignored, refID)
			}
		}
		if len(res.Updated) == 0 {
			return nil
		}
		u.Touch(s.clock.now())
		return s.store.Users.PutTx(tx, callerID, u)
	})
	if err != nil {
		return nil, fmt.Errorf("respond to shares: %w", err)
	}

	s.logger.Info("shares answered",
		"user_id", callerID,
		"accept", accept,
		"updated", len(res.Updated),
		"ignored", len(res.Ignored),
	)
	return res, nil
}

// respond applies one answer to the shared reference id in the kind list.
// Declined references are terminal and cannot be accepted.
func respond(d *domain.AccessLists, kind domain.Kind, id string, accept bool) bool {
	list := d.List(kind)
	for i, ref := range *list {
		if ref.ID != id {
			continue
		}
		a, shared := ref.Acceptance()
		if !shared {
			return false
		}
		if !accept {
			return d.Remove(kind, id)
		}
		if a == domain.AcceptanceDeclined {
			return false
		}
		g := *ref.Grant
		g.Acceptance = domain.AcceptanceActive
		(*list)[i].Grant = &g
		return true
	}
	return false
}

// ResolveRecipients maps emails to user ids through the email index. An
// unknown email fails the whole lookup.
func (s *SharingService) ResolveRecipients(ctx context.Context, emails []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(emails))
	for _, email := range dedupe(emails) {
		email = util.NormalizeEmail(email)
		if err := validate.Var("email", email, "email"); err != nil {
			return nil, err
		}
		u, err := s.store.UserByEmail(ctx, email)
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("no user with email %s", email)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", email, err)
		}
		ids = append(ids, u.ID)
	}
	return dedupe(ids), nil
}
