package api

import (
	"context"
	"errors"
	"math"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/listenupapp/labelsync/internal/errors"
	"github.com/listenupapp/labelsync/internal/service"
)

func (s *Server) registerShareRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "shareLabels",
		Method:      http.MethodPost,
		Path:        "/api/v1/shares/labels",
		Summary:     "Share labels",
		Description: "Offers labels the caller owns to other users by email. Recipients see them as pending until they accept.",
		Tags:        []string{"Sharing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleShareLabels)

	huma.Register(s.api, huma.Operation{
		OperationID: "shareNotes",
		Method:      http.MethodPost,
		Path:        "/api/v1/shares/notes",
		Summary:     "Share notes",
		Description: "Offers selected notes, or every note with all=true, to other users by email",
		Tags:        []string{"Sharing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleShareNotes)

	huma.Register(s.api, huma.Operation{
		OperationID: "respondToShares",
		Method:      http.MethodPost,
		Path:        "/api/v1/shares/respond",
		Summary:     "Accept or decline shares",
		Description: "Marks pending shared references as accepted or declined",
		Tags:        []string{"Sharing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRespondToShares)
}

// === DTOs ===

// ShareLabelsRequest is the request body for sharing labels.
type ShareLabelsRequest struct {
	LabelIDs   []string `json:"labelIds" minItems:"1" doc:"Labels to share"`
	Recipients []string `json:"recipients" minItems:"1" doc:"Recipient emails"`
}

// ShareLabelsInput wraps the share labels request for Huma.
type ShareLabelsInput struct {
	Authorization string `header:"Authorization"`
	Body          ShareLabelsRequest
}

// ShareNotesRequest is the request body for sharing notes.
type ShareNotesRequest struct {
	NoteIDs    []string `json:"noteIds,omitempty" doc:"Notes to share; ignored when all is set"`
	All        bool     `json:"all,omitempty" doc:"Share every note the caller owns"`
	Recipients []string `json:"recipients" minItems:"1" doc:"Recipient emails"`
}

// ShareNotesInput wraps the share notes request for Huma.
type ShareNotesInput struct {
	Authorization string `header:"Authorization"`
	Body          ShareNotesRequest
}

// ShareOutput wraps the per-recipient share result for Huma.
type ShareOutput struct {
	Body service.ShareResult
}

// RespondRequest is the request body for accepting or declining shares.
type RespondRequest struct {
	ReferenceIDs []string `json:"referenceIds" minItems:"1" doc:"Shared label or note IDs"`
	Accept       bool     `json:"accept" doc:"true accepts, false declines"`
}

// RespondInput wraps the respond request for Huma.
type RespondInput struct {
	Authorization string `header:"Authorization"`
	Body          RespondRequest
}

// RespondOutput wraps the respond result for Huma.
type RespondOutput struct {
	Body service.RespondResult
}

func (s *Server) handleShareLabels(ctx context.Context, input *ShareLabelsInput) (*ShareOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	recipients, err := s.prepareShare(ctx, userID, input.Body.Recipients)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Sharing.ShareLabels(ctx, userID, input.Body.LabelIDs, recipients)
	if err != nil {
		return nil, shareError(err, res)
	}
	return &ShareOutput{Body: *res}, nil
}

func (s *Server) handleShareNotes(ctx context.Context, input *ShareNotesInput) (*ShareOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if !input.Body.All && len(input.Body.NoteIDs) == 0 {
		return nil, domainerrors.Validation("noteIds is required unless all is set")
	}
	recipients, err := s.prepareShare(ctx, userID, input.Body.Recipients)
	if err != nil {
		return nil, err
	}

	var res *service.ShareResult
	if input.Body.All {
		res, err = s.services.Sharing.ShareAllNotes(ctx, userID, recipients)
	} else {
		res, err = s.services.Sharing.ShareNotes(ctx, userID, input.Body.NoteIDs, recipients)
	}
	if err != nil {
		return nil, shareError(err, res)
	}
	return &ShareOutput{Body: *res}, nil
}

func (s *Server) handleRespondToShares(ctx context.Context, input *RespondInput) (*RespondOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Sharing.RespondToShares(ctx, userID, input.Body.ReferenceIDs, input.Body.Accept)
	if err != nil {
		return nil, err
	}
	return &RespondOutput{Body: *res}, nil
}

// prepareShare applies the per-user share rate limit and the recipient cap,
// then resolves recipient emails to user ids.
func (s *Server) prepareShare(ctx context.Context, userID string, emails []string) ([]string, error) {
	if ok, retryAfter := s.shareLimiter.Allow(userID); !ok {
		s.logger.Warn("share rate limit exceeded", "user_id", userID, "retry_after", retryAfter)
		return nil, domainerrors.RateLimited("too many share requests, try again later").
			WithDetails(map[string]int{"retryAfterSeconds": int(math.Ceil(retryAfter.Seconds()))})
	}

	if s.maxRecipients > 0 && len(emails) > s.maxRecipients {
		return nil, domainerrors.Validationf("at most %d recipients per share", s.maxRecipients)
	}

	return s.services.Sharing.ResolveRecipients(ctx, emails)
}

// shareError attaches the recipients granted before a share stopped, so the
// caller knows which Access Indexes were already written.
func shareError(err error, res *service.ShareResult) error {
	if res == nil || len(res.Recipients) == 0 {
		return err
	}
	details := map[string]any{"granted": res.Recipients}

	var de *domainerrors.Error
	if errors.As(err, &de) {
		return de.WithDetails(details)
	}
	return domainerrors.Wrap(err, domainerrors.CodeInternal, "share stopped after a partial grant").WithDetails(details)
}
