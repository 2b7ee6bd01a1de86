package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/labelsync/internal/domain"
	"github.com/listenupapp/labelsync/internal/service"
)

func (s *Server) registerNoteRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createNote",
		Method:        http.MethodPost,
		Path:          "/api/v1/notes",
		Summary:       "Create note",
		Description:   "Creates a note about a profile",
		Tags:          []string{"Notes"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "getNote",
		Method:      http.MethodGet,
		Path:        "/api/v1/notes/{id}",
		Summary:     "Get note",
		Description: "Returns an owned or shared note merged with its profile",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateNote",
		Method:      http.MethodPatch,
		Path:        "/api/v1/notes/{id}",
		Summary:     "Update note",
		Description: "Replaces the content of a note the caller owns",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateNote)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteNote",
		Method:        http.MethodDelete,
		Path:          "/api/v1/notes/{id}",
		Summary:       "Delete note",
		Description:   "Deletes a note the caller owns",
		Tags:          []string{"Notes"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteNote)
}

// === DTOs ===

// NoteResponse contains note data in API responses.
type NoteResponse struct {
	ID          string    `json:"id" doc:"Note ID"`
	Content     string    `json:"content" doc:"Markdown content"`
	OwnerID     string    `json:"ownerId" doc:"Owning user"`
	ProfileID   string    `json:"profileId" doc:"Profile the note is about"`
	LastUpdated time.Time `json:"lastUpdated" doc:"Last update time"`
}

// NoteOutput wraps the note response for Huma.
type NoteOutput struct {
	Body NoteResponse
}

// NoteWithProfileResponse is a note merged with its profile.
type NoteWithProfileResponse struct {
	Note     NoteResponse     `json:"note"`
	Profile  *ProfileResponse `json:"profile,omitempty" doc:"Absent until the profile resolves"`
	IsShared bool             `json:"isShared" doc:"Whether the note was shared with the caller"`
}

// NoteWithProfileOutput wraps the merged note for Huma.
type NoteWithProfileOutput struct {
	Body NoteWithProfileResponse
}

// CreateNoteInput wraps the create note request for Huma.
type CreateNoteInput struct {
	Authorization string `header:"Authorization"`
	Body          service.CreateNoteRequest
}

// GetNoteInput contains parameters for getting a note.
type GetNoteInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Note ID"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content" maxLength:"20000" doc:"Markdown content"`
}

// UpdateNoteInput wraps the update note request for Huma.
type UpdateNoteInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Note ID"`
	Body          UpdateNoteRequest
}

// DeleteNoteInput contains parameters for deleting a note.
type DeleteNoteInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Note ID"`
}

func (s *Server) handleCreateNote(ctx context.Context, input *CreateNoteInput) (*NoteOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	n, err := s.services.Note.CreateNote(ctx, userID, input.Body)
	if err != nil {
		return nil, err
	}
	return &NoteOutput{Body: toNoteResponse(n)}, nil
}

func (s *Server) handleGetNote(ctx context.Context, input *GetNoteInput) (*NoteWithProfileOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	rec, release := s.pool.Acquire(userID)
	defer release()
	s.waitReady(ctx, rec)

	nwp, err := rec.GetNoteWithProfile(input.ID)
	if err != nil {
		return nil, err
	}

	out := &NoteWithProfileOutput{Body: NoteWithProfileResponse{
		Note:     toNoteResponse(nwp.Note),
		IsShared: nwp.IsShared,
	}}
	if nwp.Profile != nil {
		p := toProfileResponse(nwp.Profile)
		out.Body.Profile = &p
	}
	return out, nil
}

func (s *Server) handleUpdateNote(ctx context.Context, input *UpdateNoteInput) (*NoteOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	n, err := s.services.Note.UpdateNote(ctx, userID, input.ID, input.Body.Content)
	if err != nil {
		return nil, err
	}
	return &NoteOutput{Body: toNoteResponse(n)}, nil
}

func (s *Server) handleDeleteNote(ctx context.Context, input *DeleteNoteInput) (*struct{}, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Note.DeleteNote(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func toNoteResponse(n *domain.Note) NoteResponse {
	return NoteResponse{
		ID:          n.ID,
		Content:     n.Content,
		OwnerID:     n.OwnerID,
		ProfileID:   n.ProfileID,
		LastUpdated: n.LastUpdated,
	}
}
