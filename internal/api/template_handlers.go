package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/labelsync/internal/service"
)

func (s *Server) registerTemplateRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createTemplate",
		Method:        http.MethodPost,
		Path:          "/api/v1/templates",
		Summary:       "Create message template",
		Description:   "Creates a reusable message template",
		Tags:          []string{"Templates"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateTemplate)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteTemplate",
		Method:        http.MethodDelete,
		Path:          "/api/v1/templates/{id}",
		Summary:       "Delete message template",
		Description:   "Deletes a template the caller owns",
		Tags:          []string{"Templates"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteTemplate)
}

// TemplateResponse contains template data in API responses.
type TemplateResponse struct {
	ID          string    `json:"id" doc:"Template ID"`
	Title       string    `json:"title" doc:"Template title"`
	Body        string    `json:"body" doc:"Template text"`
	OwnerID     string    `json:"ownerId" doc:"Owning user"`
	LastUpdated time.Time `json:"lastUpdated" doc:"Last update time"`
}

// TemplateOutput wraps the template response for Huma.
type TemplateOutput struct {
	Body TemplateResponse
}

// CreateTemplateInput wraps the create template request for Huma.
type CreateTemplateInput struct {
	Authorization string `header:"Authorization"`
	Body          service.CreateTemplateRequest
}

// DeleteTemplateInput contains parameters for deleting a template.
type DeleteTemplateInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Template ID"`
}

func (s *Server) handleCreateTemplate(ctx context.Context, input *CreateTemplateInput) (*TemplateOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	t, err := s.services.Template.CreateTemplate(ctx, userID, input.Body)
	if err != nil {
		return nil, err
	}
	return &TemplateOutput{Body: TemplateResponse{
		ID:          t.ID,
		Title:       t.Title,
		Body:        t.Body,
		OwnerID:     t.OwnerID,
		LastUpdated: t.LastUpdated,
	}}, nil
}

func (s *Server) handleDeleteTemplate(ctx context.Context, input *DeleteTemplateInput) (*struct{}, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Template.DeleteTemplate(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}
