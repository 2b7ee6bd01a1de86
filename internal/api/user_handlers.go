package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/labelsync/internal/domain"
	"github.com/listenupapp/labelsync/internal/service"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "ensureCurrentUser",
		Method:      http.MethodPost,
		Path:        "/api/v1/users/me",
		Summary:     "Ensure current user",
		Description: "Creates the caller's access index on first sight and refreshes email and display name",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleEnsureCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me",
		Summary:     "Get current user",
		Description: "Returns the caller's profile, settings and plan",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateUserSettings",
		Method:      http.MethodPatch,
		Path:        "/api/v1/users/me/settings",
		Summary:     "Update settings",
		Description: "Updates theme, locale and linked sheet",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateUserSettings)
}

// === DTOs ===

// UserResponse contains user data in API responses.
type UserResponse struct {
	ID            string    `json:"id" doc:"User ID"`
	Email         string    `json:"email,omitempty" doc:"Email address"`
	DisplayName   string    `json:"displayName,omitempty" doc:"Display name"`
	Theme         string    `json:"theme" doc:"UI theme"`
	Locale        string    `json:"locale" doc:"UI locale"`
	SheetID       string    `json:"sheetId,omitempty" doc:"Linked spreadsheet"`
	Plan          string    `json:"plan" doc:"Plan name"`
	PlanExpiresAt time.Time `json:"planExpiresAt" doc:"Plan expiry"`
	LabelCount    int       `json:"labelCount" doc:"Label references, owned and shared"`
	NoteCount     int       `json:"noteCount" doc:"Note references, owned and shared"`
	TemplateCount int       `json:"templateCount" doc:"Template references"`
	IsAdmin       bool      `json:"isAdmin" doc:"Whether the user may run admin operations"`
	LastUpdated   time.Time `json:"lastUpdated" doc:"Last update time"`
}

// UserOutput wraps the user response for Huma.
type UserOutput struct {
	Body UserResponse
}

// EnsureUserInput wraps the ensure user request for Huma.
type EnsureUserInput struct {
	Authorization string                    `header:"Authorization"`
	Body          service.EnsureUserRequest `required:"false"`
}

// GetUserInput contains parameters for getting the current user.
type GetUserInput struct {
	Authorization string `header:"Authorization"`
}

// UpdateSettingsInput wraps the update settings request for Huma.
type UpdateSettingsInput struct {
	Authorization string `header:"Authorization"`
	Body          service.UpdateSettingsRequest
}

func (s *Server) handleEnsureCurrentUser(ctx context.Context, input *EnsureUserInput) (*UserOutput, error) {
	claims, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	req := input.Body
	if req.Email == "" {
		req.Email = claims.Email
	}

	u, err := s.services.User.EnsureUser(ctx, claims.UserID, req)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: toUserResponse(u)}, nil
}

func (s *Server) handleGetCurrentUser(ctx context.Context, input *GetUserInput) (*UserOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	u, err := s.services.User.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: toUserResponse(u)}, nil
}

func (s *Server) handleUpdateUserSettings(ctx context.Context, input *UpdateSettingsInput) (*UserOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	u, err := s.services.User.UpdateSettings(ctx, userID, input.Body)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: toUserResponse(u)}, nil
}

func toUserResponse(u *domain.UserAccess) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		Theme:         u.Settings.Theme,
		Locale:        u.Settings.Locale,
		SheetID:       u.Settings.SheetID,
		Plan:          u.Plan.Name,
		PlanExpiresAt: u.Plan.ExpiresAt,
		LabelCount:    len(u.Data.Labels),
		NoteCount:     len(u.Data.Notes),
		TemplateCount: len(u.Data.Templates),
		IsAdmin:       u.IsAdmin,
		LastUpdated:   u.LastUpdated,
	}
}
