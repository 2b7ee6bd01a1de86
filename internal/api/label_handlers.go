package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/labelsync/internal/domain"
	"github.com/listenupapp/labelsync/internal/service"
)

func (s *Server) registerLabelRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createLabel",
		Method:        http.MethodPost,
		Path:          "/api/v1/labels",
		Summary:       "Create label",
		Description:   "Creates a label owned by the caller",
		Tags:          []string{"Labels"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateLabel)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateLabel",
		Method:      http.MethodPatch,
		Path:        "/api/v1/labels/{id}",
		Summary:     "Update label",
		Description: "Renames or recolours a label the caller owns",
		Tags:        []string{"Labels"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateLabel)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteLabel",
		Method:        http.MethodDelete,
		Path:          "/api/v1/labels/{id}",
		Summary:       "Delete label",
		Description:   "Deletes a label the caller owns",
		Tags:          []string{"Labels"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteLabel)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLabelProfiles",
		Method:      http.MethodGet,
		Path:        "/api/v1/labels/{id}/profiles",
		Summary:     "Get label profiles",
		Description: "Returns the resolved profiles of an owned or shared label in member order",
		Tags:        []string{"Labels"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetLabelProfiles)

	huma.Register(s.api, huma.Operation{
		OperationID: "addLabelProfile",
		Method:      http.MethodPost,
		Path:        "/api/v1/labels/{id}/profiles",
		Summary:     "Add profile to label",
		Description: "Caches the profile and adds it to a label the caller owns",
		Tags:        []string{"Labels"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAddLabelProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeLabelProfile",
		Method:      http.MethodDelete,
		Path:        "/api/v1/labels/{id}/profiles/{profileId}",
		Summary:     "Remove profile from label",
		Description: "Removes a profile from a label the caller owns",
		Tags:        []string{"Labels"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRemoveLabelProfile)
}

// === DTOs ===

// LabelResponse contains label data in API responses.
type LabelResponse struct {
	ID          string    `json:"id" doc:"Label ID"`
	Name        string    `json:"name" doc:"Label name, upper-cased"`
	Color       string    `json:"color" doc:"Hex colour"`
	OwnerID     string    `json:"ownerId" doc:"Owning user"`
	ProfileIDs  []string  `json:"profileIds" doc:"Member profile IDs in order"`
	LastUpdated time.Time `json:"lastUpdated" doc:"Last update time"`
}

// LabelOutput wraps the label response for Huma.
type LabelOutput struct {
	Body LabelResponse
}

// CreateLabelInput wraps the create label request for Huma.
type CreateLabelInput struct {
	Authorization string `header:"Authorization"`
	Body          service.CreateLabelRequest
}

// UpdateLabelInput wraps the update label request for Huma.
type UpdateLabelInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Label ID"`
	Body          service.UpdateLabelRequest
}

// DeleteLabelInput contains parameters for deleting a label.
type DeleteLabelInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Label ID"`
}

// GetLabelProfilesInput contains parameters for listing label profiles.
type GetLabelProfilesInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Label ID"`
	Shared        bool   `query:"shared" doc:"Look the label up among shared labels instead of owned ones"`
}

// ProfileResponse contains profile data in API responses.
type ProfileResponse struct {
	ID          string    `json:"id" doc:"Profile ID"`
	Name        string    `json:"name" doc:"Display name"`
	URL         string    `json:"url" doc:"Profile URL"`
	Image       string    `json:"image,omitempty" doc:"Avatar URL"`
	AvatarCode  string    `json:"avatarCode,omitempty" doc:"Generated avatar initials"`
	LastUpdated time.Time `json:"lastUpdated" doc:"Last update time"`
}

// ProfileListOutput wraps a list of profiles for Huma.
type ProfileListOutput struct {
	Body struct {
		Profiles []ProfileResponse `json:"profiles" doc:"Profiles in label member order"`
	}
}

// AddLabelProfileInput wraps the add profile request for Huma.
type AddLabelProfileInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Label ID"`
	Body          service.ProfileInput
}

// LabelWithProfileOutput returns the updated label and the cached profile.
type LabelWithProfileOutput struct {
	Body struct {
		Label   LabelResponse   `json:"label"`
		Profile ProfileResponse `json:"profile"`
	}
}

// RemoveLabelProfileInput contains parameters for removing a profile from a label.
type RemoveLabelProfileInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Label ID"`
	ProfileID     string `path:"profileId" doc:"Profile ID"`
}

func (s *Server) handleCreateLabel(ctx context.Context, input *CreateLabelInput) (*LabelOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	l, err := s.services.Label.CreateLabel(ctx, userID, input.Body)
	if err != nil {
		return nil, err
	}
	return &LabelOutput{Body: toLabelResponse(l)}, nil
}

func (s *Server) handleUpdateLabel(ctx context.Context, input *UpdateLabelInput) (*LabelOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	l, err := s.services.Label.UpdateLabel(ctx, userID, input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return &LabelOutput{Body: toLabelResponse(l)}, nil
}

func (s *Server) handleDeleteLabel(ctx context.Context, input *DeleteLabelInput) (*struct{}, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Label.DeleteLabel(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleGetLabelProfiles(ctx context.Context, input *GetLabelProfilesInput) (*ProfileListOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	rec, release := s.pool.Acquire(userID)
	defer release()
	s.waitReady(ctx, rec)

	profiles, err := rec.GetLabelProfiles(input.ID, input.Shared)
	if err != nil {
		return nil, err
	}

	out := &ProfileListOutput{}
	out.Body.Profiles = make([]ProfileResponse, 0, len(profiles))
	for _, p := range profiles {
		out.Body.Profiles = append(out.Body.Profiles, toProfileResponse(p))
	}
	return out, nil
}

func (s *Server) handleAddLabelProfile(ctx context.Context, input *AddLabelProfileInput) (*LabelWithProfileOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	l, p, err := s.services.Label.AddProfile(ctx, userID, input.ID, input.Body)
	if err != nil {
		return nil, err
	}

	out := &LabelWithProfileOutput{}
	out.Body.Label = toLabelResponse(l)
	out.Body.Profile = toProfileResponse(p)
	return out, nil
}

func (s *Server) handleRemoveLabelProfile(ctx context.Context, input *RemoveLabelProfileInput) (*LabelOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	l, err := s.services.Label.RemoveProfile(ctx, userID, input.ID, input.ProfileID)
	if err != nil {
		return nil, err
	}
	return &LabelOutput{Body: toLabelResponse(l)}, nil
}

func toLabelResponse(l *domain.Label) LabelResponse {
	ids := l.MemberProfileIDs
	if ids == nil {
		ids = []string{}
	}
	return LabelResponse{
		ID:          l.ID,
		Name:        l.Name,
		Color:       l.Color,
		OwnerID:     l.OwnerID,
		ProfileIDs:  ids,
		LastUpdated: l.LastUpdated,
	}
}

func toProfileResponse(p *domain.Profile) ProfileResponse {
	r := ProfileResponse{
		ID:          p.ID,
		Name:        p.Name,
		URL:         p.URL,
		LastUpdated: p.LastUpdated,
	}
	if p.Image != nil {
		r.Image = *p.Image
	}
	if p.AvatarCode != nil {
		r.AvatarCode = *p.AvatarCode
	}
	return r
}
