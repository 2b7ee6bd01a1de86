package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/labelsync/internal/search"
)

func (s *Server) registerProfileRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchProfiles",
		Method:      http.MethodGet,
		Path:        "/api/v1/profiles/search",
		Summary:     "Search profiles",
		Description: "Finds cached profiles by name or profile slug, tolerant of typos and prefixes",
		Tags:        []string{"Profiles"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearchProfiles)

	huma.Register(s.api, huma.Operation{
		OperationID: "getProfile",
		Method:      http.MethodGet,
		Path:        "/api/v1/profiles/{id}",
		Summary:     "Get profile",
		Description: "Returns a cached profile by ID",
		Tags:        []string{"Profiles"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetProfile)
}

// SearchProfilesInput contains parameters for searching profiles.
type SearchProfilesInput struct {
	Authorization string `header:"Authorization"`
	Query         string `query:"q" maxLength:"200" doc:"Search text; empty lists profiles by name"`
	Limit         int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum hits (default 20)"`
}

// SearchProfilesOutput wraps the search result for Huma.
type SearchProfilesOutput struct {
	Body search.Result
}

// GetProfileInput contains parameters for getting a profile.
type GetProfileInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Profile ID"`
}

// ProfileOutput wraps the profile response for Huma.
type ProfileOutput struct {
	Body ProfileResponse
}

func (s *Server) handleSearchProfiles(ctx context.Context, input *SearchProfilesInput) (*SearchProfilesOutput, error) {
	if _, err := s.authenticateUser(ctx, input.Authorization); err != nil {
		return nil, err
	}

	res, err := s.services.Profile.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchProfilesOutput{Body: *res}, nil
}

func (s *Server) handleGetProfile(ctx context.Context, input *GetProfileInput) (*ProfileOutput, error) {
	if _, err := s.authenticateUser(ctx, input.Authorization); err != nil {
		return nil, err
	}

	p, err := s.services.Profile.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: toProfileResponse(p)}, nil
}
