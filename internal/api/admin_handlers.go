package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/listenupapp/labelsync/internal/errors"
	"github.com/listenupapp/labelsync/internal/migration"
)

func (s *Server) registerAdminRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "runMigration",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/migrations",
		Summary:     "Run legacy migration",
		Description: "Transforms legacy documents into the current model for the given users, or for every legacy user. The run halts at the first failing user.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRunMigration)
}

// RunMigrationRequest is the request body for a migration run.
type RunMigrationRequest struct {
	UserIDs []string `json:"userIds,omitempty" doc:"Legacy user IDs; empty migrates every user"`
}

// RunMigrationInput wraps the migration request for Huma.
type RunMigrationInput struct {
	Authorization string              `header:"Authorization"`
	Body          RunMigrationRequest `required:"false"`
}

// RunMigrationOutput wraps the migration report for Huma.
type RunMigrationOutput struct {
	Body migration.Report
}

func (s *Server) handleRunMigration(ctx context.Context, input *RunMigrationInput) (*RunMigrationOutput, error) {
	claims, err := s.authenticateAndRequireAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if s.services.Migrator == nil {
		return nil, domainerrors.Conflict("no legacy source is configured")
	}

	s.logger.Info("migration requested", "admin_id", claims.UserID, "users", len(input.Body.UserIDs))

	rep, err := s.services.Migrator.Run(ctx, input.Body.UserIDs)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "migration halted").WithDetails(rep)
	}
	return &RunMigrationOutput{Body: *rep}, nil
}
