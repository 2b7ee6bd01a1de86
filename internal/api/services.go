package api

import (
	"github.com/listenupapp/labelsync/internal/migration"
	"github.com/listenupapp/labelsync/internal/search"
	"github.com/listenupapp/labelsync/internal/service"
)

// Services groups all business logic services used by the API server.
type Services struct {
	User     *service.UserService
	Label    *service.LabelService
	Note     *service.NoteService
	Template *service.TemplateService
	Profile  *service.ProfileService
	Sharing  *service.SharingService
	Search   *search.ProfileIndex // health reporting only
	Migrator *migration.Migrator  // nil when no legacy source is configured
}
