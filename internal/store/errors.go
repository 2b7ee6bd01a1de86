package store

import domainerrors "github.com/listenupapp/labelsync/internal/errors"

// Sentinel errors. They are domain errors, so errors.Is matches them against
// the internal/errors sentinels of the same code as well.
var (
	ErrNotFound      = domainerrors.NotFound("document not found")
	ErrAlreadyExists = domainerrors.AlreadyExists("document already exists")
	ErrConflict      = domainerrors.Conflict("document was modified concurrently, try again")
)
