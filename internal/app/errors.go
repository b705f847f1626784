package service

import (
	"errors"

	"github.com/okian/swipescore/internal/adapters/repository"
)

// Sentinel errors returned by Service. Store errors are re-exported so callers
// need not import the repository package.
var (
	ErrSessionNotFound      = repository.ErrSessionNotFound
	ErrDuplicateInteraction = repository.ErrDuplicateInteraction
	ErrResultExists         = repository.ErrResultExists
	ErrResultNotFound       = repository.ErrResultNotFound

	ErrSessionCompleted = errors.New("session already completed")
	ErrNoInteractions   = errors.New("no swipes recorded for session")
	ErrInvalidInput     = errors.New("invalid input")
)
