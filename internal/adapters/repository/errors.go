package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrDuplicateInteraction = errors.New("item already swiped in this session")
	ErrItemNotFound         = errors.New("catalog item not found")
	ErrResultExists         = errors.New("session result already exists")
	ErrResultNotFound       = errors.New("session result not found")
	ErrUnknownBackend       = errors.New("unknown store backend")
)
