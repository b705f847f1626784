package model

import "errors"

// Sentinel kinds for model errors.
var (
	ErrInvalidDirection = errors.New("invalid direction")
)
