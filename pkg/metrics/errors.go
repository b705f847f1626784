package metrics

import (
	"errors"
)

// Sentinel errors for metrics.
var (
	ErrManagerNil = errors.New("metrics manager is nil")
)
