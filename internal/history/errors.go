package history

import "errors"

var (
	// ErrAccessoryRequired is returned when an entry or query lacks an
	// accessory id.
	ErrAccessoryRequired = errors.New("history: accessory id is required")

	// ErrInvalidRetention is returned for a non-positive prune duration.
	ErrInvalidRetention = errors.New("history: retention must be positive")
)
