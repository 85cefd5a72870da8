package domain

import "errors"

var (
	// Configuration errors
	ErrInvalidConfig = errors.New("invalid list configuration")
	ErrUnknownList   = errors.New("unknown list")

	// Validation errors
	ErrInvalidPosition  = errors.New("position must be a positive integer")
	ErrInvalidAttribute = errors.New("attribute is not a configured column")
	ErrInvalidID        = errors.New("item ID is required")

	// List errors
	ErrItemNotFound    = errors.New("list item not found")
	ErrNotInList       = errors.New("item is not in a list")
	ErrScopeResolution = errors.New("scope resolution failure")

	// Storage errors
	ErrStorage    = errors.New("storage failure")
	ErrConflict   = errors.New("concurrent modification of list scope detected")
	ErrReferenced = errors.New("item is still referenced by other rows")
)

// IsRetryable reports whether err came from a concurrent modification the
// caller may retry. The list engine itself never retries.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
