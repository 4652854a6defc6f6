package model

import "errors"

// Sentinel errors shared across the service. Callers match them with
// errors.Is; the API layer maps them to HTTP status codes.
var (
	// ErrValidation marks bad input, e.g. an empty author or title.
	ErrValidation = errors.New("author and title are required")

	// ErrNotFound marks an operation on a missing item id.
	ErrNotFound = errors.New("item not found")

	// ErrConflict marks a lost claim race or an invalid status transition.
	ErrConflict = errors.New("conflicting status change")

	// ErrDuplicate marks an attempt to add an author/title pair that already exists.
	ErrDuplicate = errors.New("item already on the wishlist")

	// ErrBusy marks a trigger request while a worker cycle is in progress.
	ErrBusy = errors.New("a search cycle is already running")
)
