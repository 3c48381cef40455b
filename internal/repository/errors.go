package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrInvalidArgument indicates the store rejected malformed input.
	ErrInvalidArgument = errors.New("repository: invalid argument")
	// ErrVersionConflict indicates a compare-and-swap lost against a newer write.
	ErrVersionConflict = errors.New("repository: version conflict")
)
