package database

import "errors"

var (
	// ErrNotFound indicates no content row matched the lookup.
	ErrNotFound = errors.New("content not found")
	// ErrDuplicateURL indicates an insert collided with the unique url
	// constraint.
	ErrDuplicateURL = errors.New("duplicate content url")
)
