package catalog

import "errors"

var (
	ErrPersonNotFound = errors.New("person not found")
	ErrGenreNotFound  = errors.New("genre not found")

	// Unique constraint violations surfaced by the store.
	ErrDuplicateGenreName = errors.New("genre name already exists")
	ErrDuplicatePerson    = errors.New("person with this name and birthday already exists")
)
