package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovieType mirrors content.movies.movie_type.
type MovieType string

const (
	MovieTypeMovie  MovieType = "movie"
	MovieTypeSerial MovieType = "serial"
)

// PersonRole mirrors content.movie_people.person_role.
type PersonRole string

const (
	RoleActor    PersonRole = "actor"
	RoleDirector PersonRole = "director"
	RoleWriter   PersonRole = "writer"
)

// Movie is the aggregate root of the catalog. (movie_title, movie_rating)
// is unique in the store.
type Movie struct {
	ID          uuid.UUID
	Title       string
	Description *string
	Rating      *decimal.Decimal // numeric(2,1), 0.0-10.0, nullable
	Type        MovieType
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Person as stored in content.people. (full_name, birthday) is unique.
type Person struct {
	ID          uuid.UUID
	FullName    string
	Description *string
	Birthday    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Genre as stored in content.genres. genre_name is unique.
type Genre struct {
	ID          uuid.UUID
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChangedMovie identifies a root picked up by the change reader.
type ChangedMovie struct {
	ID        uuid.UUID
	UpdatedAt time.Time
}

// Credit is one movie_people row joined with the person's name.
type Credit struct {
	PersonID uuid.UUID
	FullName string
	Role     PersonRole
}

// MovieSource is everything needed to assemble one index document:
// the root's own attributes plus its credits and genre names, read from
// a single snapshot.
type MovieSource struct {
	Movie
	Credits []Credit
	Genres  []string
}
