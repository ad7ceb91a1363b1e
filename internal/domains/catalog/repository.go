package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the catalog boundary of the pipeline: change discovery,
// snapshot reads for assembly, and the edits that must cascade modification
// timestamps to dependent movies.
type Repository interface {
	// FetchChangedMovies returns every movie whose updated_at is strictly
	// greater than since, ordered by (updated_at, movie_id) ascending so an
	// interrupted cycle re-reads a prefix-consistent sequence. An empty
	// result is success. limit <= 0 means no limit.
	FetchChangedMovies(ctx context.Context, since time.Time, limit int) ([]ChangedMovie, error)

	// MovieSources reads the source rows for the given roots from one
	// snapshot, so a root's own attributes and its associations are never
	// torn against each other. Roots deleted since discovery are omitted.
	MovieSources(ctx context.Context, ids []uuid.UUID) ([]MovieSource, error)

	// UpdateGenre edits a genre and, when the name changed, bumps
	// updated_at of every movie linked through movie_genres in the same
	// transaction. The edit fails if the cascade fails.
	UpdateGenre(ctx context.Context, id uuid.UUID, name string, description *string) (*Genre, error)

	// UpdatePerson edits a person and, when the full name changed, bumps
	// updated_at of every movie linked through movie_people in the same
	// transaction.
	UpdatePerson(ctx context.Context, id uuid.UUID, fullName string, description *string, birthday *time.Time) (*Person, error)
}
