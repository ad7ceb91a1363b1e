package document

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"movies-etl/internal/domains/catalog"
)

// Movie is the denormalized document written to the movies index.
// The JSON body matches the provisioned index schema; the id travels in the
// bulk action metadata, not in the source.
type Movie struct {
	ID          uuid.UUID `json:"-"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	IMDBRating  *float64  `json:"imdb_rating"`
	Type        string    `json:"type"`
	Genres      []string  `json:"genres"`
	Actors      []string  `json:"actors"`
	Directors   []string  `json:"directors"`
	Writers     []string  `json:"writers"`

	// UpdatedAt is watermark bookkeeping, never indexed.
	UpdatedAt time.Time `json:"-"`
}

// Validate checks the document against the index schema contract before it
// is sent. A failing document is quarantined, not retried.
func (m Movie) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.ID, validation.Required),
		validation.Field(&m.Title, validation.Required, validation.Length(1, 4096)),
		validation.Field(&m.Type, validation.Required, validation.In(
			string(catalog.MovieTypeMovie),
			string(catalog.MovieTypeSerial),
		)),
		validation.Field(&m.IMDBRating, validation.Min(0.0), validation.Max(10.0)),
	)
}
