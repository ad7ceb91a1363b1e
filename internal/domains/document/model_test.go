package document

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func validDocument() Movie {
	rating := 7.2
	return Movie{
		ID:         uuid.New(),
		Title:      "Northern Lights",
		IMDBRating: &rating,
		Type:       "movie",
	}
}

func TestMovieValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Movie)
		wantErr string
	}{
		{
			name:   "valid movie",
			mutate: func(m *Movie) {},
		},
		{
			name:   "valid serial",
			mutate: func(m *Movie) { m.Type = "serial" },
		},
		{
			name:   "nil rating is allowed",
			mutate: func(m *Movie) { m.IMDBRating = nil },
		},
		{
			name:    "missing title",
			mutate:  func(m *Movie) { m.Title = "" },
			wantErr: "title",
		},
		{
			name:    "title too long",
			mutate:  func(m *Movie) { m.Title = strings.Repeat("x", 4097) },
			wantErr: "title",
		},
		{
			name:    "unknown type",
			mutate:  func(m *Movie) { m.Type = "documentary" },
			wantErr: "type",
		},
		{
			name:    "rating below range",
			mutate:  func(m *Movie) { v := -0.1; m.IMDBRating = &v },
			wantErr: "imdb_rating",
		},
		{
			name:    "rating above range",
			mutate:  func(m *Movie) { v := 10.5; m.IMDBRating = &v },
			wantErr: "imdb_rating",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument()
			tt.mutate(&doc)

			err := doc.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
