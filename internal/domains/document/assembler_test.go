package document

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movies-etl/internal/domains/catalog"
)

type fakeCatalogRepo struct {
	sources []catalog.MovieSource
	err     error
}

func (f *fakeCatalogRepo) FetchChangedMovies(ctx context.Context, since time.Time, limit int) ([]catalog.ChangedMovie, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) MovieSources(ctx context.Context, ids []uuid.UUID) ([]catalog.MovieSource, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]catalog.MovieSource, 0, len(f.sources))
	for _, id := range ids {
		for _, src := range f.sources {
			if src.ID == id {
				out = append(out, src)
			}
		}
	}
	return out, nil
}

func (f *fakeCatalogRepo) UpdateGenre(ctx context.Context, id uuid.UUID, name string, description *string) (*catalog.Genre, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) UpdatePerson(ctx context.Context, id uuid.UUID, fullName string, description *string, birthday *time.Time) (*catalog.Person, error) {
	return nil, nil
}

func strPtr(s string) *string { return &s }

func sampleSource() catalog.MovieSource {
	rating := decimal.NewFromFloat(8.6)
	return catalog.MovieSource{
		Movie: catalog.Movie{
			ID:          uuid.New(),
			Title:       "The Long Voyage",
			Description: strPtr("A crew crosses the Atlantic."),
			Rating:      &rating,
			Type:        catalog.MovieTypeMovie,
			UpdatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Credits: []catalog.Credit{
			{PersonID: uuid.New(), FullName: "Alice Barnes", Role: catalog.RoleActor},
			{PersonID: uuid.New(), FullName: "Carol Diaz", Role: catalog.RoleActor},
			{PersonID: uuid.New(), FullName: "Ed Flynn", Role: catalog.RoleDirector},
			{PersonID: uuid.New(), FullName: "Grace Hall", Role: catalog.RoleWriter},
		},
		Genres: []string{"Adventure", "Drama"},
	}
}

func TestFromSource_GroupsCreditsByRole(t *testing.T) {
	doc := FromSource(sampleSource())

	assert.Equal(t, []string{"Alice Barnes", "Carol Diaz"}, doc.Actors)
	assert.Equal(t, []string{"Ed Flynn"}, doc.Directors)
	assert.Equal(t, []string{"Grace Hall"}, doc.Writers)
	assert.Equal(t, []string{"Adventure", "Drama"}, doc.Genres)
}

func TestFromSource_ScalarFields(t *testing.T) {
	src := sampleSource()
	doc := FromSource(src)

	assert.Equal(t, src.ID, doc.ID)
	assert.Equal(t, "The Long Voyage", doc.Title)
	require.NotNil(t, doc.Description)
	assert.Equal(t, "A crew crosses the Atlantic.", *doc.Description)
	require.NotNil(t, doc.IMDBRating)
	assert.InDelta(t, 8.6, *doc.IMDBRating, 1e-9)
	assert.Equal(t, "movie", doc.Type)
}

func TestFromSource_NullableFieldsStayNil(t *testing.T) {
	src := sampleSource()
	src.Description = nil
	src.Rating = nil
	src.Credits = nil
	src.Genres = nil

	doc := FromSource(src)

	assert.Nil(t, doc.Description)
	assert.Nil(t, doc.IMDBRating)
	assert.Empty(t, doc.Actors)
	assert.Empty(t, doc.Directors)
	assert.Empty(t, doc.Writers)
}

// Assembling the same source twice must serialize to identical bytes, so
// re-writes after a crash replay cleanly.
func TestFromSource_Deterministic(t *testing.T) {
	src := sampleSource()

	first, err := json.Marshal(FromSource(src))
	require.NoError(t, err)
	second, err := json.Marshal(FromSource(src))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAssembleBatch_OmitsVanishedRoots(t *testing.T) {
	src := sampleSource()
	repo := &fakeCatalogRepo{sources: []catalog.MovieSource{src}}
	assembler := NewAssembler(repo)

	gone := uuid.New()
	docs, err := assembler.AssembleBatch(context.Background(), []uuid.UUID{src.ID, gone})

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, src.ID, docs[0].ID)
}

func TestAssembleBatch_Empty(t *testing.T) {
	assembler := NewAssembler(&fakeCatalogRepo{})

	docs, err := assembler.AssembleBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, docs)
}
