package document

import (
	"context"

	"github.com/google/uuid"

	"movies-etl/internal/domains/catalog"
)

// Assembler turns catalog snapshots into index documents.
type Assembler struct {
	repo catalog.Repository
}

func NewAssembler(repo catalog.Repository) *Assembler {
	return &Assembler{repo: repo}
}

// AssembleBatch assembles documents for the given roots. Roots that vanished
// between discovery and assembly are omitted from the result, not failed:
// a concurrent delete is reflected by absence.
func (a *Assembler) AssembleBatch(ctx context.Context, ids []uuid.UUID) ([]Movie, error) {
	sources, err := a.repo.MovieSources(ctx, ids)
	if err != nil {
		return nil, err
	}

	docs := make([]Movie, 0, len(sources))
	for _, src := range sources {
		docs = append(docs, FromSource(src))
	}
	return docs, nil
}

// FromSource builds one document from a snapshot row set. Credits arrive
// sorted by (full_name, person_id) and genres by name, so repeated assembly
// of unchanged state yields a byte-identical document.
func FromSource(src catalog.MovieSource) Movie {
	doc := Movie{
		ID:          src.ID,
		Title:       src.Title,
		Description: src.Description,
		Type:        string(src.Type),
		Genres:      append([]string{}, src.Genres...),
		Actors:      []string{},
		Directors:   []string{},
		Writers:     []string{},
		UpdatedAt:   src.UpdatedAt,
	}

	if src.Rating != nil {
		rating := src.Rating.InexactFloat64()
		doc.IMDBRating = &rating
	}

	for _, credit := range src.Credits {
		switch credit.Role {
		case catalog.RoleActor:
			doc.Actors = append(doc.Actors, credit.FullName)
		case catalog.RoleDirector:
			doc.Directors = append(doc.Directors, credit.FullName)
		case catalog.RoleWriter:
			doc.Writers = append(doc.Writers, credit.FullName)
		}
	}

	return doc
}
