package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"movies-etl/internal/domains/catalog"
	pkgdb "movies-etl/pkg/database"
	"movies-etl/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// dbConn is the slice of pgxpool.Pool the repository uses; an interface so
// the transaction boundaries are testable without a live database.
type dbConn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type postgresRepository struct {
	pool dbConn
}

// NewPostgresRepository creates the catalog repository over the content schema.
func NewPostgresRepository(pool *pgxpool.Pool) catalog.Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) FetchChangedMovies(
	ctx context.Context,
	since time.Time,
	limit int,
) ([]catalog.ChangedMovie, error) {
	const query = `
		SELECT movie_id, updated_at
		FROM content.movies
		WHERE updated_at > $1
		ORDER BY updated_at, movie_id
	`
	const queryLimited = query + ` LIMIT $2`

	var rows pgx.Rows
	var err error
	if limit > 0 {
		rows, err = r.pool.Query(ctx, queryLimited, since, limit)
	} else {
		rows, err = r.pool.Query(ctx, query, since)
	}
	if err != nil {
		logger.Error("FetchChangedMovies: query failed", err)
		return nil, fmt.Errorf("failed to fetch changed movies: %w", err)
	}
	defer rows.Close()

	changed := make([]catalog.ChangedMovie, 0)
	for rows.Next() {
		var c catalog.ChangedMovie
		if err := rows.Scan(&c.ID, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan changed movie: %w", err)
		}
		changed = append(changed, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read changed movies: %w", err)
	}

	return changed, nil
}

// MovieSources runs all three reads inside one repeatable-read read-only
// transaction so a root's attributes and its associations come from the
// same snapshot.
func (r *postgresRepository) MovieSources(
	ctx context.Context,
	ids []uuid.UUID,
) ([]catalog.MovieSource, error) {
	if len(ids) == 0 {
		return []catalog.MovieSource{}, nil
	}

	var sources []catalog.MovieSource
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

	err := pkgdb.WithTxOptions(ctx, r.pool, opts, func(tx pgx.Tx) error {
		byID, ordered, err := r.fetchMovies(ctx, tx, ids)
		if err != nil {
			return err
		}
		if err := r.fetchCredits(ctx, tx, ids, byID); err != nil {
			return err
		}
		if err := r.fetchGenres(ctx, tx, ids, byID); err != nil {
			return err
		}
		sources = ordered(byID)
		return nil
	})
	if err != nil {
		logger.Error("MovieSources: snapshot read failed", err)
		return nil, err
	}

	return sources, nil
}

func (r *postgresRepository) fetchMovies(
	ctx context.Context,
	tx pgx.Tx,
	ids []uuid.UUID,
) (map[uuid.UUID]*catalog.MovieSource, func(map[uuid.UUID]*catalog.MovieSource) []catalog.MovieSource, error) {
	const query = `
		SELECT movie_id, movie_title, movie_desc, movie_rating, movie_type,
		       created_at, updated_at
		FROM content.movies
		WHERE movie_id = ANY($1)
		ORDER BY updated_at, movie_id
	`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch movie rows: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*catalog.MovieSource, len(ids))
	order := make([]uuid.UUID, 0, len(ids))
	for rows.Next() {
		var src catalog.MovieSource
		var rating decimal.NullDecimal
		err := rows.Scan(
			&src.ID,
			&src.Title,
			&src.Description,
			&rating,
			&src.Type,
			&src.CreatedAt,
			&src.UpdatedAt,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan movie row: %w", err)
		}
		if rating.Valid {
			src.Rating = &rating.Decimal
		}
		src.Credits = make([]catalog.Credit, 0)
		src.Genres = make([]string, 0)
		byID[src.ID] = &src
		order = append(order, src.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read movie rows: %w", err)
	}

	ordered := func(m map[uuid.UUID]*catalog.MovieSource) []catalog.MovieSource {
		out := make([]catalog.MovieSource, 0, len(order))
		for _, id := range order {
			out = append(out, *m[id])
		}
		return out
	}
	return byID, ordered, nil
}

func (r *postgresRepository) fetchCredits(
	ctx context.Context,
	tx pgx.Tx,
	ids []uuid.UUID,
	byID map[uuid.UUID]*catalog.MovieSource,
) error {
	// Ordering by (full_name, person_id) keeps assembled documents stable
	// across runs.
	const query = `
		SELECT mp.movie_id, p.person_id, p.full_name, mp.person_role
		FROM content.movie_people mp
		JOIN content.people p ON p.person_id = mp.person_id
		WHERE mp.movie_id = ANY($1)
		ORDER BY p.full_name, p.person_id
	`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to fetch credits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var movieID uuid.UUID
		var credit catalog.Credit
		if err := rows.Scan(&movieID, &credit.PersonID, &credit.FullName, &credit.Role); err != nil {
			return fmt.Errorf("failed to scan credit: %w", err)
		}
		if src, ok := byID[movieID]; ok {
			src.Credits = append(src.Credits, credit)
		}
	}
	return rows.Err()
}

func (r *postgresRepository) fetchGenres(
	ctx context.Context,
	tx pgx.Tx,
	ids []uuid.UUID,
	byID map[uuid.UUID]*catalog.MovieSource,
) error {
	const query = `
		SELECT mg.movie_id, g.genre_name
		FROM content.movie_genres mg
		JOIN content.genres g ON g.genre_id = mg.genre_id
		WHERE mg.movie_id = ANY($1)
		ORDER BY g.genre_name
	`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to fetch genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var movieID uuid.UUID
		var name string
		if err := rows.Scan(&movieID, &name); err != nil {
			return fmt.Errorf("failed to scan genre: %w", err)
		}
		if src, ok := byID[movieID]; ok {
			src.Genres = append(src.Genres, name)
		}
	}
	return rows.Err()
}

// UpdateGenre edits the genre and bumps every dependent movie's updated_at
// in the same transaction. If the cascade fails the whole edit rolls back,
// so a rename can never be committed without its propagation.
func (r *postgresRepository) UpdateGenre(
	ctx context.Context,
	id uuid.UUID,
	name string,
	description *string,
) (*catalog.Genre, error) {
	return pkgdb.WithTransactionResult(ctx, r.pool, func(tx pgx.Tx) (*catalog.Genre, error) {
		var oldName string
		err := tx.QueryRow(ctx,
			`SELECT genre_name FROM content.genres WHERE genre_id = $1 FOR UPDATE`,
			id,
		).Scan(&oldName)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, catalog.ErrGenreNotFound
			}
			return nil, fmt.Errorf("failed to lock genre: %w", err)
		}

		const update = `
			UPDATE content.genres
			SET genre_name = $2, genre_desc = $3, updated_at = now()
			WHERE genre_id = $1
			RETURNING genre_id, genre_name, genre_desc, created_at, updated_at
		`

		updated := &catalog.Genre{}
		err = tx.QueryRow(ctx, update, id, name, description).Scan(
			&updated.ID,
			&updated.Name,
			&updated.Description,
			&updated.CreatedAt,
			&updated.UpdatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				logger.Error("UpdateGenre: duplicate name", err)
				return nil, catalog.ErrDuplicateGenreName
			}
			return nil, fmt.Errorf("failed to update genre: %w", err)
		}

		if oldName != name {
			if err := r.cascadeGenre(ctx, tx, id, updated.UpdatedAt); err != nil {
				return nil, err
			}
		}

		return updated, nil
	})
}

func (r *postgresRepository) cascadeGenre(ctx context.Context, tx pgx.Tx, genreID uuid.UUID, ts time.Time) error {
	// GREATEST keeps movies that were touched even later in the same
	// instant from moving backwards.
	const cascade = `
		UPDATE content.movies
		SET updated_at = GREATEST(updated_at, $2)
		WHERE movie_id IN (
			SELECT movie_id FROM content.movie_genres WHERE genre_id = $1
		)
	`

	tag, err := tx.Exec(ctx, cascade, genreID, ts)
	if err != nil {
		return fmt.Errorf("failed to cascade genre rename: %w", err)
	}

	logger.Info("genre rename cascaded", map[string]interface{}{
		"genre_id":       genreID.String(),
		"movies_touched": tag.RowsAffected(),
	})
	return nil
}

// UpdatePerson mirrors UpdateGenre for people: the full-name change is
// propagated to every crediting movie atomically with the edit.
func (r *postgresRepository) UpdatePerson(
	ctx context.Context,
	id uuid.UUID,
	fullName string,
	description *string,
	birthday *time.Time,
) (*catalog.Person, error) {
	return pkgdb.WithTransactionResult(ctx, r.pool, func(tx pgx.Tx) (*catalog.Person, error) {
		var oldName string
		err := tx.QueryRow(ctx,
			`SELECT full_name FROM content.people WHERE person_id = $1 FOR UPDATE`,
			id,
		).Scan(&oldName)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, catalog.ErrPersonNotFound
			}
			return nil, fmt.Errorf("failed to lock person: %w", err)
		}

		const update = `
			UPDATE content.people
			SET full_name = $2, person_desc = $3, birthday = $4, updated_at = now()
			WHERE person_id = $1
			RETURNING person_id, full_name, person_desc, birthday, created_at, updated_at
		`

		updated := &catalog.Person{}
		err = tx.QueryRow(ctx, update, id, fullName, description, birthday).Scan(
			&updated.ID,
			&updated.FullName,
			&updated.Description,
			&updated.Birthday,
			&updated.CreatedAt,
			&updated.UpdatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				logger.Error("UpdatePerson: duplicate person", err)
				return nil, catalog.ErrDuplicatePerson
			}
			return nil, fmt.Errorf("failed to update person: %w", err)
		}

		if oldName != fullName {
			if err := r.cascadePerson(ctx, tx, id, updated.UpdatedAt); err != nil {
				return nil, err
			}
		}

		return updated, nil
	})
}

func (r *postgresRepository) cascadePerson(ctx context.Context, tx pgx.Tx, personID uuid.UUID, ts time.Time) error {
	const cascade = `
		UPDATE content.movies
		SET updated_at = GREATEST(updated_at, $2)
		WHERE movie_id IN (
			SELECT movie_id FROM content.movie_people WHERE person_id = $1
		)
	`

	tag, err := tx.Exec(ctx, cascade, personID, ts)
	if err != nil {
		return fmt.Errorf("failed to cascade person rename: %w", err)
	}

	logger.Info("person rename cascaded", map[string]interface{}{
		"person_id":      personID.String(),
		"movies_touched": tag.RowsAffected(),
	})
	return nil
}
