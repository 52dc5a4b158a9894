// AngelaMos | 2026
// repository.go

package movie

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/resource"
)

const uniqueTitleConstraint = "uq_movies_title"

const movieColumns = `id, title, overview, release_date, poster, backdrop,
		       original_title, original_language, popularity, vote_average,
		       is_active, created_at, updated_at`

type Repository interface {
	Create(ctx context.Context, m *Movie) error
	GetByID(ctx context.Context, id string) (*Movie, error)
	Update(ctx context.Context, m *Movie) error
	SetActive(ctx context.Context, id string, active bool) (*Movie, error)
	Count(ctx context.Context, q resource.ListQuery) (int, error)
	List(ctx context.Context, q resource.ListQuery) ([]*Movie, error)
	ExistsByTitle(ctx context.Context, title, excludeID string) (bool, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, m *Movie) error {
	query := `
		INSERT INTO movies (id, title, overview, release_date, poster, backdrop,
		                    original_title, original_language, popularity,
		                    vote_average, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		m.ID,
		m.Title,
		m.Overview,
		m.ReleaseDate,
		m.Poster,
		m.Backdrop,
		m.OriginalTitle,
		m.OriginalLanguage,
		m.Popularity,
		m.VoteAverage,
		m.IsActive,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create movie: %w", mapWriteError(err))
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE id = $1`

	var m Movie
	err := r.db.GetContext(ctx, &m, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get movie: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get movie: %w", err)
	}

	return &m, nil
}

func (r *repository) Update(ctx context.Context, m *Movie) error {
	query := `
		UPDATE movies
		SET title = $2, overview = $3, release_date = $4, poster = $5,
		    backdrop = $6, original_title = $7, original_language = $8,
		    popularity = $9, vote_average = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &m.UpdatedAt, query,
		m.ID,
		m.Title,
		m.Overview,
		m.ReleaseDate,
		m.Poster,
		m.Backdrop,
		m.OriginalTitle,
		m.OriginalLanguage,
		m.Popularity,
		m.VoteAverage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update movie: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update movie: %w", mapWriteError(err))
	}

	return nil
}

// SetActive flips the activation flag only when it differs, so concurrent
// transitions cannot both succeed.
func (r *repository) SetActive(
	ctx context.Context,
	id string,
	active bool,
) (*Movie, error) {
	query := `
		UPDATE movies
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1 AND is_active <> $2
		RETURNING ` + movieColumns

	var m Movie
	err := r.db.GetContext(ctx, &m, query, id, active)
	if err == nil {
		return &m, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("set movie active: %w", err)
	}

	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	if active {
		return nil, resource.ErrAlreadyActive
	}
	return nil, resource.ErrAlreadyInactive
}

func (r *repository) Count(ctx context.Context, q resource.ListQuery) (int, error) {
	f := resource.BuildFilter(Descriptor, q)

	var total int
	query := `SELECT COUNT(*) FROM movies WHERE ` + f.Where
	if err := r.db.GetContext(ctx, &total, query, f.Args...); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}

	return total, nil
}

func (r *repository) List(ctx context.Context, q resource.ListQuery) ([]*Movie, error) {
	f := resource.BuildFilter(Descriptor, q)
	next := f.NextArg()

	query := fmt.Sprintf(`
		SELECT %s
		FROM movies
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		movieColumns, f.Where, resource.OrderClause(Descriptor, q), next, next+1)

	args := append(f.Args, q.Limit, q.Offset)

	var movies []*Movie
	if err := r.db.SelectContext(ctx, &movies, query, args...); err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}

	return movies, nil
}

func (r *repository) ExistsByTitle(
	ctx context.Context,
	title, excludeID string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM movies WHERE title = $1 AND id::text <> $2)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, title, excludeID); err != nil {
		return false, fmt.Errorf("check movie title: %w", err)
	}

	return exists, nil
}

func mapWriteError(err error) error {
	if name, ok := core.DuplicateConstraint(err); ok {
		if name == uniqueTitleConstraint {
			return core.FieldError(core.NonFieldErrors, MsgAlreadyExists)
		}
		return core.ErrDuplicateKey
	}
	return err
}
