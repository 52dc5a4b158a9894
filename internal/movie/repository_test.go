// AngelaMos | 2026
// repository_test.go

package movie

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/resource"
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := sqlx.ConnectContext(ctx, "pgx", url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, core.Migrate(ctx, db.DB))
	_, err = db.ExecContext(ctx, "TRUNCATE movies")
	require.NoError(t, err)

	return db
}

func newMovie(title string, active bool) *Movie {
	return &Movie{
		ID:               uuid.NewString(),
		Title:            title,
		Overview:         "overview of " + title,
		ReleaseDate:      time.Date(1999, 3, 31, 0, 0, 0, 0, time.UTC),
		OriginalTitle:    title,
		OriginalLanguage: "en",
		Popularity:       1.5,
		VoteAverage:      7,
		IsActive:         active,
	}
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	m := newMovie("Matrix", true)
	require.NoError(t, repo.Create(ctx, m))
	assert.False(t, m.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Matrix", got.Title)
	assert.Equal(t, "1999-03-31", got.ReleaseDate.Format(DateLayout))

	err = repo.Create(ctx, newMovie("Matrix", true))
	verr, ok := core.AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, []string{MsgAlreadyExists}, verr.Fields[core.NonFieldErrors])

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepositorySetActive(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	m := newMovie("Heat", true)
	require.NoError(t, repo.Create(ctx, m))

	_, err := repo.SetActive(ctx, m.ID, true)
	assert.ErrorIs(t, err, resource.ErrAlreadyActive)

	updated, err := repo.SetActive(ctx, m.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, err = repo.SetActive(ctx, m.ID, false)
	assert.ErrorIs(t, err, resource.ErrAlreadyInactive)

	_, err = repo.SetActive(ctx, uuid.NewString(), false)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepositoryListFilters(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	for _, title := range []string{"Alien", "Brazil", "Casino"} {
		require.NoError(t, repo.Create(ctx, newMovie(title, true)))
	}
	for _, title := range []string{"Drive", "Elf"} {
		require.NoError(t, repo.Create(ctx, newMovie(title, false)))
	}

	active := true
	q := resource.ListQuery{Active: &active, Order: "title", Limit: 2}

	total, err := repo.Count(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	page, err := repo.List(ctx, q)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "Alien", page[0].Title)
	assert.Equal(t, "Brazil", page[1].Title)

	q.Offset = 2
	page, err = repo.List(ctx, q)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Casino", page[0].Title)

	search := resource.ListQuery{Search: "RIV", Limit: 10}
	total, err = repo.Count(ctx, search)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	exists, err := repo.ExistsByTitle(ctx, "Alien", "")
	require.NoError(t, err)
	assert.True(t, exists)
}
