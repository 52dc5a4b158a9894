// AngelaMos | 2026
// entity.go

package movie

import (
	"time"

	"github.com/carterperez-dev/cinemadb/internal/resource"
)

const DateLayout = "2006-01-02"

type Movie struct {
	ID               string    `db:"id"`
	Title            string    `db:"title"`
	Overview         string    `db:"overview"`
	ReleaseDate      time.Time `db:"release_date"`
	Poster           string    `db:"poster"`
	Backdrop         string    `db:"backdrop"`
	OriginalTitle    string    `db:"original_title"`
	OriginalLanguage string    `db:"original_language"`
	Popularity       float64   `db:"popularity"`
	VoteAverage      float64   `db:"vote_average"`
	IsActive         bool      `db:"is_active"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (m *Movie) GetID() string {
	return m.ID
}

func (m *Movie) Active() bool {
	return m.IsActive
}

// Descriptor lists the columns list queries may search and sort by.
var Descriptor = resource.Descriptor{
	Name: "Movie",
	Searchable: []string{
		"title",
		"overview",
		"original_title",
		"original_language",
	},
	Sortable: []string{
		"id",
		"title",
		"overview",
		"release_date",
		"original_title",
		"original_language",
		"popularity",
		"vote_average",
		"is_active",
		"created_at",
		"updated_at",
	},
	DefaultOrder: "created_at",
}

const (
	CacheKey = "movies"

	MsgAlreadyExists = "This movie already exists"
)
