// AngelaMos | 2026
// dto.go

package movie

import (
	"time"
)

type CreateMovieRequest struct {
	Title            string   `json:"title"             validate:"required,max=100"`
	Overview         string   `json:"overview"          validate:"required,max=100"`
	ReleaseDate      string   `json:"release_date"      validate:"required,datetime=2006-01-02"`
	Poster           *string  `json:"poster"`
	Backdrop         *string  `json:"backdrop"`
	OriginalTitle    string   `json:"original_title"    validate:"required,max=100"`
	OriginalLanguage string   `json:"original_language" validate:"required,max=50"`
	Popularity       *float64 `json:"popularity"        validate:"required"`
	VoteAverage      *float64 `json:"vote_average"      validate:"required"`
}

// UpdateMovieRequest is a partial update. Nil fields keep their value.
type UpdateMovieRequest struct {
	Title            *string  `json:"title"             validate:"omitempty,min=1,max=100"`
	Overview         *string  `json:"overview"          validate:"omitempty,min=1,max=100"`
	ReleaseDate      *string  `json:"release_date"      validate:"omitempty,datetime=2006-01-02"`
	Poster           *string  `json:"poster"`
	Backdrop         *string  `json:"backdrop"`
	OriginalTitle    *string  `json:"original_title"    validate:"omitempty,min=1,max=100"`
	OriginalLanguage *string  `json:"original_language" validate:"omitempty,min=1,max=50"`
	Popularity       *float64 `json:"popularity"`
	VoteAverage      *float64 `json:"vote_average"`
}

type MovieResponse struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Overview         string    `json:"overview"`
	ReleaseDate      string    `json:"release_date"`
	Poster           *string   `json:"poster"`
	Backdrop         *string   `json:"backdrop"`
	OriginalTitle    string    `json:"original_title"`
	OriginalLanguage string    `json:"original_language"`
	Popularity       float64   `json:"popularity"`
	VoteAverage      float64   `json:"vote_average"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func ToMovieResponse(m *Movie, publicURL func(string) string) MovieResponse {
	return MovieResponse{
		ID:               m.ID,
		Title:            m.Title,
		Overview:         m.Overview,
		ReleaseDate:      m.ReleaseDate.Format(DateLayout),
		Poster:           imageURL(m.Poster, publicURL),
		Backdrop:         imageURL(m.Backdrop, publicURL),
		OriginalTitle:    m.OriginalTitle,
		OriginalLanguage: m.OriginalLanguage,
		Popularity:       m.Popularity,
		VoteAverage:      m.VoteAverage,
		IsActive:         m.IsActive,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func imageURL(path string, publicURL func(string) string) *string {
	if path == "" {
		return nil
	}
	if publicURL != nil {
		path = publicURL(path)
	}
	return &path
}
