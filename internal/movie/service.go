// AngelaMos | 2026
// service.go

package movie

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/events"
	"github.com/carterperez-dev/cinemadb/internal/media"
	"github.com/carterperez-dev/cinemadb/internal/middleware"
	"github.com/carterperez-dev/cinemadb/internal/resource"
)

type ImageStore interface {
	Decode(raw string) (media.Image, error)
	Save(ctx context.Context, folder string, img media.Image) (string, error)
	Remove(rel string) error
	PublicURL(rel string) string
}

// Service is both the store and the serializer behind the movie routes.
type Service struct {
	repo     Repository
	images   ImageStore
	events   events.Publisher
	validate *validator.Validate
}

func NewService(repo Repository, images ImageStore, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		repo:     repo,
		images:   images,
		events:   pub,
		validate: core.NewValidator(),
	}
}

var (
	_ resource.Store[*Movie]                     = (*Service)(nil)
	_ resource.Serializer[*Movie, MovieResponse] = (*Service)(nil)
)

func (s *Service) Count(ctx context.Context, q resource.ListQuery) (int, error) {
	return s.repo.Count(ctx, q)
}

func (s *Service) List(ctx context.Context, q resource.ListQuery) ([]*Movie, error) {
	return s.repo.List(ctx, q)
}

func (s *Service) Get(ctx context.Context, id string) (*Movie, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (*Movie, error) {
	m, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}

	eventType := events.MovieDeactivated
	if active {
		eventType = events.MovieReactivated
	}
	s.emit(ctx, eventType, m)

	return m, nil
}

func (s *Service) Create(ctx context.Context, body []byte) (*Movie, error) {
	ctx, span := core.StartSpan(ctx, "movie", "movie.create")
	defer span.End()

	var req CreateMovieRequest
	if err := core.UnmarshalJSON(body, &req); err != nil {
		return nil, err
	}

	verr := core.NewValidationError()
	if err := s.validate.Struct(req); err != nil {
		verr = core.FormatValidationError(err)
	}
	imgs := s.decodeImages(req.Poster, req.Backdrop, verr)
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}

	releaseDate, _ := time.Parse(DateLayout, req.ReleaseDate)

	if err := s.ensureUniqueTitle(ctx, req.Title, ""); err != nil {
		return nil, err
	}

	m := &Movie{
		ID:               uuid.New().String(),
		Title:            req.Title,
		Overview:         req.Overview,
		ReleaseDate:      releaseDate,
		OriginalTitle:    req.OriginalTitle,
		OriginalLanguage: req.OriginalLanguage,
		Popularity:       *req.Popularity,
		VoteAverage:      *req.VoteAverage,
		IsActive:         true,
	}

	saved, err := s.saveImages(ctx, imgs)
	if err != nil {
		return nil, err
	}
	m.Poster = saved.poster
	m.Backdrop = saved.backdrop

	if err := s.repo.Create(ctx, m); err != nil {
		s.removeFiles(saved.poster, saved.backdrop)
		core.SetSpanError(ctx, err)
		return nil, err
	}

	core.AddSpanEvent(ctx, "movie.created", attribute.String("movie.id", m.ID))
	s.emit(ctx, events.MovieCreated, m)

	return m, nil
}

func (s *Service) Update(ctx context.Context, existing *Movie, body []byte) (*Movie, error) {
	ctx, span := core.StartSpan(ctx, "movie", "movie.update",
		attribute.String("movie.id", existing.ID),
	)
	defer span.End()

	var req UpdateMovieRequest
	if err := core.UnmarshalJSON(body, &req); err != nil {
		return nil, err
	}

	verr := core.NewValidationError()
	if err := s.validate.Struct(req); err != nil {
		verr = core.FormatValidationError(err)
	}
	imgs := s.decodeImages(req.Poster, req.Backdrop, verr)
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}

	m := *existing
	applyUpdate(&m, req)

	if m.Title != existing.Title {
		if err := s.ensureUniqueTitle(ctx, m.Title, m.ID); err != nil {
			return nil, err
		}
	}

	saved, err := s.saveImages(ctx, imgs)
	if err != nil {
		return nil, err
	}
	if saved.poster != "" {
		m.Poster = saved.poster
	}
	if saved.backdrop != "" {
		m.Backdrop = saved.backdrop
	}

	if err := s.repo.Update(ctx, &m); err != nil {
		s.removeFiles(saved.poster, saved.backdrop)
		core.SetSpanError(ctx, err)
		return nil, err
	}

	if saved.poster != "" {
		s.removeFiles(existing.Poster)
	}
	if saved.backdrop != "" {
		s.removeFiles(existing.Backdrop)
	}

	core.AddSpanEvent(ctx, "movie.updated")
	s.emit(ctx, events.MovieUpdated, &m)

	return &m, nil
}

func (s *Service) Represent(_ context.Context, m *Movie) MovieResponse {
	var publicURL func(string) string
	if s.images != nil {
		publicURL = s.images.PublicURL
	}
	return ToMovieResponse(m, publicURL)
}

func applyUpdate(m *Movie, req UpdateMovieRequest) {
	if req.Title != nil {
		m.Title = *req.Title
	}
	if req.Overview != nil {
		m.Overview = *req.Overview
	}
	if req.ReleaseDate != nil {
		if d, err := time.Parse(DateLayout, *req.ReleaseDate); err == nil {
			m.ReleaseDate = d
		}
	}
	if req.OriginalTitle != nil {
		m.OriginalTitle = *req.OriginalTitle
	}
	if req.OriginalLanguage != nil {
		m.OriginalLanguage = *req.OriginalLanguage
	}
	if req.Popularity != nil {
		m.Popularity = *req.Popularity
	}
	if req.VoteAverage != nil {
		m.VoteAverage = *req.VoteAverage
	}
}

func (s *Service) ensureUniqueTitle(ctx context.Context, title, excludeID string) error {
	exists, err := s.repo.ExistsByTitle(ctx, title, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return core.FieldError(core.NonFieldErrors, MsgAlreadyExists)
	}
	return nil
}

type decodedImages struct {
	poster   *media.Image
	backdrop *media.Image
}

type savedImages struct {
	poster   string
	backdrop string
}

func (s *Service) decodeImages(poster, backdrop *string, verr *core.ValidationError) decodedImages {
	var out decodedImages
	out.poster = s.decodeImage("poster", poster, verr)
	out.backdrop = s.decodeImage("backdrop", backdrop, verr)
	return out
}

func (s *Service) decodeImage(field string, raw *string, verr *core.ValidationError) *media.Image {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	if s.images == nil {
		verr.Add(field, media.MsgInvalidImage)
		return nil
	}

	img, err := s.images.Decode(*raw)
	if err != nil {
		msg := media.MsgInvalidImage
		if errors.Is(err, media.ErrImageTooLarge) {
			msg = "The submitted file is too large."
		}
		verr.Add(field, msg)
		return nil
	}
	return &img
}

func (s *Service) saveImages(ctx context.Context, imgs decodedImages) (savedImages, error) {
	var out savedImages

	if imgs.poster != nil {
		rel, err := s.images.Save(ctx, media.FolderPosters, *imgs.poster)
		if err != nil {
			return out, fmt.Errorf("save poster: %w", err)
		}
		out.poster = rel
	}

	if imgs.backdrop != nil {
		rel, err := s.images.Save(ctx, media.FolderBackdrops, *imgs.backdrop)
		if err != nil {
			s.removeFiles(out.poster)
			return savedImages{}, fmt.Errorf("save backdrop: %w", err)
		}
		out.backdrop = rel
	}

	return out, nil
}

func (s *Service) removeFiles(paths ...string) {
	if s.images == nil {
		return
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := s.images.Remove(p); err != nil {
			slog.Warn("media cleanup failed", "error", err, "path", p)
		}
	}
}

func (s *Service) emit(ctx context.Context, eventType string, m *Movie) {
	events.Emit(ctx, s.events, eventType, events.MovieEvent{
		ID:       m.ID,
		Title:    m.Title,
		IsActive: m.IsActive,
		ActorID:  middleware.GetUserID(ctx),
	})
}
