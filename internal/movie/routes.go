// AngelaMos | 2026
// routes.go

package movie

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/cinemadb/internal/resource"
)

type Handler = resource.Handler[*Movie, MovieResponse]

func NewHandler(
	svc *Service,
	cache resource.Cache,
	pageSize int,
	logger *slog.Logger,
) *Handler {
	return resource.NewHandler(resource.Config[*Movie, MovieResponse]{
		Descriptor:  Descriptor,
		Store:       svc,
		Serializer:  svc,
		Permissions: resource.ReadOnlyOrAuthenticated(),
		Cache:       cache,
		CacheKey:    CacheKey,
		PageSize:    pageSize,
		Logger:      logger,
	})
}

// RegisterRoutes mounts /movies and /movie/{id}. Trailing slashes are
// stripped by the router before matching.
func RegisterRoutes(r chi.Router, h *Handler) {
	h.Mount(r, "/movies", "/movie/{id}")
}
