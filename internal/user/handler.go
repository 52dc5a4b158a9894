// AngelaMos | 2026
// handler.go

package user

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/middleware"
	"github.com/carterperez-dev/cinemadb/internal/resource"
)

// Handler serves the self-service account routes.
type Handler struct {
	service *Service
	cache   resource.Cache
}

// NewHandler wires the account routes. cache may be nil; when set, writes
// invalidate the staff account listing.
func NewHandler(service *Service, cache resource.Cache) *Handler {
	return &Handler{service: service, cache: cache}
}

// RegisterRoutes mounts registration and /users/me relative to the auth
// prefix.
func (h *Handler) RegisterRoutes(r chi.Router, authenticator func(http.Handler) http.Handler) {
	r.Post("/users", h.Register)

	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Get("/users/me", h.GetMe)
		r.Put("/users/me", h.UpdateMe)
		r.Patch("/users/me", h.UpdateMe)
		r.Delete("/users/me", h.DeleteMe)
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	body, err := core.ReadBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	a, err := h.service.Register(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}

	h.invalidate(r)
	core.Created(w, h.service.Represent(r.Context(), a))
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, h.service.Represent(r.Context(), a))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	body, err := core.ReadBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	a, err := h.service.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), body)
	if err != nil {
		writeError(w, err)
		return
	}

	h.invalidate(r)
	core.OK(w, h.service.Represent(r.Context(), a))
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	body, err := core.ReadBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.DeleteMe(r.Context(), middleware.GetUserID(r.Context()), body); err != nil {
		writeError(w, err)
		return
	}

	h.invalidate(r)
	core.NoContent(w)
}

func (h *Handler) invalidate(r *http.Request) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(r.Context(), CacheKey); err != nil {
		slog.Warn("cache invalidation failed",
			"error", err,
			"resource", CacheKey,
		)
	}
}

func writeError(w http.ResponseWriter, err error) {
	if verr, ok := core.AsValidationError(err); ok {
		core.ValidationFailed(w, verr)
		return
	}

	switch {
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w)
	default:
		core.JSONError(w, err)
	}
}
