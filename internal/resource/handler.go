// AngelaMos | 2026
// handler.go

package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/pagination"
)

const (
	ActiveParam = "active"
	QueryParam  = "query"
	OrderParam  = "order"
	IDParam     = "id"
)

// Store is the persistence a resource needs. Get and SetActive return
// core.ErrNotFound for unknown ids. SetActive returns ErrAlreadyActive or
// ErrAlreadyInactive when the row is already in the requested state.
type Store[T Entity] interface {
	Count(ctx context.Context, q ListQuery) (int, error)
	List(ctx context.Context, q ListQuery) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	SetActive(ctx context.Context, id string, active bool) (T, error)
}

// Serializer validates request bodies, persists the result and renders
// entities. Validation failures are returned as *core.ValidationError.
type Serializer[T Entity, R any] interface {
	Create(ctx context.Context, body []byte) (T, error)
	Update(ctx context.Context, existing T, body []byte) (T, error)
	Represent(ctx context.Context, entity T) R
}

// Cache memoizes list responses and forgets them after a write.
type Cache interface {
	Middleware(resource string) func(http.Handler) http.Handler
	Invalidate(ctx context.Context, resource string) error
}

type Config[T Entity, R any] struct {
	Descriptor  Descriptor
	Store       Store[T]
	Serializer  Serializer[T, R]
	Permissions Permissions
	Cache       Cache
	// CacheKey names the cache namespace; defaults to the lowercased
	// descriptor name.
	CacheKey string
	PageSize int
	Logger   *slog.Logger
}

type Handler[T Entity, R any] struct {
	desc     Descriptor
	store    Store[T]
	ser      Serializer[T, R]
	perms    Permissions
	cache    Cache
	cacheKey string
	pageSize int
	logger   *slog.Logger
}

func NewHandler[T Entity, R any](cfg Config[T, R]) *Handler[T, R] {
	key := cfg.CacheKey
	if key == "" {
		key = strings.ToLower(cfg.Descriptor.Name)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler[T, R]{
		desc:     cfg.Descriptor,
		store:    cfg.Store,
		ser:      cfg.Serializer,
		perms:    cfg.Permissions,
		cache:    cfg.Cache,
		cacheKey: key,
		pageSize: cfg.PageSize,
		logger:   logger,
	}
}

// Mount registers the collection routes on collectionPath and the entity
// routes on entityPath, which must contain the {id} parameter.
func (h *Handler[T, R]) Mount(r chi.Router, collectionPath, entityPath string) {
	list := http.Handler(http.HandlerFunc(h.list))
	if h.cache != nil {
		list = h.cache.Middleware(h.cacheKey)(list)
	}

	r.With(h.guard(h.perms.List)).Method(http.MethodGet, collectionPath, list)
	r.Post(collectionPath, h.Create)

	r.Get(entityPath, h.Retrieve)
	r.Post(entityPath, h.Activate)
	r.Put(entityPath, h.Update)
	r.Patch(entityPath, h.Update)
	r.Delete(entityPath, h.Delete)
}

func (h *Handler[T, R]) guard(p Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := check(r.Context(), p); err != nil {
				core.JSONError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler[T, R]) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	_, hasActive := q[ActiveParam]
	lq := ListQuery{
		Active: ParseActive(q.Get(ActiveParam), hasActive),
		Search: strings.TrimSpace(q.Get(QueryParam)),
		Order:  h.desc.OrderBy(q.Get(OrderParam)),
	}

	count, err := h.store.Count(ctx, lq)
	if err != nil {
		h.writeError(w, fmt.Errorf("count %s: %w", h.cacheKey, err))
		return
	}

	params, err := pagination.ParseParams(q, h.pageSize).Resolve(count)
	if err != nil {
		h.writeError(w, err)
		return
	}

	results := make([]R, 0, params.Limit())
	if count > 0 {
		lq.Limit = params.Limit()
		lq.Offset = params.Offset()

		items, err := h.store.List(ctx, lq)
		if err != nil {
			h.writeError(w, fmt.Errorf("list %s: %w", h.cacheKey, err))
			return
		}
		for _, item := range items {
			results = append(results, h.ser.Represent(ctx, item))
		}
	}

	core.OK(w, pagination.NewPage(r, params, count, results))
}

func (h *Handler[T, R]) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := check(ctx, h.perms.Create); err != nil {
		core.JSONError(w, err)
		return
	}

	body, err := core.ReadBody(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	created, err := h.ser.Create(ctx, body)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.invalidate(ctx)
	core.Created(w, h.ser.Represent(ctx, created))
}

func (h *Handler[T, R]) Retrieve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := check(ctx, h.perms.Retrieve); err != nil {
		core.JSONError(w, err)
		return
	}

	entity, err := h.load(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, h.ser.Represent(ctx, entity))
}

// Activate reactivates a soft-deleted entity.
func (h *Handler[T, R]) Activate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.perms.Activate, true)
}

// Delete soft-deletes an entity by clearing its activation flag.
func (h *Handler[T, R]) Delete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.perms.Delete, false)
}

func (h *Handler[T, R]) transition(
	w http.ResponseWriter,
	r *http.Request,
	perm Permission,
	active bool,
) {
	ctx := r.Context()
	if err := check(ctx, perm); err != nil {
		core.JSONError(w, err)
		return
	}

	entity, err := h.load(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if active {
		err = Reactivate(entity)
	} else {
		err = Deactivate(entity)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	updated, err := h.store.SetActive(ctx, entity.GetID(), active)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.invalidate(ctx)

	status := http.StatusOK
	if !active {
		status = http.StatusAccepted
	}
	core.JSON(w, status, h.ser.Represent(ctx, updated))
}

// Update handles both PUT and PATCH. Omitted fields keep their value.
func (h *Handler[T, R]) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := check(ctx, h.perms.Update); err != nil {
		core.JSONError(w, err)
		return
	}

	entity, err := h.load(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	body, err := core.ReadBody(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	updated, err := h.ser.Update(ctx, entity, body)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.invalidate(ctx)
	core.Accepted(w, h.ser.Represent(ctx, updated))
}

func (h *Handler[T, R]) load(r *http.Request) (T, error) {
	id := chi.URLParam(r, IDParam)
	if _, err := uuid.Parse(id); err != nil {
		var zero T
		return zero, core.ErrNotFound
	}
	return h.store.Get(r.Context(), id)
}

func (h *Handler[T, R]) invalidate(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, h.cacheKey); err != nil {
		h.logger.Warn("cache invalidation failed",
			"error", err,
			"resource", h.cacheKey,
		)
	}
}

func (h *Handler[T, R]) writeError(w http.ResponseWriter, err error) {
	if verr, ok := core.AsValidationError(err); ok {
		core.ValidationFailed(w, verr)
		return
	}

	switch {
	case errors.Is(err, ErrAlreadyActive):
		core.Detail(w, http.StatusBadRequest, fmt.Sprintf("This %s is active", h.desc.Name))
	case errors.Is(err, ErrAlreadyInactive):
		core.JSON(w, http.StatusBadRequest, map[string]string{
			"message": fmt.Sprintf("This %s is inactive", h.desc.Name),
		})
	case errors.Is(err, pagination.ErrInvalidPage):
		core.Detail(w, http.StatusNotFound, pagination.MsgInvalidPage)
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w)
	default:
		core.JSONError(w, err)
	}
}
