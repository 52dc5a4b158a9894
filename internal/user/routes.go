// AngelaMos | 2026
// routes.go

package user

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/cinemadb/internal/resource"
)

// StaffHandler manages accounts through the generic collection routes.
type StaffHandler = resource.Handler[*Account, AccountResponse]

func NewStaffHandler(
	svc *Service,
	cache resource.Cache,
	pageSize int,
	logger *slog.Logger,
) *StaffHandler {
	return resource.NewHandler(resource.Config[*Account, AccountResponse]{
		Descriptor:  Descriptor,
		Store:       svc,
		Serializer:  svc,
		Permissions: resource.StaffOnly(),
		Cache:       cache,
		CacheKey:    CacheKey,
		PageSize:    pageSize,
		Logger:      logger,
	})
}

// RegisterStaffRoutes mounts /users and /user/{id}.
func RegisterStaffRoutes(r chi.Router, h *StaffHandler) {
	h.Mount(r, "/users", "/user/{id}")
}
