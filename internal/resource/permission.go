// AngelaMos | 2026
// permission.go

package resource

import (
	"context"

	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/middleware"
)

// Permission decides whether the caller in ctx may run an operation. It
// returns an AppError carrying 401 or 403.
type Permission func(ctx context.Context) error

type Permissions struct {
	List     Permission
	Create   Permission
	Retrieve Permission
	Activate Permission
	Update   Permission
	Delete   Permission
}

func AllowAny(context.Context) error {
	return nil
}

func IsAuthenticated(ctx context.Context) error {
	if !middleware.IsAuthenticated(ctx) {
		return core.UnauthorizedError("")
	}
	return nil
}

func IsStaff(ctx context.Context) error {
	if err := IsAuthenticated(ctx); err != nil {
		return err
	}
	if !middleware.IsStaff(ctx) {
		return core.ForbiddenError("")
	}
	return nil
}

// HasRole admits authenticated callers holding one of roles. Staff always
// pass.
func HasRole(roles ...string) Permission {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(ctx context.Context) error {
		if err := IsAuthenticated(ctx); err != nil {
			return err
		}
		if middleware.IsStaff(ctx) {
			return nil
		}
		if _, ok := allowed[middleware.GetUserRole(ctx)]; !ok {
			return core.ForbiddenError("")
		}
		return nil
	}
}

// ReadOnlyOrAuthenticated is the catalog default: anyone may read, only
// signed in callers may write.
func ReadOnlyOrAuthenticated() Permissions {
	return Permissions{
		List:     AllowAny,
		Create:   IsAuthenticated,
		Retrieve: AllowAny,
		Activate: IsAuthenticated,
		Update:   IsAuthenticated,
		Delete:   IsAuthenticated,
	}
}

func StaffOnly() Permissions {
	return Permissions{
		List:     IsStaff,
		Create:   IsStaff,
		Retrieve: IsStaff,
		Activate: IsStaff,
		Update:   IsStaff,
		Delete:   IsStaff,
	}
}

func check(ctx context.Context, p Permission) error {
	if p == nil {
		return core.ForbiddenError("")
	}
	return p(ctx)
}
