// AngelaMos | 2026
// entity.go

package user

import (
	"strings"
	"time"

	"github.com/carterperez-dev/cinemadb/internal/middleware"
	"github.com/carterperez-dev/cinemadb/internal/resource"
)

const (
	DefaultPicture = "media/users/user_default_profile.png"
	CacheKey       = "users"
)

const (
	RoleCustomer  = middleware.RoleCustomer
	RoleModerator = middleware.RoleModerator
	RoleAdmin     = middleware.RoleAdmin
	RoleOwner     = middleware.RoleOwner
)

type Account struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Username     string    `db:"username"`
	Phone        *string   `db:"phone"`
	Picture      string    `db:"picture"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	PasswordHash string    `db:"password_hash"`
	IsOnline     bool      `db:"is_online"`
	IsActive     bool      `db:"is_active"`
	IsStaff      bool      `db:"is_staff"`
	Role         string    `db:"role"`
	Verified     bool      `db:"verified"`
	TokenVersion int       `db:"token_version"`
	DateJoined   time.Time `db:"date_joined"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (a *Account) GetID() string {
	return a.ID
}

func (a *Account) Active() bool {
	return a.IsActive
}

// Descriptor lists the columns staff queries may search and sort by.
var Descriptor = resource.Descriptor{
	Name: "User",
	Searchable: []string{
		"email",
		"username",
		"phone",
		"first_name",
		"last_name",
		"role",
	},
	Sortable: []string{
		"id",
		"email",
		"username",
		"first_name",
		"last_name",
		"role",
		"is_active",
		"is_staff",
		"is_online",
		"verified",
		"date_joined",
		"updated_at",
	},
	DefaultOrder: "date_joined",
}

// NormalizeEmail lower-cases and trims an address so lookups and the
// unique index agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
