// AngelaMos | 2026
// entity.go

package auth

import (
	"fmt"
	"time"

	"github.com/carterperez-dev/cinemadb/internal/core"
)

// RefreshToken is the stored half of an opaque refresh token. Only the
// SHA-256 of the token is persisted. Tokens rotated from one login share a
// FamilyID.
type RefreshToken struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	IsUsed       bool       `db:"is_used"`
	UsedAt       *time.Time `db:"used_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// Usable reports why a token cannot be exchanged, or nil if it can. A used
// token yields ErrTokenReuse so the caller can burn the family.
func (t *RefreshToken) Usable(now time.Time) error {
	switch {
	case t.IsUsed:
		return ErrTokenReuse
	case t.IsRevoked():
		return fmt.Errorf("refresh token: %w", core.ErrTokenRevoked)
	case t.IsExpired(now):
		return fmt.Errorf("refresh token: %w", core.ErrTokenExpired)
	}
	return nil
}

// ClientInfo is what a session remembers about the client that opened it.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}
