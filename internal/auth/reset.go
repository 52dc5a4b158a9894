// AngelaMos | 2026
// reset.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/cinemadb/internal/core"
)

const (
	resetKeyPrefix  = "password_reset"
	resetTokenBytes = 32
	defaultResetTTL = time.Hour
)

var ErrInvalidResetToken = errors.New("invalid password reset token")

// ResetTokens keeps one-time password reset tokens in Redis, keyed by the
// token hash and holding the account id.
type ResetTokens struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewResetTokens(rdb *redis.Client, ttl time.Duration) *ResetTokens {
	if ttl <= 0 {
		ttl = defaultResetTTL
	}
	return &ResetTokens{rdb: rdb, ttl: ttl}
}

func (r *ResetTokens) TTL() time.Duration {
	return r.ttl
}

// Issue stores a new token for userID and returns it with its expiry.
func (r *ResetTokens) Issue(ctx context.Context, userID string) (string, time.Time, error) {
	token, err := core.GenerateSecureToken(resetTokenBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue reset token: %w", err)
	}

	if err := r.rdb.Set(ctx, resetKey(token), userID, r.ttl).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("store reset token: %w", err)
	}

	return token, time.Now().Add(r.ttl), nil
}

// Consume burns the token if it was issued for userID. Whoever deletes the
// key first wins, so a token is honored at most once.
func (r *ResetTokens) Consume(ctx context.Context, userID, token string) error {
	key := resetKey(token)

	owner, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("load reset token: %w", err)
	}
	if owner != userID {
		return ErrInvalidResetToken
	}

	deleted, err := r.rdb.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if deleted == 0 {
		return ErrInvalidResetToken
	}

	return nil
}

func resetKey(token string) string {
	return core.RedisKey(resetKeyPrefix, core.HashToken(token))
}
