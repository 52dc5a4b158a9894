// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/cinemadb/internal/config"
	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/events"
	"github.com/carterperez-dev/cinemadb/internal/middleware"
)

const (
	MsgInvalidPassword = "Invalid password."
	MsgInvalidUID      = "Invalid user id or user doesn't exist."
	MsgInvalidToken    = "Invalid token for given user."

	blacklistPrefix = "blacklist"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("refresh token reuse detected")
)

// UserInfo is the slice of an account the token flows need.
type UserInfo struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Role         string
	Staff        bool
	IsActive     bool
	TokenVersion int
}

// UserProvider is implemented by the account service. Lookups return
// core.ErrNotFound for unknown accounts.
type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, userID string) error
	SetOnline(ctx context.Context, userID string, online bool) error
}

type Service struct {
	repo        Repository
	jwt         *JWTManager
	users       UserProvider
	redis       *redis.Client
	resets      *ResetTokens
	events      events.Publisher
	frontendURL string
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	users UserProvider,
	redisClient *redis.Client,
	pub events.Publisher,
	cfg config.AuthConfig,
) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		repo:        repo,
		jwt:         jwt,
		users:       users,
		redis:       redisClient,
		resets:      NewResetTokens(redisClient, cfg.PasswordResetTTL),
		events:      pub,
		frontendURL: cfg.FrontendURL,
	}
}

var _ middleware.TokenVerifier = (*Service)(nil)

// Login exchanges credentials for a token pair and marks the account
// online. Unknown, wrong-password and inactive accounts all fail the same
// way.
func (s *Service) Login(ctx context.Context, req LoginRequest, client ClientInfo) (*TokenPair, error) {
	ctx, span := core.StartSpan(ctx, "auth", "auth.login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(req.Password, &user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.users.UpdatePassword(ctx, user.ID, newHash)
	}

	data, err := s.jwt.CreateRefreshToken("")
	if err != nil {
		return nil, err
	}

	pair, err := s.issue(ctx, user, data, client)
	if err != nil {
		return nil, err
	}

	s.setOnline(ctx, user.ID, true)
	core.AddSpanEvent(ctx, "auth.login", attribute.String("user.id", user.ID))

	return pair, nil
}

// Refresh rotates a refresh token. Presenting a token that was already
// rotated revokes every token of its family.
func (s *Service) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*TokenPair, error) {
	ctx, span := core.StartSpan(ctx, "auth", "auth.refresh")
	defer span.End()

	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	if err := stored.Usable(time.Now()); err != nil {
		if errors.Is(err, ErrTokenReuse) {
			s.revokeFamily(ctx, stored.FamilyID)
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive {
		s.revokeFamily(ctx, stored.FamilyID)
		return nil, fmt.Errorf("refresh: inactive account: %w", core.ErrTokenInvalid)
	}

	data, err := s.jwt.CreateRefreshToken(stored.FamilyID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.MarkAsUsed(ctx, stored.ID, data.ID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.revokeFamily(ctx, stored.FamilyID)
			return nil, ErrTokenReuse
		}
		return nil, err
	}

	return s.issue(ctx, user, data, client)
}

// VerifyAccessToken validates the token and then checks it against the
// account: blacklisted, stale-version and inactive-account tokens are
// rejected. Role and staff flags are taken from the account so changes
// apply immediately.
func (s *Service) VerifyAccessToken(ctx context.Context, token string) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if claims.ID != "" {
		revoked, err := s.isBlacklisted(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify token: unknown user: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("verify token: inactive account: %w", core.ErrTokenInvalid)
	}
	if claims.TokenVersion < user.TokenVersion {
		return nil, fmt.Errorf("verify token: stale version: %w", core.ErrTokenRevoked)
	}

	claims.Role = user.Role
	claims.Staff = user.Staff

	return claims, nil
}

// Logout revokes the given refresh token, blacklists the access token that
// authenticated the call and marks the account offline.
func (s *Service) Logout(ctx context.Context, claims *middleware.AccessTokenClaims, refreshToken string) error {
	if claims == nil {
		return core.ErrUnauthorized
	}

	if refreshToken != "" {
		stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
		switch {
		case errors.Is(err, core.ErrNotFound):
		case err != nil:
			return fmt.Errorf("find token: %w", err)
		case stored.UserID != claims.UserID:
			return fmt.Errorf("logout: %w", core.ErrForbidden)
		default:
			if err := s.repo.RevokeByID(ctx, stored.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("revoke token: %w", err)
			}
		}
	}

	if err := s.blacklist(ctx, claims.ID, claims.ExpiresAt); err != nil {
		return err
	}

	s.setOnline(ctx, claims.UserID, false)

	return nil
}

// LogoutAll revokes every refresh token of the account and invalidates its
// outstanding access tokens.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.users.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	return nil
}

// SetPassword changes the password after checking the current one. All
// sessions end with it.
func (s *Service) SetPassword(ctx context.Context, userID string, req SetPasswordRequest) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	valid, err := core.VerifyPassword(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return core.FieldError("current_password", MsgInvalidPassword)
	}

	return s.replacePassword(ctx, userID, req.NewPassword)
}

// RequestPasswordReset never reveals whether the email is known. For an
// active account it stores a one-time token and publishes the confirm link.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	ctx, span := core.StartSpan(ctx, "auth", "auth.reset_password")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive {
		return nil
	}

	token, expiresAt, err := s.resets.Issue(ctx, user.ID)
	if err != nil {
		return err
	}

	events.Emit(ctx, s.events, events.AccountPasswordReset, events.PasswordResetEvent{
		UserID:     user.ID,
		Email:      user.Email,
		ConfirmURL: s.ConfirmURL(core.EncodeUID(user.ID), token),
		ExpiresAt:  expiresAt,
	})

	return nil
}

// ConfirmPasswordReset sets a new password when token was issued for uid.
func (s *Service) ConfirmPasswordReset(ctx context.Context, req ResetPasswordConfirmRequest) error {
	userID, err := core.DecodeUID(req.UID)
	if err != nil {
		return core.FieldError("uid", MsgInvalidUID)
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.FieldError("uid", MsgInvalidUID)
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if err := s.resets.Consume(ctx, user.ID, req.Token); err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			return core.FieldError("token", MsgInvalidToken)
		}
		return err
	}

	return s.replacePassword(ctx, user.ID, req.NewPassword)
}

// ConfirmURL builds the frontend link carried by password reset mails.
func (s *Service) ConfirmURL(uid, token string) string {
	base := strings.TrimRight(s.frontendURL, "?")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "forgot_password_confirm=True" +
		"&uid=" + url.QueryEscape(uid) +
		"&token=" + url.QueryEscape(token)
}

// PruneExpired deletes refresh tokens that expired more than grace ago.
func (s *Service) PruneExpired(ctx context.Context, grace time.Duration) (int64, error) {
	return s.repo.DeleteExpired(ctx, grace)
}

func (s *Service) replacePassword(ctx context.Context, userID, password string) error {
	hash, err := core.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return s.LogoutAll(ctx, userID)
}

func (s *Service) issue(
	ctx context.Context,
	user *UserInfo,
	data *RefreshTokenData,
	client ClientInfo,
) (*TokenPair, error) {
	access, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:       user.ID,
		Role:         user.Role,
		Staff:        user.Staff,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	err = s.repo.Create(ctx, &RefreshToken{
		ID:        data.ID,
		UserID:    user.ID,
		TokenHash: data.Hash,
		FamilyID:  data.FamilyID,
		ExpiresAt: data.ExpiresAt,
		UserAgent: truncate(client.UserAgent, 512),
		IPAddress: truncate(client.IPAddress, 45),
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{Access: access, Refresh: data.Token}, nil
}

func (s *Service) revokeFamily(ctx context.Context, familyID string) {
	if err := s.repo.RevokeByFamilyID(ctx, familyID); err != nil {
		slog.Error("revoke token family failed", "error", err, "family_id", familyID)
	}
}

func (s *Service) setOnline(ctx context.Context, userID string, online bool) {
	if err := s.users.SetOnline(ctx, userID, online); err != nil {
		slog.Warn("update online status failed", "error", err, "user_id", userID)
	}
}

func (s *Service) blacklist(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if jti == "" || ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, core.RedisKey(blacklistPrefix, jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}

func (s *Service) isBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, core.RedisKey(blacklistPrefix, jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return n > 0, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
