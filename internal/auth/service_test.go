// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/cinemadb/internal/config"
	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/events"
	"github.com/carterperez-dev/cinemadb/internal/middleware"
)

const (
	annID       = "8d4c2a51-3f0b-4c5e-9d7a-6b1e2f3a4c5d"
	annEmail    = "ann@example.com"
	annPassword = "s3cretpass"
)

type fakeTokens struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{tokens: make(map[string]*RefreshToken)}
}

func (f *fakeTokens) Create(_ context.Context, t *RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.CreatedAt = time.Now()
	cp := *t
	f.tokens[t.ID] = &cp
	return nil
}

func (f *fakeTokens) FindByHash(_ context.Context, hash string) (*RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeTokens) MarkAsUsed(_ context.Context, id, replacedByID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok || t.IsUsed || t.RevokedAt != nil {
		return core.ErrNotFound
	}
	now := time.Now()
	t.IsUsed, t.UsedAt, t.ReplacedByID = true, &now, &replacedByID
	return nil
}

func (f *fakeTokens) RevokeByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok || t.RevokedAt != nil {
		return core.ErrNotFound
	}
	now := time.Now()
	t.RevokedAt = &now
	return nil
}

func (f *fakeTokens) revokeWhere(match func(*RefreshToken) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, t := range f.tokens {
		if match(t) && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
}

func (f *fakeTokens) RevokeByFamilyID(_ context.Context, familyID string) error {
	f.revokeWhere(func(t *RefreshToken) bool { return t.FamilyID == familyID })
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID string) error {
	f.revokeWhere(func(t *RefreshToken) bool { return t.UserID == userID })
	return nil
}

func (f *fakeTokens) DeleteExpired(_ context.Context, grace time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	cutoff := time.Now().Add(-grace)
	for id, t := range f.tokens {
		if t.ExpiresAt.Before(cutoff) {
			delete(f.tokens, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeTokens) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tokens {
		if t.RevokedAt == nil && !t.IsUsed {
			n++
		}
	}
	return n
}

type fakeUsers struct {
	mu     sync.Mutex
	users  map[string]*UserInfo
	online map[string]bool
}

func (f *fakeUsers) find(match func(*UserInfo) bool) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	return f.find(func(u *UserInfo) bool { return strings.EqualFold(u.Email, email) })
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	return f.find(func(u *UserInfo) bool { return u.ID == id })
}

func (f *fakeUsers) mutate(id string, fn func(*UserInfo)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return core.ErrNotFound
	}
	fn(u)
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	return f.mutate(id, func(u *UserInfo) { u.PasswordHash = hash })
}

func (f *fakeUsers) IncrementTokenVersion(_ context.Context, id string) error {
	return f.mutate(id, func(u *UserInfo) { u.TokenVersion++ })
}

func (f *fakeUsers) SetOnline(_ context.Context, id string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[id] = online
	return nil
}

func (f *fakeUsers) isOnline(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[id]
}

type fixture struct {
	svc    *Service
	tokens *fakeTokens
	users  *fakeUsers
	events *events.Recorder
	redis  *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hash, err := core.HashPassword(annPassword)
	require.NoError(t, err)

	users := &fakeUsers{
		users: map[string]*UserInfo{
			annID: {
				ID:           annID,
				Email:        annEmail,
				Username:     "ann",
				PasswordHash: hash,
				Role:         "customer",
				IsActive:     true,
			},
		},
		online: make(map[string]bool),
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tokens := newFakeTokens()
	rec := &events.Recorder{}

	svc := NewService(tokens, newTestJWT(t), users, rdb, rec, config.AuthConfig{
		PasswordResetTTL: time.Hour,
		FrontendURL:      "http://localhost:3000/",
	})

	return &fixture{svc: svc, tokens: tokens, users: users, events: rec, redis: mr}
}

func (f *fixture) login(t *testing.T) *TokenPair {
	t.Helper()
	pair, err := f.svc.Login(context.Background(), LoginRequest{Email: annEmail, Password: annPassword}, ClientInfo{})
	require.NoError(t, err)
	return pair
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	pair := f.login(t)
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)
	assert.True(t, f.users.isOnline(annID))
	assert.Equal(t, 1, f.tokens.live())

	claims, err := f.svc.VerifyAccessToken(context.Background(), pair.Access)
	require.NoError(t, err)
	assert.Equal(t, annID, claims.UserID)
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, LoginRequest{Email: annEmail, Password: "wrong-pass"}, ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: annPassword}, ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.users.mutate(annID, func(u *UserInfo) { u.IsActive = false }))
	_, err = f.svc.Login(ctx, LoginRequest{Email: annEmail, Password: annPassword}, ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Zero(t, f.tokens.live())
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.login(t)

	second, err := f.svc.Refresh(ctx, first.Refresh, ClientInfo{})
	require.NoError(t, err)
	assert.NotEqual(t, first.Refresh, second.Refresh)
	assert.Equal(t, 1, f.tokens.live())

	_, err = f.svc.Refresh(ctx, first.Refresh, ClientInfo{})
	assert.ErrorIs(t, err, ErrTokenReuse)
	assert.Zero(t, f.tokens.live())

	_, err = f.svc.Refresh(ctx, second.Refresh, ClientInfo{})
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	_, err = f.svc.Refresh(ctx, "unknown", ClientInfo{})
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestVerifyAccessTokenChecksAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair := f.login(t)

	require.NoError(t, f.users.mutate(annID, func(u *UserInfo) { u.Role = "admin"; u.Staff = true }))
	claims, err := f.svc.VerifyAccessToken(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
	assert.True(t, claims.Staff)

	require.NoError(t, f.users.IncrementTokenVersion(ctx, annID))
	_, err = f.svc.VerifyAccessToken(ctx, pair.Access)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	fresh := f.login(t)
	require.NoError(t, f.users.mutate(annID, func(u *UserInfo) { u.IsActive = false }))
	_, err = f.svc.VerifyAccessToken(ctx, fresh.Access)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair := f.login(t)

	claims, err := f.svc.VerifyAccessToken(ctx, pair.Access)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, claims, pair.Refresh))

	assert.False(t, f.users.isOnline(annID))
	assert.Zero(t, f.tokens.live())

	_, err = f.svc.VerifyAccessToken(ctx, pair.Access)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	other := &middleware.AccessTokenClaims{UserID: "someone-else", ExpiresAt: time.Now().Add(time.Minute)}
	second := f.login(t)
	err = f.svc.Logout(ctx, other, second.Refresh)
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestSetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	err := f.svc.SetPassword(ctx, annID, SetPasswordRequest{CurrentPassword: "wrong-pass", NewPassword: "brandnew99"})
	verr, ok := core.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{MsgInvalidPassword}, verr.Fields["current_password"])

	require.NoError(t, f.svc.SetPassword(ctx, annID, SetPasswordRequest{CurrentPassword: annPassword, NewPassword: "brandnew99"}))
	assert.Zero(t, f.tokens.live())

	_, err = f.svc.Login(ctx, LoginRequest{Email: annEmail, Password: "brandnew99"}, ClientInfo{})
	require.NoError(t, err)
}

func resetTokenFromEvent(t *testing.T, rec *events.Recorder) (string, string) {
	t.Helper()
	envs := rec.Events()
	require.Len(t, envs, 1)
	require.Equal(t, events.AccountPasswordReset, envs[0].Type)

	var ev events.PasswordResetEvent
	require.NoError(t, envs[0].Decode(&ev))
	assert.Equal(t, annEmail, ev.Email)

	u, err := url.Parse(ev.ConfirmURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "True", q.Get("forgot_password_confirm"))
	return q.Get("uid"), q.Get("token")
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "nobody@example.com"))
	assert.Empty(t, f.events.Events())

	require.NoError(t, f.svc.RequestPasswordReset(ctx, annEmail))
	uid, token := resetTokenFromEvent(t, f.events)
	assert.Equal(t, core.EncodeUID(annID), uid)

	err := f.svc.ConfirmPasswordReset(ctx, ResetPasswordConfirmRequest{UID: uid, Token: "forged", NewPassword: "brandnew99"})
	verr, ok := core.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{MsgInvalidToken}, verr.Fields["token"])

	err = f.svc.ConfirmPasswordReset(ctx, ResetPasswordConfirmRequest{UID: "@@@", Token: token, NewPassword: "brandnew99"})
	verr, ok = core.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{MsgInvalidUID}, verr.Fields["uid"])

	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, ResetPasswordConfirmRequest{UID: uid, Token: token, NewPassword: "brandnew99"}))
	assert.Zero(t, f.tokens.live())

	u, err := f.users.GetByID(ctx, annID)
	require.NoError(t, err)
	assert.Equal(t, 1, u.TokenVersion)

	err = f.svc.ConfirmPasswordReset(ctx, ResetPasswordConfirmRequest{UID: uid, Token: token, NewPassword: "another99"})
	_, ok = core.AsValidationError(err)
	assert.True(t, ok, "token must be single use")
}

func TestResetTokenExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, annEmail))
	uid, token := resetTokenFromEvent(t, f.events)

	f.redis.FastForward(2 * time.Hour)

	err := f.svc.ConfirmPasswordReset(ctx, ResetPasswordConfirmRequest{UID: uid, Token: token, NewPassword: "brandnew99"})
	verr, ok := core.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "token")
}

func TestConfirmURL(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t,
		"http://localhost:3000/?forgot_password_confirm=True&uid=abc&token=a%3Db",
		f.svc.ConfirmURL("abc", "a=b"),
	)
}

func newAuthRouter(f *fixture) chi.Router {
	h := NewHandler(f.svc)
	r := chi.NewRouter()
	r.Get("/.well-known/jwks.json", h.JWKS)
	r.Route("/api/auth", func(r chi.Router) {
		h.RegisterRoutes(r, middleware.Authenticator(f.svc), nil)
	})
	return r
}

func post(r http.Handler, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandlerFlow(t *testing.T) {
	f := newFixture(t)
	router := newAuthRouter(f)

	rr := post(router, "/api/auth/jwt/create", `{"email":"ann@example.com","password":"nope-nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), core.MsgInvalidCredential)

	rr = post(router, "/api/auth/jwt/create", `{"email":"ann@example.com"}`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"password":["This field is required."]}`, rr.Body.String())

	rr = post(router, "/api/auth/jwt/create", `{"email":"ann@example.com","password":"s3cretpass"}`, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"access"`)
	assert.Contains(t, rr.Body.String(), `"refresh"`)

	pair := f.login(t)

	rr = post(router, "/api/auth/jwt/verify", `{"token":"`+pair.Access+`"}`, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{}`, rr.Body.String())

	rr = post(router, "/api/auth/jwt/verify", `{"token":"junk"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "token_not_valid")

	rr = post(router, "/api/auth/users/reset_password", `{"email":"nobody@example.com"}`, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = post(router, "/api/auth/users/reset_password_confirm",
		`{"uid":"`+core.EncodeUID(annID)+`","token":"bad","new_password":"brandnew99"}`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"token":["Invalid token for given user."]}`, rr.Body.String())

	rr = post(router, "/api/auth/jwt/logout", `{}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = post(router, "/api/auth/jwt/logout", `{"refresh":"`+pair.Refresh+`"}`, pair.Access)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = post(router, "/api/auth/jwt/refresh", `{"refresh":"`+pair.Refresh+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPruneExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.tokens.Create(ctx, &RefreshToken{ID: "old", ExpiresAt: time.Now().Add(-48 * time.Hour)}))
	f.login(t)

	n, err := f.svc.PruneExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, f.tokens.live())
}
