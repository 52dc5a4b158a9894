// AngelaMos | 2026
// jwt_test.go

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/cinemadb/internal/config"
	"github.com/carterperez-dev/cinemadb/internal/core"
)

func testJWTConfig(t *testing.T) config.JWTConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := config.JWTConfig{
		PrivateKeyPath:     filepath.Join(dir, "private.pem"),
		PublicKeyPath:      filepath.Join(dir, "public.pem"),
		AccessTokenExpire:  5 * time.Minute,
		RefreshTokenExpire: time.Hour,
		Issuer:             "cinemadb",
		Audience:           "cinemadb-api",
	}
	require.NoError(t, GenerateKeyPair(cfg.PrivateKeyPath, cfg.PublicKeyPath))
	return cfg
}

func newTestJWT(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(testJWTConfig(t))
	require.NoError(t, err)
	return m
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestJWT(t)

	token, err := m.CreateAccessToken(AccessTokenClaims{
		UserID:       "5b0f3f5e-8a43-4a4e-9b1e-0b8f1c1d2e3f",
		Role:         "moderator",
		Staff:        true,
		TokenVersion: 3,
	})
	require.NoError(t, err)

	claims, err := m.VerifyAccessToken(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, "5b0f3f5e-8a43-4a4e-9b1e-0b8f1c1d2e3f", claims.UserID)
	assert.Equal(t, "moderator", claims.Role)
	assert.True(t, claims.Staff)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt, 5*time.Second)
}

func TestVerifyRejects(t *testing.T) {
	cfg := testJWTConfig(t)
	m, err := NewJWTManager(cfg)
	require.NoError(t, err)

	valid, err := m.CreateAccessToken(AccessTokenClaims{UserID: "u1", Role: "customer"})
	require.NoError(t, err)

	expiredCfg := cfg
	expiredCfg.AccessTokenExpire = -time.Minute
	expiredMgr, err := NewJWTManager(expiredCfg)
	require.NoError(t, err)
	expired, err := expiredMgr.CreateAccessToken(AccessTokenClaims{UserID: "u1", Role: "customer"})
	require.NoError(t, err)

	otherCfg := cfg
	otherCfg.Audience = "someone-else"
	otherMgr, err := NewJWTManager(otherCfg)
	require.NoError(t, err)
	foreign, err := otherMgr.CreateAccessToken(AccessTokenClaims{UserID: "u1", Role: "customer"})
	require.NoError(t, err)

	stranger := newTestJWT(t)
	unsigned, err := stranger.CreateAccessToken(AccessTokenClaims{UserID: "u1", Role: "customer"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-token", core.ErrTokenInvalid},
		{"tampered", valid[:len(valid)-4] + "AAAA", core.ErrTokenInvalid},
		{"expired", expired, core.ErrTokenExpired},
		{"wrong audience", foreign, core.ErrTokenInvalid},
		{"other key", unsigned, core.ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.VerifyAccessToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJWKSHandler(t *testing.T) {
	m := newTestJWT(t)

	rr := httptest.NewRecorder()
	m.JWKSHandler()(rr, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var doc struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	require.Len(t, doc.Keys, 1)

	key := doc.Keys[0]
	assert.Equal(t, "EC", key["kty"])
	assert.Equal(t, m.KeyID(), key["kid"])
	assert.Equal(t, "sig", key["use"])
	assert.NotContains(t, key, "d")
}

func TestCreateRefreshToken(t *testing.T) {
	m := newTestJWT(t)

	first, err := m.CreateRefreshToken("")
	require.NoError(t, err)
	assert.NotEmpty(t, first.FamilyID)
	assert.Equal(t, core.HashToken(first.Token), first.Hash)

	next, err := m.CreateRefreshToken(first.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, first.FamilyID, next.FamilyID)
	assert.NotEqual(t, first.Token, next.Token)
	assert.NotEqual(t, first.ID, next.ID)
}
