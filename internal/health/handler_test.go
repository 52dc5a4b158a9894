// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	up   = CheckerFunc(func(context.Context) error { return nil })
	down = CheckerFunc(func(context.Context) error { return errors.New("down") })
)

func readiness(t *testing.T, h *Handler) (int, ReadinessResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestReadinessHealthy(t *testing.T) {
	code, body := readiness(t, NewHandler(up, up))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Len(t, body.Checks, 2)
}

func TestReadinessDegradedOnRequiredFailure(t *testing.T) {
	code, body := readiness(t, NewHandler(up, down))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body.Status)
	assert.False(t, body.Checks[1].Healthy)
}

func TestReadinessIgnoresOptionalFailure(t *testing.T) {
	code, body := readiness(t, NewHandler(up, up).WithOptional("broker", down))

	assert.Equal(t, http.StatusOK, code)
	require.Len(t, body.Checks, 3)
	assert.Equal(t, "broker", body.Checks[2].Name)
	assert.False(t, body.Checks[2].Healthy)
}

func TestLivenessDuringShutdown(t *testing.T) {
	h := NewHandler(up, up)
	h.SetShutdown(true)

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
