package metric

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

func health(t *testing.T, checks ...HealthCheck) (int, healthResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	NewServer(checks...).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	return rec.Code, resp
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }

	t.Run("no checks", func(t *testing.T) {
		code, resp := health(t)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", resp.Status)
	})

	t.Run("all pass", func(t *testing.T) {
		code, resp := health(t, HealthCheck{Name: "postgres", Check: ok}, HealthCheck{Name: "presence", Check: ok})
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, map[string]string{"postgres": "ok", "presence": "ok"}, resp.Checks)
	})

	t.Run("presence down", func(t *testing.T) {
		code, resp := health(t,
			HealthCheck{Name: "postgres", Check: ok},
			HealthCheck{Name: "presence", Check: func(context.Context) error { return errors.New("redis: connection refused") }},
		)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "redis: connection refused", resp.Checks["presence"])
		assert.Equal(t, "ok", resp.Checks["postgres"])
	})

	t.Run("deadline", func(t *testing.T) {
		_, resp := health(t, HealthCheck{Name: "postgres", Check: func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			if !ok {
				return errors.New("no deadline")
			}
			return nil
		}})
		assert.Equal(t, "ok", resp.Status)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
