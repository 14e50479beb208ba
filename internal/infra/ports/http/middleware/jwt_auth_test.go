package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/PeerCall/internal/infra/appctx"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)

	return token
}

func TestJWTAuthMiddleware(t *testing.T) {
	const secret = "secret"

	userID := uuid.New()
	valid := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	tests := []struct {
		name       string
		cookie     string
		wantStatus int
	}{
		{name: "no cookie", wantStatus: http.StatusUnauthorized},
		{name: "garbage", cookie: "not-a-token", wantStatus: http.StatusUnauthorized},
		{
			name:       "wrong secret",
			cookie:     sign(t, jwt.SigningMethodHS256, []byte("other"), valid),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unexpected method",
			cookie:     sign(t, jwt.SigningMethodHS512, []byte(secret), valid),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired",
			cookie: sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
				Subject:   userID.String(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "subject is not a uuid",
			cookie:     sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{Subject: "alice"}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "valid",
			cookie:     sign(t, jwt.SigningMethodHS256, []byte(secret), valid),
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got uuid.UUID

			next := func(c echo.Context) error {
				got, _ = appctx.UserID(c.Request().Context())
				return c.NoContent(http.StatusOK)
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()

			err := JWTAuthMiddleware(secret)(next)(echo.New().NewContext(req, rec))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, userID, got)
			} else {
				assert.Equal(t, uuid.Nil, got)
			}
		})
	}
}
