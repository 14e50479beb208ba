package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T, userID uuid.UUID) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"conflict: username taken"}`))
	})

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if creds.Password != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}

		http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "token", Path: "/"})
		_ = json.NewEncoder(w).Encode(Me{ID: userID, Username: creds.Username})
	})

	mux.HandleFunc("GET /api/v1/ice", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("jwt"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		_, _ = w.Write([]byte(`[{"urls":["stun:stun.example.com:3478"]},{"urls":["turn:relay.example.com:3478"],"username":"1700000000","credential":"pw"}]`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestLoginKeepsCookie(t *testing.T) {
	userID := uuid.New()
	srv := fakeAPI(t, userID)

	c, err := New(srv.URL + "/")
	require.NoError(t, err)

	ctx := context.Background()

	_, err = c.ICEServers(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	// уже зарегистрированный пользователь не ошибка
	me, err := c.Login(ctx, "alice", "secret1", true)
	require.NoError(t, err)
	assert.Equal(t, userID, me.ID)
	assert.Equal(t, "alice", me.Username)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	require.Len(t, c.HTTP.Jar.Cookies(u), 1)

	servers, err := c.ICEServers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "1700000000", servers[1].Username)
	assert.Equal(t, "pw", servers[1].Credential)
}

func TestLoginWrongPassword(t *testing.T) {
	srv := fakeAPI(t, uuid.New())

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "alice", "wrong", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")
}
