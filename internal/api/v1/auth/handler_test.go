package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qianh/prompt-tower/internal/api/v1/auth"
	"github.com/qianh/prompt-tower/internal/middleware"
	"github.com/qianh/prompt-tower/internal/services"
	"github.com/qianh/prompt-tower/internal/storage"
	"github.com/qianh/prompt-tower/internal/utils"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	root := t.TempDir()
	store, err := storage.NewFileStore(filepath.Join(root, "prompts"), filepath.Join(root, "data"), zap.NewNop())
	require.NoError(t, err)

	tokens := utils.NewTokenManager("test-secret", 30*time.Minute)
	svc := services.NewAuthService(store, tokens, services.NewTokenDenylist(client), zap.NewNop())

	r := gin.New()
	auth.RegisterRoutes(r.Group("/api/v1"), auth.NewHandler(svc, tokens.TTL()), middleware.AuthMiddleware(svc))
	return r
}

func postJSON(r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func withToken(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r http.Handler, username, password string) string {
	t.Helper()
	w := postJSON(r, "/api/v1/auth/login", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data auth.TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bearer", resp.Data.TokenType)
	assert.Equal(t, 1800, resp.Data.ExpiresIn)
	require.NotEmpty(t, resp.Data.AccessToken)
	return resp.Data.AccessToken
}

func TestSignup(t *testing.T) {
	r := setupRouter(t)

	w := postJSON(r, "/api/v1/auth/signup", map[string]string{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
	assert.NotContains(t, w.Body.String(), "secret1")
	assert.NotContains(t, w.Body.String(), "hashed_password")

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"duplicate username", map[string]string{"username": "alice", "password": "secret2"}, http.StatusConflict},
		{"short password", map[string]string{"username": "bob", "password": "123"}, http.StatusBadRequest},
		{"short username", map[string]string{"username": "bo", "password": "secret1"}, http.StatusBadRequest},
		{"missing password", map[string]string{"username": "bob"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, postJSON(r, "/api/v1/auth/signup", tt.body).Code)
		})
	}
}

func TestLogin(t *testing.T) {
	r := setupRouter(t)
	require.Equal(t, http.StatusCreated, postJSON(r, "/api/v1/auth/signup", map[string]string{"username": "alice", "password": "secret1"}).Code)

	login(t, r, "alice", "secret1")

	form := url.Values{"username": {"alice"}, "password": {"secret1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = postJSON(r, "/api/v1/auth/login", map[string]string{"username": "alice", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	w = postJSON(r, "/api/v1/auth/login", map[string]string{"username": "nobody", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeAndLogout(t *testing.T) {
	r := setupRouter(t)
	require.Equal(t, http.StatusCreated, postJSON(r, "/api/v1/auth/signup", map[string]string{"username": "alice", "password": "secret1"}).Code)
	token := login(t, r, "alice", "secret1")

	w := withToken(r, http.MethodGet, "/api/v1/auth/users/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)

	assert.Equal(t, http.StatusUnauthorized, withToken(r, http.MethodGet, "/api/v1/auth/users/me", "not-a-token").Code)

	require.Equal(t, http.StatusOK, withToken(r, http.MethodPost, "/api/v1/auth/logout", token).Code)
	assert.Equal(t, http.StatusUnauthorized, withToken(r, http.MethodGet, "/api/v1/auth/users/me", token).Code)
}
