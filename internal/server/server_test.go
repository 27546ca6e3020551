package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"calixo/internal/auth"
	"calixo/internal/config"
	"calixo/internal/handler"
	"calixo/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	tokens map[string]*auth.Identity
}

func (f fakeVerifier) Verify(raw string) (*auth.Identity, error) {
	if raw == "" {
		return nil, auth.ErrMissingToken
	}
	id, ok := f.tokens[raw]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return id, nil
}

type fakeUsers struct {
	roles map[string]model.Role
	err   error
}

func (f fakeUsers) EnsureUser(_ context.Context, userID, username string) (*model.Profile, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	role, ok := f.roles[userID]
	if !ok {
		role = model.RoleUser
	}
	return &model.Profile{UserID: userID, Username: username, Role: role}, false, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestEngine(users fakeUsers) *gin.Engine {
	tokens := fakeVerifier{tokens: map[string]*auth.Identity{
		"alice-token": {UserID: "alice", Username: "alice"},
		"mod-token":   {UserID: "mod", Username: "mod"},
		"root-token":  {UserID: "root", Username: "root"},
	}}

	r := gin.New()
	r.Use(RecoveryMiddleware())
	api := r.Group("/api", AuthMiddleware(tokens, users))
	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": handler.CurrentProfile(c).UserID})
	})
	api.GET("/reports", RequireRole(model.RoleModerator, model.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	api.GET("/admin", RequireRole(model.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	return r
}

func do(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestAuthMiddleware(t *testing.T) {
	r := newTestEngine(fakeUsers{})

	w := do(t, r, http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", errorCode(t, w))

	w = do(t, r, http.MethodGet, "/api/me", "forged")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodGet, "/api/me", "alice-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"alice"}`, w.Body.String())
}

func TestAuthMiddlewareProvisioningFailure(t *testing.T) {
	r := newTestEngine(fakeUsers{err: errors.New("db down")})

	w := do(t, r, http.MethodGet, "/api/me", "alice-token")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestRequireRole(t *testing.T) {
	r := newTestEngine(fakeUsers{roles: map[string]model.Role{
		"mod":  model.RoleModerator,
		"root": model.RoleAdmin,
	}})

	tests := []struct {
		token string
		path  string
		want  int
	}{
		{"alice-token", "/api/reports", http.StatusForbidden},
		{"alice-token", "/api/admin", http.StatusForbidden},
		{"mod-token", "/api/reports", http.StatusNoContent},
		{"mod-token", "/api/admin", http.StatusForbidden},
		{"root-token", "/api/reports", http.StatusNoContent},
		{"root-token", "/api/admin", http.StatusNoContent},
	}
	for _, tt := range tests {
		w := do(t, r, http.MethodGet, tt.path, tt.token)
		assert.Equal(t, tt.want, w.Code, "%s %s", tt.token, tt.path)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	r := newTestEngine(fakeUsers{})

	w := do(t, r, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", errorCode(t, w))
}

// TestHasRoleProperty checks that a role passes exactly when it is listed.
func TestHasRoleProperty(t *testing.T) {
	roles := []model.Role{model.RoleUser, model.RoleModerator, model.RoleAdmin}
	rapid.Check(t, func(rt *rapid.T) {
		allowed := rapid.SliceOfDistinct(rapid.SampledFrom(roles), func(r model.Role) model.Role { return r }).Draw(rt, "allowed")
		role := rapid.SampledFrom(roles).Draw(rt, "role")

		want := false
		for _, a := range allowed {
			if a == role {
				want = true
			}
		}
		if got := hasRole(role, allowed); got != want {
			rt.Fatalf("hasRole(%s, %v) = %v, want %v", role, allowed, got, want)
		}
	})
}

func TestRateLimiterDisabled(t *testing.T) {
	for _, rl := range []*RateLimiter{nil, NewRateLimiter(nil, 1, time.Minute)} {
		r := gin.New()
		r.GET("/", rl.Limit("test"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodGet, "/", "").Code)
		}
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	r := gin.New()
	r.GET("/", NewRateLimiter(client, 1, time.Minute).Limit("test"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodGet, "/", "").Code)
	}
}

func TestHealthz(t *testing.T) {
	r := gin.New()
	r.GET("/healthz", healthz(fakePinger{}))
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/healthz", "").Code)

	r = gin.New()
	r.GET("/healthz", healthz(fakePinger{err: errors.New("down")}))
	assert.Equal(t, http.StatusServiceUnavailable, do(t, r, http.MethodGet, "/healthz", "").Code)
}

func TestNewRouterRejectsAnonymousAPIRequests(t *testing.T) {
	r := NewRouter(config.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}}, Deps{
		Tokens: fakeVerifier{},
		Users:  fakeUsers{},
		DB:     fakePinger{},
	}, Handlers{})

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/api/v1/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodPost, "/api/v1/admin/coupons", "").Code)
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/healthz", "").Code)
}

func TestRegisterValidators(t *testing.T) {
	v := validator.New()
	require.NoError(t, registerValidators(v))

	type req struct {
		Type     model.ChallengeType `validate:"challengetype"`
		Category string              `validate:"itemcategory"`
	}
	assert.NoError(t, v.Struct(req{Type: model.ChallengeFocus, Category: "hat"}))
	assert.Error(t, v.Struct(req{Type: "yoga", Category: "hat"}))
	assert.Error(t, v.Struct(req{Type: model.ChallengeDaily, Category: "spaceship"}))
}
