package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/raci-tracker/backend/internal/auth"
	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Only middleware-level behaviour is exercised; the domain handlers are left nil and never reached.
func testRouter(t *testing.T, uploadDir string) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	jwtSvc := auth.NewJWTService("access", "refresh", time.Minute, time.Hour)
	h := handlers{ws: func(c *gin.Context) { c.String(http.StatusTeapot, "ws") }}
	r := newRouter(zaptest.NewLogger(t), jwtSvc, h, routerOptions{
		corsOrigins:   []string{"http://localhost:3000"},
		authRateLimit: 5,
		uploadDir:     uploadDir,
	})
	return r, jwtSvc
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndNotFound(t *testing.T) {
	r, _ := testRouter(t, "")

	rec := do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(r, http.MethodGet, "/api/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body response.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/uploads/logo.png", "").Code, "no static mount without local storage")
}

func TestProtectedRoutes(t *testing.T) {
	r, jwtSvc := testRouter(t, "")

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/users", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/auth/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/auth/logout", "").Code)

	user, err := jwtSvc.GenerateAccess(authz.Principal{ID: uuid.New(), Role: models.RoleUser, CompanyID: uuid.New()})
	require.NoError(t, err)
	for _, path := range []string{"/api/companies", "/api/website-admins", "/api/dashboard/company-admin", "/api/raci-tracker/company"} {
		assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, path, user).Code, path)
	}

	admin, err := jwtSvc.GenerateAccess(authz.Principal{ID: uuid.New(), Role: models.RoleWebsiteAdmin})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/events", admin).Code, "website admins stay out of tenant data")
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/dashboard/user", admin).Code)
}

func TestRefreshTokenRoute(t *testing.T) {
	r, _ := testRouter(t, "")

	// An empty body fails binding before the service is used, so a 400 proves the route is mounted.
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/auth/refresh-token", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/auth/refresh", "").Code)
}

func TestWebSocketRouteSkipsJWT(t *testing.T) {
	r, _ := testRouter(t, "")
	assert.Equal(t, http.StatusTeapot, do(r, http.MethodGet, "/api/ws", "").Code)
}

func TestUploadsServedFromLocalDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logos"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logos", "a.txt"), []byte("hello"), 0o644))
	r, _ := testRouter(t, dir)

	rec := do(r, http.MethodGet, "/uploads/logos/a.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
}
