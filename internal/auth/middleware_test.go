package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiddlewareRouter(t *testing.T, manager *JWTManager) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	protected := router.Group("")
	protected.Use(RequireAuth(manager))
	protected.GET("/whoami", func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		email, _ := c.Get("email")
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "email": email})
	})

	admin := protected.Group("")
	admin.Use(RequireRole("admin"))
	admin.GET("/admin-only", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func performGet(router *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestRequireAuth(t *testing.T) {
	manager := newTestJWTManager(t)
	router := newMiddlewareRouter(t, manager)

	t.Run("rejects missing authorization header", func(t *testing.T) {
		recorder := performGet(router, "/whoami", "")

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "UNAUTHORIZED")
	})

	t.Run("rejects malformed authorization header", func(t *testing.T) {
		recorder := performGet(router, "/whoami", "Basic abc123")

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		recorder := performGet(router, "/whoami", "Bearer not-a-jwt")

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "Invalid or expired token")
	})

	t.Run("passes request with user context attached", func(t *testing.T) {
		token, err := manager.GenerateToken(context.Background(), "user-42", "admin@example.com", []string{"admin"}, time.Hour)
		require.NoError(t, err)

		recorder := performGet(router, "/whoami", "Bearer "+token)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "user-42")
		assert.Contains(t, recorder.Body.String(), "admin@example.com")
	})
}

func TestRequireRole(t *testing.T) {
	manager := newTestJWTManager(t)
	router := newMiddlewareRouter(t, manager)

	t.Run("forbids user without the role", func(t *testing.T) {
		token, err := manager.GenerateToken(context.Background(), "user-42", "viewer@example.com", []string{"viewer"}, time.Hour)
		require.NoError(t, err)

		recorder := performGet(router, "/admin-only", "Bearer "+token)

		assert.Equal(t, http.StatusForbidden, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "FORBIDDEN")
	})

	t.Run("forbids user with no roles", func(t *testing.T) {
		token, err := manager.GenerateToken(context.Background(), "user-42", "viewer@example.com", nil, time.Hour)
		require.NoError(t, err)

		recorder := performGet(router, "/admin-only", "Bearer "+token)

		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("admits user holding the role", func(t *testing.T) {
		token, err := manager.GenerateToken(context.Background(), "user-42", "admin@example.com", []string{"admin"}, time.Hour)
		require.NoError(t, err)

		recorder := performGet(router, "/admin-only", "Bearer "+token)

		assert.Equal(t, http.StatusOK, recorder.Code)
	})
}
