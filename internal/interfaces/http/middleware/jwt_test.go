package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/infrastructure/auth"
	"github.com/praxis/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-access-secret",
		RefreshSecret:          "test-refresh-secret",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		Issuer:                 "praxis-test",
	})
}

func issueToken(t *testing.T, svc *auth.JWTService, role identity.UserRole) (string, uuid.UUID, uuid.UUID) {
	t.Helper()

	practiceID := uuid.New()
	userID := uuid.New()
	pair, err := svc.GenerateTokenPair(auth.GenerateTokenInput{
		PracticeID: practiceID,
		UserID:     userID,
		Email:      "mediator@cedarlane.example.com",
		Role:       role,
	})
	require.NoError(t, err)
	return pair.AccessToken, practiceID, userID
}

func TestJWTAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newTestJWTService()

	newRouter := func() *gin.Engine {
		router := gin.New()
		router.Use(JWTAuthMiddleware(svc))
		router.GET("/api/v1/matters", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"practice_id": GetJWTPracticeID(c),
				"user_id":     GetJWTUserID(c),
				"role":        GetJWTRole(c),
			})
		})
		router.GET("/health", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})
		router.POST("/api/v1/webhooks/stripe", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})
		return router
	}

	t.Run("rejects missing authorization header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/matters", nil)
		w := httptest.NewRecorder()
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "TOKEN_INVALID")
	})

	t.Run("rejects malformed bearer token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/matters", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("accepts valid token and exposes claims", func(t *testing.T) {
		token, practiceID, userID := issueToken(t, svc, identity.UserRoleMediator)

		req := httptest.NewRequest("GET", "/api/v1/matters", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), practiceID.String())
		assert.Contains(t, w.Body.String(), userID.String())
		assert.Contains(t, w.Body.String(), string(identity.UserRoleMediator))
	})

	t.Run("skips configured paths", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("skips webhook prefix", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/webhooks/stripe", nil)
		w := httptest.NewRecorder()
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects refresh token on access routes", func(t *testing.T) {
		pair, err := svc.GenerateTokenPair(auth.GenerateTokenInput{
			PracticeID: uuid.New(),
			UserID:     uuid.New(),
			Email:      "mediator@cedarlane.example.com",
			Role:       identity.UserRoleMediator,
		})
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/api/v1/matters", nil)
		req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
		w := httptest.NewRecorder()
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireBillingManager(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newTestJWTService()

	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	billing := router.Group("/api/v1/billing")
	billing.Use(RequireBillingManager())
	billing.GET("/subscription", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	t.Run("owner is allowed", func(t *testing.T) {
		token, _, _ := issueToken(t, svc, identity.UserRoleOwner)

		req := httptest.NewRequest("GET", "/api/v1/billing/subscription", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("staff is forbidden", func(t *testing.T) {
		token, _, _ := issueToken(t, svc, identity.UserRoleStaff)

		req := httptest.NewRequest("GET", "/api/v1/billing/subscription", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "FORBIDDEN")
	})
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newTestJWTService()

	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	admin := router.Group("/api/v1/users")
	admin.Use(RequireRole(identity.UserRoleOwner))
	admin.POST("", func(c *gin.Context) {
		c.String(http.StatusCreated, "created")
	})

	token, _, _ := issueToken(t, svc, identity.UserRoleMediator)

	req := httptest.NewRequest("POST", "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
