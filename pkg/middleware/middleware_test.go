package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rechargetravels/service-booking/pkg/auth"
)

func newRouter(jwt *auth.JWTManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware(zap.NewNop()), RequestIDMiddleware())
	r.GET("/admin", AuthMiddleware(jwt), RequireRole(auth.RoleAdmin), func(c *gin.Context) {
		id, _ := GetUserID(c)
		c.String(http.StatusOK, id.String())
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAndRole(t *testing.T) {
	jwt := auth.NewJWTManager("middleware-secret", time.Minute)
	r := newRouter(jwt)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin", "not.a.token").Code)

	customer, err := jwt.GenerateAccessToken(uuid.New(), auth.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(r, "/admin", customer).Code)

	adminID := uuid.New()
	admin, err := jwt.GenerateAccessToken(adminID, auth.RoleAdmin)
	require.NoError(t, err)
	w := get(r, "/admin", admin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, adminID.String(), w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRecovery(t *testing.T) {
	r := newRouter(auth.NewJWTManager("middleware-secret", time.Minute))
	assert.Equal(t, http.StatusInternalServerError, get(r, "/panic", "").Code)
}
