package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"banking-kb-go/internal/model"
	"banking-kb-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(t *testing.T, jwtManager *token.JWTManager, adminOnly bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/", AuthMiddleware(jwtManager))
	if adminOnly {
		group.Use(AdminAuthMiddleware())
	}
	group.GET("/probe", func(c *gin.Context) {
		role, ok := RoleFromContext(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"role": string(role)})
	})
	return r
}

func doRequest(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareRoleRoundTrip(t *testing.T) {
	jwtManager := token.NewJWTManager("test-secret", 1)
	r := newAuthRouter(t, jwtManager, false)

	for _, role := range []model.Role{model.RoleAdmin, model.RoleUser, model.RoleAuditor} {
		tok, err := jwtManager.GenerateToken("someone@bank", string(role))
		require.NoError(t, err)

		w := doRequest(r, "Bearer "+tok)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), string(role))
	}
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	jwtManager := token.NewJWTManager("test-secret", 1)
	r := newAuthRouter(t, jwtManager, false)

	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "Bearer not-a-jwt").Code)

	// 其他密钥签发的 token 不被接受
	other := token.NewJWTManager("other-secret", 1)
	tok, err := other.GenerateToken("someone@bank", "admin")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "Bearer "+tok).Code)
}

func TestAuthMiddlewareRejectsUnknownRole(t *testing.T) {
	jwtManager := token.NewJWTManager("test-secret", 1)
	r := newAuthRouter(t, jwtManager, false)

	tok, err := jwtManager.GenerateToken("someone@bank", "superuser")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "Bearer "+tok).Code)
}

func TestAdminAuthMiddleware(t *testing.T) {
	jwtManager := token.NewJWTManager("test-secret", 1)
	r := newAuthRouter(t, jwtManager, true)

	adminTok, err := jwtManager.GenerateToken("admin@bank", string(model.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, doRequest(r, "Bearer "+adminTok).Code)

	userTok, err := jwtManager.GenerateToken("user@bank", string(model.RoleUser))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, doRequest(r, "Bearer "+userTok).Code)
}
