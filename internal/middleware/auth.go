// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"banking-kb-go/internal/model"
	"banking-kb-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// RoleContextKey 是解析出的角色在 gin 上下文中的键。
const RoleContextKey = "role"

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 它会从请求头中提取 token，验证其有效性，并将角色存入 Gin 的上下文中。
// 凭证的签发不在本服务范围内，这里只解析核心需要的角色枚举。
func AuthMiddleware(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含授权头"})
			return
		}

		// Token 通常以 "Bearer <token>" 的形式提供，我们需要提取出 token 本身
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的授权头格式"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
			return
		}
		if !model.ValidRole(claims.Role) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token 中缺少可识别的角色"})
			return
		}

		c.Set(RoleContextKey, model.Role(claims.Role))
		c.Set("claims", claims)
		c.Next()
	}
}

// RoleFromContext 取出 AuthMiddleware 解析的角色。
func RoleFromContext(c *gin.Context) (model.Role, bool) {
	v, exists := c.Get(RoleContextKey)
	if !exists {
		return "", false
	}
	role, ok := v.(model.Role)
	return role, ok
}
