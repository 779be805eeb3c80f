package middleware

import (
	"net/http"
	"strings"

	"github.com/Abin2112/Greencycle-sub000/config"
	"github.com/Abin2112/Greencycle-sub000/services"

	"github.com/gin-gonic/gin"
)

var jwtService services.InterfaceJWTService

// InitAuthMiddleware 初始化认证中间件
func InitAuthMiddleware(cfg *config.Config) {
	jwtService = services.NewJWTService(cfg)
}

// extractToken 从授权头中提取token
func extractToken(authHeader string) string {
	// 检查并移除 "Bearer " 前缀
	if len(authHeader) > 7 && strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[7:]
	}
	return authHeader
}

// authenticate 验证令牌并把调用方身份写入上下文，requiredRoles 为空表示任意已认证角色
func authenticate(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "Authorization header is required",
				"data":    nil,
			})
			c.Abort()
			return
		}

		// 提取并验证token
		tokenString := extractToken(authHeader)
		token, err := jwtService.ValidateToken(tokenString)
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "Invalid or expired token",
				"data":    nil,
			})
			c.Abort()
			return
		}

		claims, err := services.ParseClaims(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "Invalid token claims",
				"data":    nil,
			})
			c.Abort()
			return
		}

		// 校验角色
		if len(requiredRoles) > 0 {
			allowed := false
			for _, role := range requiredRoles {
				if claims.Role == role {
					allowed = true
					break
				}
			}
			if !allowed {
				c.JSON(http.StatusForbidden, gin.H{
					"code":    403,
					"message": "Insufficient permissions",
					"data":    nil,
				})
				c.Abort()
				return
			}
		}

		// 存储调用方身份到上下文
		c.Set("accountID", claims.AccountID)
		c.Set("role", claims.Role)
		if claims.OrganizationID != nil {
			c.Set("organizationID", *claims.OrganizationID)
		}
		c.Next()
	}
}

// Authentication 通用的认证中间件，任意已认证角色均可访问
func Authentication() gin.HandlerFunc {
	return authenticate()
}

// AuthenticateOperator 验证运营人员权限
func AuthenticateOperator() gin.HandlerFunc {
	return authenticate("operator")
}

// AuthenticateOrganization 验证回收机构权限（运营人员也可访问机构接口）
func AuthenticateOrganization() gin.HandlerFunc {
	return authenticate("organization", "operator")
}
