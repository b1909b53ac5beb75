package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kakachat/internal/services"
)

const UserIDKey = "user_id"

// список публичных эндпоинтов, которые не требуют токена
func isPublicPath(path string) bool {
	switch path {
	case "/login", "/register", "/refresh", "/forgot-password", "/reset-password":
		return true
	}
	// выдача файлов и загрузка по одноразовому токену — публичные
	if strings.HasPrefix(path, "/files/") ||
		strings.HasPrefix(path, "/storage/upload/") ||
		strings.HasPrefix(path, "/healthz") {
		return true
	}
	return false
}

// AuthMiddleware resolves the Bearer token to a user id and stores it in the
// gin context. Requests without a resolvable identity are rejected.
func AuthMiddleware(auth services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		var tokenStr string
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
				return
			}
			tokenStr = strings.TrimSpace(parts[1])
		} else {
			// браузерный WebSocket API не умеет ставить Authorization,
			// поэтому /stream передаёт токен query-параметром
			tokenStr = strings.TrimSpace(c.Query("access_token"))
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		claims, err := auth.ParseAccessToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}
