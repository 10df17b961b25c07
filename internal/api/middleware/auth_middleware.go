package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"phFolio/internal/auth"
)

const accountIDKey = "accountID"

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// AuthMiddleware 校验访问令牌并将 accountID 注入上下文。
func AuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		claims, err := authService.ValidateAccessToken(parts[1])
		if err != nil || claims.AccountID == 0 {
			abortUnauthorized(c)
			return
		}

		SetAccountID(c, claims.AccountID)
		c.Next()
	}
}

// SetAccountID 写入当前请求的账号 ID。
func SetAccountID(c *gin.Context, accountID uint) {
	c.Set(accountIDKey, accountID)
	if logger := LoggerFromContext(c); logger != nil {
		c.Set(slogLoggerKey, logger.With("account_id", accountID))
	}
}

// AccountIDFromContext 读取 AuthMiddleware 注入的账号 ID。
func AccountIDFromContext(c *gin.Context) (uint, bool) {
	value, ok := c.Get(accountIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok && id != 0
}
