package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"payment-core/internal/handler/response"
	"payment-core/pkg/errno"
)

// AccessToken 共享密钥鉴权
// bot 在 access_token 头里带密钥；不匹配直接 401，不进业务逻辑
func AccessToken(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("access_token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			response.Error(c, errno.ErrTokenInvalid)
			c.Abort()
			return
		}
		c.Next()
	}
}
