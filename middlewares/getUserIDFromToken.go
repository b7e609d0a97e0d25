package middlewares

import (
	"errors"
	"strings"

	"assassinserver/auth"
	"assassinserver/models"

	"github.com/gin-gonic/gin"
)

var ErrMissingToken = errors.New("token is required")

// リクエストからJWTトークンを取得し、クレームを解析して返します。
func ClaimsFromToken(c *gin.Context, signer *auth.Signer) (*models.MyClaims, error) {
	tokenString := c.GetHeader("Authorization")

	// Bearerトークンのプレフィックスを確認し、存在する場合は削除
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	return signer.ParseToken(tokenString)
}
