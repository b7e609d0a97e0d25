package middlewares

import (
	"net/http"

	"assassinserver/auth"
	"assassinserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const actorKey = "actor"

// トークン検証を行い、リクエストの主体をコンテキストにセットするミドルウェア
func AuthMiddleware(signer *auth.Signer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := ClaimsFromToken(c, signer)
		if err != nil {
			logger.Warn("認証失敗", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status": "token_validation_error",
				"error":  "認証に失敗しました",
			})
			return
		}

		c.Set(actorKey, models.Actor{UserID: claims.UserID, Admin: claims.Admin})
		c.Next()
	}
}

// ActorFromContext は AuthMiddleware がセットした主体を返す
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}
