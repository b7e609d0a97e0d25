package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"assassinserver/auth"
	"assassinserver/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signer, err := auth.NewSigner(models.JWTConfig{Secret: "k", TTL: time.Hour})
	require.NoError(t, err)

	r := gin.New()
	r.Use(AuthMiddleware(signer, zap.NewNop()))
	r.GET("/me", func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"userId": actor.UserID, "admin": actor.Admin})
	})

	tok, err := signer.GenerateToken(9, true)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "Bearer " + tok, http.StatusOK},
		{"bare token", tok, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tt.code, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.code == http.StatusOK {
				assert.Equal(t, 9.0, body["userId"])
				assert.Equal(t, true, body["admin"])
			} else {
				assert.Equal(t, "token_validation_error", body["status"])
			}
		})
	}
}
