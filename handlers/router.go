package handlers

import (
	"net/http"
	"time"

	"assassinserver/auth"
	"assassinserver/internal/lifecycle"
	"assassinserver/middlewares"
	"assassinserver/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig はルーターの依存関係
type RouterConfig struct {
	Controller   *lifecycle.Controller
	Signer       *auth.Signer
	Logger       *zap.Logger
	Gatherer     prometheus.Gatherer // nil なら /metrics を公開しない
	AllowOrigins []string
}

func NewRouter(config RouterConfig) *gin.Engine {
	ctrl, logger := config.Controller, config.Logger

	router := gin.New()
	//リクエストロガーを起動
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	//CORS（Cross-Origin Resource Sharing）ポリシーを設定。オリジン未設定なら無効
	if len(config.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     config.AllowOrigins,
			AllowMethods:     []string{"GET", "POST"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", utils.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if config.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api", middlewares.AuthMiddleware(config.Signer, logger))

	//各HTTPリクエストのルーティング
	api.POST("/games", func(c *gin.Context) {
		CreateGame(c, ctrl, logger)
	})
	api.GET("/games", func(c *gin.Context) {
		ListGames(c, ctrl, logger)
	})
	api.GET("/games/:id", func(c *gin.Context) {
		GetGame(c, ctrl, logger)
	})
	api.POST("/games/:id/start", func(c *gin.Context) {
		StartGame(c, ctrl, logger)
	})
	api.POST("/games/:id/join", func(c *gin.Context) {
		JoinGame(c, ctrl, logger)
	})
	api.GET("/games/:id/participants", func(c *gin.Context) {
		ListParticipants(c, ctrl, logger)
	})
	api.GET("/games/:id/target", func(c *gin.Context) {
		MyTarget(c, ctrl, logger)
	})
	api.GET("/games/:id/ring", func(c *gin.Context) {
		Ring(c, ctrl, logger)
	})
	api.GET("/games/:id/claims", func(c *gin.Context) {
		ListClaims(c, ctrl, logger)
	})
	api.POST("/games/:id/claims", func(c *gin.Context) {
		SubmitClaim(c, ctrl, logger)
	})
	api.GET("/claims/:id", func(c *gin.Context) {
		GetClaim(c, ctrl, logger)
	})
	api.POST("/claims/:id/confirm", func(c *gin.Context) {
		ConfirmClaim(c, ctrl, logger)
	})
	api.POST("/claims/:id/deny", func(c *gin.Context) {
		DenyClaim(c, ctrl, logger)
	})
	api.POST("/claims/:id/resolve", func(c *gin.Context) {
		ResolveClaim(c, ctrl, logger)
	})

	return router
}
