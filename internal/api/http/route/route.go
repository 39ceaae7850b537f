package route

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"talkbridge/internal/api/http/handler"
	"talkbridge/internal/api/http/middleware"
	"talkbridge/internal/config"
)

func SetupRouter(
	log *zap.Logger,
	cfg *config.Config,
	webhookHdl WebhookHandler,
	healthHdl HealthHandler,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard

	router := gin.Default()

	// middleware
	router.Use(middleware.Logger(log))
	router.Use(middleware.RequestTimeout(cfg.HTTPServer.Timeout.Request))
	router.Use(middleware.CORS(cfg.HTTPServer.CORS))

	signatureMiddleware := middleware.ChannelSignature(cfg.Chat.ChannelSecret)

	router.HandleMethodNotAllowed = true
	router.NoMethod(handler.NoMethod)
	router.NoRoute(handler.NoRoute)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	basePath := router.Group(cfg.HTTPServer.BasePath)

	webhookPath := basePath.Group("/webhook")
	RegisterWebhook(webhookPath, webhookHdl, signatureMiddleware)

	healthPath := basePath.Group("/health")
	RegisterHealth(healthPath, healthHdl)

	return router
}
