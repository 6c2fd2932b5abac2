package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"storefront/internal/infra/config"
	"storefront/internal/infra/obs"
)

type Handlers struct {
	Chat           ChatHTTP
	Attachments    AttachmentHTTP
	AuthMiddleware gin.HandlerFunc
	Metrics        *obs.Metrics
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the routing table without touching the global gin mode.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	if h.Metrics != nil {
		router.Use(h.Metrics.HTTPMiddleware())
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", idempotencyHeader, obs.RequestIDHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			obs.RequestIDHeader,
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	registerSwaggerRoutes(router)

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if h.Metrics != nil {
		router.GET("/metrics", h.Metrics.Handler())
	}

	api := router.Group("/api/v1")
	if h.Chat != nil {
		chats := api.Group("/chats")
		chats.GET("", h.Chat.List)
		chats.POST("", h.Chat.Start)
		chats.GET("/unread", h.Chat.UnreadSummary)
		chats.GET("/:id", h.Chat.Open)
		chats.DELETE("/:id", h.Chat.Deactivate)
		chats.POST("/:id/messages", h.Chat.PostMessage)
		chats.POST("/:id/read", h.Chat.MarkRead)
	}
	if h.Attachments != nil {
		api.POST("/chats/:id/attachments", h.Attachments.Upload)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
