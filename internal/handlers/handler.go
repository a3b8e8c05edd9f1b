package handlers

import (
	"smart_ventilation/internal/logger"
	"smart_ventilation/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health and metrics endpoints
	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Telemetry producers. The relay endpoint is unauthenticated by
	// contract with the cloud integration; the device endpoint is
	// first-party and surfaces failures so devices can retry.
	h.registerIngestRoutes(router)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Live fan updates over WebSocket — same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerIngestRoutes(r *gin.Engine) {
	webhook := r.Group("/webhook")
	{
		webhook.POST("/arduino", h.relayWebhook)
	}
	// device reports are first-party but not user-scoped
	r.POST("/api/v1/devices/report", h.deviceReport)
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerFanRoutes(api)
	}
}

func (h *Handler) registerFanRoutes(api *gin.RouterGroup) {
	fans := api.Group("/fans")
	{
		fans.GET("", h.listFans)
		fans.POST("", h.createFan)
		fans.GET("/:id", h.getFan)
		fans.GET("/:id/readings", h.fanReadings)
		// Body example: {"state":"ON"}
		fans.POST("/:id/control", h.controlFan)
	}
}
