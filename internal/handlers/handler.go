package handlers

import (
	"net/http"

	"uvchamber/internal/logger"
	"uvchamber/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SimDoor is implemented by the simulated chamber. Attaching one exposes the
// dev endpoint that toggles the lid without hardware; with a real door
// sensor the endpoint does not exist.
type SimDoor interface {
	SetDoor(closed bool)
	SetSensorFault(fault bool)
}

// Handler wires the HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	simDoor  SimDoor
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// AttachSimDoor enables the simulated-lid dev endpoint. Call before
// InitRoutes.
func (h *Handler) AttachSimDoor(d SimDoor) {
	h.simDoor = d
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Status push over WebSocket (HTTP upgrade) on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.authMiddleware)
	{
		h.registerChamberRoutes(api)
		h.registerProfileRoutes(api)
		api.GET("/status", h.getStatus)
		api.GET("/logs", h.getLogs)
		if h.simDoor != nil {
			api.POST("/dev/door", h.setSimDoor)
		}
	}
}

func (h *Handler) registerChamberRoutes(api *gin.RouterGroup) {
	chamber := api.Group("/chamber")
	{
		chamber.POST("/mode", h.selectMode)
		// Body: {"name":"P-01"} for a library profile, or {"profile":{...}} inline
		chamber.POST("/load", h.loadProfile)
		chamber.POST("/start", h.start)
		chamber.POST("/standard", h.startStandard)
		chamber.POST("/pause", h.pause)
		chamber.POST("/resume", h.resume)
		chamber.POST("/stop", h.stop)
		chamber.POST("/ack-fault", h.ackFault)
	}
}

func (h *Handler) registerProfileRoutes(api *gin.RouterGroup) {
	profiles := api.Group("/profiles")
	{
		profiles.GET("", h.listProfiles)
		profiles.POST("", h.saveProfile)
		profiles.POST("/import", h.importProfile)
		profiles.GET("/:name", h.getProfile)
		profiles.GET("/:name/export", h.exportProfile)
		profiles.DELETE("/:name", h.deleteProfile)
	}
}

// bindJSONOrBadRequest binds the request body into dst, answering 400 on
// failure. Reports whether the handler should keep going.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow("bad request body", "path", c.FullPath(), "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
