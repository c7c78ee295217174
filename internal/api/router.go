package api

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/OpenNSW/duty/internal/config"
)

// NewRouter wires the handler routes behind the logging, CORS and rate limit middleware
func NewRouter(h *Handler, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(), CORS(&cfg.CORS))

	router.GET("/healthz", h.HandleHealth)

	api := router.Group("/api")
	if cfg.Server.RateLimitPerSecond > 0 {
		api.Use(RateLimit(rate.NewLimiter(rate.Limit(cfg.Server.RateLimitPerSecond), cfg.Server.RateLimitBurst)))
	}
	api.GET("/hscodes", h.HandleListHSCodes)
	api.GET("/hscodes/:code/resolve", h.HandleResolve)
	api.POST("/duties/calculate", h.HandleCalculate)
	api.POST("/duties/batch", h.HandleBatch)
	if cfg.Server.ScheduleUploadEnabled && h.schedules != nil {
		api.POST("/schedules", h.HandleUploadSchedule)
	}

	return router
}
