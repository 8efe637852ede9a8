package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/qaprobe/api/handler"
	"github.com/use-agent/qaprobe/api/middleware"
	"github.com/use-agent/qaprobe/config"
	"github.com/use-agent/qaprobe/store"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health is outside auth so monitoring probes always work.
func NewRouter(runs *handler.Runs, st *store.Store, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(st, cfg.Server.MaxRuns, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/runs", runs.Create())
	protected.GET("/runs/:id", runs.Get())

	return r
}
