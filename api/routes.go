package api

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/podforge/digest-api/api/episodes"
	"github.com/podforge/digest-api/api/failures"
	"github.com/podforge/digest-api/api/health"
	"github.com/podforge/digest-api/api/middleware"
	"github.com/podforge/digest-api/api/podcasts"
	apiruns "github.com/podforge/digest-api/api/runs"
	"github.com/podforge/digest-api/api/types"
	"github.com/podforge/digest-api/api/version"
	_ "github.com/podforge/digest-api/docs/swagger"
	"github.com/podforge/digest-api/pkg/config"
)

// RegisterRoutes registers all API routes
func RegisterRoutes(engine *gin.Engine, deps *types.Dependencies, rateLimiters *sync.Map, cleanupStop chan struct{}, cleanupInitialized *sync.Once) error {
	if deps == nil {
		deps = &types.Dependencies{}
	}

	// Register public routes (no rate limiting)
	health.RegisterRoutes(engine, deps)
	version.RegisterRoutes(engine, deps)

	// Register Swagger documentation route
	engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(301, "/docs/index.html")
	})
	docsGroup := engine.Group("/docs")
	docsGroup.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Setup 404 handler
	engine.NoRoute(NotFoundHandler())

	// API v1 routes
	v1 := engine.Group("/api/v1")

	// Response cache TTLs; config may be absent when tests drive routes
	// directly, so degrade to the shipped defaults.
	catalogTTL := 10 * time.Minute
	recentTTL := time.Minute
	if cfg, err := config.GetConfig(); err == nil {
		if cfg.Cache.API.CatalogTTL > 0 {
			catalogTTL = cfg.Cache.API.CatalogTTL
		}
		if cfg.Cache.API.RecentTTL > 0 {
			recentTTL = cfg.Cache.API.RecentTTL
		}
	}
	responseCache := middleware.CacheMiddleware(middleware.CacheConfig{
		Cache:      deps.Cache,
		DefaultTTL: recentTTL,
		TTLByPath: map[string]time.Duration{
			"/api/v1/podcasts":        catalogTTL,
			"/api/v1/episodes/recent": recentTTL,
		},
		Enabled: deps.Cache != nil,
	})

	// Catalog reads are cheap and cached (20 req/s, burst of 40)
	podcastsGroup := v1.Group("/podcasts")
	podcastsGroup.Use(PerClientRateLimit(rateLimiters, cleanupStop, cleanupInitialized, 20, 40), responseCache)
	podcasts.RegisterRoutes(podcastsGroup, deps)

	// Fetch hits external directories, recent reads come from the store
	// (10 req/s, burst of 20); the cache only touches the GET routes
	episodesGroup := v1.Group("/episodes")
	episodesGroup.Use(PerClientRateLimit(rateLimiters, cleanupStop, cleanupInitialized, 10, 20), responseCache)
	episodes.RegisterRoutes(episodesGroup, deps)

	// Run control with room for 1 Hz progress polling (5 req/s, burst of 10)
	runsGroup := v1.Group("/runs")
	runsGroup.Use(PerClientRateLimit(rateLimiters, cleanupStop, cleanupInitialized, 5, 10))
	apiruns.RegisterRoutes(runsGroup, deps)

	// Failure log reads (10 req/s, burst of 20)
	failuresGroup := v1.Group("/failures")
	failuresGroup.Use(PerClientRateLimit(rateLimiters, cleanupStop, cleanupInitialized, 10, 20))
	failures.RegisterRoutes(failuresGroup, deps)

	return nil
}

// NotFoundHandler handles 404 errors
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(404, gin.H{
			"status":  "error",
			"message": "The requested endpoint was not found",
			"path":    c.Request.URL.Path,
		})
	}
}
