package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = JSONErrorHandler()

	e.Use(SetNoCacheHeaders)

	// Scrape endpoint sits outside the API key and JSON middleware.
	if cfg.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := e.Group("/v1", SetJSONContentType)
	if cfg.APIKey != "" {
		v1.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	v1.GET("/health", h.Health)
	v1.GET("/status", h.Status)
	v1.GET("/feed", h.RecentFeed)

	tokens := v1.Group("/tokens")
	tokens.GET("", h.Tokens)
	tokens.GET("/:id", h.Token)
	tokens.POST("/:id/select", h.Select)
	v1.GET("/focus", h.Focus)

	// Mutations are rate limited per client IP.
	limiter := middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(5),
		Burst:     10,
		ExpiresIn: 2 * time.Minute,
	}))

	pol := v1.Group("/policy")
	pol.GET("", h.PolicyGet)
	pol.GET("/:toggle", h.PolicyToggle)
	pol.PUT("/:toggle", h.PolicySet, limiter)
	pol.DELETE("", h.PolicyReset, limiter)

	lock := v1.Group("/lock", limiter)
	lock.PUT("", h.LockSet)
	lock.POST("/toggle", h.LockToggle)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
