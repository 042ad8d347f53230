package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// APIKeyHeader carries the key for mutating routes.
const APIKeyHeader = "X-API-Key"

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = JSONErrorHandler()
	e.Use(SetNoCacheHeaders)

	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	// Read-only API
	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)
	v1.GET("/pairs/:a/:b", h.Pair)
	v1.GET("/pools/:pool", h.Pool)
	v1.GET("/pools/:pool/quote", h.QuoteSwap)
	v1.GET("/pools/:pool/deposit-quote", h.QuoteDeposit)
	v1.GET("/accounts/:address", h.Account)
	if h.Journal != nil {
		v1.GET("/pools/:pool/swaps", h.Swaps)
	}

	// Everything below writes to the ledger
	var guard []echo.MiddlewareFunc
	if cfg.APIKey != "" {
		guard = append(guard, middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:" + APIKeyHeader,
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}
	if cfg.RateLimitRPS > 0 {
		guard = append(guard, middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.RateLimitRPS),
			Burst:     cfg.RateBurst,
			ExpiresIn: 2 * time.Minute,
		})))
	}
	v1.POST("/instructions", h.SubmitInstruction, guard...)

	if h.Faucet != nil {
		faucet := v1.Group("/faucet", guard...)
		faucet.POST("/mints", h.CreateMint)
		faucet.POST("/accounts", h.OpenAccount)
		faucet.POST("/mint-to", h.Fund)
	}

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
