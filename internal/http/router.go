// Package httpapi wires the HTTP transport (Gin) to the aggregation service,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/gamecompare/price-backend/internal/config"
	"github.com/gamecompare/price-backend/internal/currency"
	"github.com/gamecompare/price-backend/internal/domain"
	"github.com/gamecompare/price-backend/internal/http/handlers"
	"github.com/gamecompare/price-backend/internal/http/middleware"
	"github.com/gamecompare/price-backend/internal/services"
	"github.com/gamecompare/price-backend/internal/sources"
	"github.com/gamecompare/price-backend/internal/sources/cheapshark"
	"github.com/gamecompare/price-backend/internal/sources/estimate"
	"github.com/gamecompare/price-backend/internal/sources/gog"
	"github.com/gamecompare/price-backend/internal/sources/nuuvem"
	"github.com/gamecompare/price-backend/internal/sources/steam"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine, builds the source adapters, and mounts the versioned public API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. Rate limiter (per client IP)
//  8. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (64 KiB is plenty for an id payload), gzip
	r.Use(limitBody(64 << 10))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, 10*time.Minute, middleware.KeyByIP)
	r.Use(rl.Handler())

	// 8) CORS posture (allow all if no allowlist configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: adapters ← config, service ← adapters/db
	httpClient := sources.NewClient(cfg.Adapters.HTTPTimeout)
	steamClient := steam.New(httpClient, cfg.Adapters.SteamBaseURL, storefrontCountry(cfg.DisplayCurrency))

	adapters := []sources.Source{
		steamClient,
		gog.New(httpClient, cfg.Adapters.GOGBaseURL),
		cheapshark.New(httpClient, cfg.Adapters.CheapSharkBaseURL),
		nuuvem.New(httpClient, cfg.Adapters.NuuvemBaseURL),
	}

	var estimator *estimate.Estimator
	if cfg.Estimate.Enabled {
		estimator = &estimate.Estimator{Factor: cfg.Estimate.Factor}
	}

	svc := &services.AggregationService{
		DB:       db,
		Sources:  adapters,
		Resolver: steamClient,
		Rates: &currency.AwesomeAPIFetcher{
			Client:  httpClient,
			BaseURL: cfg.Adapters.RatesBaseURL,
			Display: cfg.DisplayCurrency,
		},
		Stores:            domain.Stores(cfg.Stores),
		Log:               log.With().Str("component", "aggregation").Logger(),
		CacheMaxAge:       cfg.Cache.MaxAge,
		CacheMinAvailable: cfg.Cache.MinAvailable,
		CacheMinRows:      cfg.Cache.MinRows,
		Estimator:         estimator,
		TitleOverrides:    cfg.TitleOverrides,
	}
	h := handlers.NewPriceHandler(svc, cfg.DisplayCurrency)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/prices/:gameID", h.GetPrices)
		api.POST("/prices", h.PostPrices)
	}
}

// storefrontCountry maps the display currency to the Steam storefront region
// the authoritative prices are requested for.
func storefrontCountry(displayCurrency string) string {
	switch strings.ToUpper(displayCurrency) {
	case "BRL":
		return "br"
	case "EUR":
		return "de"
	default:
		return "us"
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
