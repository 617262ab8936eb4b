// Package server assembles the HTTP surface: middleware chain, error
// rendering and routes.
package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/bluebutton/server/internal/domain/coverage"
	"github.com/bluebutton/server/internal/platform/db"
	"github.com/bluebutton/server/internal/platform/fhir"
	"github.com/bluebutton/server/internal/platform/middleware"
	"github.com/bluebutton/server/internal/platform/telemetry"
)

const (
	FHIRPath = "/fhir"
	Version  = "0.1.0"
)

type Options struct {
	Logger        zerolog.Logger
	Beneficiaries coverage.BeneficiaryRepository
	Metrics       *telemetry.Registry
	ServerBaseURL string

	// Health backs /health/db. It is optional.
	Health db.Checker

	RequestTimeout time.Duration

	// RateLimit is applied per client DN. The zero value disables it.
	RateLimit middleware.RateLimitConfig
}

// New builds the echo instance. The caller owns starting and stopping it.
func New(opts Options) *echo.Echo {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewRegistry()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := opts.Logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// The server terminates TLS itself; forwarding headers are not trusted.
	e.IPExtractor = echo.ExtractIPDirect()
	e.HTTPErrorHandler = fhir.HTTPErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.ContextLogger(logger))
	e.Use(middleware.ClientCertificates())
	e.Use(middleware.LoggingContext(nil))
	e.Use(metrics.MetricsMiddleware())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RateLimit(opts.RateLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead},
		AllowHeaders: []string{"Accept", "X-Request-ID"},
	}))
	e.Use(echomw.BodyLimit("64K"))
	e.Use(middleware.RequestTimeout(timeout))
	e.Use(middleware.Recovery(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": Version,
		})
	})
	if opts.Health != nil {
		e.GET("/health/db", db.HealthHandler(opts.Health))
	}
	e.GET("/metrics", metrics.PrometheusHandler())

	transformer := coverage.NewTransformer(metrics)
	provider := coverage.NewProvider(opts.Beneficiaries, transformer, metrics)
	handler := coverage.NewHandler(provider, opts.ServerBaseURL, FHIRPath)

	fhirGroup := e.Group(FHIRPath)
	fhirGroup.GET("/metadata", fhir.CapabilityHandler(opts.ServerBaseURL, coverage.Capability()))
	handler.RegisterRoutes(fhirGroup)

	return e
}
