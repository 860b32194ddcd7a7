// Package httpserver serves the admin console: an htmx driven page for
// browsing orders, moving them through the lifecycle and editing the material
// master.
package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	custommw "github.com/finitefield-org/hanko-field/internal/admin/httpserver/middleware"
	"github.com/finitefield-org/hanko-field/internal/admin/orders"
	"github.com/finitefield-org/hanko-field/internal/platform/metrics"
	"github.com/finitefield-org/hanko-field/internal/platform/observability"
)

const basePath = "/admin"

// Config holds runtime options for the admin HTTP server.
type Config struct {
	Address string
	Console *orders.Console
	// SourceLabel names the data source in the page header.
	SourceLabel string
	IsMock      bool
	// Authenticator is required when AuthEnabled is set.
	Authenticator custommw.Authenticator
	AuthEnabled   bool
	LoginPath     string
	// CSRF configures the token required on PATCH requests.
	CSRF   custommw.CSRFConfig
	Logger *zap.Logger
	// MetricsHandler defaults to the Prometheus registry.
	MetricsHandler http.Handler
}

// New constructs the HTTP server with its middleware stack.
func New(cfg Config) (*http.Server, error) {
	handler, err := NewHandler(cfg)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, nil
}

// NewHandler builds the console router without binding an address.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.Console == nil {
		return nil, errors.New("admin server requires a console")
	}
	if cfg.AuthEnabled && cfg.Authenticator == nil {
		return nil, errors.New("admin server requires an authenticator when auth is enabled")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = metrics.Handler()
	}

	h := &handlers{
		console:     cfg.Console,
		sourceLabel: cfg.SourceLabel,
		isMock:      cfg.IsMock,
		policy:      bluemonday.StrictPolicy(),
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.InjectLoggerMiddleware(logger))
	router.Use(observability.RequestLoggerMiddleware())
	router.Use(observability.RecoveryMiddleware(logger))
	router.Use(chimw.Timeout(60 * time.Second))

	router.Get("/healthz", h.healthz)
	router.Handle("/metrics", metricsHandler)

	router.Group(func(r chi.Router) {
		r.Use(custommw.HTMX())
		r.Use(custommw.NoStore())
		r.Use(custommw.CSRF(cfg.CSRF))
		if cfg.AuthEnabled {
			r.Use(custommw.Auth(cfg.Authenticator, cfg.LoginPath))
		}

		r.Get("/", h.index)
		r.Route(basePath, func(r chi.Router) {
			r.Get("/", h.index)
			r.Get("/orders/list", h.ordersList)
			r.Get("/orders/{orderID}", h.orderDetail)
			r.Patch("/orders/{orderID}/status", h.patchOrderStatus)
			r.Patch("/orders/{orderID}/shipping", h.patchOrderShipping)
			r.Get("/materials/list", h.materialsList)
			r.Get("/materials/{materialKey}", h.materialDetail)
			r.Patch("/materials/{materialKey}", h.patchMaterial)
		})
	})

	return router, nil
}
