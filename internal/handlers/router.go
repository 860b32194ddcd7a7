package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/finitefield-org/hanko-field/internal/platform/httpx"
	"github.com/finitefield-org/hanko-field/internal/platform/metrics"
)

// RouteRegistrar mounts one group of endpoints.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers
	metrics     http.Handler

	public   RouteRegistrar
	orders   RouteRegistrar
	payments RouteRegistrar
}

// Option adjusts NewRouter.
type Option func(*routerConfig)

const (
	apiPrefix      = "/v1"
	requestTimeout = 60 * time.Second
)

// NewRouter builds the public API: health checks and /metrics at the root, the
// storefront and webhook groups under /v1.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{metrics: metrics.Handler()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Timeout(requestTimeout))
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.NotFound(routeError(http.StatusNotFound, "route_not_found"))
	r.MethodNotAllowed(routeError(http.StatusMethodNotAllowed, "method_not_allowed"))

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)
	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}

	r.Route(apiPrefix, func(v1 chi.Router) {
		if cfg.public != nil {
			cfg.public(v1)
		}
		mount(v1, "/orders", cfg.orders)
		mount(v1, "/payments", cfg.payments)
	})
	return r
}

func mount(r chi.Router, prefix string, reg RouteRegistrar) {
	if reg != nil {
		r.Route(prefix, reg)
	}
}

func routeError(status int, code string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		message := http.StatusText(status) + ": " + req.Method + " " + req.URL.Path
		httpx.WriteError(req.Context(), w, httpx.NewError(code, message, status))
	}
}

// WithMiddlewares adds middleware after the built-in request id, real ip and
// timeout handlers.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.middlewares = append(cfg.middlewares, mw...) }
}

// WithHealthHandlers sets the /healthz and /readyz handlers.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

// WithMetricsHandler replaces the Prometheus handler; nil disables /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(cfg *routerConfig) { cfg.metrics = h }
}

// WithPublicRoutes mounts /v1/config and /v1/catalog.
func WithPublicRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.public = reg }
}

// WithOrderRoutes mounts /v1/orders.
func WithOrderRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.orders = reg }
}

// WithPaymentRoutes mounts /v1/payments.
func WithPaymentRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.payments = reg }
}
