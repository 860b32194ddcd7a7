package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/finitefield-org/hanko-field/internal/platform/httpx"
	"github.com/finitefield-org/hanko-field/internal/platform/requestctx"
)

const defaultReadyTimeout = 3 * time.Second

// ReadyCheck checks a dependency; a non-nil error marks the service unready.
type ReadyCheck func(ctx context.Context) error

// HealthHandlers serves liveness and readiness checks.
type HealthHandlers struct {
	checks  map[string]ReadyCheck
	timeout time.Duration
}

type HealthOption func(*HealthHandlers)

// WithReadyCheck registers a named readiness check.
func WithReadyCheck(name string, check ReadyCheck) HealthOption {
	return func(h *HealthHandlers) {
		if name != "" && check != nil {
			h.checks[name] = check
		}
	}
}

func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{checks: make(map[string]ReadyCheck), timeout: defaultReadyTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Healthz reports liveness only.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Readyz runs every registered check and answers 503 when any fails.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			requestctx.Logger(ctx).Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			results[name] = "error"
			ready = false
			continue
		}
		results[name] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, map[string]any{"ok": ready, "checks": results})
}
