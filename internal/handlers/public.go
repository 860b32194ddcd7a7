package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/finitefield-org/hanko-field/internal/platform/httpx"
	"github.com/finitefield-org/hanko-field/internal/platform/requestctx"
	"github.com/finitefield-org/hanko-field/internal/services"
)

type publicConfigResponse struct {
	SupportedLocales []string `json:"supported_locales"`
	DefaultLocale    string   `json:"default_locale"`
}

// PublicHandlers serves the storefront configuration and catalog.
type PublicHandlers struct {
	catalog services.CatalogService
}

func NewPublicHandlers(catalog services.CatalogService) *PublicHandlers {
	return &PublicHandlers{catalog: catalog}
}

// Routes registers /config/public and /catalog.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/config/public", h.publicConfig)
	r.Get("/catalog", h.listCatalog)
}

func (h *PublicHandlers) publicConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	cfg, err := h.catalog.PublicConfig(ctx)
	if err != nil {
		requestctx.Logger(ctx).Error("failed to load public config", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.Internal())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, publicConfigResponse{
		SupportedLocales: cfg.SupportedLocales,
		DefaultLocale:    cfg.DefaultLocale,
	})
}

func (h *PublicHandlers) listCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	view, err := h.catalog.Catalog(ctx, r.URL.Query().Get("locale"))
	switch {
	case errors.Is(err, services.ErrCatalogUnsupportedLocale):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_locale", "unsupported locale", http.StatusBadRequest))
		return
	case err != nil:
		requestctx.Logger(ctx).Error("failed to load catalog", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.Internal())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}
