package httpserver

import (
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	custommw "github.com/finitefield-org/hanko-field/internal/admin/httpserver/middleware"
	"github.com/finitefield-org/hanko-field/internal/admin/orders"
	"github.com/finitefield-org/hanko-field/internal/platform/httpx"
	"github.com/finitefield-org/hanko-field/internal/platform/requestctx"
)

const (
	triggerOrderUpdated    = "order-updated"
	triggerMaterialUpdated = "material-updated"

	msgStatusUpdated   = "ステータスを更新しました。"
	msgShippingUpdated = "出荷情報を更新しました。"
	msgMaterialUpdated = "材質マスタを更新しました。"
	msgPersistFailed   = "更新の保存に失敗しました。時間を置いて再度お試しください。"
	msgPriceNotInteger = "価格は整数で入力してください。"
	msgSortNotInteger  = "表示順は整数で入力してください。"
)

type handlers struct {
	console     *orders.Console
	sourceLabel string
	isMock      bool
	policy      *bluemonday.Policy
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// refresh reloads the snapshot; on failure it writes a 500 and returns false.
func (h *handlers) refresh(w http.ResponseWriter, r *http.Request, what string) bool {
	if err := h.console.Refresh(r.Context()); err != nil {
		requestctx.Logger(r.Context()).Error("admin snapshot refresh failed", zap.String("view", what), zap.Error(err))
		http.Error(w, "failed to load "+what, http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	if !h.refresh(w, r, "admin data") {
		return
	}
	filter := parseFilter(r)
	data := pageData{
		Filters:        filter,
		StatusOptions:  orders.StatusOptions(),
		CountryOptions: h.console.CountryOptions(),
		SourceLabel:    h.sourceLabel,
		IsMock:         h.isMock,
		Operator:       requestctx.Operator(r.Context()),
		CSRF:           custommw.CSRFTokenFromContext(r.Context()),
		Orders:         h.console.Orders(filter),
		Materials:      h.console.Materials(),
	}

	orderID := strings.TrimSpace(r.URL.Query().Get("order_id"))
	if orderID == "" && len(data.Orders) > 0 {
		orderID = data.Orders[0].ID
	}
	if detail, ok := h.console.Order(orderID, "", ""); ok {
		data.OrderDetail = &detail
	}

	materialKey := strings.TrimSpace(r.URL.Query().Get("material_key"))
	if materialKey == "" && len(data.Materials) > 0 {
		materialKey = data.Materials[0].Key
	}
	if detail, ok := h.console.Material(materialKey, "", ""); ok {
		data.MaterialDetail = &detail
	}

	render(w, r, http.StatusOK, "page", data)
}

func (h *handlers) ordersList(w http.ResponseWriter, r *http.Request) {
	if !h.refresh(w, r, "orders") {
		return
	}
	render(w, r, http.StatusOK, "order_list", h.console.Orders(parseFilter(r)))
}

func (h *handlers) orderDetail(w http.ResponseWriter, r *http.Request) {
	if !h.refresh(w, r, "order") {
		return
	}
	h.renderOrder(w, r, chi.URLParam(r, "orderID"), http.StatusOK, "", "")
}

func (h *handlers) patchOrderStatus(w http.ResponseWriter, r *http.Request) {
	if !h.refresh(w, r, "order") {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	orderID := chi.URLParam(r, "orderID")
	err := h.console.UpdateStatus(r.Context(), orderID, r.Form.Get("next_status"), h.actorID(r))
	h.respondOrder(w, r, orderID, err, msgStatusUpdated)
}

func (h *handlers) patchOrderShipping(w http.ResponseWriter, r *http.Request) {
	if !h.refresh(w, r, "order") {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	orderID := chi.URLParam(r, "orderID")
	err := h.console.UpdateShipping(r.Context(), orderID,
		h.clean(r.Form.Get("carrier")),
		h.clean(r.Form.Get("tracking_no")),
		r.Form.Get("shipping_transition"),
		h.actorID(r),
	)
	h.respondOrder(w, r, orderID, err, msgShippingUpdated)
}

func (h *handlers) respondOrder(w http.ResponseWriter, r *http.Request, orderID string, err error, success string) {
	if err != nil {
		status, message := h.failure(r, err)
		h.renderOrder(w, r, orderID, status, "", message)
		return
	}
	w.Header().Set("HX-Trigger", triggerOrderUpdated)
	h.renderOrder(w, r, orderID, http.StatusOK, success, "")
}

func (h *handlers) renderOrder(w http.ResponseWriter, r *http.Request, orderID string, status int, message, errMessage string) {
	detail, ok := h.console.Order(orderID, message, errMessage)
	if !ok {
		http.NotFound(w, r)
		return
	}
	render(w, r, status, "order_detail", detail)
}

func (h *handlers) materialsList(w http.ResponseWriter, r *http.Request) {
	if !h.refresh(w, r, "materials") {
		return
	}
	render(w, r, http.StatusOK, "material_list", h.console.Materials())
}

func (h *handlers) materialDetail(w http.ResponseWriter, r *http.Request) {
	if !h.refresh(w, r, "material") {
		return
	}
	h.renderMaterial(w, r, chi.URLParam(r, "materialKey"), http.StatusOK, "", "")
}

func (h *handlers) patchMaterial(w http.ResponseWriter, r *http.Request) {
	if !h.refresh(w, r, "material") {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	key := chi.URLParam(r, "materialKey")

	price, err := strconv.ParseInt(strings.TrimSpace(r.Form.Get("price_jpy")), 10, 64)
	if err != nil {
		h.renderMaterial(w, r, key, http.StatusBadRequest, "", msgPriceNotInteger)
		return
	}
	sortOrder, err := strconv.ParseInt(strings.TrimSpace(r.Form.Get("sort_order")), 10, 64)
	if err != nil {
		h.renderMaterial(w, r, key, http.StatusBadRequest, "", msgSortNotInteger)
		return
	}

	err = h.console.UpdateMaterial(r.Context(), key, orders.MaterialPatch{
		LabelJA:       h.clean(r.Form.Get("label_ja")),
		LabelEN:       h.clean(r.Form.Get("label_en")),
		DescriptionJA: h.clean(r.Form.Get("description_ja")),
		DescriptionEN: h.clean(r.Form.Get("description_en")),
		PriceJPY:      price,
		SortOrder:     sortOrder,
		IsActive:      r.Form.Get("is_active") != "",
	})
	if err != nil {
		status, message := h.failure(r, err)
		h.renderMaterial(w, r, key, status, "", message)
		return
	}
	w.Header().Set("HX-Trigger", triggerMaterialUpdated)
	h.renderMaterial(w, r, key, http.StatusOK, msgMaterialUpdated, "")
}

func (h *handlers) renderMaterial(w http.ResponseWriter, r *http.Request, key string, status int, message, errMessage string) {
	detail, ok := h.console.Material(key, message, errMessage)
	if !ok {
		http.NotFound(w, r)
		return
	}
	render(w, r, status, "material_detail", detail)
}

// failure maps a console error to a status code and the message shown to the
// operator. Store failures are logged and reported generically.
func (h *handlers) failure(r *http.Request, err error) (int, string) {
	if orders.IsInputError(err) {
		return http.StatusBadRequest, err.Error()
	}
	requestctx.Logger(r.Context()).Error("admin mutation failed", zap.Error(err))
	return http.StatusInternalServerError, msgPersistFailed
}

// actorID prefers the form's actor_id, then the signed-in operator.
func (h *handlers) actorID(r *http.Request) string {
	if actor := h.clean(r.Form.Get("actor_id")); actor != "" {
		return actor
	}
	if user, ok := custommw.UserFromContext(r.Context()); ok {
		return user.ActorID()
	}
	return orders.DefaultActorID
}

// clean strips markup from free text operator input.
func (h *handlers) clean(value string) string {
	return strings.TrimSpace(html.UnescapeString(h.policy.Sanitize(value)))
}

func parseFilter(r *http.Request) orders.Filter {
	q := r.URL.Query()
	return orders.Filter{
		Status:  strings.TrimSpace(q.Get("status")),
		Country: strings.TrimSpace(q.Get("country")),
		Email:   strings.TrimSpace(q.Get("email")),
	}
}
