package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
)

type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	GetOrderStatus(ctx context.Context, orderID string) (orders.Status, error)
	ListOrders(ctx context.Context, status orders.Status, limit, offset int) ([]orders.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, to orders.Status, providerRef string) (bool, error)
}

type StatusCache interface {
	Get(ctx context.Context, orderID string) (string, bool)
	Set(ctx context.Context, orderID string, body []byte)
	Invalidate(ctx context.Context, orderID string)
}

type OrdersHandler struct {
	Repo  OrderStore
	Cache StatusCache // optional
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders/{id}", h.getOrderStatus)
}

func (h *OrdersHandler) RegisterAdmin(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Patch("/orders/{id}/status", h.updateStatus)
}

type orderStatusResp struct {
	OrderID string        `json:"order_id"`
	Status  orders.Status `json:"status"`
}

// getOrderStatus is polled by the checkout page while a payment settles.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache
	if h.Cache != nil {
		if s, ok := h.Cache.Get(ctx, orderID); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	// 2) db
	status, err := h.Repo.GetOrderStatus(ctx, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, _ := json.Marshal(orderStatusResp{OrderID: orderID, Status: status})
	// pending is what the webhook changes; a read racing its Invalidate would
	// put the stale value back
	if h.Cache != nil && status.IsTerminal() {
		h.Cache.Set(ctx, orderID, b)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Repo.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var status orders.Status
	if s := q.Get("status"); s != "" {
		parsed, err := orders.ParseStatus(s)
		if err != nil {
			badRequest(w, r, err.Error())
			return
		}
		status = parsed
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	list, err := h.Repo.ListOrders(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, r, http.StatusOK, list)
}

type updateStatusReq struct {
	Status            string `json:"status"`
	ProviderReference string `json:"provider_reference"`
}

// updateStatus is the manual override used for refunds, cancellations and
// bank transfers reconciled by hand. It obeys the same forward-only rules as
// webhooks.
func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req updateStatusReq
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if !to.IsTerminal() {
		badRequest(w, r, "orders cannot return to pending")
		return
	}

	changed, err := h.Repo.UpdateOrderStatus(r.Context(), orderID, to, req.ProviderReference)
	if errors.Is(err, orders.ErrInvalidTransition) {
		writeJSON(w, r, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if changed && h.Cache != nil {
		h.Cache.Invalidate(r.Context(), orderID)
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"order_id": orderID, "status": to, "changed": changed})
}
