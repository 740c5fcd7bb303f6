package httpx

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/affiliates"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/payments"
)

const maxWebhookBody = 1 << 20

type PaymentService interface {
	Checkout(ctx context.Context, provider string, req payments.CheckoutRequest, traceID string) (payments.Initiation, error)
	HandleWebhook(ctx context.Context, provider string, header http.Header, raw []byte, traceID string) (payments.WebhookResult, error)
	Quote(ctx context.Context, subtotal decimal.Decimal, promo string) (affiliates.Resolution, error)
}

type PaymentsHandler struct {
	Service   PaymentService
	Providers *payments.Registry
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Post("/checkout/{provider}", h.checkout)
	r.Post("/webhooks/{provider}", h.webhook)
	r.Get("/payments/{provider}/config", h.providerConfig)
	r.Post("/discounts/validate", h.validateDiscount)
}

func (h *PaymentsHandler) RegisterAdmin(chi.Router) {}

func traceID(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return middleware.GetReqID(r.Context())
}

func (h *PaymentsHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req payments.CheckoutRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	pay, err := h.Service.Checkout(r.Context(), chi.URLParam(r, "provider"), req, traceID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, pay)
}

// webhook hands the untouched body to the provider's verifier; signatures
// are computed over the exact bytes received.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		badRequest(w, r, "unreadable body")
		return
	}
	res, err := h.Service.HandleWebhook(r.Context(), provider, r.Header, raw, traceID(r))
	if err != nil {
		log.Printf("[webhook] %s: %v", provider, err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"received": true, "result": res})
}

func (h *PaymentsHandler) providerConfig(w http.ResponseWriter, r *http.Request) {
	p, err := h.Providers.Get(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	pc, ok := p.(payments.PublicConfigurer)
	if !ok {
		writeJSON(w, r, http.StatusNotFound, map[string]string{"error": p.Name() + " has no client configuration"})
		return
	}
	cfg, err := pc.PublicConfig()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cfg)
}

type validateDiscountReq struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type validateDiscountResp struct {
	Valid bool `json:"valid"`
	affiliates.Resolution
	Total decimal.Decimal `json:"total"`
}

func (h *PaymentsHandler) validateDiscount(w http.ResponseWriter, r *http.Request) {
	var req validateDiscountReq
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	if req.Code == "" || !req.Subtotal.IsPositive() {
		badRequest(w, r, "code and a positive subtotal are required")
		return
	}
	res, err := h.Service.Quote(r.Context(), req.Subtotal, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, validateDiscountResp{
		Valid:      res.Amount.IsPositive(),
		Resolution: res,
		Total:      req.Subtotal.Sub(res.Amount),
	})
}
