package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/affiliates"
)

type AffiliateStore interface {
	GetByCode(ctx context.Context, code string) (*affiliates.Affiliate, error)
	Apply(ctx context.Context, userID, code string) (*affiliates.Affiliate, error)
	Approve(ctx context.Context, id string) (*affiliates.Affiliate, error)
	Reject(ctx context.Context, id string) (*affiliates.Affiliate, error)
	UpdateCommission(ctx context.Context, id string, rate decimal.Decimal, tier string) (*affiliates.Affiliate, error)
	SetDiscount(ctx context.Context, id string, enabled bool, percent decimal.Decimal) (*affiliates.Affiliate, error)
	ListReferrals(ctx context.Context, affiliateID string) ([]affiliates.Referral, error)
	UpdateReferralStatus(ctx context.Context, id string, s affiliates.ReferralStatus) (*affiliates.Referral, error)
	CreateDiscountCode(ctx context.Context, d affiliates.DiscountCode) (*affiliates.DiscountCode, error)
	DeactivateDiscountCode(ctx context.Context, code string) error
}

var hundred = decimal.NewFromInt(100)

func percentInRange(d decimal.Decimal) bool {
	return !d.IsNegative() && !d.GreaterThan(hundred)
}

type AffiliatesHandler struct {
	Repo AffiliateStore
}

func (h *AffiliatesHandler) Register(r chi.Router) {
	r.Post("/affiliates/apply", h.apply)
	r.Get("/affiliates/{code}/referrals", h.referrals)
}

func (h *AffiliatesHandler) RegisterAdmin(r chi.Router) {
	r.Post("/affiliates/{id}/approve", h.approve)
	r.Post("/affiliates/{id}/reject", h.reject)
	r.Patch("/affiliates/{id}/commission", h.updateCommission)
	r.Patch("/affiliates/{id}/discount", h.updateDiscount)
	r.Patch("/referrals/{id}", h.updateReferral)
	r.Post("/discount-codes", h.createDiscountCode)
	r.Delete("/discount-codes/{code}", h.deactivateDiscountCode)
}

type applyReq struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

func (h *AffiliatesHandler) apply(w http.ResponseWriter, r *http.Request) {
	var req applyReq
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	if req.UserID == "" {
		badRequest(w, r, "user_id is required")
		return
	}
	a, err := h.Repo.Apply(r.Context(), req.UserID, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, a)
}

type referralsResp struct {
	Code      string                `json:"code"`
	Status    affiliates.Status     `json:"status"`
	Referrals []affiliates.Referral `json:"referrals"`
	Earned    decimal.Decimal       `json:"total_commission"`
}

// referrals is the affiliate dashboard: every credited order and the
// commission total, cancelled referrals excluded.
func (h *AffiliatesHandler) referrals(w http.ResponseWriter, r *http.Request) {
	a, err := h.Repo.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.Repo.ListReferrals(r.Context(), a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := referralsResp{Code: a.Code, Status: a.Status, Referrals: list, Earned: decimal.Zero}
	if resp.Referrals == nil {
		resp.Referrals = []affiliates.Referral{}
	}
	for _, ref := range list {
		if ref.Status != affiliates.ReferralCancelled {
			resp.Earned = resp.Earned.Add(ref.Commission)
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *AffiliatesHandler) approve(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.Repo.Approve(r.Context(), chi.URLParam(r, "id")))
}

func (h *AffiliatesHandler) reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.Repo.Reject(r.Context(), chi.URLParam(r, "id")))
}

func (h *AffiliatesHandler) respond(w http.ResponseWriter, r *http.Request) func(*affiliates.Affiliate, error) {
	return func(a *affiliates.Affiliate, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, a)
	}
}

type commissionReq struct {
	Rate decimal.Decimal `json:"commission_rate"`
	Tier string          `json:"tier"`
}

func (h *AffiliatesHandler) updateCommission(w http.ResponseWriter, r *http.Request) {
	var req commissionReq
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	if !percentInRange(req.Rate) {
		badRequest(w, r, "commission_rate must be between 0 and 100")
		return
	}
	h.respond(w, r)(h.Repo.UpdateCommission(r.Context(), chi.URLParam(r, "id"), req.Rate, req.Tier))
}

type discountReq struct {
	Enabled bool            `json:"discount_enabled"`
	Percent decimal.Decimal `json:"discount_percent"`
}

func (h *AffiliatesHandler) updateDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountReq
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	if !percentInRange(req.Percent) {
		badRequest(w, r, "discount_percent must be between 0 and 100")
		return
	}
	h.respond(w, r)(h.Repo.SetDiscount(r.Context(), chi.URLParam(r, "id"), req.Enabled, req.Percent))
}

func (h *AffiliatesHandler) updateReferral(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status affiliates.ReferralStatus `json:"status"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	if !req.Status.Valid() {
		badRequest(w, r, "status must be pending, completed or cancelled")
		return
	}
	ref, err := h.Repo.UpdateReferralStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ref)
}

type discountCodeReq struct {
	Code      string                  `json:"code"`
	Kind      affiliates.DiscountKind `json:"kind"`
	Value     decimal.Decimal         `json:"value"`
	ExpiresAt *time.Time              `json:"expires_at"`
	MaxUses   int                     `json:"max_uses"`
}

func (h *AffiliatesHandler) createDiscountCode(w http.ResponseWriter, r *http.Request) {
	var req discountCodeReq
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	switch {
	case req.Kind != affiliates.DiscountPercent && req.Kind != affiliates.DiscountFixed:
		badRequest(w, r, "kind must be percent or fixed")
		return
	case !req.Value.IsPositive():
		badRequest(w, r, "value must be positive")
		return
	case req.Kind == affiliates.DiscountPercent && req.Value.GreaterThan(hundred):
		badRequest(w, r, "percent value cannot exceed 100")
		return
	case req.MaxUses < 0:
		badRequest(w, r, "max_uses cannot be negative")
		return
	}
	d, err := h.Repo.CreateDiscountCode(r.Context(), affiliates.DiscountCode{
		Code:      req.Code,
		Kind:      req.Kind,
		Value:     req.Value,
		ExpiresAt: req.ExpiresAt,
		MaxUses:   req.MaxUses,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, d)
}

func (h *AffiliatesHandler) deactivateDiscountCode(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeactivateDiscountCode(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
