package httpx

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/rates"
)

type RateStore interface {
	Get(ctx context.Context, pair string) (rates.Rate, error)
	Set(ctx context.Context, pair string, value decimal.Decimal) (rates.Rate, error)
}

var pairPattern = regexp.MustCompile(`^USD_[A-Z]{3}$`)

type RatesHandler struct {
	Repo RateStore
}

func (h *RatesHandler) Register(r chi.Router) {
	r.Get("/exchange-rates/{pair}", h.get)
}

func (h *RatesHandler) RegisterAdmin(r chi.Router) {
	r.Put("/exchange-rates/{pair}", h.put)
}

func pairParam(r *http.Request) (string, bool) {
	p := strings.ToUpper(chi.URLParam(r, "pair"))
	return p, pairPattern.MatchString(p)
}

func (h *RatesHandler) get(w http.ResponseWriter, r *http.Request) {
	pair, ok := pairParam(r)
	if !ok {
		badRequest(w, r, "pair must look like USD_NGN")
		return
	}
	rate, err := h.Repo.Get(r.Context(), pair)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rate)
}

func (h *RatesHandler) put(w http.ResponseWriter, r *http.Request) {
	pair, ok := pairParam(r)
	if !ok {
		badRequest(w, r, "pair must look like USD_NGN")
		return
	}
	var req struct {
		Rate decimal.Decimal `json:"rate"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	rate, err := h.Repo.Set(r.Context(), pair, req.Rate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rate)
}
