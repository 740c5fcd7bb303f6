package httpx

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/render"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/affiliates"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/payments"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/rates"
)

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	render.Status(r, code)
	render.JSON(w, r, v)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": msg})
}

var kindStatus = map[payments.Kind]int{
	payments.KindConfiguration:    http.StatusInternalServerError,
	payments.KindExchangeRate:     http.StatusInternalServerError,
	payments.KindAuthentication:   http.StatusUnauthorized,
	payments.KindProviderRejected: http.StatusBadGateway,
	payments.KindNetwork:          http.StatusBadGateway,
	payments.KindNotFound:         http.StatusNotFound,
	payments.KindValidation:       http.StatusBadRequest,
}

// statusFor maps domain errors onto HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	if k := payments.KindOf(err); k != "" {
		return kindStatus[k]
	}
	switch {
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, affiliates.ErrAffiliateNotFound),
		errors.Is(err, affiliates.ErrReferralNotFound),
		errors.Is(err, affiliates.ErrDiscountNotFound),
		errors.Is(err, rates.ErrRateNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, affiliates.ErrCodeTaken):
		return http.StatusConflict
	case errors.Is(err, affiliates.ErrInvalidCode),
		errors.Is(err, rates.ErrInvalidRate):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": message}. Unclassified failures are
// logged and reported without internals.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError && payments.KindOf(err) == "" {
		log.Printf("[http] %s %s: %v", r.Method, r.URL.Path, err)
		msg = "internal error"
	}
	writeJSON(w, r, code, map[string]string{"error": msg})
}
