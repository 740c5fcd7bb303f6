package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/config"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
)

const ProviderNowPayments = "nowpayments"

// NowPayments sells through a hosted crypto invoice priced in USD.
type NowPayments struct {
	cfg  config.Provider
	urls URLs
	api  apiClient
}

func NewNowPayments(cfg config.Provider, urls URLs, hc *http.Client) *NowPayments {
	return &NowPayments{cfg: cfg, urls: urls, api: apiClient{provider: ProviderNowPayments, http: hc}}
}

func (p *NowPayments) Name() string { return ProviderNowPayments }

type nowInvoiceRequest struct {
	PriceAmount      json.Number `json:"price_amount"`
	PriceCurrency    string      `json:"price_currency"`
	OrderID          string      `json:"order_id"`
	OrderDescription string      `json:"order_description"`
	IPNCallbackURL   string      `json:"ipn_callback_url"`
	SuccessURL       string      `json:"success_url"`
	CancelURL        string      `json:"cancel_url"`
}

type nowInvoiceResponse struct {
	ID         json.Number `json:"id"`
	OrderID    string      `json:"order_id"`
	InvoiceURL string      `json:"invoice_url"`
}

func (p *NowPayments) CreatePayment(ctx context.Context, order *orders.Order, _ Billing) (Initiation, error) {
	if p.cfg.SecretKey == "" {
		return Initiation{}, configError(ProviderNowPayments, "api key not configured")
	}
	var resp nowInvoiceResponse
	err := p.api.postJSON(ctx, p.cfg.BaseURL+"/v1/invoice",
		map[string]string{"x-api-key": p.cfg.SecretKey},
		nowInvoiceRequest{
			PriceAmount:      json.Number(order.TotalPrice.StringFixed(2)),
			PriceCurrency:    strings.ToLower(p.cfg.Currency),
			OrderID:          order.ID,
			OrderDescription: order.ProgramName,
			IPNCallbackURL:   p.urls.Webhook(ProviderNowPayments),
			SuccessURL:       p.urls.Success(order.ID),
			CancelURL:        p.urls.Cancel(order.ID),
		}, &resp)
	if err != nil {
		return Initiation{}, err
	}
	if resp.InvoiceURL == "" {
		return Initiation{}, rejected(ProviderNowPayments, "no invoice url returned")
	}
	return Initiation{
		Provider:   ProviderNowPayments,
		OrderID:    order.ID,
		InvoiceURL: resp.InvoiceURL,
		Reference:  resp.ID.String(),
	}, nil
}

type nowIPN struct {
	PaymentID     json.Number `json:"payment_id"`
	InvoiceID     json.Number `json:"invoice_id"`
	OrderID       string      `json:"order_id"`
	PaymentStatus string      `json:"payment_status"`
}

// waiting, confirming, confirmed, sending and partially_paid are in-flight
// and leave the order pending.
var nowStatuses = map[string]orders.Status{
	"finished": orders.StatusPaid,
	"failed":   orders.StatusFailed,
	"expired":  orders.StatusExpired,
}

// VerifyWebhook checks x-nowpayments-sig, an HMAC-SHA512 over the body
// re-encoded with sorted keys. An unset IPN secret is always a hard error.
func (p *NowPayments) VerifyWebhook(header http.Header, raw []byte) (VerifiedEvent, error) {
	if p.cfg.WebhookSecret == "" {
		return VerifiedEvent{}, configError(ProviderNowPayments, "IPN secret not configured")
	}
	sig := header.Get("x-nowpayments-sig")
	if sig == "" {
		return VerifiedEvent{}, authError(ProviderNowPayments, "missing signature")
	}
	canonical, err := canonicalJSON(raw)
	if err != nil {
		return VerifiedEvent{}, validationError(ProviderNowPayments, "invalid payload: %v", err)
	}
	if !VerifyHex(sha512Hash, p.cfg.WebhookSecret, canonical, sig) {
		return VerifiedEvent{}, authError(ProviderNowPayments, "invalid signature")
	}

	var ipn nowIPN
	if err := json.Unmarshal(raw, &ipn); err != nil {
		return VerifiedEvent{}, validationError(ProviderNowPayments, "invalid payload: %v", err)
	}
	ref := ipn.PaymentID.String()
	if ref == "" {
		ref = ipn.InvoiceID.String()
	}
	return classify(nowStatuses, ipn.PaymentStatus, ipn.OrderID, ref), nil
}
