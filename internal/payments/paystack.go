package payments

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/config"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
)

const ProviderPaystack = "paystack"

// Paystack is the card and bank gateway settling in local currency.
type Paystack struct {
	cfg    config.Provider
	rates  RateSource
	urls   URLs
	strict bool
	api    apiClient
}

func NewPaystack(cfg config.Provider, rates RateSource, urls URLs, strict bool, hc *http.Client) *Paystack {
	return &Paystack{cfg: cfg, rates: rates, urls: urls, strict: strict, api: apiClient{provider: ProviderPaystack, http: hc}}
}

func (p *Paystack) Name() string { return ProviderPaystack }

type paystackInitRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url"`
	Metadata    map[string]string `json:"metadata"`
}

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (p *Paystack) CreatePayment(ctx context.Context, order *orders.Order, billing Billing) (Initiation, error) {
	if p.cfg.SecretKey == "" {
		return Initiation{}, configError(ProviderPaystack, "secret key not configured")
	}
	if billing.Email == "" {
		return Initiation{}, validationError(ProviderPaystack, "email is required")
	}
	kobo, _, err := localAmount(ctx, p.rates, ProviderPaystack, p.cfg.Currency, order.TotalPrice)
	if err != nil {
		return Initiation{}, err
	}

	var resp paystackInitResponse
	err = p.api.postJSON(ctx, p.cfg.BaseURL+"/transaction/initialize",
		map[string]string{"Authorization": "Bearer " + p.cfg.SecretKey},
		paystackInitRequest{
			Email:       billing.Email,
			Amount:      kobo,
			Currency:    p.cfg.Currency,
			Reference:   order.ID,
			CallbackURL: p.urls.Success(order.ID),
			Metadata: map[string]string{
				"order_id":     order.ID,
				"user_id":      order.UserID,
				"program_name": order.ProgramName,
			},
		}, &resp)
	if err != nil {
		return Initiation{}, err
	}
	if !resp.Status || resp.Data.AccessCode == "" {
		return Initiation{}, rejected(ProviderPaystack, nonEmpty(resp.Message, "transaction was not initialized"))
	}
	return Initiation{
		Provider:         ProviderPaystack,
		OrderID:          order.ID,
		AccessCode:       resp.Data.AccessCode,
		AuthorizationURL: resp.Data.AuthorizationURL,
	}, nil
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID        json.Number `json:"id"`
		Reference string      `json:"reference"`
		Status    string      `json:"status"`
	} `json:"data"`
}

var paystackEvents = map[string]orders.Status{
	"charge.success": orders.StatusPaid,
	"charge.failed":  orders.StatusFailed,
}

func (p *Paystack) VerifyWebhook(header http.Header, raw []byte) (VerifiedEvent, error) {
	policy := signaturePolicy{provider: ProviderPaystack, secret: p.cfg.WebhookSecret, required: p.strict}
	if err := policy.check(sha512Hash, raw, header.Get("x-paystack-signature")); err != nil {
		return VerifiedEvent{}, err
	}
	var ev paystackEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return VerifiedEvent{}, validationError(ProviderPaystack, "invalid payload: %v", err)
	}
	return classify(paystackEvents, ev.Event, ev.Data.Reference, ev.Data.ID.String()), nil
}

func (p *Paystack) PublicConfig() (PublicConfig, error) {
	if p.cfg.PublicKey == "" {
		return PublicConfig{}, configError(ProviderPaystack, "public key not configured")
	}
	return PublicConfig{PublicKey: p.cfg.PublicKey}, nil
}
