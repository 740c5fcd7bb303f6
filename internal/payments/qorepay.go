package payments

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/config"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/rates"
)

const ProviderQorePay = "qorepay"

// QorePay is the USD card gateway with a hosted checkout page.
type QorePay struct {
	cfg  config.Provider
	urls URLs
	api  apiClient
}

func NewQorePay(cfg config.Provider, urls URLs, hc *http.Client) *QorePay {
	return &QorePay{cfg: cfg, urls: urls, api: apiClient{provider: ProviderQorePay, http: hc}}
}

func (p *QorePay) Name() string { return ProviderQorePay }

type qoreProduct struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type qorePurchaseRequest struct {
	BrandID   string `json:"brand_id"`
	Reference string `json:"reference"`
	Client    struct {
		Email    string `json:"email"`
		FullName string `json:"full_name,omitempty"`
		Phone    string `json:"phone,omitempty"`
	} `json:"client"`
	Purchase struct {
		Currency string        `json:"currency"`
		Products []qoreProduct `json:"products"`
	} `json:"purchase"`
	Meta            map[string]string `json:"meta"`
	SuccessRedirect string            `json:"success_redirect"`
	FailureRedirect string            `json:"failure_redirect"`
	SuccessCallback string            `json:"success_callback"`
}

type qorePurchaseResponse struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
}

func (p *QorePay) CreatePayment(ctx context.Context, order *orders.Order, billing Billing) (Initiation, error) {
	if p.cfg.SecretKey == "" || p.cfg.BusinessID == "" {
		return Initiation{}, configError(ProviderQorePay, "secret key or brand id not configured")
	}
	if billing.Email == "" {
		return Initiation{}, validationError(ProviderQorePay, "email is required")
	}

	req := qorePurchaseRequest{
		BrandID:         p.cfg.BusinessID,
		Reference:       order.ID,
		Meta:            map[string]string{"order_id": order.ID},
		SuccessRedirect: p.urls.Success(order.ID),
		FailureRedirect: p.urls.Cancel(order.ID),
		SuccessCallback: p.urls.Webhook(ProviderQorePay),
	}
	req.Client.Email = billing.Email
	req.Client.FullName = billing.FullName()
	req.Client.Phone = billing.Phone
	req.Purchase.Currency = p.cfg.Currency
	req.Purchase.Products = []qoreProduct{{
		Name:     order.ProgramName,
		Price:    rates.USDToCents(order.TotalPrice),
		Quantity: 1,
	}}

	var resp qorePurchaseResponse
	err := p.api.postJSON(ctx, p.cfg.BaseURL+"/api/v1/purchases/",
		map[string]string{"Authorization": "Bearer " + p.cfg.SecretKey}, req, &resp)
	if err != nil {
		return Initiation{}, err
	}
	if resp.CheckoutURL == "" {
		return Initiation{}, rejected(ProviderQorePay, "no checkout url returned")
	}
	return Initiation{
		Provider:    ProviderQorePay,
		OrderID:     order.ID,
		CheckoutURL: resp.CheckoutURL,
		Reference:   resp.ID,
	}, nil
}

type qoreEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID   string `json:"id"`
		Meta struct {
			OrderID string `json:"order_id"`
		} `json:"meta"`
	} `json:"data"`
}

var qoreEvents = map[string]orders.Status{
	"charge.success": orders.StatusPaid,
	"charge.failed":  orders.StatusFailed,
}

// VerifyWebhook requires an HMAC-SHA256 signature in x-qorepay-signature and
// refuses every delivery while no secret is configured.
func (p *QorePay) VerifyWebhook(header http.Header, raw []byte) (VerifiedEvent, error) {
	policy := signaturePolicy{provider: ProviderQorePay, secret: p.cfg.WebhookSecret, required: true}
	if err := policy.check(sha256Hash, raw, header.Get("x-qorepay-signature")); err != nil {
		return VerifiedEvent{}, err
	}
	var ev qoreEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return VerifiedEvent{}, validationError(ProviderQorePay, "invalid payload: %v", err)
	}
	return classify(qoreEvents, ev.Event, ev.Data.Meta.OrderID, ev.Data.ID), nil
}

func (p *QorePay) PublicConfig() (PublicConfig, error) {
	if p.cfg.PublicKey == "" {
		return PublicConfig{}, configError(ProviderQorePay, "public key not configured")
	}
	return PublicConfig{PublicKey: p.cfg.PublicKey, BusinessID: p.cfg.BusinessID}, nil
}
