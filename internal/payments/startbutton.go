package payments

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/config"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
)

const ProviderStartButton = "startbutton"

// StartButton collects mobile money through a hosted page.
type StartButton struct {
	cfg    config.Provider
	rates  RateSource
	urls   URLs
	strict bool
	api    apiClient
}

func NewStartButton(cfg config.Provider, rates RateSource, urls URLs, strict bool, hc *http.Client) *StartButton {
	return &StartButton{cfg: cfg, rates: rates, urls: urls, strict: strict, api: apiClient{provider: ProviderStartButton, http: hc}}
}

func (p *StartButton) Name() string { return ProviderStartButton }

type startButtonInitRequest struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Email          string            `json:"email"`
	Reference      string            `json:"reference"`
	RedirectURL    string            `json:"redirectUrl"`
	PaymentMethods []string          `json:"paymentMethods"`
	Metadata       map[string]string `json:"metadata"`
}

type startButtonInitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (p *StartButton) CreatePayment(ctx context.Context, order *orders.Order, billing Billing) (Initiation, error) {
	if p.cfg.SecretKey == "" {
		return Initiation{}, configError(ProviderStartButton, "secret key not configured")
	}
	if billing.Email == "" {
		return Initiation{}, validationError(ProviderStartButton, "email is required")
	}
	minor, _, err := localAmount(ctx, p.rates, ProviderStartButton, p.cfg.Currency, order.TotalPrice)
	if err != nil {
		return Initiation{}, err
	}

	var resp startButtonInitResponse
	err = p.api.postJSON(ctx, p.cfg.BaseURL+"/transaction/initialize",
		map[string]string{"Authorization": "Bearer " + p.cfg.SecretKey},
		startButtonInitRequest{
			Amount:         minor,
			Currency:       p.cfg.Currency,
			Email:          billing.Email,
			Reference:      order.ID,
			RedirectURL:    p.urls.Success(order.ID),
			PaymentMethods: []string{"mobile_money"},
			Metadata:       map[string]string{"order_id": order.ID},
		}, &resp)
	if err != nil {
		return Initiation{}, err
	}
	if !resp.Success || resp.Data == "" {
		return Initiation{}, rejected(ProviderStartButton, nonEmpty(resp.Message, "no payment link returned"))
	}
	return Initiation{Provider: ProviderStartButton, OrderID: order.ID, RedirectURL: resp.Data}, nil
}

type startButtonEvent struct {
	Event string `json:"event"`
	Data  struct {
		Transaction struct {
			ID                       string `json:"_id"`
			UserTransactionReference string `json:"userTransactionReference"`
			Status                   string `json:"status"`
		} `json:"transaction"`
	} `json:"data"`
}

var startButtonEvents = map[string]orders.Status{
	"charge.success": orders.StatusPaid,
	"charge.failed":  orders.StatusFailed,
	"charge.expired": orders.StatusExpired,
}

func (p *StartButton) VerifyWebhook(header http.Header, raw []byte) (VerifiedEvent, error) {
	policy := signaturePolicy{provider: ProviderStartButton, secret: p.cfg.WebhookSecret, required: p.strict}
	if err := policy.check(sha512Hash, raw, header.Get("x-startbutton-signature")); err != nil {
		return VerifiedEvent{}, err
	}
	var ev startButtonEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return VerifiedEvent{}, validationError(ProviderStartButton, "invalid payload: %v", err)
	}
	tx := ev.Data.Transaction
	return classify(startButtonEvents, ev.Event, tx.UserTransactionReference, tx.ID), nil
}

func (p *StartButton) PublicConfig() (PublicConfig, error) {
	if p.cfg.PublicKey == "" {
		return PublicConfig{}, configError(ProviderStartButton, "public key not configured")
	}
	return PublicConfig{PublicKey: p.cfg.PublicKey}, nil
}
