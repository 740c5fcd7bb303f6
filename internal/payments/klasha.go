package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/config"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
)

const ProviderKlasha = "klasha"

// Klasha opens a bank-transfer collection and returns the account to pay into.
type Klasha struct {
	cfg    config.Provider
	rates  RateSource
	urls   URLs
	strict bool
	api    apiClient
}

func NewKlasha(cfg config.Provider, rates RateSource, urls URLs, strict bool, hc *http.Client) *Klasha {
	return &Klasha{cfg: cfg, rates: rates, urls: urls, strict: strict, api: apiClient{provider: ProviderKlasha, http: hc}}
}

func (p *Klasha) Name() string { return ProviderKlasha }

type klashaTransferRequest struct {
	TxRef       string      `json:"tx_ref"`
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	Email       string      `json:"email"`
	PhoneNumber string      `json:"phone_number"`
	Fullname    string      `json:"fullname"`
	BusinessID  string      `json:"business_id,omitempty"`
	CallbackURL string      `json:"callback_url"`
}

type klashaTransferResponse struct {
	Message string `json:"message"`
	Data    struct {
		TxRef         string `json:"tx_ref"`
		TransactionID string `json:"transaction_id"`
		BankName      string `json:"bank_name"`
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
		ExpiresAt     string `json:"expires_at"`
	} `json:"data"`
}

func (p *Klasha) CreatePayment(ctx context.Context, order *orders.Order, billing Billing) (Initiation, error) {
	if p.cfg.SecretKey == "" {
		return Initiation{}, configError(ProviderKlasha, "secret key not configured")
	}
	if billing.Email == "" || billing.Phone == "" || billing.FullName() == "" {
		return Initiation{}, validationError(ProviderKlasha, "email, phone and name are required")
	}
	_, amount, err := localAmount(ctx, p.rates, ProviderKlasha, p.cfg.Currency, order.TotalPrice)
	if err != nil {
		return Initiation{}, err
	}

	var resp klashaTransferResponse
	err = p.api.postJSON(ctx, p.cfg.BaseURL+"/pay/aggregators/v2/banktransfer/initiate",
		map[string]string{"x-auth-token": p.cfg.SecretKey},
		klashaTransferRequest{
			TxRef:       order.ID,
			Amount:      json.Number(amount.StringFixed(2)),
			Currency:    p.cfg.Currency,
			Email:       billing.Email,
			PhoneNumber: billing.Phone,
			Fullname:    billing.FullName(),
			BusinessID:  p.cfg.BusinessID,
			CallbackURL: p.urls.Webhook(ProviderKlasha),
		}, &resp)
	if err != nil {
		return Initiation{}, err
	}
	if resp.Data.AccountNumber == "" {
		return Initiation{}, rejected(ProviderKlasha, nonEmpty(resp.Message, "no transfer account returned"))
	}

	bt := &BankTransfer{
		BankName:      resp.Data.BankName,
		AccountNumber: resp.Data.AccountNumber,
		AccountName:   resp.Data.AccountName,
		Amount:        amount,
		Currency:      p.cfg.Currency,
	}
	if t, err := time.Parse(time.RFC3339, resp.Data.ExpiresAt); err == nil {
		bt.ExpiresAt = &t
	}
	return Initiation{
		Provider:     ProviderKlasha,
		OrderID:      order.ID,
		BankTransfer: bt,
		Reference:    resp.Data.TransactionID,
	}, nil
}

type klashaEvent struct {
	Event string `json:"event"`
	Data  struct {
		TxRef         string `json:"tx_ref"`
		TransactionID string `json:"transaction_id"`
		TxnStatus     string `json:"txn_status"`
	} `json:"data"`
}

var klashaStatuses = map[string]orders.Status{
	"successful": orders.StatusPaid,
	"failed":     orders.StatusFailed,
	"expired":    orders.StatusExpired,
}

func (p *Klasha) VerifyWebhook(header http.Header, raw []byte) (VerifiedEvent, error) {
	policy := signaturePolicy{provider: ProviderKlasha, secret: p.cfg.WebhookSecret, required: p.strict}
	if err := policy.check(sha512Hash, raw, header.Get("x-klasha-signature")); err != nil {
		return VerifiedEvent{}, err
	}
	var ev klashaEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return VerifiedEvent{}, validationError(ProviderKlasha, "invalid payload: %v", err)
	}
	return classify(klashaStatuses, strings.ToLower(ev.Data.TxnStatus), ev.Data.TxRef, ev.Data.TransactionID), nil
}

func (p *Klasha) PublicConfig() (PublicConfig, error) {
	if p.cfg.PublicKey == "" {
		return PublicConfig{}, configError(ProviderKlasha, "public key not configured")
	}
	return PublicConfig{PublicKey: p.cfg.PublicKey, BusinessID: p.cfg.BusinessID}, nil
}
