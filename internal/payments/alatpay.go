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

const ProviderAlatPay = "alatpay"

// AlatPay issues a one-off virtual account the customer transfers into.
type AlatPay struct {
	cfg    config.Provider
	rates  RateSource
	strict bool
	api    apiClient
}

func NewAlatPay(cfg config.Provider, rates RateSource, strict bool, hc *http.Client) *AlatPay {
	return &AlatPay{cfg: cfg, rates: rates, strict: strict, api: apiClient{provider: ProviderAlatPay, http: hc}}
}

func (p *AlatPay) Name() string { return ProviderAlatPay }

type alatCustomer struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Metadata  string `json:"metadata"`
}

type alatVirtualAccountRequest struct {
	BusinessID  string       `json:"businessId"`
	Amount      json.Number  `json:"amount"`
	Currency    string       `json:"currency"`
	OrderID     string       `json:"orderId"`
	Description string       `json:"description"`
	Customer    alatCustomer `json:"customer"`
}

type alatVirtualAccountResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		TransactionID            string `json:"transactionId"`
		VirtualBankAccountNumber string `json:"virtualBankAccountNumber"`
		VirtualBankCode          string `json:"virtualBankCode"`
		BusinessName             string `json:"businessName"`
		ExpiredAt                string `json:"expiredAt"`
	} `json:"data"`
}

func (p *AlatPay) CreatePayment(ctx context.Context, order *orders.Order, billing Billing) (Initiation, error) {
	if p.cfg.SecretKey == "" || p.cfg.BusinessID == "" {
		return Initiation{}, configError(ProviderAlatPay, "subscription key or business id not configured")
	}
	if billing.Email == "" {
		return Initiation{}, validationError(ProviderAlatPay, "email is required")
	}
	_, amount, err := localAmount(ctx, p.rates, ProviderAlatPay, p.cfg.Currency, order.TotalPrice)
	if err != nil {
		return Initiation{}, err
	}

	var resp alatVirtualAccountResponse
	err = p.api.postJSON(ctx, p.cfg.BaseURL+"/bank-transfer/api/v1/bankTransfer/virtualAccount",
		map[string]string{"Ocp-Apim-Subscription-Key": p.cfg.SecretKey},
		alatVirtualAccountRequest{
			BusinessID:  p.cfg.BusinessID,
			Amount:      json.Number(amount.StringFixed(2)),
			Currency:    p.cfg.Currency,
			OrderID:     order.ID,
			Description: order.ProgramName,
			Customer: alatCustomer{
				Email:     billing.Email,
				Phone:     billing.Phone,
				FirstName: billing.FirstName,
				LastName:  billing.LastName,
				Metadata:  order.ID,
			},
		}, &resp)
	if err != nil {
		return Initiation{}, err
	}
	if !resp.Status || resp.Data.VirtualBankAccountNumber == "" {
		return Initiation{}, rejected(ProviderAlatPay, nonEmpty(resp.Message, "virtual account was not created"))
	}

	bt := &BankTransfer{
		BankCode:      resp.Data.VirtualBankCode,
		AccountNumber: resp.Data.VirtualBankAccountNumber,
		AccountName:   resp.Data.BusinessName,
		Amount:        amount,
		Currency:      p.cfg.Currency,
	}
	if t, err := time.Parse(time.RFC3339, resp.Data.ExpiredAt); err == nil {
		bt.ExpiresAt = &t
	}
	return Initiation{
		Provider:     ProviderAlatPay,
		OrderID:      order.ID,
		BankTransfer: bt,
		Reference:    resp.Data.TransactionID,
	}, nil
}

type alatEvent struct {
	Data struct {
		ID            string `json:"id"`
		TransactionID string `json:"transactionId"`
		OrderID       string `json:"orderId"`
		Status        string `json:"status"`
	} `json:"data"`
}

var alatStatuses = map[string]orders.Status{
	"success":   orders.StatusPaid,
	"completed": orders.StatusPaid,
	"failed":    orders.StatusFailed,
	"expired":   orders.StatusExpired,
}

func (p *AlatPay) VerifyWebhook(header http.Header, raw []byte) (VerifiedEvent, error) {
	policy := signaturePolicy{provider: ProviderAlatPay, secret: p.cfg.WebhookSecret, required: p.strict}
	if err := policy.check(sha256Hash, raw, header.Get("x-alatpay-signature")); err != nil {
		return VerifiedEvent{}, err
	}
	var ev alatEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return VerifiedEvent{}, validationError(ProviderAlatPay, "invalid payload: %v", err)
	}
	ref := nonEmpty(ev.Data.TransactionID, ev.Data.ID)
	return classify(alatStatuses, strings.ToLower(ev.Data.Status), ev.Data.OrderID, ref), nil
}

func (p *AlatPay) PublicConfig() (PublicConfig, error) {
	if p.cfg.PublicKey == "" || p.cfg.BusinessID == "" {
		return PublicConfig{}, configError(ProviderAlatPay, "public key or business id not configured")
	}
	return PublicConfig{PublicKey: p.cfg.PublicKey, BusinessID: p.cfg.BusinessID}, nil
}
