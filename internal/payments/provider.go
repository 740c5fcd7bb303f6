package payments

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/rates"
)

// Billing is the payer's contact details. Which fields are required depends on the provider.
type Billing struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func (b Billing) FullName() string {
	return strings.TrimSpace(b.FirstName + " " + b.LastName)
}

// BankTransfer is what a customer needs to pay into a virtual account.
type BankTransfer struct {
	BankName      string          `json:"bank_name,omitempty"`
	BankCode      string          `json:"bank_code,omitempty"`
	AccountNumber string          `json:"account_number"`
	AccountName   string          `json:"account_name,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}

// Initiation is returned to the browser after a payment was opened with a provider.
type Initiation struct {
	Provider         string `json:"provider"`
	OrderID          string `json:"order_id"`
	CheckoutURL      string `json:"checkoutUrl,omitempty"`
	RedirectURL      string `json:"redirect_url,omitempty"`
	AccessCode       string `json:"access_code,omitempty"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
	InvoiceURL       string `json:"invoice_url,omitempty"`
	*BankTransfer

	// Reference is the provider-issued id when the provider returns one synchronously.
	Reference string `json:"reference,omitempty"`
}

type EventKind int

const (
	EventOther EventKind = iota
	EventSuccess
	EventFailure
)

func (k EventKind) String() string {
	switch k {
	case EventSuccess:
		return "success"
	case EventFailure:
		return "failure"
	}
	return "other"
}

// VerifiedEvent is a webhook payload that passed authentication, normalized
// to the internal status vocabulary.
type VerifiedEvent struct {
	Kind              EventKind
	Status            orders.Status // paid for success, failed or expired for failure
	OrderID           string
	ProviderReference string
	RawStatus         string
}

type Provider interface {
	Name() string
	CreatePayment(ctx context.Context, order *orders.Order, billing Billing) (Initiation, error)
	VerifyWebhook(header http.Header, raw []byte) (VerifiedEvent, error)
}

// PublicConfig is the client-side SDK configuration a provider may expose.
type PublicConfig struct {
	PublicKey  string `json:"publicKey"`
	BusinessID string `json:"businessId,omitempty"`
}

type PublicConfigurer interface {
	PublicConfig() (PublicConfig, error)
}

type RateSource interface {
	Get(ctx context.Context, pair string) (rates.Rate, error)
}

// URLs builds the customer and callback URLs handed to providers.
type URLs struct {
	Site string // marketing site / portal
	API  string // this service
}

func (u URLs) Success(orderID string) string {
	return fmt.Sprintf("%s/checkout/success?order_id=%s", u.Site, orderID)
}

func (u URLs) Cancel(orderID string) string {
	return fmt.Sprintf("%s/checkout/cancelled?order_id=%s", u.Site, orderID)
}

func (u URLs) Webhook(provider string) string {
	return fmt.Sprintf("%s/webhooks/%s", u.API, provider)
}

type Registry struct {
	providers map[string]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, notFound(name, "unknown payment provider")
	}
	return p, nil
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for n := range r.providers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// localAmount converts an order total with the provider's USD->currency rate,
// in minor and in major units. A missing rate fails before any provider call is made.
func localAmount(ctx context.Context, src RateSource, provider, currency string, usd decimal.Decimal) (minor int64, major decimal.Decimal, err error) {
	rate, err := src.Get(ctx, rates.Pair(currency))
	if err != nil {
		return 0, decimal.Zero, &Error{Kind: KindExchangeRate, Provider: provider,
			Message: fmt.Sprintf("exchange rate USD->%s unavailable", currency), Err: err}
	}
	return rates.ToMinorUnits(usd, rate.Value), rates.ToMajorUnits(usd, rate.Value), nil
}
