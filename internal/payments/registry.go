package payments

import (
	"net/http"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/config"
)

// NewRegistryFromConfig wires every supported provider from one config.
func NewRegistryFromConfig(cfg config.Config, rates RateSource, hc *http.Client) *Registry {
	urls := URLs{Site: cfg.PublicBaseURL, API: cfg.APIBaseURL}
	strict := cfg.WebhookStrict
	return NewRegistry(
		NewAlatPay(cfg.AlatPay, rates, strict, hc),
		NewPaystack(cfg.Paystack, rates, urls, strict, hc),
		NewStartButton(cfg.StartButton, rates, urls, strict, hc),
		NewNowPayments(cfg.NowPayments, urls, hc),
		NewKlasha(cfg.Klasha, rates, urls, strict, hc),
		NewQorePay(cfg.QorePay, urls, hc),
	)
}
