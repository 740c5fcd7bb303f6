package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
)

// CRMPayload describes one purchase for the external CRM.
type CRMPayload struct {
	Event         string          `json:"event"`
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	Email         string          `json:"email,omitempty"`
	FullName      string          `json:"full_name,omitempty"`
	ProgramID     string          `json:"program_id"`
	ProgramName   string          `json:"program_name"`
	Addons        []orders.Addon  `json:"addons"`
	Discount      decimal.Decimal `json:"discount"`
	DiscountCode  string          `json:"discount_code,omitempty"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Provider      string          `json:"provider"`
	AffiliateCode string          `json:"affiliate_code,omitempty"`
	PaidAt        time.Time       `json:"paid_at"`
}

// WebhookCRM posts payloads to a CRM webhook. Without a URL it only logs them.
type WebhookCRM struct {
	URL  string
	HTTP *http.Client
}

func NewWebhookCRM(url string) *WebhookCRM {
	return &WebhookCRM{URL: url, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (c *WebhookCRM) Forward(ctx context.Context, p CRMPayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if c.URL == "" {
		log.Printf("[notify] crm payload (no sink configured): %s", body)
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("crm: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("crm: %s", resp.Status)
	}
	return nil
}
