package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"
)

const resendEndpoint = "https://api.resend.com/emails"

type Email struct {
	To      string
	Subject string
	HTML    string
}

// Resend sends transactional email through the Resend HTTP API.
type Resend struct {
	APIKey   string
	From     string
	Endpoint string // defaults to the public API
	HTTP     *http.Client
}

func NewResend(apiKey, from string) *Resend {
	return &Resend{APIKey: apiKey, From: from, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

// Enabled reports whether an API key is configured.
func (m *Resend) Enabled() bool { return m != nil && m.APIKey != "" }

func (m *Resend) Send(ctx context.Context, e Email) error {
	body, err := json.Marshal(map[string]any{
		"from":    m.From,
		"to":      []string{e.To},
		"subject": e.Subject,
		"html":    e.HTML,
	})
	if err != nil {
		return err
	}
	endpoint := m.Endpoint
	if endpoint == "" {
		endpoint = resendEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("resend: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

var (
	confirmationTmpl = template.Must(template.New("confirmation").Parse(`<h2>Thank you for your purchase, {{.Name}}!</h2>
<p>Your order for <strong>{{.Program}}</strong> has been confirmed.</p>
<table>
<tr><td>Order</td><td>{{.OrderID}}</td></tr>
{{range .Addons}}<tr><td>Add-on</td><td>{{.Name}} (${{.Price.StringFixed 2}})</td></tr>
{{end}}{{if .Discount}}<tr><td>Discount</td><td>-${{.Discount}}</td></tr>
{{end}}<tr><td>Total paid</td><td>${{.Total}}</td></tr>
<tr><td>Payment method</td><td>{{.Provider}}</td></tr>
</table>
<p>Your account credentials will follow in a separate email.</p>`))

	commissionTmpl = template.Must(template.New("commission").Parse(`<h2>You earned a commission, {{.Name}}!</h2>
<p>An order for <strong>{{.Program}}</strong> was placed with your code <strong>{{.Code}}</strong>.</p>
<p>Commission: <strong>${{.Commission}}</strong> (status: {{.Status}})</p>`))
)

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return b.String(), nil
}
