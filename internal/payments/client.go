package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: 20 * time.Second}
}

// apiClient posts JSON to a provider and maps failures onto the error taxonomy.
type apiClient struct {
	provider string
	http     *http.Client
}

func (c apiClient) postJSON(ctx context.Context, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", c.provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return networkError(c.provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return networkError(c.provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rejected(c.provider, providerMessage(raw, resp.Status))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return rejected(c.provider, "unreadable response: "+err.Error())
	}
	return nil
}

// providerMessage digs the human readable error out of a provider payload.
func providerMessage(raw []byte, fallback string) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, k := range []string{"message", "error", "msg", "detail", "errors"} {
			if s := messageFrom(body[k]); s != "" {
				return s
			}
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" && len(s) < 300 && !strings.HasPrefix(s, "<") {
		return s
	}
	return "request failed with " + fallback
}

func messageFrom(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		for _, k := range []string{"message", "description", "detail"} {
			if s, ok := t[k].(string); ok && s != "" {
				return s
			}
		}
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := messageFrom(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}
