package payments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"hash"
	"log"
	"strings"
)

// SignHex is the hex-encoded HMAC of body under secret.
func SignHex(newHash func() hash.Hash, secret string, body []byte) string {
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHex compares a hex signature header against the HMAC of body in constant time.
func VerifyHex(newHash func() hash.Hash, secret string, body []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

var (
	sha256Hash = sha256.New
	sha512Hash = sha512.New
)

// signaturePolicy decides what happens when a provider's webhook secret is unset.
type signaturePolicy struct {
	provider string
	secret   string
	// required makes a missing secret a configuration error instead of a warning.
	required bool
}

// check returns nil when the delivery may be processed.
func (p signaturePolicy) check(newHash func() hash.Hash, body []byte, signature string) error {
	if p.secret == "" {
		if p.required {
			return configError(p.provider, "webhook secret not configured")
		}
		log.Printf("[webhook] %s: webhook secret not configured, skipping signature verification", p.provider)
		return nil
	}
	if signature == "" {
		return authError(p.provider, "missing signature")
	}
	if !VerifyHex(newHash, p.secret, body, signature) {
		return authError(p.provider, "invalid signature")
	}
	return nil
}

// canonicalJSON re-encodes a JSON document with object keys sorted at every
// level and numbers kept verbatim. NOWPayments signs this form, not the raw body.
func canonicalJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
