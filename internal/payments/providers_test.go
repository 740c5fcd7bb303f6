package payments

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/config"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
)

var testURLs = URLs{Site: "https://fundedgiants.test", API: "https://api.fundedgiants.test"}

// providerServer records the last request body and replies with status/body.
func providerServer(t *testing.T, status int, body string, check func(r *http.Request, payload map[string]any)) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		raw, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(raw, &payload)
		if check != nil {
			check(r, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func signed(secret string, body []byte, header string, sha512 bool) http.Header {
	h := http.Header{}
	if sha512 {
		h.Set(header, SignHex(sha512Hash, secret, body))
	} else {
		h.Set(header, SignHex(sha256Hash, secret, body))
	}
	return h
}

func TestPaystackCreatePayment(t *testing.T) {
	order := testOrder("10")
	srv, _ := providerServer(t, http.StatusOK,
		`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"`+order.ID+`"}}`,
		func(r *http.Request, p map[string]any) {
			if r.URL.Path != "/transaction/initialize" {
				t.Errorf("path = %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
				t.Errorf("Authorization = %q", got)
			}
			// 10 USD * 1700 = 17000 NGN = 1700000 kobo
			if p["amount"] != float64(1700000) {
				t.Errorf("amount = %v, want 1700000", p["amount"])
			}
			if p["reference"] != order.ID {
				t.Errorf("reference = %v", p["reference"])
			}
		})

	p := NewPaystack(config.Provider{SecretKey: "sk_test", BaseURL: srv.URL, Currency: "NGN"},
		staticRates{"USD_NGN": "1700"}, testURLs, false, srv.Client())
	pay, err := p.CreatePayment(context.Background(), order, Billing{Email: "trader@example.com"})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if pay.AccessCode != "abc" || pay.AuthorizationURL == "" {
		t.Fatalf("initiation = %+v", pay)
	}
}

func TestPaystackRejectionPassesMessageThrough(t *testing.T) {
	srv, _ := providerServer(t, http.StatusUnauthorized, `{"status":false,"message":"Invalid key"}`, nil)
	p := NewPaystack(config.Provider{SecretKey: "sk_bad", BaseURL: srv.URL, Currency: "NGN"},
		staticRates{"USD_NGN": "1700"}, testURLs, false, srv.Client())

	_, err := p.CreatePayment(context.Background(), testOrder("10"), Billing{Email: "a@b.c"})
	if KindOf(err) != KindProviderRejected {
		t.Fatalf("kind = %q (%v), want provider_rejected", KindOf(err), err)
	}
	if !strings.Contains(err.Error(), "Invalid key") {
		t.Fatalf("error %q does not carry provider message", err)
	}
}

func TestCreatePaymentErrorsBeforeCallingProvider(t *testing.T) {
	srv, hits := providerServer(t, http.StatusOK, `{}`, nil)
	noRates := staticRates{}
	cfg := config.Provider{SecretKey: "sk", BusinessID: "biz", BaseURL: srv.URL, Currency: "NGN"}
	billing := Billing{Email: "a@b.c", FirstName: "Ada", LastName: "Obi", Phone: "+2348000000000"}

	tests := []struct {
		name     string
		provider Provider
		want     Kind
	}{
		{"alatpay missing rate", NewAlatPay(cfg, noRates, false, srv.Client()), KindExchangeRate},
		{"klasha missing rate", NewKlasha(cfg, noRates, testURLs, false, srv.Client()), KindExchangeRate},
		{"paystack missing rate", NewPaystack(cfg, noRates, testURLs, false, srv.Client()), KindExchangeRate},
		{"startbutton missing rate", NewStartButton(cfg, noRates, testURLs, false, srv.Client()), KindExchangeRate},
		{"alatpay missing key", NewAlatPay(config.Provider{BaseURL: srv.URL}, noRates, false, srv.Client()), KindConfiguration},
		{"nowpayments missing key", NewNowPayments(config.Provider{BaseURL: srv.URL}, testURLs, srv.Client()), KindConfiguration},
		{"qorepay missing brand", NewQorePay(config.Provider{SecretKey: "sk", BaseURL: srv.URL}, testURLs, srv.Client()), KindConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.provider.CreatePayment(context.Background(), testOrder("10"), billing)
			if KindOf(err) != tt.want {
				t.Fatalf("kind = %q (%v), want %q", KindOf(err), err, tt.want)
			}
		})
	}
	if n := atomic.LoadInt32(hits); n != 0 {
		t.Fatalf("provider API called %d times", n)
	}
}

func TestNetworkErrorKind(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewNowPayments(config.Provider{SecretKey: "k", BaseURL: url, Currency: "USD"}, testURLs, http.DefaultClient)
	_, err := p.CreatePayment(context.Background(), testOrder("10"), Billing{})
	if KindOf(err) != KindNetwork {
		t.Fatalf("kind = %q (%v), want network", KindOf(err), err)
	}
}

func TestAlatPayCreatePaymentReturnsAccount(t *testing.T) {
	srv, _ := providerServer(t, http.StatusOK,
		`{"status":true,"message":"Success","data":{"transactionId":"txn-77","virtualBankAccountNumber":"9912345678","virtualBankCode":"035","businessName":"Funded Giants","expiredAt":"2026-10-15T12:30:00Z"}}`,
		func(r *http.Request, p map[string]any) {
			if r.Header.Get("Ocp-Apim-Subscription-Key") != "sub-key" {
				t.Errorf("missing subscription key header")
			}
			if p["amount"] != float64(255000) {
				t.Errorf("amount = %v, want 255000", p["amount"])
			}
		})
	p := NewAlatPay(config.Provider{SecretKey: "sub-key", BusinessID: "biz", BaseURL: srv.URL, Currency: "NGN"},
		staticRates{"USD_NGN": "1700"}, false, srv.Client())

	pay, err := p.CreatePayment(context.Background(), testOrder("150"), Billing{Email: "a@b.c"})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if pay.BankTransfer == nil || pay.AccountNumber != "9912345678" || pay.ExpiresAt == nil {
		t.Fatalf("bank transfer = %+v", pay.BankTransfer)
	}
	if pay.Reference != "txn-77" {
		t.Fatalf("reference = %q", pay.Reference)
	}
	raw, _ := json.Marshal(pay)
	if !strings.Contains(string(raw), `"account_number":"9912345678"`) {
		t.Fatalf("bank fields should be flattened into the response: %s", raw)
	}
}

func TestKlashaRequiresContactDetails(t *testing.T) {
	p := NewKlasha(config.Provider{SecretKey: "sk"}, staticRates{"USD_NGN": "1700"}, testURLs, false, http.DefaultClient)
	_, err := p.CreatePayment(context.Background(), testOrder("10"), Billing{Email: "a@b.c"})
	if KindOf(err) != KindValidation {
		t.Fatalf("kind = %q, want validation", KindOf(err))
	}
}

func TestStartButtonAndQorePayReturnURLs(t *testing.T) {
	sb, _ := providerServer(t, http.StatusOK, `{"success":true,"message":"ok","data":"https://pay.startbutton.test/xyz"}`,
		func(_ *http.Request, p map[string]any) {
			if p["currency"] != "GHS" || p["amount"] != float64(15500) {
				t.Errorf("startbutton payload = %v", p)
			}
		})
	start := NewStartButton(config.Provider{SecretKey: "sk", BaseURL: sb.URL, Currency: "GHS"},
		staticRates{"USD_GHS": "15.5"}, testURLs, false, sb.Client())
	pay, err := start.CreatePayment(context.Background(), testOrder("10"), Billing{Email: "a@b.c"})
	if err != nil || pay.RedirectURL != "https://pay.startbutton.test/xyz" {
		t.Fatalf("startbutton = %+v, %v", pay, err)
	}

	qp, _ := providerServer(t, http.StatusCreated, `{"id":"pur_1","checkout_url":"https://gate.qorepay.test/p/pur_1"}`,
		func(_ *http.Request, p map[string]any) {
			purchase, _ := p["purchase"].(map[string]any)
			products, _ := purchase["products"].([]any)
			if len(products) != 1 || products[0].(map[string]any)["price"] != float64(15000) {
				t.Errorf("qorepay products = %v", products)
			}
		})
	qore := NewQorePay(config.Provider{SecretKey: "sk", BusinessID: "brand", BaseURL: qp.URL, Currency: "USD"}, testURLs, qp.Client())
	pay, err = qore.CreatePayment(context.Background(), testOrder("150"), Billing{Email: "a@b.c"})
	if err != nil || pay.CheckoutURL == "" || pay.Reference != "pur_1" {
		t.Fatalf("qorepay = %+v, %v", pay, err)
	}
}

func TestNowPaymentsCreatePayment(t *testing.T) {
	srv, _ := providerServer(t, http.StatusOK, `{"id":4522625843,"order_id":"x","invoice_url":"https://nowpayments.io/payment/?iid=4522625843"}`,
		func(r *http.Request, p map[string]any) {
			if r.Header.Get("x-api-key") != "np-key" {
				t.Errorf("missing api key")
			}
			if p["price_currency"] != "usd" || p["price_amount"] != float64(150) {
				t.Errorf("payload = %v", p)
			}
			if p["ipn_callback_url"] != "https://api.fundedgiants.test/webhooks/nowpayments" {
				t.Errorf("ipn_callback_url = %v", p["ipn_callback_url"])
			}
		})
	p := NewNowPayments(config.Provider{SecretKey: "np-key", BaseURL: srv.URL, Currency: "USD"}, testURLs, srv.Client())
	pay, err := p.CreatePayment(context.Background(), testOrder("150"), Billing{})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if pay.InvoiceURL == "" || pay.Reference != "4522625843" {
		t.Fatalf("initiation = %+v", pay)
	}
}

func TestVerifyWebhookClassification(t *testing.T) {
	const secret = "whsec"
	orderID := "7f1c2c58-0d7e-4a5f-9d7b-1f1f2f3f4f5f"
	cfg := config.Provider{WebhookSecret: secret}

	tests := []struct {
		name       string
		provider   Provider
		header     string
		sha512     bool
		body       string
		wantKind   EventKind
		wantStatus orders.Status
		wantRef    string
	}{
		{"alatpay success", NewAlatPay(cfg, nil, false, nil), "x-alatpay-signature", false,
			`{"data":{"transactionId":"t1","orderId":"` + orderID + `","status":"success"}}`, EventSuccess, orders.StatusPaid, "t1"},
		{"alatpay expired", NewAlatPay(cfg, nil, false, nil), "x-alatpay-signature", false,
			`{"data":{"transactionId":"t1","orderId":"` + orderID + `","status":"expired"}}`, EventFailure, orders.StatusExpired, "t1"},
		{"paystack success", NewPaystack(cfg, nil, testURLs, false, nil), "x-paystack-signature", true,
			`{"event":"charge.success","data":{"id":302961,"reference":"` + orderID + `","status":"success"}}`, EventSuccess, orders.StatusPaid, "302961"},
		{"paystack transfer ignored", NewPaystack(cfg, nil, testURLs, false, nil), "x-paystack-signature", true,
			`{"event":"transfer.success","data":{"reference":"` + orderID + `"}}`, EventOther, "", ""},
		{"startbutton success", NewStartButton(cfg, nil, testURLs, false, nil), "x-startbutton-signature", true,
			`{"event":"charge.success","data":{"transaction":{"_id":"sb1","userTransactionReference":"` + orderID + `"}}}`, EventSuccess, orders.StatusPaid, "sb1"},
		{"klasha successful", NewKlasha(cfg, nil, testURLs, false, nil), "x-klasha-signature", true,
			`{"event":"payment","data":{"tx_ref":"` + orderID + `","transaction_id":"k1","txn_status":"successful"}}`, EventSuccess, orders.StatusPaid, "k1"},
		{"klasha failed", NewKlasha(cfg, nil, testURLs, false, nil), "x-klasha-signature", true,
			`{"event":"payment","data":{"tx_ref":"` + orderID + `","transaction_id":"k1","txn_status":"failed"}}`, EventFailure, orders.StatusFailed, "k1"},
		{"qorepay success", NewQorePay(cfg, testURLs, nil), "x-qorepay-signature", false,
			`{"event":"charge.success","data":{"id":"pur_1","meta":{"order_id":"` + orderID + `"}}}`, EventSuccess, orders.StatusPaid, "pur_1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(tt.body)
			ev, err := tt.provider.VerifyWebhook(signed(secret, body, tt.header, tt.sha512), body)
			if err != nil {
				t.Fatalf("VerifyWebhook: %v", err)
			}
			if ev.Kind != tt.wantKind || ev.Status != tt.wantStatus || ev.ProviderReference != tt.wantRef {
				t.Fatalf("event = %+v", ev)
			}
			if tt.wantKind != EventOther && ev.OrderID != orderID {
				t.Fatalf("order id = %q", ev.OrderID)
			}

			tampered := []byte(strings.Replace(tt.body, orderID, "00000000-0000-0000-0000-000000000000", 1))
			_, err = tt.provider.VerifyWebhook(signed(secret, body, tt.header, tt.sha512), tampered)
			if KindOf(err) != KindAuthentication {
				t.Fatalf("tampered body: kind = %q", KindOf(err))
			}
		})
	}
}

func TestWebhookMissingSecretPolicies(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"id":1,"reference":"r"}}`)

	permissive := NewPaystack(config.Provider{}, nil, testURLs, false, nil)
	if ev, err := permissive.VerifyWebhook(http.Header{}, body); err != nil || ev.Kind != EventSuccess {
		t.Fatalf("permissive paystack: %+v, %v", ev, err)
	}

	strict := NewPaystack(config.Provider{}, nil, testURLs, true, nil)
	if _, err := strict.VerifyWebhook(http.Header{}, body); KindOf(err) != KindConfiguration {
		t.Fatalf("strict paystack: kind = %q", KindOf(err))
	}

	now := NewNowPayments(config.Provider{}, testURLs, nil)
	if _, err := now.VerifyWebhook(http.Header{}, []byte(`{"payment_status":"finished"}`)); KindOf(err) != KindConfiguration {
		t.Fatalf("nowpayments without secret: kind = %q", KindOf(err))
	}

	qore := NewQorePay(config.Provider{}, testURLs, nil)
	if _, err := qore.VerifyWebhook(http.Header{}, body); KindOf(err) != KindConfiguration {
		t.Fatalf("qorepay without secret: kind = %q", KindOf(err))
	}
}

func TestNowPaymentsSignsSortedJSON(t *testing.T) {
	const secret = "ipn-secret"
	raw := []byte(`{"payment_status":"finished","payment_id":5077125051,"order_id":"o-1","pay_amount":0.0021,"invoice_id":17}`)
	canonical, err := canonicalJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	p := NewNowPayments(config.Provider{WebhookSecret: secret}, testURLs, nil)

	h := http.Header{}
	h.Set("x-nowpayments-sig", SignHex(sha512Hash, secret, canonical))
	ev, err := p.VerifyWebhook(h, raw)
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if ev.Kind != EventSuccess || ev.OrderID != "o-1" || ev.ProviderReference != "5077125051" {
		t.Fatalf("event = %+v", ev)
	}

	h.Set("x-nowpayments-sig", SignHex(sha512Hash, secret, raw))
	if _, err := p.VerifyWebhook(h, raw); KindOf(err) != KindAuthentication {
		t.Fatalf("signature over unsorted body accepted")
	}

	for status, want := range map[string]EventKind{"waiting": EventOther, "partially_paid": EventOther, "expired": EventFailure} {
		body := []byte(`{"order_id":"o-1","payment_id":1,"payment_status":"` + status + `"}`)
		c, _ := canonicalJSON(body)
		h.Set("x-nowpayments-sig", SignHex(sha512Hash, secret, c))
		ev, err := p.VerifyWebhook(h, body)
		if err != nil || ev.Kind != want {
			t.Errorf("%s: %+v, %v", status, ev, err)
		}
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistryFromConfig(config.Config{}, staticRates{}, http.DefaultClient)
	want := []string{"alatpay", "klasha", "nowpayments", "paystack", "qorepay", "startbutton"}
	if got := reg.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Names = %v", got)
	}
	if _, err := reg.Get("PayStack"); err != nil {
		t.Fatalf("Get is case-insensitive: %v", err)
	}
	if _, err := reg.Get("stripe"); KindOf(err) != KindNotFound {
		t.Fatalf("unknown provider kind = %q", KindOf(err))
	}
}
