package stripe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	stripesdk "github.com/stripe/stripe-go/v82"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{
		SecretKey:  "sk_test_platform",
		APIBaseURL: server.URL,
		RetryMax:   2,
	}, server.Client())
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	return client
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "ok", cfg: Config{SecretKey: "sk_test_1", PublishableKey: "pk_test_1"}},
		{name: "restricted", cfg: Config{SecretKey: "rk_live_1"}},
		{name: "missing", cfg: Config{}, wantErr: true},
		{name: "publishable as secret", cfg: Config{SecretKey: "pk_test_1"}, wantErr: true},
		{name: "bad publishable", cfg: Config{SecretKey: "sk_test_1", PublishableKey: "sk_test_1"}, wantErr: true},
		{name: "bad base url", cfg: Config{SecretKey: "sk_test_1", APIBaseURL: "::"}, wantErr: true},
		{name: "negative retries", cfg: Config{SecretKey: "sk_test_1", RetryMax: -1}, wantErr: true},
	}
	for _, tc := range cases {
		err := ValidateConfig(tc.cfg)
		if tc.wantErr && !errors.Is(err, ErrConfigInvalid) {
			t.Fatalf("%s: expected ErrConfigInvalid, got %v", tc.name, err)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestCreatePaymentIntentSendsFeeAndDestination(t *testing.T) {
	var captured url.Values
	var idempotencyKey, authorization string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payment_intents" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		captured, _ = url.ParseQuery(string(body))
		idempotencyKey = r.Header.Get("Idempotency-Key")
		authorization = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"id":"pi_123","status":"requires_payment_method","amount":10000,"currency":"eur","client_secret":"pi_123_secret","application_fee_amount":500,"transfer_data":{"destination":"acct_tenant"},"metadata":{"tenant_id":"1"}}`))
	})

	intent, err := client.CreatePaymentIntent(context.Background(), CreateIntentInput{
		Amount:         decimal.RequireFromString("100.00"),
		Currency:       "eur",
		ApplicationFee: 500,
		Destination:    "acct_tenant",
		Metadata:       map[string]string{"tenant_id": "1"},
		IdempotencyKey: "idem-1",
	})
	if err != nil {
		t.Fatalf("create payment intent failed: %v", err)
	}
	if captured.Get("amount") != "10000" || captured.Get("currency") != "eur" {
		t.Fatalf("unexpected amount fields: %v", captured)
	}
	if captured.Get("application_fee_amount") != "500" || captured.Get("transfer_data[destination]") != "acct_tenant" {
		t.Fatalf("unexpected split fields: %v", captured)
	}
	if captured.Get("metadata[tenant_id]") != "1" {
		t.Fatalf("unexpected metadata: %v", captured)
	}
	if idempotencyKey != "idem-1" || authorization != "Bearer sk_test_platform" {
		t.Fatalf("unexpected headers: idem=%s auth=%s", idempotencyKey, authorization)
	}
	if intent.ID != "pi_123" || intent.ClientSecret != "pi_123_secret" || intent.Amount != "100.00" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if intent.ApplicationFeeAmount != 500 || intent.Destination != "acct_tenant" {
		t.Fatalf("unexpected split in response: %+v", intent)
	}
}

func TestCreatePaymentIntentWithoutDestinationOmitsFee(t *testing.T) {
	var captured url.Values
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured, _ = url.ParseQuery(string(body))
		_, _ = w.Write([]byte(`{"id":"pi_custom","status":"requires_payment_method","amount":2500,"currency":"eur"}`))
	})
	if _, err := client.CreatePaymentIntent(context.Background(), CreateIntentInput{
		Amount:   decimal.RequireFromString("25"),
		Currency: "EUR",
	}); err != nil {
		t.Fatalf("create payment intent failed: %v", err)
	}
	if _, ok := captured["application_fee_amount"]; ok {
		t.Fatalf("custom intent must not carry a fee: %v", captured)
	}
	if _, ok := captured["transfer_data[destination]"]; ok {
		t.Fatalf("custom intent must not carry a destination: %v", captured)
	}
}

func TestCreatePaymentIntentIsNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := client.CreatePaymentIntent(context.Background(), CreateIntentInput{
		Amount:   decimal.RequireFromString("10"),
		Currency: "EUR",
	})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("create must be attempted once, got %d", calls)
	}
}

func TestRetrievePaymentIntentRetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.URL.Path != "/v1/payment_intents/pi_retry" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"pi_retry","status":"succeeded","amount":1999,"currency":"eur","payment_method":{"id":"pm_1","type":"card"}}`))
	})
	intent, err := client.RetrievePaymentIntent(context.Background(), "pi_retry")
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !intent.Succeeded() || intent.PaymentMethodType != "card" || intent.PaymentMethod != "pm_1" || intent.Amount != "19.99" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}

func TestRetrieveAccountAuthenticationFailure(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid API Key provided"}}`))
	})
	_, err := client.RetrieveAccount(context.Background(), "")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	var sdkErr *stripesdk.Error
	if !errors.As(err, &sdkErr) || sdkErr.HTTPStatusCode != http.StatusUnauthorized {
		t.Fatalf("expected wrapped stripe error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", calls)
	}
}

func TestRetrieveAccountParsesFlags(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts/acct_1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"acct_1","charges_enabled":true,"payouts_enabled":false,"details_submitted":true,"default_currency":"eur"}`))
	})
	account, err := client.RetrieveAccount(context.Background(), "acct_1")
	if err != nil {
		t.Fatalf("retrieve account failed: %v", err)
	}
	if !account.ChargesEnabled || account.PayoutsEnabled || !account.DetailsSubmitted || account.DefaultCurrency != "EUR" {
		t.Fatalf("unexpected account: %+v", account)
	}
}

func TestRetryMaxZeroDisablesRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)
	client, err := NewClient(Config{SecretKey: "sk_test_platform", APIBaseURL: server.URL}, server.Client())
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.RetryMax() != 0 {
		t.Fatalf("zero retry_max must stay zero, got %d", client.RetryMax())
	}
	if _, err := client.RetrievePaymentIntent(context.Background(), "pi_once"); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}
