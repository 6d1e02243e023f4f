package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const testWebhookSecret = "whsec_test_abc"

func signPayload(secret string, ts int64, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(strconv.FormatInt(ts, 10) + "." + string(body)))
	return "t=" + strconv.FormatInt(ts, 10) + ",v1=" + hex.EncodeToString(h.Sum(nil))
}

var succeededPayload = []byte(`{"id":"evt_1","type":"payment_intent.succeeded","created":1760000000,"data":{"object":{"object":"payment_intent","id":"pi_abc","status":"succeeded","amount":10000,"currency":"eur","payment_method":"pm_1","metadata":{"tenant_id":"3","donation_source":"platform"}}}}`)

func TestVerifyWebhookPaymentIntentSucceeded(t *testing.T) {
	header := signPayload(testWebhookSecret, time.Now().Unix(), succeededPayload)
	event, err := VerifyWebhook(succeededPayload, header, testWebhookSecret, 0)
	if err != nil {
		t.Fatalf("verify webhook failed: %v", err)
	}
	if event.ID != "evt_1" || event.Type != "payment_intent.succeeded" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.PaymentIntent == nil || event.PaymentIntent.ID != "pi_abc" || !event.PaymentIntent.Succeeded() {
		t.Fatalf("unexpected intent: %+v", event.PaymentIntent)
	}
	if event.PaymentIntent.Metadata["tenant_id"] != "3" {
		t.Fatalf("unexpected metadata: %+v", event.PaymentIntent.Metadata)
	}
	if event.ObjectRef() != "pi_abc" {
		t.Fatalf("unexpected object ref: %s", event.ObjectRef())
	}
}

func TestVerifyWebhookRejectsBadSignatures(t *testing.T) {
	now := time.Now().Unix()
	tampered := append([]byte{}, succeededPayload...)
	tampered[len(tampered)-3] = '9'

	cases := []struct {
		name    string
		payload []byte
		header  string
		secret  string
	}{
		{name: "wrong secret", payload: succeededPayload, header: signPayload("whsec_other", now, succeededPayload), secret: testWebhookSecret},
		{name: "tampered body", payload: tampered, header: signPayload(testWebhookSecret, now, succeededPayload), secret: testWebhookSecret},
		{name: "stale timestamp", payload: succeededPayload, header: signPayload(testWebhookSecret, now-3600, succeededPayload), secret: testWebhookSecret},
		{name: "garbage header", payload: succeededPayload, header: "t=abc,v1=zz", secret: testWebhookSecret},
		{name: "missing header", payload: succeededPayload, header: "", secret: testWebhookSecret},
	}
	for _, tc := range cases {
		if _, err := VerifyWebhook(tc.payload, tc.header, tc.secret, 5*time.Minute); !errors.Is(err, ErrSignatureInvalid) {
			t.Fatalf("%s: expected ErrSignatureInvalid, got %v", tc.name, err)
		}
	}
	if _, err := VerifyWebhook(succeededPayload, signPayload(testWebhookSecret, now, succeededPayload), "", 0); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("empty secret should be a config error, got %v", err)
	}
}

func TestVerifyWebhookAccountUpdated(t *testing.T) {
	payload := []byte(`{"id":"evt_acct","type":"account.updated","account":"acct_9","data":{"object":{"object":"account","id":"acct_9","charges_enabled":true,"payouts_enabled":true,"details_submitted":true}}}`)
	event, err := VerifyWebhook(payload, signPayload(testWebhookSecret, time.Now().Unix(), payload), testWebhookSecret, 0)
	if err != nil {
		t.Fatalf("verify webhook failed: %v", err)
	}
	if event.AccountStatus == nil || event.AccountStatus.ID != "acct_9" || !event.AccountStatus.PayoutsEnabled {
		t.Fatalf("unexpected account status: %+v", event.AccountStatus)
	}
	if event.Account != "acct_9" {
		t.Fatalf("unexpected connect account: %s", event.Account)
	}
}

func TestApplicationFee(t *testing.T) {
	cases := []struct {
		amount  int64
		percent string
		want    int64
	}{
		{amount: 10000, percent: "5", want: 500},
		{amount: 1999, percent: "2.5", want: 50},
		{amount: 1000, percent: "0", want: 0},
		{amount: 101, percent: "0.5", want: 1},
		{amount: 100, percent: "150", want: 100},
	}
	for _, tc := range cases {
		if got := ApplicationFee(tc.amount, decimal.RequireFromString(tc.percent)); got != tc.want {
			t.Fatalf("fee(%d, %s) = %d, want %d", tc.amount, tc.percent, got, tc.want)
		}
	}
}

func TestMinorAmountConversion(t *testing.T) {
	minor, err := ToMinorAmount(decimal.RequireFromString("12.34"), "eur")
	if err != nil || minor != 1234 {
		t.Fatalf("unexpected minor amount: %d err=%v", minor, err)
	}
	minor, err = ToMinorAmount(decimal.RequireFromString("500"), "JPY")
	if err != nil || minor != 500 {
		t.Fatalf("unexpected jpy amount: %d err=%v", minor, err)
	}
	if _, err := ToMinorAmount(decimal.RequireFromString("1.005"), "EUR"); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected precision error, got %v", err)
	}
	if _, err := ToMinorAmount(decimal.Zero, "EUR"); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected non-positive error, got %v", err)
	}
	if got := FromMinorAmount(1288, "usd"); got != "12.88" {
		t.Fatalf("unexpected major amount: %s", got)
	}
}
