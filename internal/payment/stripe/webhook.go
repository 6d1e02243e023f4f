package stripe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	stripesdk "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const defaultWebhookTolerance = 300 * time.Second

// Event 已验签的网关事件
type Event struct {
	ID            string
	Type          string
	Account       string // Connect 事件所属子账户
	Created       int64
	Livemode      bool
	ObjectType    string
	PaymentIntent *PaymentIntent
	AccountStatus *Account
}

// ObjectRef 事件关联对象 ID
func (e *Event) ObjectRef() string {
	if e == nil {
		return ""
	}
	if e.PaymentIntent != nil {
		return e.PaymentIntent.ID
	}
	if e.AccountStatus != nil {
		return e.AccountStatus.ID
	}
	return ""
}

// VerifyWebhook 用 secret 校验原始请求体的签名，通过后才解析事件
func VerifyWebhook(payload []byte, signatureHeader, secret string, tolerance time.Duration) (*Event, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: webhook_secret is required", ErrConfigInvalid)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: body is empty", ErrSignatureInvalid)
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, fmt.Errorf("%w: signature header is required", ErrSignatureInvalid)
	}
	if tolerance <= 0 {
		tolerance = defaultWebhookTolerance
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, signatureHeader, secret, tolerance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return parseEvent(payload)
}

func parseEvent(payload []byte) (*Event, error) {
	var raw stripesdk.Event
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode event failed", ErrResponseInvalid)
	}
	event := &Event{
		ID:       raw.ID,
		Type:     string(raw.Type),
		Account:  raw.Account,
		Created:  raw.Created,
		Livemode: raw.Livemode,
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("%w: missing event id or type", ErrResponseInvalid)
	}
	if raw.Data == nil || raw.Data.Object == nil {
		return nil, fmt.Errorf("%w: missing event object", ErrResponseInvalid)
	}
	event.ObjectType, _ = raw.Data.Object["object"].(string)
	switch event.ObjectType {
	case "payment_intent":
		var pi stripesdk.PaymentIntent
		if err := json.Unmarshal(raw.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: decode payment intent failed", ErrResponseInvalid)
		}
		intent, err := toPaymentIntent(&pi)
		if err != nil {
			return nil, err
		}
		event.PaymentIntent = intent
	case "account":
		var account stripesdk.Account
		if err := json.Unmarshal(raw.Data.Raw, &account); err != nil {
			return nil, fmt.Errorf("%w: decode account failed", ErrResponseInvalid)
		}
		status, err := toAccount(&account)
		if err != nil {
			return nil, err
		}
		event.AccountStatus = status
	}
	return event, nil
}
