package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	stripesdk "github.com/stripe/stripe-go/v82"
)

// 支付意图状态
const (
	IntentStatusSucceeded             = string(stripesdk.PaymentIntentStatusSucceeded)
	IntentStatusProcessing            = string(stripesdk.PaymentIntentStatusProcessing)
	IntentStatusCanceled              = string(stripesdk.PaymentIntentStatusCanceled)
	IntentStatusRequiresPaymentMethod = string(stripesdk.PaymentIntentStatusRequiresPaymentMethod)
	IntentStatusRequiresAction        = string(stripesdk.PaymentIntentStatusRequiresAction)
	IntentStatusRequiresConfirmation  = string(stripesdk.PaymentIntentStatusRequiresConfirmation)
	IntentStatusRequiresCapture       = string(stripesdk.PaymentIntentStatusRequiresCapture)
)

// CreateIntentInput 创建支付意图输入
type CreateIntentInput struct {
	Amount         decimal.Decimal // 主币单位
	Currency       string
	ApplicationFee int64  // 平台抽成（最小币种单位），0 表示不抽成
	Destination    string // 平台子账户，为空表示资金直接进入当前密钥账户
	Description    string
	ReceiptEmail   string
	Metadata       map[string]string
	IdempotencyKey string
}

// PaymentIntent 支付意图
type PaymentIntent struct {
	ID                   string
	Status               string
	Amount               string
	AmountMinor          int64
	Currency             string
	ClientSecret         string
	PaymentMethod        string
	PaymentMethodType    string
	ApplicationFeeAmount int64
	Destination          string
	CancellationReason   string
	LastErrorMessage     string
	Metadata             map[string]string
}

// Succeeded 是否已成功扣款
func (p *PaymentIntent) Succeeded() bool {
	return p != nil && p.Status == IntentStatusSucceeded
}

// Failed 是否已失败（被取消或需要重新提供支付方式且带有错误）
func (p *PaymentIntent) Failed() bool {
	if p == nil {
		return false
	}
	if p.Status == IntentStatusCanceled {
		return true
	}
	return p.Status == IntentStatusRequiresPaymentMethod && p.LastErrorMessage != ""
}

// CreatePaymentIntent 创建支付意图；不做重试，重放依赖 Idempotency-Key
func (c *Client) CreatePaymentIntent(ctx context.Context, input CreateIntentInput) (*PaymentIntent, error) {
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrConfigInvalid)
	}
	minorAmount, err := ToMinorAmount(input.Amount, currency)
	if err != nil {
		return nil, err
	}
	if input.ApplicationFee < 0 || input.ApplicationFee > minorAmount {
		return nil, fmt.Errorf("%w: application fee out of range", ErrConfigInvalid)
	}

	params := &stripesdk.PaymentIntentParams{
		Amount:   stripesdk.Int64(minorAmount),
		Currency: stripesdk.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripesdk.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripesdk.Bool(true),
		},
	}
	params.Context = ctx
	if desc := strings.TrimSpace(input.Description); desc != "" {
		params.Description = stripesdk.String(desc)
	}
	if email := strings.TrimSpace(input.ReceiptEmail); email != "" {
		params.ReceiptEmail = stripesdk.String(email)
	}
	if destination := strings.TrimSpace(input.Destination); destination != "" {
		params.TransferData = &stripesdk.PaymentIntentTransferDataParams{Destination: stripesdk.String(destination)}
		if input.ApplicationFee > 0 {
			params.ApplicationFeeAmount = stripesdk.Int64(input.ApplicationFee)
		}
	}
	for key, value := range input.Metadata {
		params.AddMetadata(key, value)
	}
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}

	pi, err := c.writer.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapError("create payment intent", err)
	}
	return toPaymentIntent(pi)
}

// RetrievePaymentIntent 查询支付意图，网络错误与 5xx 由 SDK 按 RetryMax 重试
func (c *Client) RetrievePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, fmt.Errorf("%w: payment intent id is required", ErrConfigInvalid)
	}
	params := &stripesdk.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("payment_method")

	pi, err := c.reader.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, wrapError("retrieve payment intent", err)
	}
	return toPaymentIntent(pi)
}

func toPaymentIntent(pi *stripesdk.PaymentIntent) (*PaymentIntent, error) {
	if pi == nil || strings.TrimSpace(pi.ID) == "" {
		return nil, fmt.Errorf("%w: missing payment intent id", ErrResponseInvalid)
	}
	intent := &PaymentIntent{
		ID:                   pi.ID,
		Status:               strings.ToLower(string(pi.Status)),
		AmountMinor:          pi.Amount,
		Currency:             strings.ToUpper(string(pi.Currency)),
		ClientSecret:         pi.ClientSecret,
		ApplicationFeeAmount: pi.ApplicationFeeAmount,
		CancellationReason:   string(pi.CancellationReason),
		Metadata:             pi.Metadata,
	}
	if intent.AmountMinor > 0 && intent.Currency != "" {
		intent.Amount = FromMinorAmount(intent.AmountMinor, intent.Currency)
	}
	if pi.TransferData != nil && pi.TransferData.Destination != nil {
		intent.Destination = pi.TransferData.Destination.ID
	}
	if pi.LastPaymentError != nil {
		intent.LastErrorMessage = pi.LastPaymentError.Msg
	}
	if pi.PaymentMethod != nil {
		intent.PaymentMethod = pi.PaymentMethod.ID
		intent.PaymentMethodType = string(pi.PaymentMethod.Type)
	}
	if intent.PaymentMethodType == "" && len(pi.PaymentMethodTypes) == 1 {
		intent.PaymentMethodType = pi.PaymentMethodTypes[0]
	}
	return intent, nil
}
