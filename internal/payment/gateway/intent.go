package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dujiao-next/donate/internal/constants"
	"github.com/dujiao-next/donate/internal/logger"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/payment/stripe"

	"github.com/shopspring/decimal"
)

// IntentRequest 创建支付意图请求
type IntentRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Description    string
	ReceiptEmail   string
	Metadata       map[string]string
	IdempotencyKey string
}

// IntentResult 创建结果，PlatformFee 为主币单位，创建时即锁定
type IntentResult struct {
	Intent         *stripe.PaymentIntent
	Mode           string
	Currency       string
	PlatformFee    decimal.Decimal
	PublishableKey string
}

// ValidateAmount 在任何网关调用之前校验金额区间
func (r *Router) ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: amount must be greater than zero", ErrAmountOutOfRange)
	}
	if !r.opts.MinAmount.IsZero() && amount.LessThan(r.opts.MinAmount) {
		return fmt.Errorf("%w: minimum is %s", ErrAmountOutOfRange, r.opts.MinAmount.StringFixed(2))
	}
	if !r.opts.MaxAmount.IsZero() && amount.GreaterThan(r.opts.MaxAmount) {
		return fmt.Errorf("%w: maximum is %s", ErrAmountOutOfRange, r.opts.MaxAmount.StringFixed(2))
	}
	return nil
}

// ResolveCurrency 请求币种为空时依次使用租户币种与平台默认币种
func (r *Router) ResolveCurrency(t *models.Tenant, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency != "" {
		return currency
	}
	if t != nil && strings.TrimSpace(t.Currency) != "" {
		return strings.ToUpper(strings.TrimSpace(t.Currency))
	}
	if r.opts.DefaultCurrency != "" {
		return r.opts.DefaultCurrency
	}
	return constants.DefaultCurrency
}

// CreatePaymentIntent 为租户创建支付意图；platform 模式附加抽成与子账户
func (r *Router) CreatePaymentIntent(ctx context.Context, t *models.Tenant, req IntentRequest) (*IntentResult, error) {
	if err := r.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	currency := r.ResolveCurrency(t, req.Currency)
	minor, err := stripe.ToMinorAmount(req.Amount, currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAmountOutOfRange, err)
	}

	binding, err := r.ClientFor(ctx, t)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]string, len(req.Metadata)+2)
	for key, value := range req.Metadata {
		metadata[key] = value
	}
	metadata["tenant_id"] = tenantIDString(t)
	metadata["payment_mode"] = binding.Mode

	input := stripe.CreateIntentInput{
		Amount:         req.Amount,
		Currency:       currency,
		Description:    req.Description,
		ReceiptEmail:   req.ReceiptEmail,
		Metadata:       metadata,
		IdempotencyKey: req.IdempotencyKey,
	}
	result := &IntentResult{
		Mode:           binding.Mode,
		Currency:       currency,
		PlatformFee:    decimal.Zero,
		PublishableKey: binding.Client.PublishableKey(),
	}
	if !t.IsCustomMode() {
		account := binding.Account
		if account == nil || strings.TrimSpace(account.ConnectAccountID) == "" {
			return nil, fmt.Errorf("%w: tenant %d has no connected account", ErrNotConfigured, t.ID)
		}
		fee := stripe.ApplicationFee(minor, account.FeePercentage.Decimal)
		input.Destination = account.ConnectAccountID
		input.ApplicationFee = fee
		result.PlatformFee = decimal.RequireFromString(stripe.FromMinorAmount(fee, currency))
	}

	intent, err := binding.Client.CreatePaymentIntent(ctx, input)
	if err != nil {
		logger.Ctx(ctx).Warnw("gateway_create_intent_failed",
			"tenant_id", t.ID,
			"payment_mode", binding.Mode,
			"amount", req.Amount.StringFixed(2),
			"currency", currency,
			"error", err,
		)
		return nil, classifyError(err)
	}
	result.Intent = intent
	return result, nil
}

// RetrievePaymentIntent 通过租户当前网关查询支付意图
func (r *Router) RetrievePaymentIntent(ctx context.Context, t *models.Tenant, intentID string) (*stripe.PaymentIntent, error) {
	binding, err := r.ClientFor(ctx, t)
	if err != nil {
		return nil, err
	}
	intent, err := binding.Client.RetrievePaymentIntent(ctx, intentID)
	if err != nil {
		logger.Ctx(ctx).Warnw("gateway_retrieve_intent_failed", "tenant_id", t.ID, "payment_intent_id", intentID, "error", err)
		return nil, classifyError(err)
	}
	return intent, nil
}

func classifyError(err error) error {
	switch {
	case errors.Is(err, stripe.ErrAuthenticationFailed):
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}
