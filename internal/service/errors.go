package service

import (
	"errors"

	"github.com/dujiao-next/donate/internal/payment/gateway"
	"github.com/dujiao-next/donate/internal/tenant"
	"github.com/dujiao-next/donate/internal/vault"
)

// 租户
var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrTenantInactive      = errors.New("tenant inactive")
	ErrTenantRequired      = tenant.ErrNoTenant
	ErrInvalidTenantStatus = errors.New("invalid tenant status")
	ErrInvalidPaymentMode  = errors.New("invalid payment mode")
	ErrTenantUpdateFailed  = errors.New("tenant update failed")
)

// 网关与凭据
var (
	ErrGatewayNotConfigured = gateway.ErrNotConfigured
	ErrInvalidCredentials   = gateway.ErrInvalidCredentials
	ErrDecryption           = vault.ErrDecryption
	ErrPaymentGateway       = gateway.ErrUpstream
	ErrAmountOutOfRange     = gateway.ErrAmountOutOfRange
	ErrInvalidFeePercentage = errors.New("invalid fee percentage")
	ErrGatewayUpdateFailed  = errors.New("gateway account update failed")
)

// 捐赠
var (
	ErrDonationNotFound     = errors.New("donation not found")
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrCampaignInactive     = errors.New("campaign inactive")
	ErrDonorEmailRequired   = errors.New("donor email required")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrDonorUnavailable     = errors.New("donor account unavailable")
	ErrInvalidSource        = errors.New("invalid donation source")
	ErrPaymentNotSucceeded  = errors.New("payment not succeeded")
	ErrDonationCreateFailed = errors.New("donation create failed")
	ErrDonationUpdateFailed = errors.New("donation update failed")
	ErrReceiptNotReady      = errors.New("receipt not ready")
)

// Webhook
var (
	ErrSignatureInvalid      = errors.New("webhook signature invalid")
	ErrWebhookPayloadInvalid = errors.New("webhook payload invalid")
)

// 验证码与鉴权
var (
	ErrCaptchaRequired      = errors.New("captcha required")
	ErrCaptchaInvalid       = errors.New("captcha invalid")
	ErrCaptchaConfigInvalid = errors.New("captcha config invalid")
	ErrInvalidToken         = errors.New("invalid token")
	ErrLoginFailed          = errors.New("invalid email or password")
)
