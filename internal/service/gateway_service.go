package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dujiao-next/donate/internal/logger"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/payment/gateway"
	"github.com/dujiao-next/donate/internal/payment/stripe"
	"github.com/dujiao-next/donate/internal/repository"
	"github.com/dujiao-next/donate/internal/tenant"

	"github.com/shopspring/decimal"
)

// CredentialEncrypter 凭据加密
type CredentialEncrypter interface {
	Encrypt(plaintext string) (string, error)
}

// AccountVerifier 用给定凭据查询网关账户，accountID 为空表示密钥自身所属账户
type AccountVerifier func(ctx context.Context, cfg stripe.Config, accountID string) (*stripe.Account, error)

// GatewayService 租户网关账户配置
type GatewayService struct {
	accountRepo  repository.GatewayAccountRepository
	encrypter    CredentialEncrypter
	router       *gateway.Router
	clientConfig stripe.Config
	verify       bool
	verifier     AccountVerifier
	now          func() time.Time
}

// GatewayServiceOptions 网关服务配置
type GatewayServiceOptions struct {
	ClientConfig      stripe.Config
	HTTPClient        *http.Client
	VerifyCredentials bool
	Verifier          AccountVerifier
}

// NewGatewayService 创建网关服务
func NewGatewayService(accountRepo repository.GatewayAccountRepository, encrypter CredentialEncrypter, router *gateway.Router, opts GatewayServiceOptions) *GatewayService {
	verifier := opts.Verifier
	if verifier == nil {
		httpClient := opts.HTTPClient
		verifier = func(ctx context.Context, cfg stripe.Config, accountID string) (*stripe.Account, error) {
			client, err := stripe.NewClient(cfg, httpClient)
			if err != nil {
				return nil, err
			}
			return client.RetrieveAccount(ctx, accountID)
		}
	}
	return &GatewayService{
		accountRepo:  accountRepo,
		encrypter:    encrypter,
		router:       router,
		clientConfig: opts.ClientConfig,
		verify:       opts.VerifyCredentials,
		verifier:     verifier,
		now:          time.Now,
	}
}

// GatewayAccountView 对外展示的网关配置，不含任何密钥
type GatewayAccountView struct {
	TenantID             uint       `json:"tenant_id"`
	PaymentMode          string     `json:"payment_mode"`
	ConnectAccountID     string     `json:"connect_account_id"`
	FeePercentage        string     `json:"fee_percentage"`
	IsActive             bool       `json:"is_active"`
	ChargesEnabled       bool       `json:"charges_enabled"`
	PayoutsEnabled       bool       `json:"payouts_enabled"`
	DetailsSubmitted     bool       `json:"details_submitted"`
	HasSecretKey         bool       `json:"has_secret_key"`
	HasPublishableKey    bool       `json:"has_publishable_key"`
	HasWebhookSecret     bool       `json:"has_webhook_secret"`
	LastVerifiedAt       *time.Time `json:"last_verified_at"`
	CredentialsRotatedAt *time.Time `json:"credentials_rotated_at"`
}

// GetConfig 查询当前租户的网关配置
func (s *GatewayService) GetConfig(ctx context.Context) (*GatewayAccountView, error) {
	t, scope, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}
	account, err := s.accountRepo.GetByTenant(scope)
	if err != nil {
		return nil, err
	}
	return buildGatewayAccountView(t, account), nil
}

// ConfigureGatewayInput 配置网关输入，空值字段保持不变
type ConfigureGatewayInput struct {
	ConnectAccountID *string
	FeePercentage    *string
	SecretKey        string
	PublishableKey   string
	WebhookSecret    string
	IsActive         *bool
	Context          context.Context
}

// Configure 写入网关配置；自有密钥会先校验再加密落库，成功后淘汰缓存客户端
func (s *GatewayService) Configure(input ConfigureGatewayInput) (*GatewayAccountView, error) {
	ctx := input.Context
	t, scope, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}
	account, err := s.accountRepo.GetByTenant(scope)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &models.GatewayAccount{TenantID: t.ID, IsActive: true}
	}

	if input.ConnectAccountID != nil {
		accountID := strings.TrimSpace(*input.ConnectAccountID)
		if accountID != "" && !strings.HasPrefix(accountID, "acct_") {
			return nil, fmt.Errorf("%w: connect account id must start with acct_", ErrGatewayNotConfigured)
		}
		account.ConnectAccountID = accountID
	}
	if input.FeePercentage != nil {
		fee, err := parseFeePercentage(*input.FeePercentage)
		if err != nil {
			return nil, err
		}
		account.FeePercentage = models.NewMoneyFromDecimal(fee)
	}
	if input.IsActive != nil {
		account.IsActive = *input.IsActive
	}

	secretKey := strings.TrimSpace(input.SecretKey)
	publishableKey := strings.TrimSpace(input.PublishableKey)
	webhookSecret := strings.TrimSpace(input.WebhookSecret)
	rotated := secretKey != "" || publishableKey != "" || webhookSecret != ""
	now := s.now()

	if secretKey != "" {
		cfg := s.clientConfig
		cfg.SecretKey = secretKey
		cfg.PublishableKey = publishableKey
		if err := stripe.ValidateConfig(cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		if s.verify {
			if _, err := s.verifier(ctx, cfg, ""); err != nil {
				logger.Ctx(ctx).Warnw("gateway_credentials_verify_failed", "tenant_id", t.ID, "error", err)
				if errors.Is(err, stripe.ErrAuthenticationFailed) {
					return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
				}
				return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
			}
			account.LastVerifiedAt = &now
		}
		if account.SecretKeyEnc, err = s.encrypter.Encrypt(secretKey); err != nil {
			return nil, err
		}
	} else if publishableKey != "" && !strings.HasPrefix(publishableKey, "pk_") {
		return nil, fmt.Errorf("%w: publishable_key must start with pk_", ErrInvalidCredentials)
	}
	if publishableKey != "" {
		if account.PublishableKeyEnc, err = s.encrypter.Encrypt(publishableKey); err != nil {
			return nil, err
		}
	}
	if webhookSecret != "" {
		if !strings.HasPrefix(webhookSecret, "whsec_") {
			return nil, fmt.Errorf("%w: webhook secret must start with whsec_", ErrInvalidCredentials)
		}
		if account.WebhookSecretEnc, err = s.encrypter.Encrypt(webhookSecret); err != nil {
			return nil, err
		}
	}
	if rotated {
		account.CredentialsRotatedAt = &now
	}

	if err := s.accountRepo.Save(scope, account); err != nil {
		logger.Ctx(ctx).Errorw("gateway_account_save_failed", "tenant_id", t.ID, "error", err)
		return nil, ErrGatewayUpdateFailed
	}
	s.router.Evict(t.ID)
	logger.Ctx(ctx).Infow("gateway_account_configured",
		"tenant_id", t.ID,
		"payment_mode", t.PaymentMode,
		"credentials_rotated", rotated,
	)
	return buildGatewayAccountView(t, account), nil
}

// Verify 重新校验当前租户的网关配置，并刷新子账户能力状态
func (s *GatewayService) Verify(ctx context.Context) (*GatewayAccountView, error) {
	t, scope, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}
	account, err := s.accountRepo.GetByTenant(scope)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: tenant %d has no gateway account", ErrGatewayNotConfigured, t.ID)
	}

	var status *stripe.Account
	if t.IsCustomMode() {
		binding, err := s.router.ClientFor(ctx, t)
		if err != nil {
			return nil, err
		}
		status, err = binding.Client.RetrieveAccount(ctx, "")
		if err != nil {
			return nil, classifyGatewayError(err)
		}
	} else {
		platform := s.router.Platform()
		if platform == nil || strings.TrimSpace(account.ConnectAccountID) == "" {
			return nil, fmt.Errorf("%w: tenant %d has no connected account", ErrGatewayNotConfigured, t.ID)
		}
		status, err = platform.RetrieveAccount(ctx, account.ConnectAccountID)
		if err != nil {
			return nil, classifyGatewayError(err)
		}
		account.ChargesEnabled = status.ChargesEnabled
		account.PayoutsEnabled = status.PayoutsEnabled
		account.DetailsSubmitted = status.DetailsSubmitted
	}
	now := s.now()
	account.LastVerifiedAt = &now
	if err := s.accountRepo.Save(scope, account); err != nil {
		logger.Ctx(ctx).Errorw("gateway_account_save_failed", "tenant_id", t.ID, "error", err)
		return nil, ErrGatewayUpdateFailed
	}
	logger.Ctx(ctx).Infow("gateway_account_verified", "tenant_id", t.ID, "gateway_account", status.ID)
	return buildGatewayAccountView(t, account), nil
}

// SyncConnectAccount 根据 account.updated 事件刷新子账户能力状态
func (s *GatewayService) SyncConnectAccount(ctx context.Context, status *stripe.Account) error {
	if status == nil || strings.TrimSpace(status.ID) == "" {
		return ErrWebhookPayloadInvalid
	}
	affected, err := s.accountRepo.UpdateConnectFlags(status.ID, repository.ConnectAccountFlags{
		ChargesEnabled:   status.ChargesEnabled,
		PayoutsEnabled:   status.PayoutsEnabled,
		DetailsSubmitted: status.DetailsSubmitted,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		logger.Ctx(ctx).Infow("gateway_connect_account_unknown", "connect_account_id", status.ID)
	}
	return nil
}

func buildGatewayAccountView(t *models.Tenant, account *models.GatewayAccount) *GatewayAccountView {
	view := &GatewayAccountView{TenantID: t.ID, PaymentMode: t.PaymentMode, FeePercentage: "0.00"}
	if account == nil {
		return view
	}
	view.ConnectAccountID = account.ConnectAccountID
	view.FeePercentage = account.FeePercentage.StringFixed(2)
	view.IsActive = account.IsActive
	view.ChargesEnabled = account.ChargesEnabled
	view.PayoutsEnabled = account.PayoutsEnabled
	view.DetailsSubmitted = account.DetailsSubmitted
	view.HasSecretKey = account.HasSecretKey()
	view.HasPublishableKey = strings.TrimSpace(account.PublishableKeyEnc) != ""
	view.HasWebhookSecret = account.HasWebhookSecret()
	view.LastVerifiedAt = account.LastVerifiedAt
	view.CredentialsRotatedAt = account.CredentialsRotatedAt
	return view
}

func parseFeePercentage(raw string) (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidFeePercentage, raw)
	}
	if fee.IsNegative() || fee.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%w: must be between 0 and 100", ErrInvalidFeePercentage)
	}
	return fee.Round(2), nil
}

func classifyGatewayError(err error) error {
	if errors.Is(err, stripe.ErrAuthenticationFailed) {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return fmt.Errorf("%w: %v", ErrPaymentGateway, err)
}

// currentTenant 读取请求上下文中的租户及其数据范围
func currentTenant(ctx context.Context) (*models.Tenant, tenant.Scope, error) {
	t, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, tenant.Scope{}, ErrTenantRequired
	}
	scope, err := tenant.NewScope(t.ID)
	if err != nil {
		return nil, tenant.Scope{}, err
	}
	return t, scope, nil
}
