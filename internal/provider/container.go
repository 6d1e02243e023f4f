package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/donate/internal/authz"
	"github.com/dujiao-next/donate/internal/cache"
	"github.com/dujiao-next/donate/internal/config"
	"github.com/dujiao-next/donate/internal/logger"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/payment/gateway"
	"github.com/dujiao-next/donate/internal/payment/stripe"
	"github.com/dujiao-next/donate/internal/queue"
	"github.com/dujiao-next/donate/internal/repository"
	"github.com/dujiao-next/donate/internal/service"
	"github.com/dujiao-next/donate/internal/vault"

	"github.com/shopspring/decimal"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Vault       *vault.Vault
	Gateway     *gateway.Router

	// Repositories
	TenantRepo         repository.TenantRepository
	GatewayAccountRepo repository.GatewayAccountRepository
	DonationRepo       repository.DonationRepository
	CampaignRepo       repository.CampaignRepository
	UserRepo           repository.UserRepository
	WebhookEventRepo   repository.WebhookEventRepository
	ReceiptRepo        repository.ReceiptRepository
	AuditLogRepo       repository.AuditLogRepository

	// Services
	AuthzService    *authz.Service
	TenantService   *service.TenantService
	GatewayService  *service.GatewayService
	DonationService *service.DonationService
	WebhookService  *service.WebhookService
	ReceiptService  *service.ReceiptService
	CaptchaService  *service.CaptchaService
	UserAuthService *service.UserAuthService
	AuditService    *service.AuditService
}

// NewContainer 初始化容器；凭据加密或平台网关配置错误时返回 error
func NewContainer(cfg *config.Config) (*Container, error) {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	v, err := vault.New(cfg.Vault.Secret, cfg.Vault.Iterations)
	if err != nil {
		return nil, fmt.Errorf("init credential vault: %w", err)
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Vault:       v,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化网关路由
	if err := c.initGateway(); err != nil {
		return nil, err
	}

	// 3. 初始化 Services
	if err := c.initServices(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Container) initRepositories() {
	db := models.DB
	c.TenantRepo = repository.NewTenantRepository(db)
	c.GatewayAccountRepo = repository.NewGatewayAccountRepository(db)
	c.DonationRepo = repository.NewDonationRepository(db)
	c.CampaignRepo = repository.NewCampaignRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.WebhookEventRepo = repository.NewWebhookEventRepository(db)
	c.ReceiptRepo = repository.NewReceiptRepository(db)
	c.AuditLogRepo = repository.NewAuditLogRepository(db)
}

func (c *Container) initGateway() error {
	payment := c.Config.Payment
	base := BuildClientConfig(payment)

	var platform *stripe.Client
	if strings.TrimSpace(payment.SecretKey) != "" {
		platformCfg := base
		platformCfg.SecretKey = payment.SecretKey
		platformCfg.PublishableKey = payment.PublishableKey
		client, err := stripe.NewClient(platformCfg, nil)
		if err != nil {
			return fmt.Errorf("init platform gateway: %w", err)
		}
		platform = client
	} else {
		logger.Warnw("provider_platform_gateway_disabled", "reason", "payment.secret_key is empty")
	}

	minAmount, err := parseAmountBound(payment.MinAmount, "1.00")
	if err != nil {
		return fmt.Errorf("payment.min_amount: %w", err)
	}
	maxAmount, err := parseAmountBound(payment.MaxAmount, "100000.00")
	if err != nil {
		return fmt.Errorf("payment.max_amount: %w", err)
	}
	if minAmount.GreaterThan(maxAmount) {
		return fmt.Errorf("payment.min_amount %s exceeds payment.max_amount %s", minAmount, maxAmount)
	}

	c.Gateway = gateway.NewRouter(c.GatewayAccountRepo, c.Vault, gateway.Options{
		Platform:              platform,
		PlatformWebhookSecret: payment.WebhookSecret,
		ClientConfig:          base,
		DefaultCurrency:       payment.DefaultCurrency,
		MinAmount:             minAmount,
		MaxAmount:             maxAmount,
	})
	return nil
}

func (c *Container) initServices() error {
	cfg := c.Config
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		return fmt.Errorf("init authz service: %w", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		logger.Warnw("provider_authz_bootstrap_failed", "error", err)
	}
	c.AuthzService = authzService

	var receipts service.ReceiptEnqueuer
	if c.QueueClient != nil {
		receipts = c.QueueClient
	}

	c.TenantService = service.NewTenantService(c.TenantRepo, c.Gateway, cfg.Tenant.CacheTTL())
	c.GatewayService = service.NewGatewayService(c.GatewayAccountRepo, c.Vault, c.Gateway, service.GatewayServiceOptions{
		ClientConfig:      BuildClientConfig(cfg.Payment),
		VerifyCredentials: cfg.Payment.VerifyCredentials,
	})
	c.CaptchaService = service.NewCaptchaService(cfg.Captcha)
	c.UserAuthService = service.NewUserAuthService(cfg, c.UserRepo)
	c.DonationService = service.NewDonationService(c.DonationRepo, c.CampaignRepo, c.UserRepo, c.Gateway, c.CaptchaService, receipts)
	c.ReceiptService = service.NewReceiptService(c.ReceiptRepo, c.DonationRepo)
	c.AuditService = service.NewAuditService(c.AuditLogRepo)
	c.WebhookService = service.NewWebhookService(
		c.TenantService,
		c.Gateway,
		c.WebhookEventRepo,
		c.DonationService,
		c.GatewayService,
		time.Duration(cfg.Payment.WebhookToleranceSeconds)*time.Second,
	)
	return nil
}

// Close 释放队列等外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
}

// BuildClientConfig 由平台配置生成网关客户端基础配置（不含密钥）
func BuildClientConfig(payment config.PaymentConfig) stripe.Config {
	return stripe.Config{
		APIBaseURL: payment.APIBaseURL,
		Timeout:    time.Duration(payment.TimeoutSeconds) * time.Second,
		RetryMax:   payment.RetryMax,
	}
}

func parseAmountBound(raw, fallback string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = fallback
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative")
	}
	return amount, nil
}
