// Package gateway 按租户收款模式选择网关客户端。
//
// platform 模式共用进程启动时构造的平台客户端，并把抽成与子账户附加到支付意图上；
// custom 模式使用租户自有密钥构造的客户端，按租户缓存，重新配置凭据时必须 Evict。
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/dujiao-next/donate/internal/logger"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/payment/stripe"
	"github.com/dujiao-next/donate/internal/tenant"

	"github.com/shopspring/decimal"
)

var (
	ErrNotConfigured      = errors.New("payment gateway not configured")
	ErrInvalidCredentials = errors.New("payment gateway credentials invalid")
	ErrAmountOutOfRange   = errors.New("amount out of range")
	ErrUpstream           = errors.New("payment gateway error")
)

const maxPopulateAttempts = 3

// AccountStore 网关账户读取
type AccountStore interface {
	GetByTenant(scope tenant.Scope) (*models.GatewayAccount, error)
}

// Decrypter 凭据解密
type Decrypter interface {
	Decrypt(blob string) (string, error)
}

// ClientFactory 根据凭据构造客户端
type ClientFactory func(cfg stripe.Config) (*stripe.Client, error)

// Options 路由配置
type Options struct {
	Platform              *stripe.Client
	PlatformWebhookSecret string
	ClientConfig          stripe.Config // 租户客户端的基础配置，SecretKey 由租户凭据填充
	HTTPClient            *http.Client
	Factory               ClientFactory
	DefaultCurrency       string
	MinAmount             decimal.Decimal
	MaxAmount             decimal.Decimal
}

// Binding 某个租户当前使用的网关
type Binding struct {
	Mode    string
	Client  *stripe.Client
	Account *models.GatewayAccount
}

type cacheEntry struct {
	client        *stripe.Client
	webhookSecret string
}

// Router 网关路由
type Router struct {
	accounts  AccountStore
	decrypter Decrypter
	opts      Options

	mu          sync.Mutex
	entries     map[uint]*cacheEntry
	generations map[uint]uint64
}

// NewRouter 创建网关路由
func NewRouter(accounts AccountStore, decrypter Decrypter, opts Options) *Router {
	if opts.Factory == nil {
		httpClient := opts.HTTPClient
		opts.Factory = func(cfg stripe.Config) (*stripe.Client, error) {
			return stripe.NewClient(cfg, httpClient)
		}
	}
	opts.DefaultCurrency = strings.ToUpper(strings.TrimSpace(opts.DefaultCurrency))
	return &Router{
		accounts:    accounts,
		decrypter:   decrypter,
		opts:        opts,
		entries:     make(map[uint]*cacheEntry),
		generations: make(map[uint]uint64),
	}
}

// Platform 平台客户端，未配置平台密钥时为 nil
func (r *Router) Platform() *stripe.Client {
	return r.opts.Platform
}

// DefaultCurrency 平台默认币种
func (r *Router) DefaultCurrency() string {
	return r.opts.DefaultCurrency
}

// ClientFor 返回租户当前应使用的网关客户端
func (r *Router) ClientFor(ctx context.Context, t *models.Tenant) (*Binding, error) {
	scope, err := scopeFor(t)
	if err != nil {
		return nil, err
	}
	if !t.IsCustomMode() {
		if r.opts.Platform == nil {
			return nil, fmt.Errorf("%w: platform secret key is not set", ErrNotConfigured)
		}
		account, err := r.accounts.GetByTenant(scope)
		if err != nil {
			return nil, err
		}
		return &Binding{Mode: t.PaymentMode, Client: r.opts.Platform, Account: account}, nil
	}

	entry, account, err := r.customEntry(ctx, t.ID, scope)
	if err != nil {
		return nil, err
	}
	return &Binding{Mode: t.PaymentMode, Client: entry.client, Account: account}, nil
}

// WebhookSecretFor 返回校验 webhook 使用的密钥；t 为空表示平台端点
func (r *Router) WebhookSecretFor(ctx context.Context, t *models.Tenant) (string, error) {
	if t == nil {
		if strings.TrimSpace(r.opts.PlatformWebhookSecret) == "" {
			return "", fmt.Errorf("%w: platform webhook secret is not set", ErrNotConfigured)
		}
		return r.opts.PlatformWebhookSecret, nil
	}
	if !t.IsCustomMode() {
		return "", fmt.Errorf("%w: tenant %d uses the platform webhook endpoint", ErrNotConfigured, t.ID)
	}
	scope, err := scopeFor(t)
	if err != nil {
		return "", err
	}
	entry, _, err := r.customEntry(ctx, t.ID, scope)
	if err != nil {
		return "", err
	}
	if entry.webhookSecret == "" {
		return "", fmt.Errorf("%w: tenant webhook secret is not set", ErrNotConfigured)
	}
	return entry.webhookSecret, nil
}

// Evict 清除租户缓存的客户端，并使进行中的填充失效
func (r *Router) Evict(tenantID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, tenantID)
	r.generations[tenantID]++
}

// Cached 租户是否已有缓存客户端
func (r *Router) Cached(tenantID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[tenantID]
	return ok
}

// customEntry 读取缓存；未命中时解密构造，只有代数未变化时才写入缓存
func (r *Router) customEntry(ctx context.Context, tenantID uint, scope tenant.Scope) (*cacheEntry, *models.GatewayAccount, error) {
	for attempt := 0; attempt < maxPopulateAttempts; attempt++ {
		r.mu.Lock()
		generation := r.generations[tenantID]
		r.mu.Unlock()

		account, err := r.accounts.GetByTenant(scope)
		if err != nil {
			return nil, nil, err
		}
		if account == nil || !account.IsActive || !account.HasSecretKey() {
			return nil, nil, fmt.Errorf("%w: tenant %d has no active custom credentials", ErrNotConfigured, tenantID)
		}

		r.mu.Lock()
		if cached, ok := r.entries[tenantID]; ok && r.generations[tenantID] == generation {
			r.mu.Unlock()
			return cached, account, nil
		}
		r.mu.Unlock()

		built, err := r.buildEntry(ctx, tenantID, account)
		if err != nil {
			return nil, nil, err
		}

		r.mu.Lock()
		if r.generations[tenantID] != generation {
			r.mu.Unlock()
			logger.Ctx(ctx).Debugw("gateway_client_populate_raced", "tenant_id", tenantID, "attempt", attempt)
			continue
		}
		if cached, ok := r.entries[tenantID]; ok {
			r.mu.Unlock()
			return cached, account, nil
		}
		r.entries[tenantID] = built
		r.mu.Unlock()
		return built, account, nil
	}
	return nil, nil, fmt.Errorf("%w: credentials changed during lookup", ErrNotConfigured)
}

func (r *Router) buildEntry(ctx context.Context, tenantID uint, account *models.GatewayAccount) (*cacheEntry, error) {
	if r.decrypter == nil {
		return nil, fmt.Errorf("%w: vault unavailable", ErrInvalidCredentials)
	}
	secretKey, err := r.decrypter.Decrypt(account.SecretKeyEnc)
	if err != nil {
		logger.Ctx(ctx).Errorw("gateway_credentials_decrypt_failed", "tenant_id", tenantID, "field", "secret_key", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	var publishableKey string
	if strings.TrimSpace(account.PublishableKeyEnc) != "" {
		publishableKey, err = r.decrypter.Decrypt(account.PublishableKeyEnc)
		if err != nil {
			logger.Ctx(ctx).Errorw("gateway_credentials_decrypt_failed", "tenant_id", tenantID, "field", "publishable_key", "error", err)
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
	}
	var webhookSecret string
	if account.HasWebhookSecret() {
		webhookSecret, err = r.decrypter.Decrypt(account.WebhookSecretEnc)
		if err != nil {
			logger.Ctx(ctx).Errorw("gateway_credentials_decrypt_failed", "tenant_id", tenantID, "field", "webhook_secret", "error", err)
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
	}

	cfg := r.opts.ClientConfig
	cfg.SecretKey = secretKey
	cfg.PublishableKey = publishableKey
	client, err := r.opts.Factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	logger.Ctx(ctx).Infow("gateway_client_built", "tenant_id", tenantID, "livemode", client.Livemode())
	return &cacheEntry{client: client, webhookSecret: webhookSecret}, nil
}

func scopeFor(t *models.Tenant) (tenant.Scope, error) {
	if t == nil {
		return tenant.Scope{}, tenant.ErrNoTenant
	}
	return tenant.NewScope(t.ID)
}

// tenantIDString 元数据中的租户 ID
func tenantIDString(t *models.Tenant) string {
	return strconv.FormatUint(uint64(t.ID), 10)
}
