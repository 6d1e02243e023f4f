// Package stripe 把 stripe-go 客户端收敛为 PaymentIntents / Connect 所需的最小接口。
package stripe

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dujiao-next/donate/internal/logger"

	stripesdk "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"
)

var (
	ErrConfigInvalid        = errors.New("stripe config invalid")
	ErrRequestFailed        = errors.New("stripe request failed")
	ErrResponseInvalid      = errors.New("stripe response invalid")
	ErrSignatureInvalid     = errors.New("stripe signature invalid")
	ErrAuthenticationFailed = errors.New("stripe authentication failed")
)

const defaultTimeout = 12 * time.Second

// Config 客户端配置，SecretKey 决定请求落到哪个网关账户
type Config struct {
	SecretKey      string
	PublishableKey string
	APIBaseURL     string // 为空时使用 stripe-go 默认地址
	Timeout        time.Duration
	RetryMax       int // 只作用于读请求，0 表示不重试
}

// Client 绑定单个 secret key 的网关客户端，可并发使用。
// 创建支付意图走 writer（不重试），查询走 reader（按 RetryMax 重试）。
type Client struct {
	cfg    Config
	reader *client.API
	writer *client.API
}

// NewClient 创建客户端；httpClient 为空时使用带超时的默认实现
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	cfg.normalize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:    cfg,
		reader: client.New(cfg.SecretKey, newBackends(cfg, httpClient, int64(cfg.RetryMax))),
		writer: client.New(cfg.SecretKey, newBackends(cfg, httpClient, 0)),
	}, nil
}

func newBackends(cfg Config, httpClient *http.Client, retries int64) *stripesdk.Backends {
	backendCfg := &stripesdk.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripesdk.Int64(retries),
		LeveledLogger:     sdkLogger(),
	}
	if cfg.APIBaseURL != "" {
		backendCfg.URL = stripesdk.String(cfg.APIBaseURL)
	}
	return stripesdk.NewBackendsWithConfig(backendCfg)
}

// sdkLogger SDK 每次请求都会打 Info 日志，这里只保留告警以上
func sdkLogger() stripesdk.LeveledLoggerInterface {
	return logger.S().Named("stripe").WithOptions(zap.IncreaseLevel(zap.WarnLevel))
}

// ValidateConfig 校验配置
func ValidateConfig(cfg Config) error {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	if !strings.HasPrefix(secret, "sk_") && !strings.HasPrefix(secret, "rk_") {
		return fmt.Errorf("%w: secret_key must start with sk_ or rk_", ErrConfigInvalid)
	}
	if pk := strings.TrimSpace(cfg.PublishableKey); pk != "" && !strings.HasPrefix(pk, "pk_") {
		return fmt.Errorf("%w: publishable_key must start with pk_", ErrConfigInvalid)
	}
	if base := strings.TrimSpace(cfg.APIBaseURL); base != "" {
		if _, err := url.ParseRequestURI(base); err != nil {
			return fmt.Errorf("%w: api_base_url is invalid", ErrConfigInvalid)
		}
	}
	if cfg.RetryMax < 0 {
		return fmt.Errorf("%w: retry_max must not be negative", ErrConfigInvalid)
	}
	return nil
}

// PublishableKey 返回前端使用的 publishable key
func (c *Client) PublishableKey() string {
	if c == nil {
		return ""
	}
	return c.cfg.PublishableKey
}

// Livemode 是否为生产密钥
func (c *Client) Livemode() bool {
	return c != nil && strings.Contains(c.cfg.SecretKey, "_live_")
}

// RetryMax 读请求的最大重试次数
func (c *Client) RetryMax() int {
	if c == nil {
		return 0
	}
	return c.cfg.RetryMax
}

func (c *Config) normalize() {
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.PublishableKey = strings.TrimSpace(c.PublishableKey)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// wrapError 把 SDK 错误归类到包内哨兵错误，原始错误保留在链上
func wrapError(action string, err error) error {
	if err == nil {
		return nil
	}
	var sdkErr *stripesdk.Error
	if errors.As(err, &sdkErr) {
		if sdkErr.HTTPStatusCode == http.StatusUnauthorized || sdkErr.HTTPStatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %s: %w", ErrAuthenticationFailed, action, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrResponseInvalid, action, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrRequestFailed, action, err)
}
