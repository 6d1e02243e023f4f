package router

import (
	"fmt"
	"strings"

	"github.com/dujiao-next/donate/internal/cache"
	"github.com/dujiao-next/donate/internal/config"
	adminhandlers "github.com/dujiao-next/donate/internal/http/handlers/admin"
	publichandlers "github.com/dujiao-next/donate/internal/http/handlers/public"
	"github.com/dujiao-next/donate/internal/http/response"
	"github.com/dujiao-next/donate/internal/logger"
	"github.com/dujiao-next/donate/internal/provider"
	"github.com/dujiao-next/donate/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	registerAPIRoutes(r, cfg, c, cache.Client())
	return r
}

func registerAPIRoutes(r *gin.Engine, cfg *config.Config, c *provider.Container, redisClient *redis.Client) {
	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "dn"
	}
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxRequests,
		BlockSeconds:  cfg.Security.LoginRateLimit.BlockSeconds,
	}
	donationRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:donation", redisPrefix),
		WindowSeconds: cfg.Security.DonationRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.DonationRateLimit.MaxRequests,
		BlockSeconds:  cfg.Security.DonationRateLimit.BlockSeconds,
	}
	tenantOpts := tenant.ResolveOptions{
		BaseDomain:     cfg.Tenant.BaseDomain,
		DevHosts:       cfg.Tenant.DevHosts,
		ExemptPrefixes: cfg.Tenant.ExemptPrefixes,
	}

	apiV1 := r.Group("/api/v1")
	{
		// 全局接口（无需租户）
		global := apiV1.Group("/global")
		{
			global.GET("/tenants/:slug", publicHandler.GetTenantInfo)
		}

		captcha := apiV1.Group("/captcha")
		{
			captcha.GET("/config", publicHandler.GetCaptchaConfig)
			captcha.GET("/image", publicHandler.GetImageCaptcha)
		}

		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, loginRateLimitKey), publicHandler.UserLogin)
		}

		// 网关回调：租户由签名所属账户决定，不经过租户中间件
		webhooks := apiV1.Group("/webhooks")
		{
			webhooks.POST("/platform", publicHandler.PlatformWebhook)
			webhooks.POST("/tenant/:tenant", publicHandler.TenantWebhook)
		}

		tenantMiddleware := TenantMiddleware(c.TenantService, tenantOpts)
		deps := tenantRouteDeps{
			public:       publicHandler,
			admin:        adminHandler,
			c:            c,
			redisClient:  redisClient,
			donationRule: donationRule,
		}
		// 租户来自 header / 子域名 / query
		registerTenantRoutes(apiV1.Group("", tenantMiddleware), deps)
		// 租户嵌在路径中：/api/v1/tenant/{tenant}/...
		registerTenantRoutes(apiV1.Group("/tenant/:tenant", tenantMiddleware), deps)
	}
}

type tenantRouteDeps struct {
	public       *publichandlers.Handler
	admin        *adminhandlers.Handler
	c            *provider.Container
	redisClient  *redis.Client
	donationRule RateLimitRule
}

func registerTenantRoutes(group *gin.RouterGroup, deps tenantRouteDeps) {
	publicHandler := deps.public
	adminHandler := deps.admin

	group.GET("/campaigns", publicHandler.ListCampaigns)

	donations := group.Group("/donations")
	{
		donations.POST("",
			RateLimitMiddleware(deps.redisClient, deps.donationRule, donationRateLimitKey),
			OptionalUserJWTMiddleware(deps.c.UserAuthService),
			publicHandler.CreateDonation,
		)
		donations.POST("/confirm", publicHandler.ConfirmDonation)
		donations.GET("/:id", publicHandler.GetDonation)
	}

	// 租户管理端：JWT + 租户域 RBAC
	admin := group.Group("/admin", UserJWTAuthMiddleware(deps.c.UserAuthService), TenantRBACMiddleware(deps.c.AuthzService))
	{
		admin.GET("/gateway", adminHandler.GetGateway)
		admin.PUT("/gateway", adminHandler.UpdateGateway)
		admin.POST("/gateway/verify", adminHandler.VerifyGateway)

		admin.GET("/donations", adminHandler.ListDonations)
		admin.GET("/donations/:id", adminHandler.GetDonation)

		admin.GET("/tenant", adminHandler.GetTenant)
		admin.PUT("/tenant", adminHandler.UpdateTenant)

		admin.GET("/members/:user_id/roles", adminHandler.GetMemberRoles)
		admin.PUT("/members/:user_id/roles", adminHandler.SetMemberRoles)

		admin.GET("/audit-logs", adminHandler.ListAuditLogs)
	}
}
