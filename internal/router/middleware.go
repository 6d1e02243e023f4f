package router

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dujiao-next/donate/internal/authz"
	"github.com/dujiao-next/donate/internal/config"
	"github.com/dujiao-next/donate/internal/http/handlers/shared"
	"github.com/dujiao-next/donate/internal/http/response"
	"github.com/dujiao-next/donate/internal/i18n"
	"github.com/dujiao-next/donate/internal/logger"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/service"
	"github.com/dujiao-next/donate/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Authorization",
			"Cache-Control",
			"X-Requested-With",
			"X-CSRF-Token",
		}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithFields(c.Request.Context(), "request_id", requestID))
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if t, ok := tenant.FromContext(c.Request.Context()); ok {
			log = log.With("tenant_id", t.ID)
		}
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// TenantResolver 按标识解析可用租户
type TenantResolver interface {
	Resolve(ctx context.Context, identifier string) (*models.Tenant, error)
}

// TenantMiddleware 解析请求租户并写入 context；豁免路径直接放行
func TenantMiddleware(resolver TenantResolver, opts tenant.ResolveOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tenant.IsExempt(c.Request.URL.Path, opts.ExemptPrefixes) {
			c.Next()
			return
		}
		identifier, ok := tenant.ExtractIdentifier(c.Request, opts)
		if !ok {
			abortWithKey(c, response.CodeBadRequest, "error.tenant_required")
			return
		}
		if resolver == nil {
			logger.Errorw("tenant_resolver_unavailable")
			abortWithKey(c, response.CodeInternal, "error.internal_error")
			return
		}
		t, err := resolver.Resolve(c.Request.Context(), identifier.Value)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrTenantNotFound):
				abortWithKey(c, response.CodeNotFound, "error.tenant_not_found")
			case errors.Is(err, service.ErrTenantInactive):
				abortWithKey(c, response.CodeForbidden, "error.tenant_inactive")
			default:
				logger.Ctx(c.Request.Context()).Errorw("tenant_resolve_failed",
					"identifier", identifier.Value,
					"source", identifier.Source,
					"error", err,
				)
				abortWithKey(c, response.CodeInternal, "error.internal_error")
			}
			return
		}
		ctx := tenant.WithTenant(c.Request.Context(), t)
		ctx = logger.WithFields(ctx, "tenant_id", t.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// UserAuthenticator 校验用户 token
type UserAuthenticator interface {
	Authenticate(token string) (*models.User, error)
}

// UserJWTAuthMiddleware 用户 JWT 鉴权中间件
func UserJWTAuthMiddleware(auth UserAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}
		if token == "" {
			abortWithKey(c, response.CodeUnauthorized, "error.auth_header_missing")
			return
		}
		if !authenticateUser(c, auth, token) {
			return
		}
		c.Next()
	}
}

// OptionalUserJWTMiddleware 捐赠人可匿名访问；携带 token 时必须有效
func OptionalUserJWTMiddleware(auth UserAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}
		if token != "" && !authenticateUser(c, auth, token) {
			return
		}
		c.Next()
	}
}

// bearerToken 读取 Bearer token；未携带时返回空串，格式错误时已中止请求
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" {
		return "", true
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer" && strings.TrimSpace(parts[1]) != "") {
		abortWithKey(c, response.CodeUnauthorized, "error.auth_header_invalid")
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func authenticateUser(c *gin.Context, auth UserAuthenticator, token string) bool {
	if auth == nil {
		abortWithKey(c, response.CodeUnauthorized, "error.token_invalid")
		return false
	}
	user, err := auth.Authenticate(token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDonorUnavailable):
			abortWithKey(c, response.CodeUnauthorized, "error.user_disabled")
		case errors.Is(err, service.ErrInvalidToken):
			abortWithKey(c, response.CodeUnauthorized, "error.token_invalid")
		default:
			logger.Ctx(c.Request.Context()).Errorw("user_authenticate_failed", "error", err)
			abortWithKey(c, response.CodeUnauthorized, "error.token_invalid")
		}
		return false
	}
	c.Set(shared.UserIDKey, user.ID)
	c.Set(shared.UserEmailKey, user.Email)
	c.Request = c.Request.WithContext(logger.WithFields(c.Request.Context(), "user_id", user.ID))
	return true
}

// TenantRBACMiddleware 租户管理端 RBAC：用户在当前租户域内的角色决定可访问的接口
func TenantRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if authzService == nil {
			logger.Errorw("tenant_rbac_service_unavailable")
			abortWithKey(c, response.CodeUnauthorized, "error.unauthorized")
			return
		}
		t, ok := tenant.FromContext(ctx)
		if !ok {
			abortWithKey(c, response.CodeBadRequest, "error.tenant_required")
			return
		}
		userID := shared.OptionalUserID(c)
		if userID == 0 {
			abortWithKey(c, response.CodeUnauthorized, "error.unauthorized")
			return
		}

		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}

		allowed, err := authzService.EnforceUser(userID, t.ID, resource, c.Request.Method)
		if err != nil {
			logger.Ctx(ctx).Errorw("tenant_rbac_enforce_failed",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			abortWithKey(c, response.CodeUnauthorized, "error.unauthorized")
			return
		}
		if !allowed {
			logger.Ctx(ctx).Warnw("tenant_rbac_permission_denied",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"resource", authz.NormalizeObject(resource),
			)
			abortWithKey(c, response.CodeForbidden, "error.forbidden")
			return
		}

		c.Next()
	}
}

func abortWithKey(c *gin.Context, code int, key string) {
	response.Error(c, code, i18n.T(i18n.ResolveLocale(c), key))
	c.Abort()
}
