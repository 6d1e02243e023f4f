package shared

import (
	"errors"

	"github.com/dujiao-next/donate/internal/http/response"
	"github.com/dujiao-next/donate/internal/i18n"
	"github.com/dujiao-next/donate/internal/logger"
	"github.com/dujiao-next/donate/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 与租户字段的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil || c.Request == nil {
		return logger.S()
	}
	return logger.Ctx(c.Request.Context())
}

// RespondError 返回国际化错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, key string, err error) {
	locale := i18n.ResolveLocale(c)
	msg := i18n.T(locale, key)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", code,
			"message", msg,
			"error", err,
		)
	}
	response.Error(c, code, msg)
}

// MappedError 业务错误到接口错误响应的映射
type MappedError struct {
	Target error
	Code   int
	Key    string
	Log    bool // 对外隐藏细节时仍记录原始错误
}

// RespondMappedError 按映射表返回错误，未命中时使用兜底码并记录日志
func RespondMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			var logged error
			if rule.Log {
				logged = err
			}
			RespondError(c, rule.Code, rule.Key, logged)
			return
		}
	}
	RespondError(c, fallbackCode, fallbackKey, err)
}

// ConcatMappedErrors 合并多组映射
func ConcatMappedErrors(groups ...[]MappedError) []MappedError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]MappedError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

// TenantErrorRules 租户解析相关
var TenantErrorRules = []MappedError{
	{Target: service.ErrTenantRequired, Code: response.CodeBadRequest, Key: "error.tenant_required"},
	{Target: service.ErrTenantNotFound, Code: response.CodeNotFound, Key: "error.tenant_not_found"},
	{Target: service.ErrTenantInactive, Code: response.CodeForbidden, Key: "error.tenant_inactive"},
}

// DonorGatewayErrorRules 捐赠人侧：网关与凭据错误统一为通用支付失败
var DonorGatewayErrorRules = []MappedError{
	{Target: service.ErrGatewayNotConfigured, Code: response.CodePaymentFailed, Key: "error.payment_unavailable", Log: true},
	{Target: service.ErrInvalidCredentials, Code: response.CodePaymentFailed, Key: "error.payment_unavailable", Log: true},
	{Target: service.ErrDecryption, Code: response.CodePaymentFailed, Key: "error.payment_unavailable", Log: true},
	{Target: service.ErrPaymentGateway, Code: response.CodePaymentFailed, Key: "error.payment_unavailable", Log: true},
}

// AdminGatewayErrorRules 管理侧：展示具体配置错误
var AdminGatewayErrorRules = []MappedError{
	{Target: service.ErrGatewayNotConfigured, Code: response.CodeNotFound, Key: "error.gateway_not_configured"},
	{Target: service.ErrInvalidCredentials, Code: response.CodeBadRequest, Key: "error.gateway_credentials"},
	{Target: service.ErrDecryption, Code: response.CodeInternal, Key: "error.gateway_decrypt_failed", Log: true},
	{Target: service.ErrPaymentGateway, Code: response.CodeBadGateway, Key: "error.gateway_request_failed", Log: true},
	{Target: service.ErrInvalidFeePercentage, Code: response.CodeBadRequest, Key: "error.fee_percentage_invalid"},
	{Target: service.ErrGatewayUpdateFailed, Code: response.CodeInternal, Key: "error.gateway_update_failed", Log: true},
}
