package admin

import (
	"github.com/dujiao-next/donate/internal/http/response"
	handlershared "github.com/dujiao-next/donate/internal/http/handlers/shared"
	"github.com/dujiao-next/donate/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

var tenantAdminErrorRules = []handlershared.MappedError{
	{Target: service.ErrInvalidTenantStatus, Code: response.CodeBadRequest, Key: "error.tenant_status_invalid"},
	{Target: service.ErrInvalidPaymentMode, Code: response.CodeBadRequest, Key: "error.payment_mode_invalid"},
	{Target: service.ErrTenantUpdateFailed, Code: response.CodeInternal, Key: "error.tenant_update_failed", Log: true},
}

var gatewayAdminErrorRules = handlershared.ConcatMappedErrors(
	handlershared.TenantErrorRules,
	handlershared.AdminGatewayErrorRules,
)

var tenantUpdateErrorRules = handlershared.ConcatMappedErrors(
	handlershared.TenantErrorRules,
	tenantAdminErrorRules,
)

func respondGatewayError(c *gin.Context, err error, fallbackKey string) {
	respondMapped(c, err, gatewayAdminErrorRules, fallbackKey)
}

var adminDonationErrorRules = handlershared.ConcatMappedErrors(
	handlershared.TenantErrorRules,
	[]handlershared.MappedError{
		{Target: service.ErrDonationNotFound, Code: response.CodeNotFound, Key: "error.donation_not_found"},
	},
)

func respondMapped(c *gin.Context, err error, rules []handlershared.MappedError, fallbackKey string) {
	handlershared.RespondMappedError(c, err, rules, response.CodeInternal, fallbackKey)
}
