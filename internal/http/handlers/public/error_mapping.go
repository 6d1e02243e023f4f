package public

import (
	"github.com/dujiao-next/donate/internal/http/response"
	handlershared "github.com/dujiao-next/donate/internal/http/handlers/shared"
	"github.com/dujiao-next/donate/internal/service"

	"github.com/gin-gonic/gin"
)

var captchaErrorRules = []handlershared.MappedError{
	{Target: service.ErrCaptchaRequired, Code: response.CodeBadRequest, Key: "error.captcha_required"},
	{Target: service.ErrCaptchaInvalid, Code: response.CodeBadRequest, Key: "error.captcha_invalid"},
	{Target: service.ErrCaptchaConfigInvalid, Code: response.CodeInternal, Key: "error.captcha_config_invalid", Log: true},
}

var donationInputErrorRules = []handlershared.MappedError{
	{Target: service.ErrAmountOutOfRange, Code: response.CodeBadRequest, Key: "error.amount_out_of_range"},
	{Target: service.ErrDonorEmailRequired, Code: response.CodeBadRequest, Key: "error.donor_email_required"},
	{Target: service.ErrInvalidEmail, Code: response.CodeBadRequest, Key: "error.email_invalid"},
	{Target: service.ErrInvalidSource, Code: response.CodeBadRequest, Key: "error.donation_source_invalid"},
	{Target: service.ErrDonorUnavailable, Code: response.CodeForbidden, Key: "error.donor_unavailable"},
	{Target: service.ErrCampaignNotFound, Code: response.CodeNotFound, Key: "error.campaign_not_found"},
	{Target: service.ErrCampaignInactive, Code: response.CodeBadRequest, Key: "error.campaign_inactive"},
}

var donationStateErrorRules = []handlershared.MappedError{
	{Target: service.ErrDonationNotFound, Code: response.CodeNotFound, Key: "error.donation_not_found"},
	{Target: service.ErrPaymentNotSucceeded, Code: response.CodePaymentFailed, Key: "error.payment_not_succeeded"},
}

var createDonationErrorRules = handlershared.ConcatMappedErrors(
	handlershared.TenantErrorRules,
	captchaErrorRules,
	donationInputErrorRules,
	handlershared.DonorGatewayErrorRules,
)

var confirmDonationErrorRules = handlershared.ConcatMappedErrors(
	handlershared.TenantErrorRules,
	donationStateErrorRules,
	handlershared.DonorGatewayErrorRules,
)

func respondDonationError(c *gin.Context, err error, rules []handlershared.MappedError, fallbackKey string) {
	handlershared.RespondMappedError(c, err, rules, response.CodeInternal, fallbackKey)
}
