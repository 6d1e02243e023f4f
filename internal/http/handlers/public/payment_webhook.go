package public

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dujiao-next/donate/internal/constants"
	"github.com/dujiao-next/donate/internal/http/response"
	"github.com/dujiao-next/donate/internal/i18n"
	"github.com/dujiao-next/donate/internal/service"

	"github.com/gin-gonic/gin"
)

// 网关事件体上限
const maxWebhookBodyBytes = 1 << 20

// PlatformWebhook 平台账户的网关事件
func (h *Handler) PlatformWebhook(c *gin.Context) {
	payload, ok := readWebhookBody(c)
	if !ok {
		return
	}
	result, err := h.WebhookService.HandlePlatform(service.WebhookInput{
		Payload:   payload,
		Signature: strings.TrimSpace(c.GetHeader(constants.StripeSignatureHeader)),
		Context:   c.Request.Context(),
	})
	respondWebhook(c, constants.WebhookSourcePlatform, result, err)
}

// TenantWebhook 租户自有网关账户的事件，按路径中的租户取 webhook secret
func (h *Handler) TenantWebhook(c *gin.Context) {
	payload, ok := readWebhookBody(c)
	if !ok {
		return
	}
	result, err := h.WebhookService.HandleTenant(service.WebhookInput{
		TenantIdentifier: strings.TrimSpace(c.Param("tenant")),
		Payload:          payload,
		Signature:        strings.TrimSpace(c.GetHeader(constants.StripeSignatureHeader)),
		Context:          c.Request.Context(),
	})
	respondWebhook(c, constants.WebhookSourceTenant, result, err)
}

func readWebhookBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil || len(body) == 0 {
		requestLog(c).Warnw("webhook_body_read_failed", "client_ip", c.ClientIP(), "error", err)
		rejectWebhook(c, "error.webhook_payload_invalid")
		return nil, false
	}
	return body, true
}

func respondWebhook(c *gin.Context, source string, result *service.WebhookResult, err error) {
	log := requestLog(c)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureInvalid):
			log.Warnw("webhook_signature_rejected", "source", source, "client_ip", c.ClientIP())
			rejectWebhook(c, "error.webhook_signature_invalid")
		case errors.Is(err, service.ErrWebhookPayloadInvalid):
			log.Warnw("webhook_payload_rejected", "source", source, "error", err)
			rejectWebhook(c, "error.webhook_payload_invalid")
		default:
			// 非 2xx 让网关稍后重投
			log.Errorw("webhook_handle_failed", "source", source, "error", err)
			response.Rejected(c, http.StatusInternalServerError, response.CodeInternal, i18n.T(i18n.ResolveLocale(c), "error.internal_error"))
		}
		return
	}
	log.Infow("webhook_accepted",
		"source", source,
		"event_id", result.EventID,
		"event_type", result.EventType,
		"duplicate", result.Duplicate,
		"ignored", result.Ignored,
	)
	response.Success(c, result)
}

func rejectWebhook(c *gin.Context, key string) {
	response.Rejected(c, http.StatusBadRequest, response.CodeBadRequest, i18n.T(i18n.ResolveLocale(c), key))
}
