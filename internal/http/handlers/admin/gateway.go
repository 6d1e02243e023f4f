package admin

import (
	"github.com/dujiao-next/donate/internal/http/response"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateGatewayRequest 网关配置请求，空字段保持不变
type UpdateGatewayRequest struct {
	ConnectAccountID *string `json:"connect_account_id"`
	FeePercentage    *string `json:"fee_percentage"`
	SecretKey        string  `json:"secret_key"`
	PublishableKey   string  `json:"publishable_key"`
	WebhookSecret    string  `json:"webhook_secret"`
	IsActive         *bool   `json:"is_active"`
}

// GetGateway 当前租户的网关配置（不含密钥）
func (h *Handler) GetGateway(c *gin.Context) {
	view, err := h.GatewayService.GetConfig(c.Request.Context())
	if err != nil {
		respondGatewayError(c, err, "error.internal_error")
		return
	}
	response.Success(c, view)
}

// UpdateGateway 更新网关配置；自有密钥校验通过后才落库
func (h *Handler) UpdateGateway(c *gin.Context) {
	var req UpdateGatewayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	view, err := h.GatewayService.Configure(service.ConfigureGatewayInput{
		ConnectAccountID: req.ConnectAccountID,
		FeePercentage:    req.FeePercentage,
		SecretKey:        req.SecretKey,
		PublishableKey:   req.PublishableKey,
		WebhookSecret:    req.WebhookSecret,
		IsActive:         req.IsActive,
		Context:          c.Request.Context(),
	})
	if err != nil {
		respondGatewayError(c, err, "error.gateway_update_failed")
		return
	}
	requestLog(c).Infow("admin_gateway_updated", "payment_mode", view.PaymentMode)
	h.recordAudit(c, auditActionGatewayUpdated, nil, gatewayAuditDetail(req))
	response.Success(c, view)
}

// VerifyGateway 使用当前凭据向网关确认账户状态
func (h *Handler) VerifyGateway(c *gin.Context) {
	view, err := h.GatewayService.Verify(c.Request.Context())
	if err != nil {
		respondGatewayError(c, err, "error.gateway_request_failed")
		return
	}
	response.Success(c, view)
}

// gatewayAuditDetail 只记录变更了哪些字段，不记录密钥内容
func gatewayAuditDetail(req UpdateGatewayRequest) models.JSON {
	detail := models.JSON{
		"secret_key_rotated":      req.SecretKey != "",
		"publishable_key_rotated": req.PublishableKey != "",
		"webhook_secret_rotated":  req.WebhookSecret != "",
	}
	if req.ConnectAccountID != nil {
		detail["connect_account_id"] = *req.ConnectAccountID
	}
	if req.FeePercentage != nil {
		detail["fee_percentage"] = *req.FeePercentage
	}
	if req.IsActive != nil {
		detail["is_active"] = *req.IsActive
	}
	return detail
}
