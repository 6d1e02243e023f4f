package public

import (
	"strings"

	"github.com/dujiao-next/donate/internal/http/response"
	handlershared "github.com/dujiao-next/donate/internal/http/handlers/shared"
	"github.com/dujiao-next/donate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateDonationRequest 创建捐赠请求
type CreateDonationRequest struct {
	Amount         decimal.Decimal       `json:"amount"`
	Currency       string                `json:"currency"`
	CampaignID     uint                  `json:"campaign_id"`
	DonorEmail     string                `json:"donor_email"`
	DonorName      string                `json:"donor_name"`
	IsAnonymous    bool                  `json:"is_anonymous"`
	Source         string                `json:"source"`
	Message        string                `json:"message"`
	CaptchaPayload CaptchaPayloadRequest `json:"captcha_payload"`
}

// ConfirmDonationRequest 客户端完成支付后的确认请求
type ConfirmDonationRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

// CreateDonation 创建捐赠并返回 client secret
func (h *Handler) CreateDonation(c *gin.Context) {
	var req CreateDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	result, err := h.DonationService.Create(service.CreateDonationInput{
		UserID:      handlershared.OptionalUserID(c),
		DonorEmail:  req.DonorEmail,
		DonorName:   req.DonorName,
		Amount:      req.Amount,
		Currency:    req.Currency,
		CampaignID:  req.CampaignID,
		IsAnonymous: req.IsAnonymous,
		Source:      req.Source,
		Message:     strings.TrimSpace(req.Message),
		Captcha:     req.CaptchaPayload.ToServicePayload(),
		Context:     c.Request.Context(),
	})
	if err != nil {
		respondDonationError(c, err, createDonationErrorRules, "error.donation_create_failed")
		return
	}
	response.Success(c, result)
}

// ConfirmDonation 同步确认：向网关核实支付意图后完成捐赠
func (h *Handler) ConfirmDonation(c *gin.Context) {
	var req ConfirmDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	donation, err := h.DonationService.Confirm(service.ConfirmDonationInput{
		PaymentIntentID: strings.TrimSpace(req.PaymentIntentID),
		Context:         c.Request.Context(),
	})
	if err != nil {
		respondDonationError(c, err, confirmDonationErrorRules, "error.donation_update_failed")
		return
	}
	response.Success(c, donation)
}

// GetDonation 查询当前租户的捐赠
func (h *Handler) GetDonation(c *gin.Context) {
	id, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	donation, err := h.DonationService.Get(c.Request.Context(), id)
	if err != nil {
		respondDonationError(c, err, confirmDonationErrorRules, "error.internal_error")
		return
	}
	response.Success(c, donation)
}
