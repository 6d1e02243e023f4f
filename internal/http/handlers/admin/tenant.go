package admin

import (
	"github.com/dujiao-next/donate/internal/http/response"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateTenantRequest 更新租户请求
type UpdateTenantRequest struct {
	Name        *string `json:"name"`
	Status      *string `json:"status"`
	PaymentMode *string `json:"payment_mode"`
	Currency    *string `json:"currency"`
}

// GetTenant 当前租户详情
func (h *Handler) GetTenant(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	response.Success(c, t)
}

// UpdateTenant 更新当前租户状态/收款模式，缓存随之失效
func (h *Handler) UpdateTenant(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	var req UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	updated, err := h.TenantService.UpdateTenant(service.UpdateTenantInput{
		TenantID:    t.ID,
		Name:        req.Name,
		Status:      req.Status,
		PaymentMode: req.PaymentMode,
		Currency:    req.Currency,
		Context:     c.Request.Context(),
	})
	if err != nil {
		handleTenantUpdateError(c, err)
		return
	}
	h.recordAudit(c, auditActionTenantUpdated, nil, tenantAuditDetail(req))
	response.Success(c, updated)
}

func tenantAuditDetail(req UpdateTenantRequest) models.JSON {
	detail := models.JSON{}
	if req.Name != nil {
		detail["name"] = *req.Name
	}
	if req.Status != nil {
		detail["status"] = *req.Status
	}
	if req.PaymentMode != nil {
		detail["payment_mode"] = *req.PaymentMode
	}
	if req.Currency != nil {
		detail["currency"] = *req.Currency
	}
	return detail
}

func handleTenantUpdateError(c *gin.Context, err error) {
	respondMapped(c, err, tenantUpdateErrorRules, "error.tenant_update_failed")
}
