package public

import (
	"strings"

	"github.com/dujiao-next/donate/internal/http/response"
	handlershared "github.com/dujiao-next/donate/internal/http/handlers/shared"
	"github.com/dujiao-next/donate/internal/repository"

	"github.com/gin-gonic/gin"
)

// TenantPublicView 对外展示的租户信息
type TenantPublicView struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Currency    string `json:"currency"`
	PaymentMode string `json:"payment_mode"`
}

// GetTenantInfo 按 slug 查询租户公开信息（无需租户上下文）
func (h *Handler) GetTenantInfo(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	t, err := h.TenantService.Resolve(c.Request.Context(), slug)
	if err != nil {
		handlershared.RespondMappedError(c, err, handlershared.TenantErrorRules, response.CodeInternal, "error.internal_error")
		return
	}
	response.Success(c, TenantPublicView{
		Slug:        t.Slug,
		Name:        t.Name,
		Currency:    t.Currency,
		PaymentMode: t.PaymentMode,
	})
}

// ListCampaigns 当前租户的活动列表
func (h *Handler) ListCampaigns(c *gin.Context) {
	page, pageSize := handlershared.PaginationFromQuery(c)
	campaigns, total, err := h.DonationService.ListCampaigns(c.Request.Context(), repository.CampaignListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		Search:   strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		handlershared.RespondMappedError(c, err, handlershared.TenantErrorRules, response.CodeInternal, "error.internal_error")
		return
	}
	response.SuccessWithPage(c, campaigns, response.BuildPagination(page, pageSize, total))
}
