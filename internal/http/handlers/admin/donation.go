package admin

import (
	"strings"
	"time"

	"github.com/dujiao-next/donate/internal/http/response"
	handlershared "github.com/dujiao-next/donate/internal/http/handlers/shared"
	"github.com/dujiao-next/donate/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListDonations 当前租户的捐赠列表
func (h *Handler) ListDonations(c *gin.Context) {
	page, pageSize := handlershared.PaginationFromQuery(c)
	filter := repository.DonationListFilter{
		Page:        page,
		PageSize:    pageSize,
		Status:      strings.TrimSpace(c.Query("status")),
		CampaignID:  handlershared.ParseUintQuery(c, "campaign_id"),
		UserID:      handlershared.ParseUintQuery(c, "user_id"),
		PaymentMode: strings.TrimSpace(c.Query("payment_mode")),
		Search:      strings.TrimSpace(c.Query("search")),
	}
	var ok bool
	if filter.CreatedFrom, ok = parseTimeQuery(c, "created_from"); !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	if filter.CreatedTo, ok = parseTimeQuery(c, "created_to"); !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	donations, total, err := h.DonationService.List(c.Request.Context(), filter)
	if err != nil {
		handlershared.RespondMappedError(c, err, handlershared.TenantErrorRules, response.CodeInternal, "error.internal_error")
		return
	}
	response.SuccessWithPage(c, donations, response.BuildPagination(page, pageSize, total))
}

// GetDonation 当前租户的单条捐赠
func (h *Handler) GetDonation(c *gin.Context) {
	id, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	donation, err := h.DonationService.Get(c.Request.Context(), id)
	if err != nil {
		respondMapped(c, err, adminDonationErrorRules, "error.internal_error")
		return
	}
	response.Success(c, donation)
}

// parseTimeQuery 支持 RFC3339 与 2006-01-02，缺省返回 nil
func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, true
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return &parsed, true
	}
	return nil, false
}
