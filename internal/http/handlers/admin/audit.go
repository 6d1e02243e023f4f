package admin

import (
	"strings"

	"github.com/dujiao-next/donate/internal/http/response"
	handlershared "github.com/dujiao-next/donate/internal/http/handlers/shared"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/repository"
	"github.com/dujiao-next/donate/internal/service"

	"github.com/gin-gonic/gin"
)

// 审计动作
const (
	auditActionMemberRolesSet = "member_roles_set"
	auditActionGatewayUpdated = "gateway_updated"
	auditActionTenantUpdated  = "tenant_updated"
)

// ListAuditLogs 当前租户的管理端审计日志
func (h *Handler) ListAuditLogs(c *gin.Context) {
	page, pageSize := handlershared.PaginationFromQuery(c)
	filter := repository.AuditLogListFilter{
		Page:           page,
		PageSize:       pageSize,
		OperatorUserID: handlershared.ParseUintQuery(c, "operator_user_id"),
		TargetUserID:   handlershared.ParseUintQuery(c, "target_user_id"),
		Action:         strings.TrimSpace(c.Query("action")),
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

	items, total, err := h.AuditService.List(c.Request.Context(), filter)
	if err != nil {
		handlershared.RespondMappedError(c, err, handlershared.TenantErrorRules, response.CodeInternal, "error.internal_error")
		return
	}
	response.SuccessWithPage(c, items, response.BuildPagination(page, pageSize, total))
}

// recordAudit 写审计日志；失败只记日志，不影响已成功的变更
func (h *Handler) recordAudit(c *gin.Context, action string, target *uint, detail models.JSON) {
	operatorID := handlershared.OptionalUserID(c)
	operatorEmail, _ := c.Get(handlershared.UserEmailKey)
	email, _ := operatorEmail.(string)
	requestID, _ := c.Get("request_id")
	rid, _ := requestID.(string)

	err := h.AuditService.Record(service.AuditRecordInput{
		OperatorUserID: operatorID,
		OperatorEmail:  email,
		TargetUserID:   target,
		Action:         action,
		Object:         c.FullPath(),
		Method:         c.Request.Method,
		RequestID:      rid,
		Detail:         detail,
		Context:        c.Request.Context(),
	})
	if err != nil {
		requestLog(c).Warnw("admin_audit_record_failed", "action", action, "error", err)
	}
}
