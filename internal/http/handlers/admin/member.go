package admin

import (
	"github.com/dujiao-next/donate/internal/authz"
	"github.com/dujiao-next/donate/internal/http/response"
	handlershared "github.com/dujiao-next/donate/internal/http/handlers/shared"
	"github.com/dujiao-next/donate/internal/models"

	"github.com/gin-gonic/gin"
)

// SetMemberRolesRequest 设置成员角色
type SetMemberRolesRequest struct {
	Roles []string `json:"roles"`
}

// GetMemberRoles 查询成员在当前租户的角色
func (h *Handler) GetMemberRoles(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	userID, ok := handlershared.ParseUintParam(c, "user_id")
	if !ok {
		return
	}
	roles, err := h.AuthzService.GetUserRoles(userID, t.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal_error", err)
		return
	}
	response.Success(c, gin.H{"user_id": userID, "roles": roles})
}

// SetMemberRoles 覆盖成员在当前租户的角色
func (h *Handler) SetMemberRoles(c *gin.Context) {
	t, ok := currentTenant(c)
	if !ok {
		return
	}
	userID, ok := handlershared.ParseUintParam(c, "user_id")
	if !ok {
		return
	}
	var req SetMemberRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	user, err := h.UserRepo.GetByID(userID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal_error", err)
		return
	}
	if user == nil {
		respondError(c, response.CodeNotFound, "error.not_found", nil)
		return
	}
	roles := make([]string, 0, len(req.Roles))
	for _, raw := range req.Roles {
		role, err := authz.NormalizeRole(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", nil)
			return
		}
		roles = append(roles, role)
	}
	if err := h.AuthzService.SetUserRoles(userID, t.ID, roles); err != nil {
		respondError(c, response.CodeInternal, "error.internal_error", err)
		return
	}
	requestLog(c).Infow("admin_member_roles_updated", "user_id", userID, "roles", roles)
	h.recordAudit(c, auditActionMemberRolesSet, &userID, models.JSON{"roles": roles, "email": user.Email})
	response.Success(c, gin.H{"user_id": userID, "roles": roles})
}
