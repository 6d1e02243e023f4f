package shared

import (
	"context"
	"strconv"
	"strings"

	"github.com/dujiao-next/donate/internal/http/response"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/tenant"

	"github.com/gin-gonic/gin"
)

// 上下文 key
const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
)

// GetContextUintWithKeys 从上下文读取 uint 值并统一处理错误响应。
func GetContextUintWithKeys(c *gin.Context, key, invalidKey, typeInvalidKey string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, invalidKey, nil)
			return 0, false
		}
		return uint(v), true
	case float64:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, invalidKey, nil)
			return 0, false
		}
		return uint(v), true
	default:
		RespondError(c, response.CodeInternal, typeInvalidKey, nil)
		return 0, false
	}
}

// GetUserID 读取已鉴权用户 ID
func GetUserID(c *gin.Context) (uint, bool) {
	return GetContextUintWithKeys(c, UserIDKey, "error.user_id_invalid", "error.user_id_type_invalid")
}

// OptionalUserID 读取可选用户 ID，未登录返回 0
func OptionalUserID(c *gin.Context) uint {
	value, ok := c.Get(UserIDKey)
	if !ok {
		return 0
	}
	if id, ok := value.(uint); ok {
		return id
	}
	return 0
}

// RequestContext 返回请求 context（已由租户中间件绑定租户）
func RequestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// CurrentTenant 读取当前请求的租户
func CurrentTenant(c *gin.Context) (*models.Tenant, bool) {
	t, ok := tenant.FromContext(RequestContext(c))
	if !ok {
		RespondError(c, response.CodeBadRequest, "error.tenant_required", nil)
		return nil, false
	}
	return t, true
}

// ParseUintParam 解析路径参数
func ParseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return 0, false
	}
	return uint(value), true
}

// ParseUintQuery 解析可选 query 参数，非法值视为 0
func ParseUintQuery(c *gin.Context, name string) uint {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(value)
}
