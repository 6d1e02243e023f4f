package admin

import "github.com/dujiao-next/donate/internal/provider"

// Handler 租户管理端接口处理器入口
// 说明：路由层已完成租户解析、JWT 鉴权与租户域内的 RBAC 校验。
type Handler struct {
	*provider.Container
}

// New 创建后台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
