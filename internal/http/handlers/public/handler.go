package public

import "github.com/dujiao-next/donate/internal/provider"

// Handler 捐赠人侧与公开接口处理器入口
// 说明：租户范围的接口依赖租户中间件已把租户写入请求 context。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
