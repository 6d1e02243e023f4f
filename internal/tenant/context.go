// Package tenant 负责请求级租户上下文的传递与租户数据范围约束。
//
// 租户在请求入口解析一次后写入 context.Context，下游通过 FromContext / Current 取用，
// 所有租户自有数据的查询都必须经过 Scope。
package tenant

import (
	"context"
	"errors"

	"github.com/dujiao-next/donate/internal/models"
)

// ErrNoTenant 当前上下文没有租户
var ErrNoTenant = errors.New("no tenant in context")

type contextKey struct{}

// WithTenant 将租户写入 context
func WithTenant(ctx context.Context, t *models.Tenant) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if t == nil {
		return ctx
	}
	snapshot := *t
	return context.WithValue(ctx, contextKey{}, &snapshot)
}

// FromContext 读取当前租户
func FromContext(ctx context.Context) (*models.Tenant, bool) {
	if ctx == nil {
		return nil, false
	}
	t, ok := ctx.Value(contextKey{}).(*models.Tenant)
	if !ok || t == nil {
		return nil, false
	}
	return t, true
}

// Current 读取当前租户，不存在时返回 nil
func Current(ctx context.Context) *models.Tenant {
	t, _ := FromContext(ctx)
	return t
}

// Run 在绑定了租户的 context 中执行 fn
func Run(ctx context.Context, t *models.Tenant, fn func(ctx context.Context) error) error {
	if t == nil || t.ID == 0 {
		return ErrNoTenant
	}
	if fn == nil {
		return nil
	}
	return fn(WithTenant(ctx, t))
}
