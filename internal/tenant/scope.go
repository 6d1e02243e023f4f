package tenant

import (
	"context"

	"gorm.io/gorm"
)

// Scope 租户数据访问范围，租户自有数据的仓库方法都要求传入
type Scope struct {
	tenantID uint
}

// NewScope 按租户 ID 构造范围
func NewScope(tenantID uint) (Scope, error) {
	if tenantID == 0 {
		return Scope{}, ErrNoTenant
	}
	return Scope{tenantID: tenantID}, nil
}

// ScopeFromContext 从当前请求的租户构造范围
func ScopeFromContext(ctx context.Context) (Scope, error) {
	t, ok := FromContext(ctx)
	if !ok || t.ID == 0 {
		return Scope{}, ErrNoTenant
	}
	return Scope{tenantID: t.ID}, nil
}

// CurrentScope 等价于 ScopeFromContext，供 service 层使用
func CurrentScope(ctx context.Context) (Scope, error) {
	return ScopeFromContext(ctx)
}

// TenantID 返回租户 ID
func (s Scope) TenantID() uint {
	return s.tenantID
}

// Valid 是否为有效范围
func (s Scope) Valid() bool {
	return s.tenantID != 0
}

// Apply 为查询追加 tenant_id 条件；零值范围会让查询直接失败
func (s Scope) Apply(db *gorm.DB) *gorm.DB {
	if !s.Valid() {
		tx := db.Where("1 = 0")
		_ = tx.AddError(ErrNoTenant)
		return tx
	}
	return db.Where("tenant_id = ?", s.tenantID)
}

// Func 返回可用于 db.Scopes 的函数
func (s Scope) Func() func(*gorm.DB) *gorm.DB {
	return s.Apply
}
