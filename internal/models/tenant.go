package models

import (
	"strings"
	"time"

	"github.com/dujiao-next/donate/internal/constants"
)

// Tenant 租户（社区组织）
type Tenant struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                // 主键
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug"`                    // 唯一标识（子域名/路径）
	Name        string    `gorm:"not null;default:''" json:"name"`                     // 组织名称
	Domain      string    `gorm:"index" json:"domain"`                                 // 自定义域名（可选）
	Status      string    `gorm:"index;not null;default:'active'" json:"status"`       // 状态 active/suspended/deleted
	PaymentMode string    `gorm:"not null;default:'platform'" json:"payment_mode"`     // 收款模式 platform/custom
	Currency    string    `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"` // 默认币种
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                             // 创建时间
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`                             // 更新时间
}

// TableName 指定表名
func (Tenant) TableName() string {
	return "tenants"
}

// IsActive 是否可处理请求
func (t *Tenant) IsActive() bool {
	return t != nil && strings.EqualFold(strings.TrimSpace(t.Status), constants.TenantStatusActive)
}

// IsCustomMode 是否使用租户自有网关
func (t *Tenant) IsCustomMode() bool {
	return t != nil && strings.EqualFold(strings.TrimSpace(t.PaymentMode), constants.PaymentModeCustom)
}
