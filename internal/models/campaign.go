package models

import (
	"strings"
	"time"

	"github.com/dujiao-next/donate/internal/constants"
)

// Campaign 募捐活动
type Campaign struct {
	ID        uint       `gorm:"primarykey" json:"id"`                                // 主键
	TenantID  uint       `gorm:"index;not null" json:"tenant_id"`                     // 租户ID
	Slug      string     `gorm:"index;not null" json:"slug"`                          // 标识
	Title     string     `gorm:"not null" json:"title"`                               // 标题
	Goal      Money      `gorm:"type:decimal(20,2);not null;default:0" json:"goal"`   // 目标金额
	Raised    Money      `gorm:"type:decimal(20,2);not null;default:0" json:"raised"` // 已完成捐赠累计
	Status    string     `gorm:"index;not null;default:'active'" json:"status"`       // 状态
	EndsAt    *time.Time `json:"ends_at"`                                             // 结束时间
	CreatedAt time.Time  `gorm:"index" json:"created_at"`                             // 创建时间
	UpdatedAt time.Time  `gorm:"index" json:"updated_at"`                             // 更新时间
}

// TableName 指定表名
func (Campaign) TableName() string {
	return "campaigns"
}

// IsOpen 是否接受捐赠
func (c *Campaign) IsOpen(now time.Time) bool {
	if c == nil || !strings.EqualFold(strings.TrimSpace(c.Status), constants.CampaignStatusActive) {
		return false
	}
	return c.EndsAt == nil || now.Before(*c.EndsAt)
}
