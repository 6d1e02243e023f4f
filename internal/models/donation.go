package models

import (
	"time"
)

// Donation 捐赠记录
type Donation struct {
	ID                     uint       `gorm:"primarykey" json:"id"`                                                                    // 主键
	TenantID               uint       `gorm:"not null;uniqueIndex:idx_donation_tenant_intent,priority:1;index" json:"tenant_id"`       // 租户ID
	UserID                 *uint      `gorm:"index" json:"user_id"`                                                                    // 捐赠人ID（匿名/游客可为空）
	CampaignID             *uint      `gorm:"index" json:"campaign_id"`                                                                // 活动ID
	Amount                 Money      `gorm:"type:decimal(20,2);not null" json:"amount"`                                               // 金额（主币单位）
	Currency               string     `gorm:"type:varchar(3);not null" json:"currency"`                                                // 币种
	PlatformFee            Money      `gorm:"type:decimal(20,2);not null;default:0" json:"platform_fee"`                               // 创建时锁定的平台抽成
	Status                 string     `gorm:"index;not null" json:"status"`                                                            // 状态 pending/completed/failed
	GatewayPaymentIntentID string     `gorm:"not null;uniqueIndex:idx_donation_tenant_intent,priority:2" json:"gateway_payment_intent_id"` // 网关支付意图ID
	PaymentMethod          string     `json:"payment_method"`                                                                          // 结算支付方式
	FailureReason          string     `gorm:"type:text" json:"failure_reason"`                                                         // 失败原因
	IsAnonymous            bool       `gorm:"not null;default:false" json:"is_anonymous"`                                              // 是否匿名
	Source                 string     `gorm:"not null;default:'platform'" json:"source"`                                               // 来源
	DonorEmail             string     `gorm:"index" json:"-"`                                                                          // 捐赠人邮箱快照
	Message                string     `gorm:"type:text" json:"message"`                                                                // 留言
	Metadata               JSON       `gorm:"type:json" json:"metadata"`                                                               // 附加元数据
	CompletedAt            *time.Time `gorm:"index" json:"completed_at"`                                                               // 完成时间
	FailedAt               *time.Time `json:"failed_at"`                                                                               // 失败时间
	CreatedAt              time.Time  `gorm:"index" json:"created_at"`                                                                 // 创建时间
	UpdatedAt              time.Time  `gorm:"index" json:"updated_at"`                                                                 // 更新时间
}

// TableName 指定表名
func (Donation) TableName() string {
	return "donations"
}
