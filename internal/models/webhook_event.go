package models

import "time"

// WebhookEvent 已验签的网关事件记录（按来源+事件ID去重）
type WebhookEvent struct {
	ID          uint       `gorm:"primarykey" json:"id"`                                                 // 主键
	Source      string     `gorm:"not null;uniqueIndex:idx_webhook_source_event,priority:1" json:"source"` // platform/tenant
	TenantID    *uint      `gorm:"index" json:"tenant_id"`                                               // 租户ID（租户端点）
	EventID     string     `gorm:"not null;uniqueIndex:idx_webhook_source_event,priority:2" json:"event_id"` // 网关事件ID
	EventType   string     `gorm:"index;not null" json:"event_type"`                                     // 事件类型
	ObjectRef   string     `gorm:"index" json:"object_ref"`                                              // 关联对象（支付意图/账户）
	Handled     bool       `gorm:"not null;default:false" json:"handled"`                                // 是否已处理完成
	ProcessedAt *time.Time `json:"processed_at"`                                                         // 处理时间
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`                                              // 创建时间
}

// TableName 指定表名
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
