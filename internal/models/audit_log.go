package models

import "time"

// AuditLog 租户管理端审计日志
// 说明：记录成员角色、网关配置、租户设置等敏感变更，按租户隔离。
type AuditLog struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	TenantID       uint      `gorm:"index;not null" json:"tenant_id"`
	OperatorUserID uint      `gorm:"index;not null" json:"operator_user_id"`
	OperatorEmail  string    `gorm:"type:varchar(255);index;not null;default:''" json:"operator_email"`
	TargetUserID   *uint     `gorm:"index" json:"target_user_id,omitempty"`
	Action         string    `gorm:"type:varchar(100);index;not null" json:"action"`
	Object         string    `gorm:"type:varchar(255);index;not null;default:''" json:"object"`
	Method         string    `gorm:"type:varchar(20);index;not null;default:''" json:"method"`
	RequestID      string    `gorm:"type:varchar(64);index;not null;default:''" json:"request_id"`
	DetailJSON     JSON      `gorm:"type:json" json:"detail"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (AuditLog) TableName() string {
	return "audit_logs"
}
