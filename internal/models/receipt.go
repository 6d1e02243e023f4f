package models

import "time"

// Receipt 捐赠收据
type Receipt struct {
	ID         uint      `gorm:"primarykey" json:"id"`                       // 主键
	TenantID   uint      `gorm:"index;not null" json:"tenant_id"`            // 租户ID
	DonationID uint      `gorm:"uniqueIndex;not null" json:"donation_id"`    // 捐赠ID
	Number     string    `gorm:"uniqueIndex;not null" json:"number"`         // 收据编号
	Amount     Money     `gorm:"type:decimal(20,2);not null" json:"amount"`  // 金额
	Currency   string    `gorm:"type:varchar(3);not null" json:"currency"`   // 币种
	Email      string    `json:"email"`                                      // 接收邮箱
	IssuedAt   time.Time `gorm:"index" json:"issued_at"`                     // 开具时间
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                    // 创建时间
}

// TableName 指定表名
func (Receipt) TableName() string {
	return "receipts"
}
