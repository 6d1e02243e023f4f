package models

import (
	"strings"
	"time"
)

// GatewayAccount 租户网关账户（与租户一对一）
// platform 模式使用 ConnectAccountID + FeePercentage；custom 模式使用加密后的自有密钥
type GatewayAccount struct {
	ID                     uint       `gorm:"primarykey" json:"id"`                                        // 主键
	TenantID               uint       `gorm:"uniqueIndex;not null" json:"tenant_id"`                       // 租户ID
	ConnectAccountID       string     `gorm:"index" json:"connect_account_id"`                             // 平台子账户ID
	FeePercentage          Money      `gorm:"type:decimal(6,2);not null;default:0" json:"fee_percentage"`  // 平台抽成（百分比）
	PublishableKeyEnc      string     `gorm:"type:text" json:"-"`                                          // 加密的 publishable key
	SecretKeyEnc           string     `gorm:"type:text" json:"-"`                                          // 加密的 secret key
	WebhookSecretEnc       string     `gorm:"type:text" json:"-"`                                          // 加密的 webhook secret
	IsActive               bool       `gorm:"not null;default:true" json:"is_active"`                      // 是否启用
	ChargesEnabled         bool       `gorm:"not null;default:false" json:"charges_enabled"`               // 子账户可收款
	PayoutsEnabled         bool       `gorm:"not null;default:false" json:"payouts_enabled"`               // 子账户可提现
	DetailsSubmitted       bool       `gorm:"not null;default:false" json:"details_submitted"`             // 子账户资料已提交
	LastVerifiedAt         *time.Time `json:"last_verified_at"`                                            // 最近一次校验时间
	CredentialsRotatedAt   *time.Time `json:"credentials_rotated_at"`                                      // 最近一次轮换时间
	CreatedAt              time.Time  `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt              time.Time  `gorm:"index" json:"updated_at"`                                     // 更新时间
}

// TableName 指定表名
func (GatewayAccount) TableName() string {
	return "gateway_accounts"
}

// HasSecretKey 是否已配置自有密钥
func (a *GatewayAccount) HasSecretKey() bool {
	return a != nil && strings.TrimSpace(a.SecretKeyEnc) != ""
}

// HasWebhookSecret 是否已配置自有 webhook 密钥
func (a *GatewayAccount) HasWebhookSecret() bool {
	return a != nil && strings.TrimSpace(a.WebhookSecretEnc) != ""
}
