package repository

import "time"

// DonationListFilter 查询捐赠列表的过滤条件
type DonationListFilter struct {
	Page        int
	PageSize    int
	Status      string
	CampaignID  uint
	UserID      uint
	PaymentMode string // 捐赠创建时的收款模式（metadata.payment_mode）
	Search      string // 捐赠人邮箱或支付意图 ID
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// CampaignListFilter 查询活动列表的过滤条件
type CampaignListFilter struct {
	Page     int
	PageSize int
	Status   string
	Search   string
}

// TenantListFilter 查询租户列表的过滤条件
type TenantListFilter struct {
	Page        int
	PageSize    int
	Status      string
	PaymentMode string
}

// AuditLogListFilter 查询审计日志的过滤条件
type AuditLogListFilter struct {
	Page           int
	PageSize       int
	OperatorUserID uint
	TargetUserID   uint
	Action         string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
}
