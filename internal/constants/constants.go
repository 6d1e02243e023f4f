package constants

// 租户状态常量
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
	TenantStatusDeleted   = "deleted"
)

// 租户收款模式常量
const (
	PaymentModePlatform = "platform"
	PaymentModeCustom   = "custom"
)

// 捐赠状态常量
const (
	DonationStatusPending   = "pending"
	DonationStatusCompleted = "completed"
	DonationStatusFailed    = "failed"
)

// 捐赠来源常量
const (
	DonationSourcePlatform   = "platform"
	DonationSourceCustomSite = "custom_site"
	DonationSourceAPI        = "api"
	DonationSourceImport     = "import"
)

// 活动状态常量
const (
	CampaignStatusDraft  = "draft"
	CampaignStatusActive = "active"
	CampaignStatusClosed = "closed"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 用户类型常量
const (
	UserKindRegistered = "registered"
	UserKindGuest      = "guest"
)

// Webhook 来源常量
const (
	WebhookSourcePlatform = "platform"
	WebhookSourceTenant   = "tenant"
)

// 网关事件类型
const (
	EventPaymentIntentSucceeded     = "payment_intent.succeeded"
	EventPaymentIntentPaymentFailed = "payment_intent.payment_failed"
	EventPaymentIntentCanceled      = "payment_intent.canceled"
	EventAccountUpdated             = "account.updated"
)

// 租户管理员角色
const (
	TenantRoleOwner   = "owner"
	TenantRoleFinance = "finance"
	TenantRoleViewer  = "viewer"
)

// 验证码提供方
const (
	CaptchaProviderNone  = "none"
	CaptchaProviderImage = "image"
)

// 验证码场景
const (
	CaptchaSceneGuestDonation = "guest_donation"
)

// 队列与任务
const (
	QueueDefault          = "default"
	QueueCritical         = "critical"
	TaskDonationReceipt   = "donation:receipt"
	ReceiptNumberPrefix   = "R"
	DefaultCurrency       = "EUR"
	TenantHeader          = "X-Tenant-ID"
	TenantQueryParam      = "tenant"
	TenantPathSegment     = "tenant"
	StripeSignatureHeader = "Stripe-Signature"
)
