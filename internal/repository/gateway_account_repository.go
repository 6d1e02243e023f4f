package repository

import (
	"errors"
	"strings"

	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/tenant"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConnectAccountFlags 平台子账户能力状态
type ConnectAccountFlags struct {
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// GatewayAccountRepository 网关账户数据访问接口
type GatewayAccountRepository interface {
	GetByTenant(scope tenant.Scope) (*models.GatewayAccount, error)
	GetByConnectAccountID(accountID string) (*models.GatewayAccount, error)
	Save(scope tenant.Scope, account *models.GatewayAccount) error
	UpdateConnectFlags(accountID string, flags ConnectAccountFlags) (int64, error)
	WithTx(tx *gorm.DB) *GormGatewayAccountRepository
}

// GormGatewayAccountRepository GORM 实现
type GormGatewayAccountRepository struct {
	db *gorm.DB
}

// NewGatewayAccountRepository 创建网关账户仓库
func NewGatewayAccountRepository(db *gorm.DB) *GormGatewayAccountRepository {
	return &GormGatewayAccountRepository{db: db}
}

// WithTx 绑定事务
func (r *GormGatewayAccountRepository) WithTx(tx *gorm.DB) *GormGatewayAccountRepository {
	if tx == nil {
		return r
	}
	return &GormGatewayAccountRepository{db: tx}
}

// GetByTenant 获取租户的网关账户
func (r *GormGatewayAccountRepository) GetByTenant(scope tenant.Scope) (*models.GatewayAccount, error) {
	var account models.GatewayAccount
	if err := scope.Apply(r.db).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetByConnectAccountID 根据平台子账户 ID 获取网关账户（平台 webhook 使用）
func (r *GormGatewayAccountRepository) GetByConnectAccountID(accountID string) (*models.GatewayAccount, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, nil
	}
	var account models.GatewayAccount
	result := r.db.Where("connect_account_id = ?", accountID).Limit(1).Find(&account)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &account, nil
}

// Save 新建或更新租户网关账户，tenant_id 始终取自 scope
func (r *GormGatewayAccountRepository) Save(scope tenant.Scope, account *models.GatewayAccount) error {
	if !scope.Valid() {
		return tenant.ErrNoTenant
	}
	if account == nil {
		return errors.New("gateway account is nil")
	}
	account.TenantID = scope.TenantID()
	if account.ID == 0 {
		return r.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"connect_account_id",
				"fee_percentage",
				"publishable_key_enc",
				"secret_key_enc",
				"webhook_secret_enc",
				"is_active",
				"last_verified_at",
				"credentials_rotated_at",
				"updated_at",
			}),
		}).Create(account).Error
	}
	return scope.Apply(r.db).Save(account).Error
}

// UpdateConnectFlags 更新平台子账户能力状态，返回影响行数
func (r *GormGatewayAccountRepository) UpdateConnectFlags(accountID string, flags ConnectAccountFlags) (int64, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return 0, nil
	}
	result := r.db.Model(&models.GatewayAccount{}).
		Where("connect_account_id = ?", accountID).
		Updates(map[string]interface{}{
			"charges_enabled":   flags.ChargesEnabled,
			"payouts_enabled":   flags.PayoutsEnabled,
			"details_submitted": flags.DetailsSubmitted,
		})
	return result.RowsAffected, result.Error
}
