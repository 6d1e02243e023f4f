package repository

import (
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/tenant"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReceiptRepository 收据数据访问接口
type ReceiptRepository interface {
	GetByDonationID(scope tenant.Scope, donationID uint) (*models.Receipt, error)
	CreateIfAbsent(scope tenant.Scope, receipt *models.Receipt) (bool, error)
	WithTx(tx *gorm.DB) *GormReceiptRepository
}

// GormReceiptRepository GORM 实现
type GormReceiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository 创建收据仓库
func NewReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReceiptRepository) WithTx(tx *gorm.DB) *GormReceiptRepository {
	if tx == nil {
		return r
	}
	return &GormReceiptRepository{db: tx}
}

// GetByDonationID 获取捐赠对应的收据
func (r *GormReceiptRepository) GetByDonationID(scope tenant.Scope, donationID uint) (*models.Receipt, error) {
	var receipt models.Receipt
	result := scope.Apply(r.db).Where("donation_id = ?", donationID).Limit(1).Find(&receipt)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &receipt, nil
}

// CreateIfAbsent 按捐赠幂等创建收据，返回是否实际写入
func (r *GormReceiptRepository) CreateIfAbsent(scope tenant.Scope, receipt *models.Receipt) (bool, error) {
	if !scope.Valid() {
		return false, tenant.ErrNoTenant
	}
	receipt.TenantID = scope.TenantID()
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "donation_id"}},
		DoNothing: true,
	}).Create(receipt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
