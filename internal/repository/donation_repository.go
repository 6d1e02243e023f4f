package repository

import (
	"errors"
	"strings"

	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/tenant"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DonationRepository 捐赠数据访问接口，所有方法都限定在租户范围内
type DonationRepository interface {
	Create(scope tenant.Scope, donation *models.Donation) error
	GetByID(scope tenant.Scope, id uint) (*models.Donation, error)
	GetByIntentID(scope tenant.Scope, intentID string) (*models.Donation, error)
	GetByIntentIDForUpdate(scope tenant.Scope, intentID string) (*models.Donation, error)
	Transition(scope tenant.Scope, id uint, fromStatus string, updates map[string]interface{}) (bool, error)
	List(scope tenant.Scope, filter DonationListFilter) ([]models.Donation, int64, error)
	WithTx(tx *gorm.DB) *GormDonationRepository
}

// GormDonationRepository GORM 实现
type GormDonationRepository struct {
	db *gorm.DB
}

// NewDonationRepository 创建捐赠仓库
func NewDonationRepository(db *gorm.DB) *GormDonationRepository {
	return &GormDonationRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDonationRepository) WithTx(tx *gorm.DB) *GormDonationRepository {
	if tx == nil {
		return r
	}
	return &GormDonationRepository{db: tx}
}

// Create 创建捐赠记录，tenant_id 取自 scope
func (r *GormDonationRepository) Create(scope tenant.Scope, donation *models.Donation) error {
	if !scope.Valid() {
		return tenant.ErrNoTenant
	}
	if donation == nil {
		return errors.New("donation is nil")
	}
	donation.TenantID = scope.TenantID()
	return r.db.Create(donation).Error
}

// GetByID 根据 ID 获取捐赠
func (r *GormDonationRepository) GetByID(scope tenant.Scope, id uint) (*models.Donation, error) {
	var donation models.Donation
	if err := scope.Apply(r.db).First(&donation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &donation, nil
}

// GetByIntentID 根据网关支付意图 ID 获取捐赠
func (r *GormDonationRepository) GetByIntentID(scope tenant.Scope, intentID string) (*models.Donation, error) {
	return r.getByIntentID(scope.Apply(r.db), intentID)
}

// GetByIntentIDForUpdate 加行锁读取（需在事务中使用）
func (r *GormDonationRepository) GetByIntentIDForUpdate(scope tenant.Scope, intentID string) (*models.Donation, error) {
	return r.getByIntentID(scope.Apply(r.db).Clauses(clause.Locking{Strength: "UPDATE"}), intentID)
}

func (r *GormDonationRepository) getByIntentID(query *gorm.DB, intentID string) (*models.Donation, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, query.Error
	}
	var donation models.Donation
	if err := query.Where("gateway_payment_intent_id = ?", intentID).First(&donation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &donation, nil
}

// Transition 条件状态迁移：仅当当前状态为 fromStatus 时更新，返回是否迁移成功
func (r *GormDonationRepository) Transition(scope tenant.Scope, id uint, fromStatus string, updates map[string]interface{}) (bool, error) {
	result := scope.Apply(r.db.Model(&models.Donation{})).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// List 捐赠列表
func (r *GormDonationRepository) List(scope tenant.Scope, filter DonationListFilter) ([]models.Donation, int64, error) {
	query := scope.Apply(r.db.Model(&models.Donation{}))

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CampaignID != 0 {
		query = query.Where("campaign_id = ?", filter.CampaignID)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.PaymentMode != "" {
		query = query.Where(jsonTextExpr(r.db, "metadata", "payment_mode")+" = ?", filter.PaymentMode)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		condition, count := buildLikeCondition(r.db, []string{"donor_email", "gateway_payment_intent_id"})
		query = query.Where(condition, repeatLikeArgs("%"+search+"%", count)...)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var donations []models.Donation
	if err := query.Order("id DESC").Find(&donations).Error; err != nil {
		return nil, 0, err
	}
	return donations, total, nil
}
