package repository

import (
	"errors"
	"strings"

	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/tenant"

	"gorm.io/gorm"
)

// CampaignRepository 活动数据访问接口
type CampaignRepository interface {
	Create(scope tenant.Scope, campaign *models.Campaign) error
	GetByID(scope tenant.Scope, id uint) (*models.Campaign, error)
	List(scope tenant.Scope, filter CampaignListFilter) ([]models.Campaign, int64, error)
	IncrementRaised(scope tenant.Scope, id uint, amount models.Money) error
	WithTx(tx *gorm.DB) *GormCampaignRepository
}

// GormCampaignRepository GORM 实现
type GormCampaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository 创建活动仓库
func NewCampaignRepository(db *gorm.DB) *GormCampaignRepository {
	return &GormCampaignRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCampaignRepository) WithTx(tx *gorm.DB) *GormCampaignRepository {
	if tx == nil {
		return r
	}
	return &GormCampaignRepository{db: tx}
}

// Create 创建活动
func (r *GormCampaignRepository) Create(scope tenant.Scope, campaign *models.Campaign) error {
	if !scope.Valid() {
		return tenant.ErrNoTenant
	}
	if campaign == nil {
		return errors.New("campaign is nil")
	}
	campaign.TenantID = scope.TenantID()
	return r.db.Create(campaign).Error
}

// GetByID 根据 ID 获取活动
func (r *GormCampaignRepository) GetByID(scope tenant.Scope, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := scope.Apply(r.db).First(&campaign, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// List 活动列表
func (r *GormCampaignRepository) List(scope tenant.Scope, filter CampaignListFilter) ([]models.Campaign, int64, error) {
	query := scope.Apply(r.db.Model(&models.Campaign{}))
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		condition, count := buildLikeCondition(r.db, []string{"title", "slug"})
		query = query.Where(condition, repeatLikeArgs("%"+search+"%", count)...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var campaigns []models.Campaign
	if err := query.Order("id DESC").Find(&campaigns).Error; err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// IncrementRaised 原子累加已筹金额（数据库侧 raised + ?）
func (r *GormCampaignRepository) IncrementRaised(scope tenant.Scope, id uint, amount models.Money) error {
	result := scope.Apply(r.db.Model(&models.Campaign{})).
		Where("id = ?", id).
		UpdateColumn("raised", gorm.Expr("raised + ?", amount.Decimal.Round(2).StringFixed(2)))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
