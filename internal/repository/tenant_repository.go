package repository

import (
	"errors"
	"strconv"
	"strings"

	"github.com/dujiao-next/donate/internal/models"

	"gorm.io/gorm"
)

// TenantRepository 租户数据访问接口
type TenantRepository interface {
	GetByID(id uint) (*models.Tenant, error)
	GetBySlug(slug string) (*models.Tenant, error)
	GetByDomain(domain string) (*models.Tenant, error)
	GetByIdentifier(identifier string) (*models.Tenant, error)
	Create(tenant *models.Tenant) error
	Update(tenant *models.Tenant) error
	List(filter TenantListFilter) ([]models.Tenant, int64, error)
	WithTx(tx *gorm.DB) *GormTenantRepository
}

// GormTenantRepository GORM 实现
type GormTenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository 创建租户仓库
func NewTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTenantRepository) WithTx(tx *gorm.DB) *GormTenantRepository {
	if tx == nil {
		return r
	}
	return &GormTenantRepository{db: tx}
}

// GetByID 根据 ID 获取租户
func (r *GormTenantRepository) GetByID(id uint) (*models.Tenant, error) {
	if id == 0 {
		return nil, nil
	}
	var tenant models.Tenant
	if err := r.db.First(&tenant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tenant, nil
}

// GetBySlug 根据标识获取租户
func (r *GormTenantRepository) GetBySlug(slug string) (*models.Tenant, error) {
	return r.firstWhere("slug = ?", strings.ToLower(strings.TrimSpace(slug)))
}

// GetByDomain 根据自定义域名获取租户
func (r *GormTenantRepository) GetByDomain(domain string) (*models.Tenant, error) {
	return r.firstWhere("domain = ?", strings.ToLower(strings.TrimSpace(domain)))
}

// GetByIdentifier 按标识解析租户：数字优先按 ID，其次 slug，最后自定义域名
func (r *GormTenantRepository) GetByIdentifier(identifier string) (*models.Tenant, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}
	if id, err := strconv.ParseUint(identifier, 10, 64); err == nil && id > 0 {
		tenant, err := r.GetByID(uint(id))
		if err != nil || tenant != nil {
			return tenant, err
		}
	}
	tenant, err := r.GetBySlug(identifier)
	if err != nil || tenant != nil {
		return tenant, err
	}
	if strings.Contains(identifier, ".") {
		return r.GetByDomain(identifier)
	}
	return nil, nil
}

func (r *GormTenantRepository) firstWhere(query string, arg interface{}) (*models.Tenant, error) {
	if s, ok := arg.(string); ok && s == "" {
		return nil, nil
	}
	var tenant models.Tenant
	result := r.db.Where(query, arg).Limit(1).Find(&tenant)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &tenant, nil
}

// Create 创建租户
func (r *GormTenantRepository) Create(tenant *models.Tenant) error {
	return r.db.Create(tenant).Error
}

// Update 更新租户
func (r *GormTenantRepository) Update(tenant *models.Tenant) error {
	return r.db.Save(tenant).Error
}

// List 租户列表
func (r *GormTenantRepository) List(filter TenantListFilter) ([]models.Tenant, int64, error) {
	query := r.db.Model(&models.Tenant{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentMode != "" {
		query = query.Where("payment_mode = ?", filter.PaymentMode)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var tenants []models.Tenant
	if err := query.Order("id DESC").Find(&tenants).Error; err != nil {
		return nil, 0, err
	}
	return tenants, total, nil
}
