package repository

import (
	"strings"
	"time"

	"github.com/dujiao-next/donate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookEventRepository webhook 事件日志数据访问接口
type WebhookEventRepository interface {
	Record(event *models.WebhookEvent) (bool, error)
	GetBySourceEvent(source, eventID string) (*models.WebhookEvent, error)
	MarkHandled(id uint, processedAt time.Time) error
	WithTx(tx *gorm.DB) *GormWebhookEventRepository
}

// GormWebhookEventRepository GORM 实现
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository 创建 webhook 事件仓库
func NewWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// WithTx 绑定事务
func (r *GormWebhookEventRepository) WithTx(tx *gorm.DB) *GormWebhookEventRepository {
	if tx == nil {
		return r
	}
	return &GormWebhookEventRepository{db: tx}
}

// Record 写入事件日志；(source, event_id) 已存在时返回 false
func (r *GormWebhookEventRepository) Record(event *models.WebhookEvent) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetBySourceEvent 根据来源与事件 ID 获取事件日志
func (r *GormWebhookEventRepository) GetBySourceEvent(source, eventID string) (*models.WebhookEvent, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, nil
	}
	var event models.WebhookEvent
	result := r.db.Where("source = ? AND event_id = ?", source, eventID).Limit(1).Find(&event)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &event, nil
}

// MarkHandled 标记事件已处理
func (r *GormWebhookEventRepository) MarkHandled(id uint, processedAt time.Time) error {
	return r.db.Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"handled":      true,
			"processed_at": processedAt,
		}).Error
}
