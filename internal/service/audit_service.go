package service

import (
	"context"
	"strings"
	"time"

	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/repository"
)

// AuditRecordInput 审计记录输入
type AuditRecordInput struct {
	OperatorUserID uint
	OperatorEmail  string
	TargetUserID   *uint
	Action         string
	Object         string
	Method         string
	RequestID      string
	Detail         models.JSON
	Context        context.Context
}

// AuditService 租户管理端审计服务
type AuditService struct {
	repo repository.AuditLogRepository
	now  func() time.Time
}

// NewAuditService 创建审计服务
func NewAuditService(repo repository.AuditLogRepository) *AuditService {
	return &AuditService{repo: repo, now: time.Now}
}

// Record 在当前租户下记录一条审计日志
func (s *AuditService) Record(input AuditRecordInput) error {
	if s == nil || s.repo == nil {
		return nil
	}
	if input.OperatorUserID == 0 || strings.TrimSpace(input.Action) == "" {
		return nil
	}
	_, scope, err := currentTenant(contextOrBackground(input.Context))
	if err != nil {
		return err
	}
	item := &models.AuditLog{
		OperatorUserID: input.OperatorUserID,
		OperatorEmail:  strings.ToLower(strings.TrimSpace(input.OperatorEmail)),
		TargetUserID:   input.TargetUserID,
		Action:         strings.TrimSpace(input.Action),
		Object:         strings.TrimSpace(input.Object),
		Method:         strings.ToUpper(strings.TrimSpace(input.Method)),
		RequestID:      strings.TrimSpace(input.RequestID),
		DetailJSON:     input.Detail,
		CreatedAt:      s.now(),
	}
	return s.repo.Create(scope, item)
}

// List 查询当前租户的审计日志
func (s *AuditService) List(ctx context.Context, filter repository.AuditLogListFilter) ([]models.AuditLog, int64, error) {
	if s == nil || s.repo == nil {
		return []models.AuditLog{}, 0, nil
	}
	_, scope, err := currentTenant(contextOrBackground(ctx))
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(scope, filter)
}
