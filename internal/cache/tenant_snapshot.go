package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/donate/internal/models"
)

// TenantSnapshot 租户解析快照，仅缓存请求入口需要的字段
type TenantSnapshot struct {
	ID          uint   `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Status      string `json:"status"`
	PaymentMode string `json:"payment_mode"`
	Currency    string `json:"currency"`
	CachedAt    int64  `json:"cached_at"`
}

func tenantIdentifierKey(identifier string) string {
	return fmt.Sprintf("tenant:ident:%s", strings.ToLower(strings.TrimSpace(identifier)))
}

func tenantIndexKey(tenantID uint) string {
	return fmt.Sprintf("tenant:index:%d", tenantID)
}

// BuildTenantSnapshot 从租户模型构建快照
func BuildTenantSnapshot(t *models.Tenant) *TenantSnapshot {
	if t == nil {
		return nil
	}
	return &TenantSnapshot{
		ID:          t.ID,
		Slug:        t.Slug,
		Name:        t.Name,
		Domain:      t.Domain,
		Status:      t.Status,
		PaymentMode: t.PaymentMode,
		Currency:    t.Currency,
		CachedAt:    time.Now().Unix(),
	}
}

// Tenant 快照还原为模型
func (s *TenantSnapshot) Tenant() *models.Tenant {
	if s == nil {
		return nil
	}
	return &models.Tenant{
		ID:          s.ID,
		Slug:        s.Slug,
		Name:        s.Name,
		Domain:      s.Domain,
		Status:      s.Status,
		PaymentMode: s.PaymentMode,
		Currency:    s.Currency,
	}
}

// GetTenantSnapshot 按标识读取租户快照
func GetTenantSnapshot(ctx context.Context, identifier string) (*TenantSnapshot, error) {
	var snapshot TenantSnapshot
	hit, err := GetJSON(ctx, tenantIdentifierKey(identifier), &snapshot)
	if err != nil || !hit {
		return nil, err
	}
	return &snapshot, nil
}

// SetTenantSnapshot 按标识写入租户快照，并登记到租户索引便于整体失效
func SetTenantSnapshot(ctx context.Context, identifier string, snapshot *TenantSnapshot, ttl time.Duration) error {
	if snapshot == nil || snapshot.ID == 0 {
		return nil
	}
	key := tenantIdentifierKey(identifier)
	if err := SetJSON(ctx, key, snapshot, ttl); err != nil {
		return err
	}
	return AddToSet(ctx, tenantIndexKey(snapshot.ID), key, ttl)
}

// InvalidateTenant 删除租户全部标识下的快照
func InvalidateTenant(ctx context.Context, tenantID uint) error {
	if !Enabled() || tenantID == 0 {
		return nil
	}
	indexKey := tenantIndexKey(tenantID)
	keys, err := SetMembers(ctx, indexKey)
	if err != nil {
		return err
	}
	keys = append(keys, indexKey)
	return Del(ctx, keys...)
}
