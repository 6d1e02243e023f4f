package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dujiao-next/donate/internal/cache"
	"github.com/dujiao-next/donate/internal/constants"
	"github.com/dujiao-next/donate/internal/logger"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/repository"
)

// GatewayEvicter 网关客户端缓存失效
type GatewayEvicter interface {
	Evict(tenantID uint)
}

type tenantCacheEntry struct {
	tenant    models.Tenant
	expiresAt time.Time
}

// TenantService 租户目录：按标识解析租户，带进程内与 Redis 两级短时缓存
type TenantService struct {
	repo    repository.TenantRepository
	evicter GatewayEvicter
	ttl     time.Duration
	now     func() time.Time

	mu           sync.RWMutex
	entries      map[string]tenantCacheEntry
	keysByTenant map[uint]map[string]struct{}
	generation   uint64 // 每次 Invalidate 递增，读取期间发生失效的结果不回填
}

// NewTenantService 创建租户目录服务
func NewTenantService(repo repository.TenantRepository, evicter GatewayEvicter, ttl time.Duration) *TenantService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TenantService{
		repo:         repo,
		evicter:      evicter,
		ttl:          ttl,
		now:          time.Now,
		entries:      make(map[string]tenantCacheEntry),
		keysByTenant: make(map[uint]map[string]struct{}),
	}
}

// Resolve 解析租户：不存在返回 ErrTenantNotFound，非 active 返回 ErrTenantInactive
func (s *TenantService) Resolve(ctx context.Context, identifier string) (*models.Tenant, error) {
	t, err := s.Lookup(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, fmt.Errorf("%w: %s", ErrTenantInactive, t.Status)
	}
	return t, nil
}

// Lookup 解析租户但不校验状态（webhook 等需要处理停用租户的场景）
func (s *TenantService) Lookup(ctx context.Context, identifier string) (*models.Tenant, error) {
	key := normalizeTenantIdentifier(identifier)
	if key == "" {
		return nil, ErrTenantNotFound
	}
	if t, ok := s.getLocal(key); ok {
		return t, nil
	}
	gen := s.currentGeneration()

	snapshot, err := cache.GetTenantSnapshot(ctx, key)
	if err != nil {
		logger.Ctx(ctx).Warnw("tenant_cache_read_failed", "identifier", key, "error", err)
	}
	if snapshot != nil && snapshot.ID != 0 {
		t := snapshot.Tenant()
		s.putLocal(key, t, gen)
		return t, nil
	}

	t, err := s.repo.GetByIdentifier(key)
	if err != nil {
		logger.Ctx(ctx).Errorw("tenant_lookup_failed", "identifier", key, "error", err)
		return nil, err
	}
	if t == nil {
		return nil, ErrTenantNotFound
	}
	if !s.putLocal(key, t, gen) {
		logger.Ctx(ctx).Debugw("tenant_cache_fill_skipped", "identifier", key, "tenant_id", t.ID)
		return t, nil
	}
	if err := cache.SetTenantSnapshot(ctx, key, cache.BuildTenantSnapshot(t), s.ttl); err != nil {
		logger.Ctx(ctx).Warnw("tenant_cache_write_failed", "identifier", key, "tenant_id", t.ID, "error", err)
	}
	return t, nil
}

// GetByID 根据 ID 获取租户（不走缓存）
func (s *TenantService) GetByID(id uint) (*models.Tenant, error) {
	t, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTenantNotFound
	}
	return t, nil
}

// UpdateTenantInput 更新租户输入
type UpdateTenantInput struct {
	TenantID    uint
	Name        *string
	Status      *string
	PaymentMode *string
	Currency    *string
	Context     context.Context
}

// UpdateTenant 更新租户状态或收款模式，并使缓存与网关客户端失效
func (s *TenantService) UpdateTenant(input UpdateTenantInput) (*models.Tenant, error) {
	ctx := input.Context
	if ctx == nil {
		ctx = context.Background()
	}
	t, err := s.GetByID(input.TenantID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		t.Name = strings.TrimSpace(*input.Name)
	}
	if input.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*input.Status))
		switch status {
		case constants.TenantStatusActive, constants.TenantStatusSuspended, constants.TenantStatusDeleted:
			t.Status = status
		default:
			return nil, fmt.Errorf("%w: %s", ErrInvalidTenantStatus, *input.Status)
		}
	}
	if input.PaymentMode != nil {
		mode := strings.ToLower(strings.TrimSpace(*input.PaymentMode))
		switch mode {
		case constants.PaymentModePlatform, constants.PaymentModeCustom:
			t.PaymentMode = mode
		default:
			return nil, fmt.Errorf("%w: %s", ErrInvalidPaymentMode, *input.PaymentMode)
		}
	}
	if input.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*input.Currency))
		if len(currency) != 3 {
			return nil, fmt.Errorf("%w: currency must be a 3-letter code", ErrTenantUpdateFailed)
		}
		t.Currency = currency
	}
	if err := s.repo.Update(t); err != nil {
		logger.Ctx(ctx).Errorw("tenant_update_failed", "tenant_id", t.ID, "error", err)
		return nil, ErrTenantUpdateFailed
	}
	s.Invalidate(ctx, t.ID)
	logger.Ctx(ctx).Infow("tenant_updated", "tenant_id", t.ID, "status", t.Status, "payment_mode", t.PaymentMode)
	return t, nil
}

// Invalidate 清除租户的全部缓存，同时淘汰网关客户端
func (s *TenantService) Invalidate(ctx context.Context, tenantID uint) {
	s.mu.Lock()
	s.generation++
	for key := range s.keysByTenant[tenantID] {
		delete(s.entries, key)
	}
	delete(s.keysByTenant, tenantID)
	s.mu.Unlock()

	if err := cache.InvalidateTenant(ctx, tenantID); err != nil {
		logger.Ctx(ctx).Warnw("tenant_cache_invalidate_failed", "tenant_id", tenantID, "error", err)
	}
	if s.evicter != nil {
		s.evicter.Evict(tenantID)
	}
}

func (s *TenantService) getLocal(key string) (*models.Tenant, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		if current, exists := s.entries[key]; exists && !s.now().Before(current.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	copied := entry.tenant
	return &copied, true
}

func (s *TenantService) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// putLocal 仅在 gen 之后没有发生失效时写入
func (s *TenantService) putLocal(key string, t *models.Tenant, gen uint64) bool {
	if t == nil || t.ID == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.entries[key] = tenantCacheEntry{tenant: *t, expiresAt: s.now().Add(s.ttl)}
	keys, ok := s.keysByTenant[t.ID]
	if !ok {
		keys = make(map[string]struct{})
		s.keysByTenant[t.ID] = keys
	}
	keys[key] = struct{}{}
	return true
}

func normalizeTenantIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
