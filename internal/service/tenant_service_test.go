package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/dujiao-next/donate/internal/constants"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/repository"
)

func TestTenantResolveByIdentifier(t *testing.T) {
	env := newServiceTestEnv(t, "tenant_resolve")
	ctx := context.Background()

	bySlug, err := env.tenants.Resolve(ctx, "ALPHA")
	if err != nil {
		t.Fatalf("resolve by slug failed: %v", err)
	}
	if bySlug.ID != env.platformTenant.ID {
		t.Fatalf("unexpected tenant: %+v", bySlug)
	}
	byID, err := env.tenants.Resolve(ctx, strconv.FormatUint(uint64(env.customTenant.ID), 10))
	if err != nil {
		t.Fatalf("resolve by id failed: %v", err)
	}
	if byID.Slug != "beta" {
		t.Fatalf("unexpected tenant: %+v", byID)
	}
	if _, err := env.tenants.Resolve(ctx, "missing"); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected tenant not found, got %v", err)
	}
	if _, err := env.tenants.Resolve(ctx, "  "); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected tenant not found for blank identifier, got %v", err)
	}
}

func TestTenantResolveCachesUntilInvalidated(t *testing.T) {
	env := newServiceTestEnv(t, "tenant_cache")
	ctx := context.Background()

	if _, err := env.tenants.Resolve(ctx, "alpha"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	// 绕过服务直接改库，缓存期内仍返回旧快照
	if err := env.db.Model(env.platformTenant).Update("status", constants.TenantStatusSuspended).Error; err != nil {
		t.Fatalf("suspend tenant failed: %v", err)
	}
	if _, err := env.tenants.Resolve(ctx, "alpha"); err != nil {
		t.Fatalf("expected cached active tenant, got %v", err)
	}

	env.tenants.Invalidate(ctx, env.platformTenant.ID)
	if _, err := env.tenants.Resolve(ctx, "alpha"); !errors.Is(err, ErrTenantInactive) {
		t.Fatalf("expected tenant inactive after invalidation, got %v", err)
	}
	found, err := env.tenants.Lookup(ctx, "alpha")
	if err != nil || found.Status != constants.TenantStatusSuspended {
		t.Fatalf("lookup should return suspended tenant, got %+v err=%v", found, err)
	}
}

func TestTenantUpdateInvalidatesCacheAndGateway(t *testing.T) {
	env := newServiceTestEnv(t, "tenant_update")
	ctx := context.Background()

	if _, err := env.router.ClientFor(ctx, env.customTenant); err != nil {
		t.Fatalf("client for failed: %v", err)
	}
	if !env.router.Cached(env.customTenant.ID) {
		t.Fatalf("expected cached client")
	}
	if _, err := env.tenants.Resolve(ctx, "beta"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	mode := constants.PaymentModePlatform
	updated, err := env.tenants.UpdateTenant(UpdateTenantInput{TenantID: env.customTenant.ID, PaymentMode: &mode, Context: ctx})
	if err != nil {
		t.Fatalf("update tenant failed: %v", err)
	}
	if updated.PaymentMode != constants.PaymentModePlatform {
		t.Fatalf("unexpected mode: %s", updated.PaymentMode)
	}
	if env.router.Cached(env.customTenant.ID) {
		t.Fatalf("expected gateway client evicted")
	}
	resolved, err := env.tenants.Resolve(ctx, "beta")
	if err != nil || resolved.PaymentMode != constants.PaymentModePlatform {
		t.Fatalf("expected fresh tenant after update, got %+v err=%v", resolved, err)
	}

	bad := "paypal"
	if _, err := env.tenants.UpdateTenant(UpdateTenantInput{TenantID: env.customTenant.ID, PaymentMode: &bad}); !errors.Is(err, ErrInvalidPaymentMode) {
		t.Fatalf("expected invalid payment mode, got %v", err)
	}
	status := "archived"
	if _, err := env.tenants.UpdateTenant(UpdateTenantInput{TenantID: env.customTenant.ID, Status: &status}); !errors.Is(err, ErrInvalidTenantStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

// afterReadTenantRepo 在读出租户后执行一次 afterRead，模拟读与回填之间插入的更新
type afterReadTenantRepo struct {
	repository.TenantRepository
	afterRead func()
}

func (r *afterReadTenantRepo) GetByIdentifier(identifier string) (*models.Tenant, error) {
	t, err := r.TenantRepository.GetByIdentifier(identifier)
	if r.afterRead != nil {
		hook := r.afterRead
		r.afterRead = nil
		hook()
	}
	return t, err
}

func TestTenantLookupDoesNotCacheAcrossInvalidate(t *testing.T) {
	env := newServiceTestEnv(t, "tenant_cache_race")
	ctx := context.Background()

	repo := &afterReadTenantRepo{TenantRepository: env.tenantRepo}
	svc := NewTenantService(repo, env.router, time.Minute)
	repo.afterRead = func() {
		if err := env.db.Model(&models.Tenant{}).Where("id = ?", env.platformTenant.ID).Update("status", constants.TenantStatusSuspended).Error; err != nil {
			t.Fatalf("suspend tenant failed: %v", err)
		}
		svc.Invalidate(ctx, env.platformTenant.ID)
	}

	stale, err := svc.Lookup(ctx, "alpha")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stale.Status != constants.TenantStatusActive {
		t.Fatalf("first lookup should return the row read before the update, got %s", stale.Status)
	}
	if _, ok := svc.getLocal("alpha"); ok {
		t.Fatalf("row read before invalidate must not be cached")
	}
	if _, err := svc.Resolve(ctx, "alpha"); !errors.Is(err, ErrTenantInactive) {
		t.Fatalf("expected tenant inactive after racing invalidate, got %v", err)
	}
	if _, ok := svc.getLocal("alpha"); !ok {
		t.Fatalf("fresh lookup should fill the cache")
	}
}
