package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dujiao-next/donate/internal/constants"
	"github.com/dujiao-next/donate/internal/logger"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/payment/gateway"
	"github.com/dujiao-next/donate/internal/payment/stripe"
	"github.com/dujiao-next/donate/internal/repository"
	"github.com/dujiao-next/donate/internal/tenant"
)

// WebhookService 网关事件入口：验签、去重、分发到捐赠账本
type WebhookService struct {
	tenants   *TenantService
	router    *gateway.Router
	eventRepo repository.WebhookEventRepository
	donations *DonationService
	gateways  *GatewayService
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookService 创建 webhook 服务
func NewWebhookService(
	tenants *TenantService,
	router *gateway.Router,
	eventRepo repository.WebhookEventRepository,
	donations *DonationService,
	gateways *GatewayService,
	tolerance time.Duration,
) *WebhookService {
	return &WebhookService{
		tenants:   tenants,
		router:    router,
		eventRepo: eventRepo,
		donations: donations,
		gateways:  gateways,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// WebhookInput webhook 请求
type WebhookInput struct {
	TenantIdentifier string // 仅租户端点
	Payload          []byte
	Signature        string
	Context          context.Context
}

// WebhookResult 处理结果
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Duplicate bool   `json:"duplicate"`
	Ignored   bool   `json:"ignored"`
}

// HandlePlatform 处理平台端点事件，租户由支付意图 metadata 确定
func (s *WebhookService) HandlePlatform(input WebhookInput) (*WebhookResult, error) {
	ctx := contextOrBackground(input.Context)
	return s.handle(ctx, constants.WebhookSourcePlatform, nil, input)
}

// HandleTenant 处理 custom 模式租户自有端点事件
func (s *WebhookService) HandleTenant(input WebhookInput) (*WebhookResult, error) {
	ctx := contextOrBackground(input.Context)
	t, err := s.tenants.Lookup(ctx, input.TenantIdentifier)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			logger.Ctx(ctx).Warnw("payment_webhook_tenant_not_found", "identifier", input.TenantIdentifier)
			return nil, ErrSignatureInvalid
		}
		return nil, err
	}
	ctx = logger.WithFields(ctx, "tenant_id", t.ID)
	return s.handle(ctx, constants.WebhookSourceTenant, t, input)
}

func (s *WebhookService) handle(ctx context.Context, source string, owner *models.Tenant, input WebhookInput) (*WebhookResult, error) {
	secret, err := s.router.WebhookSecretFor(ctx, owner)
	if err != nil {
		logger.Ctx(ctx).Warnw("payment_webhook_secret_unavailable", "source", source, "error", err)
		return nil, ErrSignatureInvalid
	}
	event, err := stripe.VerifyWebhook(input.Payload, input.Signature, secret, s.tolerance)
	if err != nil {
		if errors.Is(err, stripe.ErrSignatureInvalid) {
			logger.Ctx(ctx).Warnw("payment_webhook_signature_invalid", "source", source, "error", err)
			return nil, ErrSignatureInvalid
		}
		logger.Ctx(ctx).Warnw("payment_webhook_payload_invalid", "source", source, "error", err)
		return nil, ErrWebhookPayloadInvalid
	}
	result := &WebhookResult{EventID: event.ID, EventType: event.Type}

	record := &models.WebhookEvent{
		Source:    source,
		EventID:   event.ID,
		EventType: event.Type,
		ObjectRef: event.ObjectRef(),
	}
	if owner != nil {
		ownerID := owner.ID
		record.TenantID = &ownerID
	}
	created, err := s.eventRepo.Record(record)
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := s.eventRepo.GetBySourceEvent(source, event.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Handled {
			logger.Ctx(ctx).Infow("payment_webhook_duplicate", "event_id", event.ID, "event_type", event.Type)
			result.Duplicate = true
			return result, nil
		}
		// 上次处理未完成，账本迁移本身幂等，允许重放
		if existing != nil {
			record = existing
		}
	}

	ignored, err := s.dispatch(ctx, owner, event)
	if err != nil {
		logger.Ctx(ctx).Warnw("payment_webhook_dispatch_failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"object_ref", event.ObjectRef(),
			"error", err,
		)
		return nil, err
	}
	result.Ignored = ignored
	if record.ID != 0 {
		if err := s.eventRepo.MarkHandled(record.ID, s.now()); err != nil {
			logger.Ctx(ctx).Warnw("payment_webhook_mark_handled_failed", "event_id", event.ID, "error", err)
		}
	}
	logger.Ctx(ctx).Infow("payment_webhook_handled",
		"source", source,
		"event_id", event.ID,
		"event_type", event.Type,
		"ignored", ignored,
	)
	return result, nil
}

func (s *WebhookService) dispatch(ctx context.Context, owner *models.Tenant, event *stripe.Event) (bool, error) {
	switch event.Type {
	case constants.EventPaymentIntentSucceeded,
		constants.EventPaymentIntentPaymentFailed,
		constants.EventPaymentIntentCanceled:
		intent := event.PaymentIntent
		if intent == nil || intent.ID == "" {
			return false, ErrWebhookPayloadInvalid
		}
		t, ok, err := s.resolveIntentTenant(ctx, owner, intent)
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
		tenantCtx := logger.WithFields(tenant.WithTenant(ctx, t), "tenant_id", t.ID)
		if event.Type == constants.EventPaymentIntentSucceeded {
			_, err = s.donations.Confirm(ConfirmDonationInput{
				PaymentIntentID: intent.ID,
				Intent:          intent,
				Context:         tenantCtx,
			})
			return false, err
		}
		_, err = s.donations.Fail(FailDonationInput{
			PaymentIntentID: intent.ID,
			Reason:          failureReason(event.Type, intent),
			Context:         tenantCtx,
		})
		return false, err
	case constants.EventAccountUpdated:
		if owner != nil {
			return true, nil
		}
		return false, s.gateways.SyncConnectAccount(ctx, event.AccountStatus)
	default:
		logger.Ctx(ctx).Debugw("payment_webhook_event_ignored", "event_id", event.ID, "event_type", event.Type)
		return true, nil
	}
}

// resolveIntentTenant 租户端点以端点租户为准；平台端点读取 metadata.tenant_id
func (s *WebhookService) resolveIntentTenant(ctx context.Context, owner *models.Tenant, intent *stripe.PaymentIntent) (*models.Tenant, bool, error) {
	raw := strings.TrimSpace(intent.Metadata["tenant_id"])
	if owner != nil {
		if raw != "" && raw != strconv.FormatUint(uint64(owner.ID), 10) {
			logger.Ctx(ctx).Warnw("payment_webhook_tenant_mismatch", "payment_intent_id", intent.ID, "metadata_tenant_id", raw)
			return nil, false, nil
		}
		return owner, true, nil
	}
	if strings.EqualFold(intent.Metadata["payment_mode"], constants.PaymentModeCustom) {
		// custom 模式的意图只认租户自有端点
		logger.Ctx(ctx).Warnw("payment_webhook_tenant_mode_mismatch", "payment_intent_id", intent.ID, "metadata_tenant_id", raw)
		return nil, false, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		logger.Ctx(ctx).Infow("payment_webhook_tenant_unresolved", "payment_intent_id", intent.ID)
		return nil, false, nil
	}
	t, err := s.tenants.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			logger.Ctx(ctx).Warnw("payment_webhook_tenant_unresolved", "payment_intent_id", intent.ID, "tenant_id", id)
			return nil, false, nil
		}
		return nil, false, err
	}
	return t, true, nil
}

func failureReason(eventType string, intent *stripe.PaymentIntent) string {
	if msg := strings.TrimSpace(intent.LastErrorMessage); msg != "" {
		return msg
	}
	if reason := strings.TrimSpace(intent.CancellationReason); reason != "" {
		return "canceled: " + reason
	}
	return eventType
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
