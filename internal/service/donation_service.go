package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dujiao-next/donate/internal/constants"
	"github.com/dujiao-next/donate/internal/logger"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/payment/gateway"
	"github.com/dujiao-next/donate/internal/payment/stripe"
	"github.com/dujiao-next/donate/internal/queue"
	"github.com/dujiao-next/donate/internal/repository"
	"github.com/dujiao-next/donate/internal/tenant"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReceiptEnqueuer 收据任务投递
type ReceiptEnqueuer interface {
	EnqueueDonationReceipt(payload queue.DonationReceiptPayload, opts ...asynq.Option) error
}

// DonationService 捐赠账本：创建支付意图、确认/失败终态迁移、查询
type DonationService struct {
	donationRepo repository.DonationRepository
	campaignRepo repository.CampaignRepository
	userRepo     repository.UserRepository
	router       *gateway.Router
	captcha      *CaptchaService
	receipts     ReceiptEnqueuer
	now          func() time.Time
}

// NewDonationService 创建捐赠服务
func NewDonationService(
	donationRepo repository.DonationRepository,
	campaignRepo repository.CampaignRepository,
	userRepo repository.UserRepository,
	router *gateway.Router,
	captcha *CaptchaService,
	receipts ReceiptEnqueuer,
) *DonationService {
	return &DonationService{
		donationRepo: donationRepo,
		campaignRepo: campaignRepo,
		userRepo:     userRepo,
		router:       router,
		captcha:      captcha,
		receipts:     receipts,
		now:          time.Now,
	}
}

func donationLogger(ctx context.Context, kv ...interface{}) *zap.SugaredLogger {
	return logger.Ctx(ctx, kv...)
}

// CreateDonationInput 创建捐赠输入
type CreateDonationInput struct {
	UserID      uint // 已登录捐赠人，0 表示游客
	DonorEmail  string
	DonorName   string
	Amount      decimal.Decimal
	Currency    string
	CampaignID  uint
	IsAnonymous bool
	Source      string
	Message     string
	Captcha     CaptchaVerifyPayload
	Context     context.Context
}

// CreateDonationResult 创建结果，ClientSecret 交给前端完成支付
type CreateDonationResult struct {
	Donation        *models.Donation `json:"donation"`
	PaymentIntentID string           `json:"payment_intent_id"`
	ClientSecret    string           `json:"client_secret"`
	PublishableKey  string           `json:"publishable_key"`
}

// Create 为当前租户创建支付意图并写入 pending 捐赠
func (s *DonationService) Create(input CreateDonationInput) (*CreateDonationResult, error) {
	ctx := input.Context
	t, scope, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}
	amount := input.Amount
	if err := s.router.ValidateAmount(amount); err != nil {
		return nil, err
	}
	// 超出币种精度的金额直接拒绝，不做舍入
	if _, err := stripe.ToMinorAmount(amount, s.router.ResolveCurrency(t, input.Currency)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAmountOutOfRange, err)
	}
	source, err := normalizeDonationSource(input.Source)
	if err != nil {
		return nil, err
	}

	donor, err := s.resolveDonor(input)
	if err != nil {
		return nil, err
	}

	var campaignID *uint
	if input.CampaignID > 0 {
		campaign, err := s.campaignRepo.GetByID(scope, input.CampaignID)
		if err != nil {
			return nil, err
		}
		if campaign == nil {
			return nil, ErrCampaignNotFound
		}
		if !campaign.IsOpen(s.now()) {
			return nil, ErrCampaignInactive
		}
		id := campaign.ID
		campaignID = &id
	}

	metadata := map[string]string{
		"donation_source": source,
		"user_id":         strconv.FormatUint(uint64(donor.ID), 10),
	}
	if campaignID != nil {
		metadata["campaign_id"] = strconv.FormatUint(uint64(*campaignID), 10)
	}
	description := fmt.Sprintf("Donation to %s", t.Name)
	result, err := s.router.CreatePaymentIntent(ctx, t, gateway.IntentRequest{
		Amount:         amount,
		Currency:       input.Currency,
		Description:    description,
		ReceiptEmail:   donor.Email,
		Metadata:       metadata,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		donationLogger(ctx, "amount", amount.StringFixed(2)).Warnw("donation_intent_create_failed", "error", err)
		return nil, err
	}

	userID := donor.ID
	donation := &models.Donation{
		UserID:                 &userID,
		CampaignID:             campaignID,
		Amount:                 models.NewMoneyFromDecimal(amount),
		Currency:               result.Currency,
		PlatformFee:            models.NewMoneyFromDecimal(result.PlatformFee),
		Status:                 constants.DonationStatusPending,
		GatewayPaymentIntentID: result.Intent.ID,
		IsAnonymous:            input.IsAnonymous,
		Source:                 source,
		DonorEmail:             donor.Email,
		Message:                strings.TrimSpace(input.Message),
		Metadata: models.JSON{
			"payment_mode": result.Mode,
		},
	}
	if err := s.donationRepo.Create(scope, donation); err != nil {
		// 意图已创建但账本未落库，需人工对账
		donationLogger(ctx,
			"payment_intent_id", result.Intent.ID,
			"amount", amount.StringFixed(2),
		).Errorw("donation_persist_failed_after_intent", "error", err)
		return nil, ErrDonationCreateFailed
	}

	donationLogger(ctx,
		"donation_id", donation.ID,
		"payment_intent_id", donation.GatewayPaymentIntentID,
		"payment_mode", result.Mode,
		"amount", amount.StringFixed(2),
		"currency", donation.Currency,
		"platform_fee", donation.PlatformFee.StringFixed(2),
	).Infow("donation_created")

	return &CreateDonationResult{
		Donation:        donation,
		PaymentIntentID: result.Intent.ID,
		ClientSecret:    result.Intent.ClientSecret,
		PublishableKey:  result.PublishableKey,
	}, nil
}

func (s *DonationService) resolveDonor(input CreateDonationInput) (*models.User, error) {
	if input.UserID > 0 {
		user, err := s.userRepo.GetByID(input.UserID)
		if err != nil {
			return nil, err
		}
		if user == nil || !strings.EqualFold(user.Status, constants.UserStatusActive) {
			return nil, ErrDonorUnavailable
		}
		return user, nil
	}

	if strings.TrimSpace(input.DonorEmail) == "" {
		return nil, ErrDonorEmailRequired
	}
	email, err := normalizeEmail(input.DonorEmail)
	if err != nil {
		return nil, err
	}
	if err := s.captcha.Verify(constants.CaptchaSceneGuestDonation, input.Captcha); err != nil {
		return nil, err
	}
	user, err := ensureDonorUser(s.userRepo, email, input.DonorName)
	if err != nil {
		return nil, err
	}
	if user == nil || !strings.EqualFold(user.Status, constants.UserStatusActive) {
		return nil, ErrDonorUnavailable
	}
	return user, nil
}

// ConfirmDonationInput 确认捐赠输入；Intent 非空时（已验签的 webhook）不再查询网关
type ConfirmDonationInput struct {
	PaymentIntentID string
	Intent          *stripe.PaymentIntent
	Context         context.Context
}

// Confirm 确认支付意图已成功并把捐赠迁移到 completed，重复调用幂等
func (s *DonationService) Confirm(input ConfirmDonationInput) (*models.Donation, error) {
	ctx := input.Context
	t, scope, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}
	intentID := strings.TrimSpace(input.PaymentIntentID)
	if intentID == "" && input.Intent != nil {
		intentID = input.Intent.ID
	}
	if intentID == "" {
		return nil, ErrDonationNotFound
	}

	donation, err := s.donationRepo.GetByIntentID(scope, intentID)
	if err != nil {
		return nil, err
	}
	if donation == nil {
		return nil, ErrDonationNotFound
	}
	switch donation.Status {
	case constants.DonationStatusCompleted:
		donationLogger(ctx, "donation_id", donation.ID, "payment_intent_id", intentID).Infow("donation_confirm_idempotent")
		return donation, nil
	case constants.DonationStatusFailed:
		donationLogger(ctx, "donation_id", donation.ID, "payment_intent_id", intentID).Infow("donation_confirm_after_failed_ignored")
		return donation, nil
	}

	intent := input.Intent
	if intent == nil || intent.ID != intentID {
		intent, err = s.router.RetrievePaymentIntent(ctx, t, intentID)
		if err != nil {
			return nil, err
		}
	}
	if !intent.Succeeded() {
		return nil, fmt.Errorf("%w: status=%s", ErrPaymentNotSucceeded, intent.Status)
	}

	moved, err := s.completeDonation(ctx, scope, donation, intent)
	if err != nil {
		return nil, err
	}
	if moved {
		s.enqueueReceipt(ctx, scope, donation.ID)
	}
	return s.reload(scope, donation.ID)
}

// completeDonation 在事务内做 pending -> completed 条件迁移并累加活动金额
func (s *DonationService) completeDonation(ctx context.Context, scope tenant.Scope, donation *models.Donation, intent *stripe.PaymentIntent) (bool, error) {
	now := s.now()
	paymentMethod := strings.TrimSpace(intent.PaymentMethodType)
	if paymentMethod == "" {
		paymentMethod = strings.TrimSpace(intent.PaymentMethod)
	}
	moved := false
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.donationRepo.WithTx(tx).Transition(scope, donation.ID, constants.DonationStatusPending, map[string]interface{}{
			"status":         constants.DonationStatusCompleted,
			"payment_method": paymentMethod,
			"completed_at":   now,
			"updated_at":     now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		moved = true
		if donation.CampaignID == nil {
			return nil
		}
		if err := s.campaignRepo.WithTx(tx).IncrementRaised(scope, *donation.CampaignID, donation.Amount); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				donationLogger(ctx, "donation_id", donation.ID, "campaign_id", *donation.CampaignID).Warnw("donation_campaign_missing_on_complete")
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		donationLogger(ctx, "donation_id", donation.ID).Errorw("donation_complete_failed", "error", err)
		return false, ErrDonationUpdateFailed
	}
	if moved {
		donationLogger(ctx,
			"donation_id", donation.ID,
			"payment_intent_id", donation.GatewayPaymentIntentID,
			"amount", donation.Amount.StringFixed(2),
			"payment_method", paymentMethod,
		).Infow("donation_completed")
	} else {
		donationLogger(ctx, "donation_id", donation.ID).Infow("donation_confirm_idempotent")
	}
	return moved, nil
}

// FailDonationInput 标记失败输入
type FailDonationInput struct {
	PaymentIntentID string
	Reason          string
	Context         context.Context
}

// Fail 把 pending 捐赠迁移到 failed；终态记录原样返回
func (s *DonationService) Fail(input FailDonationInput) (*models.Donation, error) {
	ctx := input.Context
	_, scope, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}
	donation, err := s.donationRepo.GetByIntentID(scope, strings.TrimSpace(input.PaymentIntentID))
	if err != nil {
		return nil, err
	}
	if donation == nil {
		return nil, ErrDonationNotFound
	}
	if donation.Status != constants.DonationStatusPending {
		donationLogger(ctx, "donation_id", donation.ID, "status", donation.Status).Infow("donation_fail_ignored_terminal")
		return donation, nil
	}
	now := s.now()
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "payment_failed"
	}
	moved, err := s.donationRepo.Transition(scope, donation.ID, constants.DonationStatusPending, map[string]interface{}{
		"status":         constants.DonationStatusFailed,
		"failure_reason": reason,
		"failed_at":      now,
		"updated_at":     now,
	})
	if err != nil {
		donationLogger(ctx, "donation_id", donation.ID).Errorw("donation_fail_update_failed", "error", err)
		return nil, ErrDonationUpdateFailed
	}
	if moved {
		donationLogger(ctx, "donation_id", donation.ID, "reason", reason).Infow("donation_failed")
	}
	return s.reload(scope, donation.ID)
}

// Get 查询当前租户下的捐赠
func (s *DonationService) Get(ctx context.Context, id uint) (*models.Donation, error) {
	_, scope, err := currentTenant(ctx)
	if err != nil {
		return nil, err
	}
	return s.reload(scope, id)
}

// List 分页查询当前租户的捐赠
func (s *DonationService) List(ctx context.Context, filter repository.DonationListFilter) ([]models.Donation, int64, error) {
	_, scope, err := currentTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	return s.donationRepo.List(scope, filter)
}

// ListCampaigns 分页查询当前租户的活动
func (s *DonationService) ListCampaigns(ctx context.Context, filter repository.CampaignListFilter) ([]models.Campaign, int64, error) {
	_, scope, err := currentTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.campaignRepo.List(scope, filter)
}

func (s *DonationService) reload(scope tenant.Scope, id uint) (*models.Donation, error) {
	donation, err := s.donationRepo.GetByID(scope, id)
	if err != nil {
		return nil, err
	}
	if donation == nil {
		return nil, ErrDonationNotFound
	}
	return donation, nil
}

func (s *DonationService) enqueueReceipt(ctx context.Context, scope tenant.Scope, donationID uint) {
	if s.receipts == nil {
		return
	}
	payload := queue.DonationReceiptPayload{TenantID: scope.TenantID(), DonationID: donationID}
	if err := s.receipts.EnqueueDonationReceipt(payload); err != nil {
		donationLogger(ctx, "donation_id", donationID).Warnw("donation_receipt_enqueue_failed", "error", err)
	}
}

func normalizeDonationSource(source string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(source))
	switch normalized {
	case "":
		return constants.DonationSourcePlatform, nil
	case constants.DonationSourcePlatform, constants.DonationSourceCustomSite, constants.DonationSourceAPI, constants.DonationSourceImport:
		return normalized, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidSource, source)
	}
}
