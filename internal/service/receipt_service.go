package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/donate/internal/constants"
	"github.com/dujiao-next/donate/internal/logger"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/repository"
	"github.com/dujiao-next/donate/internal/tenant"

	"github.com/google/uuid"
)

// ReceiptService 捐赠收据
type ReceiptService struct {
	receiptRepo  repository.ReceiptRepository
	donationRepo repository.DonationRepository
	now          func() time.Time
}

// NewReceiptService 创建收据服务
func NewReceiptService(receiptRepo repository.ReceiptRepository, donationRepo repository.DonationRepository) *ReceiptService {
	return &ReceiptService{receiptRepo: receiptRepo, donationRepo: donationRepo, now: time.Now}
}

// Issue 为已完成的捐赠开具收据，同一捐赠只会有一张
func (s *ReceiptService) Issue(ctx context.Context, tenantID, donationID uint) (*models.Receipt, error) {
	scope, err := tenant.NewScope(tenantID)
	if err != nil {
		return nil, err
	}
	existing, err := s.receiptRepo.GetByDonationID(scope, donationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	donation, err := s.donationRepo.GetByID(scope, donationID)
	if err != nil {
		return nil, err
	}
	if donation == nil {
		return nil, ErrDonationNotFound
	}
	if donation.Status != constants.DonationStatusCompleted {
		return nil, fmt.Errorf("%w: donation status=%s", ErrReceiptNotReady, donation.Status)
	}

	issuedAt := s.now()
	receipt := &models.Receipt{
		DonationID: donation.ID,
		Number:     buildReceiptNumber(tenantID, issuedAt),
		Amount:     donation.Amount,
		Currency:   donation.Currency,
		Email:      donation.DonorEmail,
		IssuedAt:   issuedAt,
	}
	created, err := s.receiptRepo.CreateIfAbsent(scope, receipt)
	if err != nil {
		return nil, err
	}
	if !created {
		return s.receiptRepo.GetByDonationID(scope, donationID)
	}
	logger.Ctx(ctx,
		"tenant_id", tenantID,
		"donation_id", donationID,
		"receipt_number", receipt.Number,
	).Infow("donation_receipt_issued")
	return receipt, nil
}

// buildReceiptNumber R-<租户>-<年月>-<随机8位>
func buildReceiptNumber(tenantID uint, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s-%s", constants.ReceiptNumberPrefix, tenantID, at.Format("200601"), strings.ToUpper(suffix))
}
