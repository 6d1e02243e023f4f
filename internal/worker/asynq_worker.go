package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/dujiao-next/donate/internal/logger"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/queue"
	"github.com/dujiao-next/donate/internal/service"

	"github.com/hibiken/asynq"
)

// ReceiptIssuer 收据签发
type ReceiptIssuer interface {
	Issue(ctx context.Context, tenantID, donationID uint) (*models.Receipt, error)
}

// Consumer 异步任务消费者
type Consumer struct {
	receipts ReceiptIssuer
}

// NewConsumer 创建消费者
func NewConsumer(receipts ReceiptIssuer) *Consumer {
	return &Consumer{receipts: receipts}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskDonationReceipt, c.handleDonationReceipt)
}

func (c *Consumer) handleDonationReceipt(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.receipts == nil || task == nil {
		logger.Debugw("worker_donation_receipt_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseDonationReceiptPayload(task)
	if err != nil {
		logger.Warnw("worker_donation_receipt_payload_invalid", "error", err)
		// 载荷损坏重试也无意义
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	log := logger.SW("tenant_id", payload.TenantID, "donation_id", payload.DonationID)

	receipt, err := c.receipts.Issue(ctx, payload.TenantID, payload.DonationID)
	switch {
	case err == nil:
		log.Infow("worker_donation_receipt_issued", "receipt_number", receipt.Number)
		return nil
	case errors.Is(err, service.ErrDonationNotFound):
		log.Warnw("worker_donation_receipt_skip_missing_donation")
		return nil
	case errors.Is(err, service.ErrReceiptNotReady):
		log.Warnw("worker_donation_receipt_skip_not_completed")
		return nil
	default:
		log.Warnw("worker_donation_receipt_failed", "error", err)
		return err
	}
}
