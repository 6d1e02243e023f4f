package queue

import (
	"encoding/json"
	"fmt"

	"github.com/dujiao-next/donate/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskDonationReceipt 捐赠收据生成任务
	TaskDonationReceipt = constants.TaskDonationReceipt
)

// DonationReceiptPayload 捐赠收据任务载荷
type DonationReceiptPayload struct {
	TenantID   uint `json:"tenant_id"`
	DonationID uint `json:"donation_id"`
}

// NewDonationReceiptTask 创建捐赠收据任务
func NewDonationReceiptTask(payload DonationReceiptPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDonationReceipt, body), nil
}

// ParseDonationReceiptPayload 解析捐赠收据任务载荷
func ParseDonationReceiptPayload(task *asynq.Task) (DonationReceiptPayload, error) {
	var payload DonationReceiptPayload
	if task == nil {
		return payload, fmt.Errorf("task is nil")
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	if payload.TenantID == 0 || payload.DonationID == 0 {
		return payload, fmt.Errorf("invalid receipt payload: tenant_id=%d donation_id=%d", payload.TenantID, payload.DonationID)
	}
	return payload, nil
}
