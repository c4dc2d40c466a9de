package queue

import (
	"encoding/json"
	"fmt"

	"github.com/storefront-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPaymentIntentCancel 取消网关 PaymentIntent 任务
	TaskPaymentIntentCancel = constants.TaskPaymentIntentCancel
)

// PaymentIntentCancelPayload 取消 PaymentIntent 任务载荷
type PaymentIntentCancelPayload struct {
	OrderID  uint   `json:"order_id"`
	IntentID string `json:"intent_id"`
}

// NewPaymentIntentCancelTask 创建取消 PaymentIntent 任务
func NewPaymentIntentCancelTask(payload PaymentIntentCancelPayload) (*asynq.Task, error) {
	if payload.IntentID == "" {
		return nil, fmt.Errorf("intent id is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentIntentCancel, body), nil
}

// ParsePaymentIntentCancelPayload 解析取消 PaymentIntent 任务载荷
func ParsePaymentIntentCancelPayload(task *asynq.Task) (PaymentIntentCancelPayload, error) {
	var payload PaymentIntentCancelPayload
	if task == nil {
		return payload, fmt.Errorf("task is nil")
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}
