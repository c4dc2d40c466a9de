package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/provider"
	"github.com/storefront-next/internal/queue"
	"github.com/storefront-next/internal/service"

	"github.com/hibiken/asynq"
)

// IntentCanceller 撤销网关支付意图
type IntentCanceller interface {
	CancelIntent(ctx context.Context, orderID uint, intentID string) error
}

// Consumer 异步任务消费者
type Consumer struct {
	PaymentService IntentCanceller
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	if c == nil {
		return &Consumer{}
	}
	return &Consumer{
		PaymentService: c.PaymentService,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentIntentCancel, c.handlePaymentIntentCancel)
}

func (c *Consumer) handlePaymentIntentCancel(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.PaymentService == nil {
		logger.Debugw("worker_intent_cancel_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParsePaymentIntentCancelPayload(task)
	if err != nil {
		logger.Warnw("worker_intent_cancel_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.OrderID == 0 || payload.IntentID == "" {
		logger.Debugw("worker_intent_cancel_skip_invalid_payload", "order_id", payload.OrderID, "intent_id", payload.IntentID)
		return nil
	}

	err = c.PaymentService.CancelIntent(ctx, payload.OrderID, payload.IntentID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrInvalidInput):
		logger.Debugw("worker_intent_cancel_skip", "order_id", payload.OrderID, "error", err)
		return nil
	default:
		logger.Warnw("worker_intent_cancel_failed",
			"order_id", payload.OrderID,
			"intent_id", payload.IntentID,
			"error", err,
		)
		return err
	}
}
