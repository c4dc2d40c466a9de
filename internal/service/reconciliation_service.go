package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storefront-next/internal/cache"
	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/repository"
)

// 回调处理结果
const (
	ReconcileOutcomeApplied      = "applied"
	ReconcileOutcomeNoop         = "noop"
	ReconcileOutcomeDuplicate    = "duplicate"
	ReconcileOutcomeIgnored      = "ignored"
	ReconcileOutcomeUnknownOrder = "unknown_order"
	ReconcileOutcomeConflict     = "conflict"
)

// EventDeduper 网关事件去重
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// ReconcileResult 回调处理结果
type ReconcileResult struct {
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
	OrderID   uint   `json:"orderId,omitempty"`
	Status    string `json:"status,omitempty"`
	Outcome   string `json:"outcome"`
}

// ReconciliationService 网关回调对账
type ReconciliationService struct {
	gateway      PaymentGateway
	orderService *OrderService
	paymentRepo  repository.PaymentRepository
	deduper      EventDeduper
	now          func() time.Time
}

// NewReconciliationService 创建对账服务
func NewReconciliationService(gateway PaymentGateway, orderService *OrderService, paymentRepo repository.PaymentRepository, deduper EventDeduper) *ReconciliationService {
	return &ReconciliationService{
		gateway:      gateway,
		orderService: orderService,
		paymentRepo:  paymentRepo,
		deduper:      deduper,
		now:          time.Now,
	}
}

// HandleNotification 验签后把网关结果应用到订单；验签失败返回 InvalidSignature/MalformedPayload，
// 存储失败返回错误以便网关重试，其余情况均确认接收
func (s *ReconciliationService) HandleNotification(ctx context.Context, raw []byte, signatureHeader string) (*ReconcileResult, error) {
	event, err := s.gateway.VerifyNotification(raw, signatureHeader)
	if err != nil {
		logger.Warnw("reconcile_verify_failed", "error", err)
		return nil, err
	}
	result := &ReconcileResult{EventID: event.ID, EventType: event.Type}

	if s.seen(ctx, event.ID) {
		logger.Infow("reconcile_duplicate_event", "event_id", event.ID, "event_type", event.Type)
		result.Outcome = ReconcileOutcomeDuplicate
		return result, nil
	}

	target, ok := targetStatusForEvent(event.Type)
	if !ok {
		logger.Debugw("reconcile_event_ignored", "event_id", event.ID, "event_type", event.Type)
		result.Outcome = ReconcileOutcomeIgnored
		s.mark(ctx, event.ID)
		return result, nil
	}

	orderID := event.OrderID()
	result.OrderID = orderID
	if !event.ConfirmsOutcome(target) {
		logger.Warnw("reconcile_event_status_mismatch",
			"event_id", event.ID,
			"event_type", event.Type,
			"object_type", event.ObjectType,
			"payment_status", event.Status,
			"order_id", orderID,
		)
		result.Outcome = ReconcileOutcomeIgnored
		s.mark(ctx, event.ID)
		return result, nil
	}
	if orderID == 0 {
		logger.Warnw("reconcile_order_missing", "event_id", event.ID, "intent_id", event.IntentID)
		result.Outcome = ReconcileOutcomeUnknownOrder
		s.mark(ctx, event.ID)
		return result, nil
	}

	transition, err := s.orderService.ApplyGatewayOutcome(orderID, target, event.Type)
	switch {
	case errors.Is(err, ErrOrderNotFound):
		logger.Warnw("reconcile_order_not_found", "event_id", event.ID, "order_id", orderID)
		result.Outcome = ReconcileOutcomeUnknownOrder
		s.mark(ctx, event.ID)
		return result, nil
	case errors.Is(err, ErrInvalidTransition):
		logger.Warnw("reconcile_conflict",
			"event_id", event.ID,
			"event_type", event.Type,
			"order_id", orderID,
			"target", target,
		)
		result.Outcome = ReconcileOutcomeConflict
		s.mark(ctx, event.ID)
		return result, nil
	case err != nil:
		logger.Errorw("reconcile_apply_failed", "event_id", event.ID, "order_id", orderID, "error", err)
		return nil, err
	}

	result.Status = transition.Order.Status
	result.Outcome = ReconcileOutcomeNoop
	if transition.Applied {
		result.Outcome = ReconcileOutcomeApplied
	}

	if err := s.recordPayment(orderID, event, target); err != nil {
		logger.Errorw("reconcile_payment_update_failed", "event_id", event.ID, "order_id", orderID, "error", err)
		return nil, err
	}
	s.mark(ctx, event.ID)
	logger.Infow("reconcile_event_processed",
		"event_id", event.ID,
		"event_type", event.Type,
		"order_id", orderID,
		"outcome", result.Outcome,
		"amount", event.Amount,
		"currency", event.Currency,
	)
	return result, nil
}

func (s *ReconciliationService) recordPayment(orderID uint, event *GatewayEvent, target string) error {
	if s.paymentRepo == nil {
		return nil
	}
	payment, err := s.paymentRepo.GetByProviderRef(constants.PaymentProviderStripe, event.IntentID)
	if err != nil {
		return wrapStorage(ErrPaymentUpdateFailed, err)
	}
	if payment == nil {
		payment, err = s.paymentRepo.GetLatestByOrderID(orderID)
		if err != nil {
			return wrapStorage(ErrPaymentUpdateFailed, err)
		}
	}
	if payment == nil {
		logger.Warnw("reconcile_payment_missing", "event_id", event.ID, "order_id", orderID, "intent_id", event.IntentID)
		return nil
	}

	now := s.now()
	payment.Status = paymentStatusForOrder(target)
	payment.ProviderPayload = models.JSON(event.Raw)
	payment.CallbackAt = &now
	if err := s.paymentRepo.Update(payment); err != nil {
		return wrapStorage(ErrPaymentUpdateFailed, err)
	}
	return nil
}

func (s *ReconciliationService) seen(ctx context.Context, eventID string) bool {
	if s.deduper == nil || eventID == "" {
		return false
	}
	seen, err := s.deduper.Seen(ctx, eventID)
	if err != nil {
		// 去重不可用时依赖状态机幂等
		logger.Warnw("reconcile_dedupe_check_failed", "event_id", eventID, "error", err)
		return false
	}
	return seen
}

func (s *ReconciliationService) mark(ctx context.Context, eventID string) {
	if s.deduper == nil || eventID == "" {
		return
	}
	if err := s.deduper.Mark(ctx, eventID); err != nil {
		logger.Warnw("reconcile_dedupe_mark_failed", "event_id", eventID, "error", err)
	}
}

func targetStatusForEvent(eventType string) (string, bool) {
	switch eventType {
	case constants.StripeEventPaymentSucceeded:
		return constants.OrderStatusPaid, true
	case constants.StripeEventPaymentFailed:
		return constants.OrderStatusFailed, true
	default:
		return "", false
	}
}

func paymentStatusForOrder(orderStatus string) string {
	switch orderStatus {
	case constants.OrderStatusPaid:
		return constants.PaymentStatusSuccess
	case constants.OrderStatusFailed:
		return constants.PaymentStatusFailed
	case constants.OrderStatusCancelled:
		return constants.PaymentStatusCancelled
	default:
		return constants.PaymentStatusPending
	}
}

// RedisEventDeduper 基于 Redis 的事件去重，Redis 未启用时不去重
type RedisEventDeduper struct {
	provider string
	ttl      time.Duration
}

// NewRedisEventDeduper 创建 Redis 去重器
func NewRedisEventDeduper(provider string, ttl time.Duration) *RedisEventDeduper {
	return &RedisEventDeduper{provider: provider, ttl: ttl}
}

// Seen 事件是否已处理
func (d *RedisEventDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	return cache.Exists(ctx, cache.WebhookEventKey(d.provider, eventID))
}

// Mark 标记事件已处理
func (d *RedisEventDeduper) Mark(ctx context.Context, eventID string) error {
	if _, err := cache.SetNX(ctx, cache.WebhookEventKey(d.provider, eventID), d.ttl); err != nil {
		return fmt.Errorf("mark event %s: %w", eventID, err)
	}
	return nil
}
