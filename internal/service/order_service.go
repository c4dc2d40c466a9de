package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storefront-next/internal/authz"
	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/queue"
	"github.com/storefront-next/internal/repository"

	"gorm.io/gorm"
)

const (
	defaultOrderPageSize  = 20
	maxOrderPageSize      = 100
	maxTransitionAttempts = 3
)

// errOrderStatusChanged 比较写入时状态已被并发修改
var errOrderStatusChanged = errors.New("order status changed concurrently")

// allowedTransitions 非管理员可用的状态迁移
var allowedTransitions = map[string][]string{
	constants.OrderStatusPending: {
		constants.OrderStatusPaid,
		constants.OrderStatusFailed,
		constants.OrderStatusCancelled,
	},
}

// Authorizer 角色授权判定
type Authorizer interface {
	Can(role, obj, act string) (bool, error)
}

// TransitionResult 状态迁移结果
type TransitionResult struct {
	Order   *models.Order
	From    string
	Applied bool
}

// OrderService 订单账本服务，所有状态变更都经过 transition
type OrderService struct {
	orderRepo   repository.OrderRepository
	logRepo     repository.OrderStatusLogRepository
	paymentRepo repository.PaymentRepository
	authorizer  Authorizer
	queueClient *queue.Client
	now         func() time.Time
}

// NewOrderService 创建订单服务
func NewOrderService(
	orderRepo repository.OrderRepository,
	logRepo repository.OrderStatusLogRepository,
	paymentRepo repository.PaymentRepository,
	authorizer Authorizer,
	queueClient *queue.Client,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		logRepo:     logRepo,
		paymentRepo: paymentRepo,
		authorizer:  authorizer,
		queueClient: queueClient,
		now:         time.Now,
	}
}

// Create 在一个事务内写入订单、订单项与初始状态记录
func (s *OrderService) Create(order *models.Order, items []models.OrderItem) error {
	if order == nil || len(items) == 0 {
		return ErrInvalidInput
	}
	order.Status = constants.OrderStatusPending
	err := s.orderRepo.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.WithTx(tx).Create(order, items); err != nil {
			return err
		}
		return s.logRepo.WithTx(tx).Create(&models.OrderStatusLog{
			OrderID:  order.ID,
			ToStatus: constants.OrderStatusPending,
			Source:   constants.TransitionSourceUser,
			ActorID:  order.UserID,
			Note:     "checkout",
		})
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}
	return nil
}

// GetForActor 读取订单，非本人且无全局读取权限时视为不存在
func (s *OrderService) GetForActor(actor Actor, orderID uint) (*models.Order, error) {
	if orderID == 0 {
		return nil, ErrInvalidInput
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, wrapStorage(ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID == actor.ID {
		readOwn, err := s.can(actor, authz.ActionReadOwn)
		if err != nil {
			return nil, err
		}
		if readOwn {
			return order, nil
		}
	}
	readAny, err := s.can(actor, authz.ActionReadAny)
	if err != nil {
		return nil, err
	}
	if !readAny {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// OrderListInput 用户订单列表查询条件
type OrderListInput struct {
	Status   string
	Page     int
	PageSize int
}

// ListByUser 用户订单列表，按 ID 倒序，可按状态过滤
func (s *OrderService) ListByUser(userID uint, input OrderListInput) ([]models.Order, int64, error) {
	status := strings.ToLower(strings.TrimSpace(input.Status))
	if userID == 0 || (status != "" && !isKnownOrderStatus(status)) {
		return nil, 0, ErrInvalidInput
	}
	page, pageSize := normalizePage(input.Page, input.PageSize, defaultOrderPageSize, maxOrderPageSize)
	orders, total, err := s.orderRepo.ListByUser(repository.OrderListFilter{
		UserID:   userID,
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, 0, wrapStorage(ErrOrderFetchFailed, err)
	}
	return orders, total, nil
}

// ListStatusLogs 订单状态变更记录
func (s *OrderService) ListStatusLogs(actor Actor, orderID uint) ([]models.OrderStatusLog, error) {
	if _, err := s.GetForActor(actor, orderID); err != nil {
		return nil, err
	}
	logs, err := s.logRepo.ListByOrder(orderID)
	if err != nil {
		return nil, wrapStorage(ErrOrderFetchFailed, err)
	}
	return logs, nil
}

// UpdateStatus 用户取消或管理员覆盖订单状态
func (s *OrderService) UpdateStatus(actor Actor, orderID uint, target string) (*models.Order, error) {
	if actor.IsGateway() {
		return nil, ErrForbidden
	}
	result, err := s.transition(actor, orderID, target, "")
	if err != nil {
		return nil, err
	}
	if result.Applied && result.Order.Status == constants.OrderStatusCancelled {
		s.enqueueIntentCancel(result.Order.ID)
	}
	return result.Order, nil
}

// ApplyGatewayOutcome 网关回调驱动的 pending -> paid/failed
func (s *OrderService) ApplyGatewayOutcome(orderID uint, target string, note string) (*TransitionResult, error) {
	return s.transition(GatewayActor(), orderID, target, note)
}

// transition 统一的状态迁移入口：读取、授权、比较写入、记录日志
func (s *OrderService) transition(actor Actor, orderID uint, target string, note string) (*TransitionResult, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	if orderID == 0 || !isKnownOrderStatus(target) {
		return nil, ErrInvalidInput
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		order, err := s.orderRepo.GetByID(orderID)
		if err != nil {
			return nil, wrapStorage(ErrOrderFetchFailed, err)
		}
		if order == nil {
			return nil, ErrOrderNotFound
		}
		if err := s.authorizeStatusUpdate(actor, order, target); err != nil {
			return nil, err
		}
		if order.Status == target {
			return &TransitionResult{Order: order, From: order.Status, Applied: false}, nil
		}

		from := order.Status
		now := s.now()
		err = s.orderRepo.Transaction(func(tx *gorm.DB) error {
			affected, err := s.orderRepo.WithTx(tx).CompareAndSetStatus(order.ID, from, target, statusTimestamps(target, now))
			if err != nil {
				return err
			}
			if affected == 0 {
				return errOrderStatusChanged
			}
			return s.logRepo.WithTx(tx).Create(&models.OrderStatusLog{
				OrderID:    order.ID,
				FromStatus: from,
				ToStatus:   target,
				Source:     actor.source(),
				ActorID:    actor.ID,
				Note:       note,
			})
		})
		if errors.Is(err, errOrderStatusChanged) {
			logger.Infow("order_transition_retry",
				"order_id", order.ID,
				"from", from,
				"to", target,
				"attempt", attempt+1,
			)
			continue
		}
		if err != nil {
			return nil, wrapStorage(ErrOrderUpdateFailed, err)
		}

		updated, err := s.orderRepo.GetByID(order.ID)
		if err != nil || updated == nil {
			order.Status = target
			updated = order
		}
		logger.Infow("order_status_changed",
			"order_id", order.ID,
			"from", from,
			"to", target,
			"source", actor.source(),
			"actor_id", actor.ID,
		)
		return &TransitionResult{Order: updated, From: from, Applied: true}, nil
	}
	return nil, fmt.Errorf("%w: too many concurrent updates", ErrOrderUpdateFailed)
}

// authorizeStatusUpdate 唯一的状态变更授权策略，在任何写入之前执行
func (s *OrderService) authorizeStatusUpdate(actor Actor, order *models.Order, target string) error {
	if !isKnownOrderStatus(target) {
		return ErrInvalidInput
	}
	override, err := s.can(actor, authz.ActionOverride)
	if err != nil {
		return err
	}
	if override {
		return nil
	}

	if actor.IsGateway() {
		settle, err := s.can(actor, authz.ActionSettle)
		if err != nil {
			return err
		}
		if !settle {
			return ErrForbidden
		}
		if order.Status == target {
			return nil
		}
		if target != constants.OrderStatusPaid && target != constants.OrderStatusFailed {
			return ErrInvalidTransition
		}
		if !canTransition(order.Status, target) {
			return ErrInvalidTransition
		}
		return nil
	}

	cancel, err := s.can(actor, authz.ActionCancel)
	if err != nil {
		return err
	}
	if !cancel || order.UserID != actor.ID {
		return ErrForbidden
	}
	if target != constants.OrderStatusCancelled {
		return ErrForbidden
	}
	if !canTransition(order.Status, target) {
		return ErrInvalidTransition
	}
	return nil
}

func (s *OrderService) can(actor Actor, action string) (bool, error) {
	if s.authorizer == nil {
		return false, nil
	}
	allowed, err := s.authorizer.Can(actor.NormalizedRole(), authz.ObjectOrder, action)
	if err != nil {
		logger.Errorw("order_authz_enforce_failed", "role", actor.Role, "action", action, "error", err)
		return false, fmt.Errorf("%w: authorization unavailable", ErrForbidden)
	}
	return allowed, nil
}

func (s *OrderService) enqueueIntentCancel(orderID uint) {
	if s.paymentRepo == nil || !s.queueClient.Enabled() {
		return
	}
	payment, err := s.paymentRepo.GetLatestByOrderID(orderID)
	if err != nil {
		logger.Warnw("order_cancel_payment_lookup_failed", "order_id", orderID, "error", err)
		return
	}
	if payment == nil || payment.Status != constants.PaymentStatusPending || payment.ProviderRef == "" {
		return
	}
	if err := s.queueClient.EnqueuePaymentIntentCancel(queue.PaymentIntentCancelPayload{
		OrderID:  orderID,
		IntentID: payment.ProviderRef,
	}); err != nil {
		logger.Warnw("order_cancel_intent_enqueue_failed",
			"order_id", orderID,
			"intent_id", payment.ProviderRef,
			"error", err,
		)
	}
}

func canTransition(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func isKnownOrderStatus(status string) bool {
	switch status {
	case constants.OrderStatusPending,
		constants.OrderStatusPaid,
		constants.OrderStatusFailed,
		constants.OrderStatusCancelled:
		return true
	default:
		return false
	}
}

func statusTimestamps(target string, now time.Time) map[string]interface{} {
	updates := map[string]interface{}{
		"updated_at": now,
	}
	switch target {
	case constants.OrderStatusPaid:
		updates["paid_at"] = now
	case constants.OrderStatusFailed:
		updates["failed_at"] = now
	case constants.OrderStatusCancelled:
		updates["cancelled_at"] = now
	}
	return updates
}
