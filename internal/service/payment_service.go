package service

import (
	"context"

	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/repository"
)

// PaymentService 支付记录维护
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	orderRepo   repository.OrderRepository
	gateway     PaymentGateway
}

// NewPaymentService 创建支付服务
func NewPaymentService(paymentRepo repository.PaymentRepository, orderRepo repository.OrderRepository, gateway PaymentGateway) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		gateway:     gateway,
	}
}

// CancelIntent 订单已取消时撤销网关支付意图；网关失败返回错误以便重试
func (s *PaymentService) CancelIntent(ctx context.Context, orderID uint, intentID string) error {
	if orderID == 0 || intentID == "" {
		return ErrInvalidInput
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return wrapStorage(ErrOrderFetchFailed, err)
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusCancelled {
		logger.Infow("payment_intent_cancel_skip_status", "order_id", orderID, "status", order.Status)
		return nil
	}

	payment, err := s.paymentRepo.GetByProviderRef(constants.PaymentProviderStripe, intentID)
	if err != nil {
		return wrapStorage(ErrPaymentUpdateFailed, err)
	}
	if payment != nil && payment.Status != constants.PaymentStatusPending {
		logger.Infow("payment_intent_cancel_skip_payment_status", "order_id", orderID, "payment_status", payment.Status)
		return nil
	}

	if err := s.gateway.CancelIntent(ctx, intentID); err != nil {
		logger.Warnw("payment_intent_cancel_failed", "order_id", orderID, "intent_id", intentID, "error", err)
		return err
	}
	if payment != nil {
		payment.Status = constants.PaymentStatusCancelled
		if err := s.paymentRepo.Update(payment); err != nil {
			return wrapStorage(ErrPaymentUpdateFailed, err)
		}
	}
	logger.Infow("payment_intent_cancelled", "order_id", orderID, "intent_id", intentID)
	return nil
}
