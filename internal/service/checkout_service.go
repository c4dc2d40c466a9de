package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/repository"
)

const maxPaymentRecordAttempts = 3

// CheckoutResult 下单结果
type CheckoutResult struct {
	Order           *models.Order `json:"order"`
	ClientSecret    string        `json:"clientSecret"`
	PaymentIntentID string        `json:"paymentIntentId"`
}

// CheckoutService 购物车转订单并创建支付意图
type CheckoutService struct {
	cartRepo     repository.CartRepository
	productRepo  repository.ProductRepository
	paymentRepo  repository.PaymentRepository
	orderService *OrderService
	gateway      PaymentGateway
	currency     string
}

// NewCheckoutService 创建下单服务
func NewCheckoutService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	paymentRepo repository.PaymentRepository,
	orderService *OrderService,
	gateway PaymentGateway,
	currency string,
) *CheckoutService {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = constants.DefaultCurrency
	}
	return &CheckoutService{
		cartRepo:     cartRepo,
		productRepo:  productRepo,
		paymentRepo:  paymentRepo,
		orderService: orderService,
		gateway:      gateway,
		currency:     currency,
	}
}

// Checkout 校验购物车、冻结金额创建订单、创建支付意图并清空购物车（不扣减库存）
func (s *CheckoutService) Checkout(ctx context.Context, userID uint) (*CheckoutResult, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	cart, err := s.cartRepo.GetByUser(userID)
	if err != nil {
		return nil, wrapStorage(ErrCartFetchFailed, err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	order, items, err := s.priceCart(userID, cart)
	if err != nil {
		return nil, err
	}
	if err := s.orderService.Create(order, items); err != nil {
		logger.Warnw("checkout_order_create_failed", "user_id", userID, "error", err)
		return nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, order.Total.MinorUnits(), order.Currency, map[string]string{
		"orderId": strconv.FormatUint(uint64(order.ID), 10),
		"userId":  strconv.FormatUint(uint64(userID), 10),
	})
	if err != nil {
		// 订单保持 pending，等待用户重试或管理员取消
		logger.Errorw("checkout_intent_failed",
			"order_id", order.ID,
			"user_id", userID,
			"amount", order.Total.String(),
			"error", err,
		)
		if !errors.Is(err, ErrGateway) {
			err = fmt.Errorf("%w: %v", ErrGateway, err)
		}
		return nil, err
	}

	payment := &models.Payment{
		OrderID:     order.ID,
		Provider:    constants.PaymentProviderStripe,
		ProviderRef: intent.ID,
		Amount:      order.Total,
		Currency:    order.Currency,
		Status:      constants.PaymentStatusPending,
	}
	if err := s.recordPayment(payment); err != nil {
		// 没有支付记录时取消操作找不到意图，先撤销意图再失败返回
		logger.Errorw("checkout_payment_record_failed", "order_id", order.ID, "intent_id", intent.ID, "error", err)
		if cancelErr := s.gateway.CancelIntent(ctx, intent.ID); cancelErr != nil {
			logger.Errorw("checkout_intent_rollback_failed", "order_id", order.ID, "intent_id", intent.ID, "error", cancelErr)
		}
		return nil, wrapStorage(ErrPaymentUpdateFailed, err)
	}
	// 只扣减已计价的行，网关调用期间新加入的商品保留在购物车
	if err := s.cartRepo.ConsumeItems(cart.ID, pricedQuantities(cart)); err != nil {
		logger.Warnw("checkout_cart_clear_failed", "order_id", order.ID, "cart_id", cart.ID, "error", err)
	}

	logger.Infow("checkout_completed",
		"order_id", order.ID,
		"user_id", userID,
		"amount", order.Total.String(),
		"intent_id", intent.ID,
	)
	return &CheckoutResult{
		Order:           order,
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

func (s *CheckoutService) recordPayment(payment *models.Payment) error {
	var err error
	for attempt := 0; attempt < maxPaymentRecordAttempts; attempt++ {
		if err = s.paymentRepo.Create(payment); err == nil {
			return nil
		}
		payment.ID = 0
	}
	return err
}

func pricedQuantities(cart *models.Cart) map[uint]int {
	quantities := make(map[uint]int, len(cart.Items))
	for _, item := range cart.Items {
		quantities[item.ProductID] += item.Quantity
	}
	return quantities
}

// priceCart 实时读取商品价格与库存，计算订单金额
func (s *CheckoutService) priceCart(userID uint, cart *models.Cart) (*models.Order, []models.OrderItem, error) {
	ids := make([]uint, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.productRepo.ListByIDs(ids)
	if err != nil {
		return nil, nil, wrapStorage(ErrProductFetchFailed, err)
	}
	productMap := make(map[uint]models.Product, len(products))
	for _, product := range products {
		productMap[product.ID] = product
	}

	total := models.Money{}
	items := make([]models.OrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		product, ok := productMap[line.ProductID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: id %d", ErrProductNotFound, line.ProductID)
		}
		if line.Quantity > product.Stock {
			return nil, nil, fmt.Errorf("%w: product %d requested %d available %d", ErrInsufficientStock, product.ID, line.Quantity, product.Stock)
		}
		snapshot := product
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Quantity:  line.Quantity,
			Price:     product.Price,
			Product:   &snapshot,
		})
		total = total.Add(product.Price.Mul(line.Quantity))
	}

	order := &models.Order{
		UserID:   userID,
		Status:   constants.OrderStatusPending,
		Currency: s.currency,
		Total:    total,
	}
	return order, items, nil
}
