package service

import (
	"errors"
	"fmt"
)

// ErrNotFound 资源不存在（所有 *NotFound 错误均可用 errors.Is 归类到此）
var ErrNotFound = errors.New("resource not found")

var (
	ErrCartNotFound     = fmt.Errorf("%w: cart", ErrNotFound)
	ErrCartItemNotFound = fmt.Errorf("%w: cart item", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("%w: order", ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("%w: product", ErrNotFound)
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrGateway             = errors.New("payment gateway error")
	ErrInvalidSignature    = errors.New("invalid notification signature")
	ErrMalformedPayload    = errors.New("malformed notification payload")
	ErrOrderCreationFailed = errors.New("order creation failed")
)

// 存储层错误包装，避免原始数据库错误透出到接口
var (
	ErrCartFetchFailed     = errors.New("cart fetch failed")
	ErrCartUpdateFailed    = errors.New("cart update failed")
	ErrProductFetchFailed  = errors.New("product fetch failed")
	ErrOrderFetchFailed    = errors.New("order fetch failed")
	ErrOrderUpdateFailed   = errors.New("order update failed")
	ErrPaymentUpdateFailed = errors.New("payment update failed")
)

func wrapStorage(sentinel error, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
