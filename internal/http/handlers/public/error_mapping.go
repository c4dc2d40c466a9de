package public

import (
	"errors"

	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

// 具体的 NotFound 放在 ErrNotFound 之前
var notFoundErrorRules = []mappedHandlerError{
	{target: service.ErrCartItemNotFound, code: response.CodeNotFound, msg: "Item not found in cart"},
	{target: service.ErrCartNotFound, code: response.CodeNotFound, msg: "Cart not found"},
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "Order not found"},
	{target: service.ErrProductNotFound, code: response.CodeNotFound, msg: "Product not found"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "Not found"},
}

var inputErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidInput, code: response.CodeBadRequest, msg: "Invalid input"},
	{target: service.ErrInsufficientStock, code: response.CodeBadRequest, msg: "Insufficient stock"},
}

var cartErrorRules = concatMappedHandlerErrors(notFoundErrorRules, inputErrorRules)

var checkoutErrorRules = concatMappedHandlerErrors(
	[]mappedHandlerError{
		{target: service.ErrEmptyCart, code: response.CodeBadRequest, msg: "Cart is empty"},
		{target: service.ErrGateway, code: response.CodeBadGateway, msg: "Payment gateway error"},
	},
	notFoundErrorRules,
	inputErrorRules,
)

var orderErrorRules = concatMappedHandlerErrors(
	[]mappedHandlerError{
		{target: service.ErrForbidden, code: response.CodeForbidden, msg: "Not allowed to update this order"},
		{target: service.ErrInvalidTransition, code: response.CodeForbidden, msg: "Invalid status transition"},
	},
	notFoundErrorRules,
	inputErrorRules,
)

// 存储错误返回 500，网关会重试投递
var webhookErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidSignature, code: response.CodeBadRequest, msg: "Invalid signature"},
	{target: service.ErrMalformedPayload, code: response.CodeBadRequest, msg: "Malformed payload"},
}

func respondCartError(c *gin.Context, err error) {
	respondWithMappedError(c, err, cartErrorRules, response.CodeInternal, "Cart operation failed")
}

func respondCheckoutError(c *gin.Context, err error) {
	respondWithMappedError(c, err, checkoutErrorRules, response.CodeInternal, "Order creation failed")
}

func respondOrderError(c *gin.Context, err error) {
	respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "Order operation failed")
}

func respondWebhookError(c *gin.Context, err error) {
	respondWithMappedError(c, err, webhookErrorRules, response.CodeInternal, "Webhook processing failed")
}
