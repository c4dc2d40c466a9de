package public

import (
	handlershared "github.com/storefront-next/internal/http/handlers/shared"
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateOrderStatusRequest 修改订单状态请求
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateOrder 购物车结算下单
func (h *Handler) CreateOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	result, err := h.CheckoutService.Checkout(c.Request.Context(), uid)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Created(c, "Order created", result)
}

// ListOrders 当前用户订单列表（新订单在前）
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	orders, total, err := h.OrderService.ListByUser(uid, service.OrderListInput{
		Status:   c.Query("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}

// GetOrder 订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "orderId")
	if !ok {
		return
	}
	order, err := h.OrderService.GetForActor(actor, orderID)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// UpdateOrderStatus 修改订单状态（用户取消 / 管理员覆盖）
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "orderId")
	if !ok {
		return
	}
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "Invalid request body", nil)
		return
	}
	order, err := h.OrderService.UpdateStatus(actor, orderID, req.Status)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.SuccessWithMsg(c, "Order status updated", order)
}

// ListOrderHistory 订单状态变更记录
func (h *Handler) ListOrderHistory(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseUintParam(c, "orderId")
	if !ok {
		return
	}
	logs, err := h.OrderService.ListStatusLogs(actor, orderID)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, logs)
}
