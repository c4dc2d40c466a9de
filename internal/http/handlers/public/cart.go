package public

import (
	handlershared "github.com/storefront-next/internal/http/handlers/shared"
	"github.com/storefront-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// AddCartItemRequest 加入购物车请求
type AddCartItemRequest struct {
	ProductID uint `json:"productId" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// UpdateCartItemRequest 修改数量请求，0 表示删除
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// GetCart 获取购物车
func (h *Handler) GetCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	view, err := h.CartService.Get(uid)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, view)
}

// AddCartItem 加入购物车（数量累加）
func (h *Handler) AddCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "Invalid request body", nil)
		return
	}
	view, err := h.CartService.AddItem(uid, req.ProductID, req.Quantity)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.SuccessWithMsg(c, "Item added to cart", view)
}

// UpdateCartItem 修改购物车商品数量
func (h *Handler) UpdateCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	productID, ok := handlershared.ParseUintParam(c, "productId")
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		respondError(c, response.CodeBadRequest, "Invalid request body", nil)
		return
	}
	view, err := h.CartService.SetQuantity(uid, productID, *req.Quantity)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.SuccessWithMsg(c, "Cart updated", view)
}

// RemoveCartItem 移除购物车商品
func (h *Handler) RemoveCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	productID, ok := handlershared.ParseUintParam(c, "productId")
	if !ok {
		return
	}
	view, err := h.CartService.RemoveItem(uid, productID)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.SuccessWithMsg(c, "Item removed from cart", view)
}

// ClearCart 清空购物车
func (h *Handler) ClearCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	view, err := h.CartService.Clear(uid)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.SuccessWithMsg(c, "Cart cleared", view)
}
