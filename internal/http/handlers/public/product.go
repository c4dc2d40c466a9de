package public

import (
	"strconv"
	"strings"

	handlershared "github.com/storefront-next/internal/http/handlers/shared"
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListProducts 商品列表
func (h *Handler) ListProducts(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	inStock, _ := strconv.ParseBool(strings.TrimSpace(c.DefaultQuery("in_stock", "false")))

	products, total, err := h.CatalogService.List(c.Request.Context(), service.ProductListInput{
		Page:     page,
		PageSize: pageSize,
		Search:   strings.TrimSpace(c.Query("search")),
		InStock:  inStock,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "Failed to fetch products", err)
		return
	}
	response.SuccessWithPage(c, products, response.BuildPagination(page, pageSize, total))
}

// GetProduct 商品详情
func (h *Handler) GetProduct(c *gin.Context) {
	productID, ok := handlershared.ParseUintParam(c, "productId")
	if !ok {
		return
	}
	product, err := h.CatalogService.Get(productID)
	if err != nil {
		respondWithMappedError(c, err, notFoundErrorRules, response.CodeInternal, "Failed to fetch product")
		return
	}
	response.Success(c, product)
}
