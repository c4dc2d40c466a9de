package router

import (
	"fmt"

	"github.com/storefront-next/internal/cache"
	"github.com/storefront-next/internal/config"
	publichandlers "github.com/storefront-next/internal/http/handlers/public"
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	r := gin.New()

	handler := publichandlers.New(c)
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:checkout", cfg.Redis.Prefix),
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(logger.Z()))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/health", func(ctx *gin.Context) {
		response.Success(ctx, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		// 公开商品目录
		apiV1.GET("/products", handler.ListProducts)
		apiV1.GET("/products/:productId", handler.GetProduct)

		// 网关回调：签名即认证，不挂 JWT，也不能在此之前读取请求体
		apiV1.POST("/stripe/webhook", handler.StripeWebhook)

		user := apiV1.Group("")
		user.Use(JWTAuthMiddleware(cfg.JWT.SecretKey))
		{
			user.GET("/cart", handler.GetCart)
			user.POST("/cart/add", handler.AddCartItem)
			user.PUT("/cart/item/:productId", handler.UpdateCartItem)
			user.DELETE("/cart/item/:productId", handler.RemoveCartItem)
			user.DELETE("/cart/clear", handler.ClearCart)

			user.POST("/orders", RateLimitMiddleware(cache.Client(), checkoutRule, KeyByUser), handler.CreateOrder)
			user.GET("/orders", handler.ListOrders)
			user.GET("/orders/:orderId", handler.GetOrder)
			user.PUT("/orders/:orderId", handler.UpdateOrderStatus)
			user.GET("/orders/:orderId/history", handler.ListOrderHistory)
		}
	}

	r.NoRoute(func(ctx *gin.Context) {
		response.Error(ctx, response.CodeNotFound, "Route not found")
	})
	return r
}
