package cache

import "fmt"

// ProductListKey 商品列表缓存键
func ProductListKey(page, pageSize int, search string, inStock bool) string {
	return fmt.Sprintf("catalog:list:%d:%d:%t:%s", page, pageSize, inStock, search)
}

// ProductDetailKey 商品详情缓存键
func ProductDetailKey(productID uint) string {
	return fmt.Sprintf("catalog:product:%d", productID)
}

// WebhookEventKey 网关事件去重键
func WebhookEventKey(provider, eventID string) string {
	return fmt.Sprintf("webhook:%s:%s", provider, eventID)
}
