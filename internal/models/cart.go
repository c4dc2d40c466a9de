package models

import "time"

// Cart 购物车（每个用户一个，惰性创建，清空后保留）
type Cart struct {
	ID        uint      `gorm:"primarykey" json:"id"`                // 主键
	UserID    uint      `gorm:"uniqueIndex;not null" json:"userId"`  // 用户ID
	CreatedAt time.Time `json:"createdAt"`                           // 创建时间
	UpdatedAt time.Time `json:"updatedAt"`                           // 更新时间

	Items []CartItem `gorm:"foreignKey:CartID" json:"items"` // 购物车项
}

// TableName 指定表名
func (Cart) TableName() string {
	return "carts"
}

// Total 按当前商品价格计算展示金额
func (c *Cart) Total() Money {
	total := Money{}
	if c == nil {
		return total
	}
	for _, item := range c.Items {
		if item.Product == nil {
			continue
		}
		total = total.Add(item.Product.Price.Mul(item.Quantity))
	}
	return total
}

// CartItem 购物车项（硬删除）
type CartItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                               // 主键
	CartID    uint      `gorm:"not null;uniqueIndex:idx_cart_item_product" json:"cartId"`           // 购物车ID
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_item_product" json:"productId"`        // 商品ID
	Quantity  int       `gorm:"not null" json:"quantity"`                                           // 数量
	CreatedAt time.Time `json:"createdAt"`                                                          // 创建时间
	UpdatedAt time.Time `json:"updatedAt"`                                                          // 更新时间

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // 关联商品
}

// TableName 指定表名
func (CartItem) TableName() string {
	return "cart_items"
}
