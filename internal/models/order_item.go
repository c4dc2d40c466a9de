package models

import "time"

// OrderItem 订单项，保存下单时的单价快照
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                // 主键
	OrderID   uint      `gorm:"index;not null" json:"orderId"`                       // 订单ID
	ProductID uint      `gorm:"index;not null" json:"productId"`                     // 商品ID
	Quantity  int       `gorm:"not null" json:"quantity"`                            // 数量
	Price     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"price"`  // 下单单价
	CreatedAt time.Time `json:"createdAt"`                                           // 创建时间

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // 关联商品（当前信息）
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
