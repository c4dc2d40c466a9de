package models

import "time"

// Order 订单表，金额在创建时冻结
type Order struct {
	ID          uint       `gorm:"primarykey" json:"id"`                                // 主键
	UserID      uint       `gorm:"index;not null" json:"userId"`                        // 用户ID
	Status      string     `gorm:"index;not null" json:"status"`                        // 订单状态
	Currency    string     `gorm:"type:varchar(8);not null" json:"currency"`            // 币种
	Total       Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total"`  // 订单总额
	PaidAt      *time.Time `gorm:"index" json:"paidAt,omitempty"`                       // 支付时间
	FailedAt    *time.Time `json:"failedAt,omitempty"`                                  // 支付失败时间
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`                               // 取消时间
	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`                              // 创建时间
	UpdatedAt   time.Time  `json:"updatedAt"`                                           // 更新时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
