package models

import "time"

// OrderStatusLog 订单状态变更记录
type OrderStatusLog struct {
	ID         uint      `gorm:"primarykey" json:"id"`                      // 主键
	OrderID    uint      `gorm:"index;not null" json:"orderId"`             // 订单ID
	FromStatus string    `gorm:"type:varchar(20);not null" json:"from"`     // 原状态
	ToStatus   string    `gorm:"type:varchar(20);not null" json:"to"`       // 新状态
	Source     string    `gorm:"type:varchar(20);not null" json:"source"`   // 来源（user/admin/gateway）
	ActorID    uint      `gorm:"not null;default:0" json:"actorId"`         // 操作人ID（网关为 0）
	Note       string    `gorm:"type:varchar(255)" json:"note,omitempty"`   // 备注
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`                    // 创建时间
}

// TableName 指定表名
func (OrderStatusLog) TableName() string {
	return "order_status_logs"
}
