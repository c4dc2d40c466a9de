package models

import "time"

// Payment 网关支付记录，ProviderRef 为 PaymentIntent ID
type Payment struct {
	ID              uint       `gorm:"primarykey" json:"id"`                         // 主键
	OrderID         uint       `gorm:"index;not null" json:"orderId"`                // 订单ID
	Provider        string     `gorm:"type:varchar(32);not null" json:"provider"`    // 提供方
	ProviderRef     string     `gorm:"uniqueIndex;not null" json:"providerRef"`      // 第三方流水号
	Amount          Money      `gorm:"type:decimal(20,2);not null" json:"amount"`    // 支付金额
	Currency        string     `gorm:"type:varchar(8);not null" json:"currency"`     // 币种
	Status          string     `gorm:"index;not null" json:"status"`                 // 支付状态
	ProviderPayload JSON       `gorm:"type:json" json:"providerPayload,omitempty"`   // 第三方回调数据
	CallbackAt      *time.Time `json:"callbackAt,omitempty"`                         // 回调时间
	CreatedAt       time.Time  `gorm:"index" json:"createdAt"`                       // 创建时间
	UpdatedAt       time.Time  `json:"updatedAt"`                                    // 更新时间
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}
