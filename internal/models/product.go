package models

import "time"

// Product 商品表（只读目录，由外部维护）
type Product struct {
	ID          uint      `gorm:"primarykey" json:"id"`                               // 主键
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`             // 名称
	Description string    `gorm:"type:text" json:"description"`                       // 描述
	Price       Money     `gorm:"type:decimal(20,2);not null;default:0" json:"price"` // 单价
	Stock       int       `gorm:"not null;default:0" json:"stock"`                    // 库存
	ImageURL    string    `gorm:"type:varchar(512)" json:"imageUrl"`                  // 图片地址
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`                             // 创建时间
	UpdatedAt   time.Time `json:"updatedAt"`                                          // 更新时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
