package repository

import (
	"errors"
	"time"

	"github.com/storefront-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRepository 购物车数据访问接口
type CartRepository interface {
	GetByUser(userID uint) (*models.Cart, error)
	Ensure(userID uint) (*models.Cart, error)
	IncrementItem(cartID, productID uint, quantity int) error
	GetItemForUpdate(cartID, productID uint) (*models.CartItem, error)
	UpdateItemQuantity(itemID uint, quantity int) error
	DeleteItem(cartID, productID uint) (int64, error)
	ClearItems(cartID uint) error
	ConsumeItems(cartID uint, quantities map[uint]int) error
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) CartRepository
}

// GormCartRepository GORM 实现
type GormCartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCartRepository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &GormCartRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCartRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByUser 获取用户购物车及商品信息，不存在返回 nil
func (r *GormCartRepository) GetByUser(userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Items.Product").
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// Ensure 获取或创建用户购物车，并发创建时以唯一索引兜底
func (r *GormCartRepository) Ensure(userID uint) (*models.Cart, error) {
	cart := models.Cart{UserID: userID}
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&cart).Error; err != nil {
		return nil, err
	}
	var stored models.Cart
	if err := r.db.Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// IncrementItem 原子累加购物车项数量，不存在时插入
func (r *GormCartRepository) IncrementItem(cartID, productID uint, quantity int) error {
	item := models.CartItem{
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + ?", quantity),
			"updated_at": time.Now(),
		}),
	}).Create(&item).Error
}

// GetItemForUpdate 加锁读取购物车项
func (r *GormCartRepository) GetItemForUpdate(cartID, productID uint) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// UpdateItemQuantity 覆盖购物车项数量
func (r *GormCartRepository) UpdateItemQuantity(itemID uint, quantity int) error {
	return r.db.Model(&models.CartItem{}).Where("id = ?", itemID).Updates(map[string]interface{}{
		"quantity":   quantity,
		"updated_at": time.Now(),
	}).Error
}

// DeleteItem 删除购物车项，返回影响行数
func (r *GormCartRepository) DeleteItem(cartID, productID uint) (int64, error) {
	result := r.db.Where("cart_id = ? AND product_id = ?", cartID, productID).Delete(&models.CartItem{})
	return result.RowsAffected, result.Error
}

// ClearItems 清空购物车项，保留购物车本身
func (r *GormCartRepository) ClearItems(cartID uint) error {
	return r.db.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

// ConsumeItems 按下单时的数量扣减购物车项，剩余数量不足或相等的行直接删除
func (r *GormCartRepository) ConsumeItems(cartID uint, quantities map[uint]int) error {
	if len(quantities) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for productID, quantity := range quantities {
			if quantity <= 0 {
				continue
			}
			// 先删后减，避免扣减后的行再次命中删除条件
			if err := tx.Where("cart_id = ? AND product_id = ? AND quantity <= ?", cartID, productID, quantity).
				Delete(&models.CartItem{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.CartItem{}).
				Where("cart_id = ? AND product_id = ? AND quantity > ?", cartID, productID, quantity).
				Updates(map[string]interface{}{
					"quantity":   gorm.Expr("quantity - ?", quantity),
					"updated_at": now,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
