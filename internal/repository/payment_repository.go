package repository

import (
	"errors"

	"github.com/storefront-next/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository 支付数据访问接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	Update(payment *models.Payment) error
	GetByProviderRef(provider, providerRef string) (*models.Payment, error)
	GetLatestByOrderID(orderID uint) (*models.Payment, error)
	WithTx(tx *gorm.DB) PaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) PaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// Update 更新支付记录
func (r *GormPaymentRepository) Update(payment *models.Payment) error {
	return r.db.Save(payment).Error
}

// GetByProviderRef 根据第三方流水号获取支付记录
func (r *GormPaymentRepository) GetByProviderRef(provider, providerRef string) (*models.Payment, error) {
	if providerRef == "" {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.Where("provider = ? AND provider_ref = ?", provider, providerRef).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetLatestByOrderID 获取订单最新支付记录
func (r *GormPaymentRepository) GetLatestByOrderID(orderID uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("order_id = ?", orderID).Order("id desc").First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}
