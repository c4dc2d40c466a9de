package service

import (
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/repository"

	"gorm.io/gorm"
)

// CartLineView 购物车项（含实时商品信息）
type CartLineView struct {
	ProductID uint            `json:"productId"`
	Quantity  int             `json:"quantity"`
	Product   *models.Product `json:"product"`
}

// CartView 购物车响应
type CartView struct {
	Items []CartLineView `json:"items"`
	Total models.Money   `json:"total"`
}

// CartService 购物车服务
type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

// NewCartService 创建购物车服务
func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

// Get 获取用户购物车，不存在时返回空购物车
func (s *CartService) Get(userID uint) (*CartView, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	cart, err := s.cartRepo.GetByUser(userID)
	if err != nil {
		return nil, wrapStorage(ErrCartFetchFailed, err)
	}
	return buildCartView(cart), nil
}

// AddItem 加入购物车，已存在的商品累加数量（不校验库存）
func (s *CartService) AddItem(userID, productID uint, quantity int) (*CartView, error) {
	if userID == 0 || productID == 0 || quantity < 1 {
		return nil, ErrInvalidInput
	}
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, wrapStorage(ErrProductFetchFailed, err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	cart, err := s.cartRepo.Ensure(userID)
	if err != nil {
		return nil, wrapStorage(ErrCartUpdateFailed, err)
	}
	if err := s.cartRepo.IncrementItem(cart.ID, productID, quantity); err != nil {
		return nil, wrapStorage(ErrCartUpdateFailed, err)
	}
	return s.Get(userID)
}

// SetQuantity 覆盖购物车项数量，0 表示删除；数量不得超过当前库存
func (s *CartService) SetQuantity(userID, productID uint, quantity int) (*CartView, error) {
	if userID == 0 || productID == 0 || quantity < 0 {
		return nil, ErrInvalidInput
	}
	cart, err := s.cartRepo.GetByUser(userID)
	if err != nil {
		return nil, wrapStorage(ErrCartFetchFailed, err)
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}

	err = s.cartRepo.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		item, err := cartRepo.GetItemForUpdate(cart.ID, productID)
		if err != nil {
			return wrapStorage(ErrCartFetchFailed, err)
		}
		if item == nil {
			return ErrCartItemNotFound
		}
		if quantity == 0 {
			if _, err := cartRepo.DeleteItem(cart.ID, productID); err != nil {
				return wrapStorage(ErrCartUpdateFailed, err)
			}
			return nil
		}

		product, err := s.productRepo.WithTx(tx).GetByID(productID)
		if err != nil {
			return wrapStorage(ErrProductFetchFailed, err)
		}
		if product == nil {
			return ErrProductNotFound
		}
		if quantity > product.Stock {
			return ErrInsufficientStock
		}
		if err := cartRepo.UpdateItemQuantity(item.ID, quantity); err != nil {
			return wrapStorage(ErrCartUpdateFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(userID)
}

// RemoveItem 删除购物车项，购物车或购物车项不存在时返回 NotFound
func (s *CartService) RemoveItem(userID, productID uint) (*CartView, error) {
	if userID == 0 || productID == 0 {
		return nil, ErrInvalidInput
	}
	cart, err := s.cartRepo.GetByUser(userID)
	if err != nil {
		return nil, wrapStorage(ErrCartFetchFailed, err)
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	affected, err := s.cartRepo.DeleteItem(cart.ID, productID)
	if err != nil {
		return nil, wrapStorage(ErrCartUpdateFailed, err)
	}
	if affected == 0 {
		return nil, ErrCartItemNotFound
	}
	return s.Get(userID)
}

// Clear 清空购物车，购物车本身保留
func (s *CartService) Clear(userID uint) (*CartView, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	cart, err := s.cartRepo.GetByUser(userID)
	if err != nil {
		return nil, wrapStorage(ErrCartFetchFailed, err)
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	if err := s.cartRepo.ClearItems(cart.ID); err != nil {
		return nil, wrapStorage(ErrCartUpdateFailed, err)
	}
	return s.Get(userID)
}

func buildCartView(cart *models.Cart) *CartView {
	view := &CartView{Items: []CartLineView{}}
	if cart == nil {
		return view
	}
	for _, item := range cart.Items {
		view.Items = append(view.Items, CartLineView{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Product:   item.Product,
		})
	}
	view.Total = cart.Total()
	return view
}
