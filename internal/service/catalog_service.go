package service

import (
	"context"
	"strings"
	"time"

	"github.com/storefront-next/internal/cache"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/repository"
)

const (
	defaultProductPageSize = 20
	maxProductPageSize     = 100
)

// ProductListInput 商品列表查询参数
type ProductListInput struct {
	Page     int
	PageSize int
	Search   string
	InStock  bool
}

type productListCache struct {
	Items []models.Product `json:"items"`
	Total int64            `json:"total"`
}

// CatalogService 只读商品目录
type CatalogService struct {
	productRepo repository.ProductRepository
	cacheTTL    time.Duration
}

// NewCatalogService 创建商品目录服务
func NewCatalogService(productRepo repository.ProductRepository, cacheTTL time.Duration) *CatalogService {
	return &CatalogService{productRepo: productRepo, cacheTTL: cacheTTL}
}

// List 商品列表（可选 Redis 缓存）
func (s *CatalogService) List(ctx context.Context, input ProductListInput) ([]models.Product, int64, error) {
	input.Page, input.PageSize = normalizePage(input.Page, input.PageSize, defaultProductPageSize, maxProductPageSize)
	input.Search = strings.TrimSpace(input.Search)

	key := cache.ProductListKey(input.Page, input.PageSize, input.Search, input.InStock)
	if s.cacheTTL > 0 {
		var cached productListCache
		hit, err := cache.GetJSON(ctx, key, &cached)
		if err != nil {
			logger.Warnw("catalog_cache_read_failed", "key", key, "error", err)
		} else if hit {
			return cached.Items, cached.Total, nil
		}
	}

	products, total, err := s.productRepo.List(repository.ProductListFilter{
		Page:     input.Page,
		PageSize: input.PageSize,
		Search:   input.Search,
		InStock:  input.InStock,
	})
	if err != nil {
		return nil, 0, wrapStorage(ErrProductFetchFailed, err)
	}

	if s.cacheTTL > 0 {
		if err := cache.SetJSON(ctx, key, productListCache{Items: products, Total: total}, s.cacheTTL); err != nil {
			logger.Warnw("catalog_cache_write_failed", "key", key, "error", err)
		}
	}
	return products, total, nil
}

// Get 读取单个商品（实时读取，不走缓存）
func (s *CatalogService) Get(productID uint) (*models.Product, error) {
	if productID == 0 {
		return nil, ErrInvalidInput
	}
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, wrapStorage(ErrProductFetchFailed, err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func normalizePage(page, pageSize, defaultSize, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return page, pageSize
}
