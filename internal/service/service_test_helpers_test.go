package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/storefront-next/internal/authz"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type serviceTestEnv struct {
	db          *gorm.DB
	productRepo *repository.GormProductRepository
	cartRepo    *repository.GormCartRepository
	orderRepo   *repository.GormOrderRepository
	logRepo     *repository.GormOrderStatusLogRepository
	paymentRepo *repository.GormPaymentRepository
	authz       *authz.Service
	orders      *OrderService
	carts       *CartService
}

func newServiceTestEnv(t *testing.T) *serviceTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	t.Cleanup(func() {
		_ = models.CloseDB(db)
	})

	authzService, err := authz.NewService(db)
	if err != nil {
		t.Fatalf("init authz failed: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}

	env := &serviceTestEnv{
		db:          db,
		productRepo: repository.NewProductRepository(db),
		cartRepo:    repository.NewCartRepository(db),
		orderRepo:   repository.NewOrderRepository(db),
		logRepo:     repository.NewOrderStatusLogRepository(db),
		paymentRepo: repository.NewPaymentRepository(db),
		authz:       authzService,
	}
	env.orders = NewOrderService(env.orderRepo, env.logRepo, env.paymentRepo, authzService, nil)
	env.carts = NewCartService(env.cartRepo, env.productRepo)
	return env
}

func (e *serviceTestEnv) createProduct(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:        name,
		Description: name + " description",
		Price:       models.MustMoney(price),
		Stock:       stock,
	}
	if err := e.productRepo.Create(product); err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func (e *serviceTestEnv) createPendingOrder(t *testing.T, userID uint, product *models.Product, qty int) *models.Order {
	t.Helper()
	order := &models.Order{
		UserID:   userID,
		Currency: "usd",
		Total:    product.Price.Mul(qty),
	}
	items := []models.OrderItem{{ProductID: product.ID, Quantity: qty, Price: product.Price}}
	if err := e.orders.Create(order, items); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func (e *serviceTestEnv) reloadOrder(t *testing.T, orderID uint) *models.Order {
	t.Helper()
	order, err := e.orderRepo.GetByID(orderID)
	if err != nil || order == nil {
		t.Fatalf("reload order failed: order=%v err=%v", order, err)
	}
	return order
}

type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{seen: map[string]bool{}}
}

func (d *memoryDeduper) Seen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[eventID], nil
}

func (d *memoryDeduper) Mark(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[eventID] = true
	return nil
}
