package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/storefront-next/internal/authz"
	"github.com/storefront-next/internal/cache"
	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/queue"
	"github.com/storefront-next/internal/repository"
	"github.com/storefront-next/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client

	// Repositories
	ProductRepo        repository.ProductRepository
	CartRepo           repository.CartRepository
	OrderRepo          repository.OrderRepository
	OrderStatusLogRepo repository.OrderStatusLogRepository
	PaymentRepo        repository.PaymentRepository

	// Services
	AuthzService          *authz.Service
	PaymentGateway        service.PaymentGateway
	CatalogService        *service.CatalogService
	CartService           *service.CartService
	OrderService          *service.OrderService
	CheckoutService       *service.CheckoutService
	ReconciliationService *service.ReconciliationService
	PaymentService        *service.PaymentService
}

// Option 容器可选项
type Option func(*Container)

// WithPaymentGateway 替换默认的 Stripe 网关
func WithPaymentGateway(gateway service.PaymentGateway) Option {
	return func(c *Container) {
		c.PaymentGateway = gateway
	}
}

// NewContainer 初始化容器，数据库连接由调用方创建并负责关闭
func NewContainer(cfg *config.Config, db *gorm.DB, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if db == nil {
		return nil, errors.New("database is nil")
	}

	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	c := &Container{
		Config:      cfg,
		DB:          db,
		QueueClient: queueClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	if err := c.initServices(); err != nil {
		return nil, err
	}
	return c, nil
}

// Close 释放容器持有的外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_client_failed", "error", err)
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}

func (c *Container) initRepositories() {
	db := c.DB
	c.ProductRepo = repository.NewProductRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.OrderStatusLogRepo = repository.NewOrderStatusLogRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
}

func (c *Container) initServices() error {
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		return fmt.Errorf("init authz: %w", err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		return fmt.Errorf("bootstrap roles: %w", err)
	}

	if c.PaymentGateway == nil {
		c.PaymentGateway = service.NewStripeGateway(c.Config.Stripe)
	}
	dedupeTTL := time.Duration(c.Config.Webhook.DedupeTTLHours) * time.Hour
	catalogTTL := time.Duration(c.Config.Catalog.CacheTTLSeconds) * time.Second

	c.CatalogService = service.NewCatalogService(c.ProductRepo, catalogTTL)
	c.CartService = service.NewCartService(c.CartRepo, c.ProductRepo)
	c.OrderService = service.NewOrderService(c.OrderRepo, c.OrderStatusLogRepo, c.PaymentRepo, c.AuthzService, c.QueueClient)
	c.CheckoutService = service.NewCheckoutService(c.CartRepo, c.ProductRepo, c.PaymentRepo, c.OrderService, c.PaymentGateway, c.Config.Stripe.Currency)
	c.ReconciliationService = service.NewReconciliationService(
		c.PaymentGateway,
		c.OrderService,
		c.PaymentRepo,
		service.NewRedisEventDeduper(constants.PaymentProviderStripe, dedupeTTL),
	)
	c.PaymentService = service.NewPaymentService(c.PaymentRepo, c.OrderRepo, c.PaymentGateway)
	return nil
}
