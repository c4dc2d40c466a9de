package main

import (
	"flag"

	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/service"
)

func main() {
	var tokenUserID uint
	flag.UintVar(&tokenUserID, "user", 1, "签发开发令牌的用户ID")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()
	stdLog := logger.StdLogger()

	db, err := models.OpenDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false)
	if err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	defer func() {
		_ = models.CloseDB(db)
	}()

	// 自动迁移
	if err := models.AutoMigrate(db); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	products := []models.Product{
		{
			Name:        "Mechanical Keyboard",
			Description: "87-key hot-swappable keyboard with brown switches.",
			Price:       models.MustMoney("89.00"),
			Stock:       40,
			ImageURL:    "/images/products/keyboard.png",
		},
		{
			Name:        "Wireless Mouse",
			Description: "Low-latency 2.4G mouse, 70 hour battery.",
			Price:       models.MustMoney("29.50"),
			Stock:       120,
			ImageURL:    "/images/products/mouse.png",
		},
		{
			Name:        "USB-C Hub",
			Description: "7-in-1 hub with HDMI, card reader and 100W passthrough.",
			Price:       models.MustMoney("45.99"),
			Stock:       60,
			ImageURL:    "/images/products/hub.png",
		},
		{
			Name:        "Desk Mat",
			Description: "900x400mm stitched-edge desk mat.",
			Price:       models.MustMoney("19.90"),
			Stock:       200,
			ImageURL:    "/images/products/desk-mat.png",
		},
		{
			Name:        "Limited Artisan Keycap",
			Description: "Hand-cast resin keycap, small batch.",
			Price:       models.MustMoney("55.00"),
			Stock:       3,
			ImageURL:    "/images/products/keycap.png",
		},
	}

	for i := range products {
		product := products[i]
		var existing models.Product
		if err := db.Where("name = ?", product.Name).Limit(1).Find(&existing).Error; err != nil {
			stdLog.Printf("Failed to check product %s: %v", product.Name, err)
			continue
		}
		if existing.ID != 0 {
			stdLog.Printf("Product already exists: %s (id=%d)", product.Name, existing.ID)
			continue
		}
		if err := db.Create(&product).Error; err != nil {
			stdLog.Printf("Failed to create product %s: %v", product.Name, err)
			continue
		}
		stdLog.Printf("Created product: %s (id=%d, price=%s)", product.Name, product.ID, product.Price.String())
	}

	// 令牌由外部认证服务签发，这里仅为本地联调生成
	for _, role := range []string{constants.RoleUser, constants.RoleAdmin} {
		userID := tokenUserID
		if role == constants.RoleAdmin {
			userID = 9000 + tokenUserID
		}
		token, expiresAt, err := service.SignUserToken(cfg.JWT.SecretKey, userID, role, cfg.JWT.ExpireHours)
		if err != nil {
			stdLog.Printf("Failed to sign %s token: %v", role, err)
			continue
		}
		stdLog.Printf("%s token (id=%d, expires %s): %s", role, userID, expiresAt.Format("2006-01-02 15:04"), token)
	}

	stdLog.Printf("Seed completed")
}
