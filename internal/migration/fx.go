package migration

import (
	catalogdomain "github.com/bolibana/boutique/internal/catalog/domain"
	"github.com/bolibana/boutique/internal/config"
	orderdomain "github.com/bolibana/boutique/internal/order/domain"
	saledomain "github.com/bolibana/boutique/internal/sale/domain"
	vaultdomain "github.com/bolibana/boutique/internal/vault/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// mysql and sqlite deployments are dev or single-node
			// setups; gorm derives the same schema there.
			return conn.AutoMigrate(
				&catalogdomain.Category{},
				&catalogdomain.CategoryMapping{},
				&catalogdomain.Product{},
				&catalogdomain.ProductMapping{},
				&catalogdomain.ProductImageAsset{},
				&vaultdomain.ApiKey{},
				&orderdomain.Order{},
				&orderdomain.OrderItem{},
				&saledomain.OrderSyncRecord{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
