package main

import (
	"github.com/bolibana/boutique/internal/b2b"
	"github.com/bolibana/boutique/internal/catalog"
	"github.com/bolibana/boutique/internal/clock"
	"github.com/bolibana/boutique/internal/config"
	"github.com/bolibana/boutique/internal/images"
	"github.com/bolibana/boutique/internal/logger"
	"github.com/bolibana/boutique/internal/migration"
	"github.com/bolibana/boutique/internal/sale"
	"github.com/bolibana/boutique/internal/server"
	"github.com/bolibana/boutique/internal/sync"
	"github.com/bolibana/boutique/internal/vault"
	"github.com/bolibana/boutique/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		vault.Module,
		catalog.Module,
		b2b.Module,
		images.Module,
		sale.Module,
		sync.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
