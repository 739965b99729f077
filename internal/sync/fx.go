package sync

import (
	"context"
	"strings"

	appconfig "github.com/bolibana/boutique/internal/config"
	"github.com/bolibana/boutique/internal/observability/metrics"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sync",
	fx.Provide(
		NewRedisClient,
		NewGuard,
		FromApp,
		NewMetrics,
		NewReconciler,
		NewScheduler,
		NewWorker,
	),
	fx.Invoke(registerHooks),
)

func NewRedisClient(cfg appconfig.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.RedisAddr),
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
}

func NewMetrics(cfg appconfig.Config) *metrics.SyncMetrics {
	return metrics.SyncWithConfig(metrics.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	})
}

func registerHooks(lc fx.Lifecycle, worker *Worker, client *redis.Client) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return client.Close()
		},
	})
}
