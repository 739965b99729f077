package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bolibana/boutique/internal/b2b"
	catalogdomain "github.com/bolibana/boutique/internal/catalog/domain"
	"github.com/bolibana/boutique/internal/config"
	saledomain "github.com/bolibana/boutique/internal/sale/domain"
	"github.com/bolibana/boutique/internal/sync"
	vaultdomain "github.com/bolibana/boutique/internal/vault/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, scheduler *sync.Scheduler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(sync.TriggerMiddleware(scheduler, log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, scheduler *sync.Scheduler) *gin.Engine {
	return NewEngine(log, scheduler)
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	db        *gorm.DB
	log       *zap.Logger
	catalog   catalogdomain.Repository
	client    *b2b.Client
	vault     vaultdomain.Service
	uploader  saledomain.Uploader
	scheduler *sync.Scheduler
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	Catalog   catalogdomain.Repository
	Client    *b2b.Client
	Vault     vaultdomain.Service
	Uploader  saledomain.Uploader
	Scheduler *sync.Scheduler
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		db:        p.DB,
		log:       p.Log.Named("server"),
		catalog:   p.Catalog,
		client:    p.Client,
		vault:     p.Vault,
		uploader:  p.Uploader,
		scheduler: p.Scheduler,
	}

	svc.registerInventoryRoutes()

	return svc
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
