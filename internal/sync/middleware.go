package sync

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TriggerMiddleware opportunistically starts a background sync when a
// storefront page is served and the catalog looks stale. The request itself
// is never delayed and never fails because of the trigger.
func TriggerMiddleware(scheduler *Scheduler, log *zap.Logger) gin.HandlerFunc {
	log = log.Named("sync.trigger")
	paths := map[string]bool{}
	for _, p := range scheduler.cfg.TriggerPaths {
		paths[p] = true
	}

	return func(c *gin.Context) {
		if c.Request.Method == "GET" && paths[c.Request.URL.Path] {
			go maybeTrigger(scheduler, log)
		}
		c.Next()
	}
}

func maybeTrigger(scheduler *Scheduler, log *zap.Logger) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Warn("opportunistic trigger panicked", zap.Any("panic", recovered))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, kind := range []Kind{KindCategories, KindProducts} {
		last, err := scheduler.guard.LastRun(ctx, kind)
		if err != nil {
			return
		}
		if !last.IsZero() && scheduler.clock.Now().Sub(last) < scheduler.cfg.TriggerMaxAge {
			continue
		}
		if scheduler.TriggerAsync(kind, false) {
			log.Info("stale catalog, background sync triggered", zap.String("kind", string(kind)))
		}
	}
}
