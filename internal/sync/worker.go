package sync

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Worker drives periodic syncs. Every tick it offers both kinds to the
// scheduler, which turns the offer down when a run is already in flight or
// the cooldown has not elapsed.
type Worker struct {
	log       *zap.Logger
	scheduler *Scheduler
	interval  time.Duration
}

func NewWorker(log *zap.Logger, scheduler *Scheduler, cfg Config) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		log:       log.Named("sync.worker"),
		scheduler: scheduler,
		interval:  cfg.MinInterval,
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Categories first so products never reference an unknown tree.
	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	for _, kind := range []Kind{KindCategories, KindProducts} {
		if err := ctx.Err(); err != nil {
			return
		}
		result := w.scheduler.SyncNow(ctx, kind, false)
		if !result.Success && result.Reason != ReasonCooldown && result.Reason != ReasonInProgress {
			w.log.Warn("periodic sync did not run",
				zap.String("kind", string(kind)),
				zap.String("reason", result.Reason))
		}
	}
}
