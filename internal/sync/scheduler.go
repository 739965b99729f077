package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/bolibana/boutique/internal/clock"
	"github.com/bolibana/boutique/internal/observability/metrics"
	vaultdomain "github.com/bolibana/boutique/internal/vault/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type SchedulerParams struct {
	fx.In

	Log        *zap.Logger
	Guard      *Guard
	Reconciler *Reconciler
	Vault      vaultdomain.Service
	Clock      clock.Clock
	Cfg        Config
	Metrics    *metrics.SyncMetrics
}

// Scheduler decides when a sync may run and guarantees at most one run per
// kind across all replicas. Product and category runs are locked independently.
type Scheduler struct {
	log        *zap.Logger
	guard      *Guard
	reconciler *Reconciler
	vault      vaultdomain.Service
	clock      clock.Clock
	cfg        Config
	metrics    *metrics.SyncMetrics
}

func NewScheduler(p SchedulerParams) *Scheduler {
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		guard:      p.Guard,
		reconciler: p.Reconciler,
		vault:      p.Vault,
		clock:      p.Clock,
		cfg:        p.Cfg.withDefaults(),
		metrics:    p.Metrics,
	}
}

// ShouldSync reports whether a run of the given kind would be allowed right
// now, without taking the lock.
func (s *Scheduler) ShouldSync(ctx context.Context, kind Kind) (bool, string) {
	if s.vault.GetActiveKey(ctx) == "" {
		return false, ReasonNoCredential
	}
	locked, err := s.guard.IsLocked(ctx, kind)
	if err != nil {
		return false, ReasonError
	}
	if locked {
		return false, ReasonInProgress
	}
	last, err := s.guard.LastRun(ctx, kind)
	if err != nil {
		return false, ReasonError
	}
	if !last.IsZero() && s.clock.Now().Sub(last) < s.cfg.MinInterval {
		return false, ReasonCooldown
	}
	return true, ""
}

// SyncNow runs a sync of the given kind synchronously. It acquires the
// per-kind lock, honors the cooldown unless force is set, and always releases
// the lock, even when the reconciler panics.
func (s *Scheduler) SyncNow(ctx context.Context, kind Kind, force bool) *Result {
	token, acquired, err := s.guard.TryLock(ctx, kind, s.cfg.LockTTL)
	if err != nil {
		s.log.Error("lock acquisition failed", zap.String("kind", string(kind)), zap.Error(err))
		return &Result{Reason: ReasonError}
	}
	if !acquired {
		return &Result{Reason: ReasonInProgress}
	}
	return s.run(ctx, kind, force, token)
}

// TriggerAsync starts a sync in the background. The lock is taken at the call
// site so concurrent triggers collapse into one run; the spawned goroutine
// inherits the duty to release it.
func (s *Scheduler) TriggerAsync(kind Kind, force bool) bool {
	ctx := context.Background()
	token, acquired, err := s.guard.TryLock(ctx, kind, s.cfg.LockTTL)
	if err != nil {
		s.log.Error("lock acquisition failed", zap.String("kind", string(kind)), zap.Error(err))
		return false
	}
	if !acquired {
		return false
	}
	go s.run(ctx, kind, force, token)
	return true
}

// run executes one reconciliation under an already held lock and releases it
// on every path.
func (s *Scheduler) run(ctx context.Context, kind Kind, force bool, token string) (result *Result) {
	started := s.clock.Now()

	defer func() {
		if recovered := recover(); recovered != nil {
			s.log.Error("sync panicked",
				zap.String("kind", string(kind)),
				zap.Any("panic", recovered))
			result = &Result{Reason: ReasonError}
		}
		if err := s.guard.Release(ctx, kind, token); err != nil {
			s.log.Warn("lock release failed", zap.String("kind", string(kind)), zap.Error(err))
		}
		s.observe(kind, started, result)
	}()

	if !force {
		last, err := s.guard.LastRun(ctx, kind)
		if err == nil && !last.IsZero() && s.clock.Now().Sub(last) < s.cfg.MinInterval {
			return &Result{Reason: ReasonCooldown}
		}
	}

	if s.vault.GetActiveKey(ctx) == "" {
		s.log.Warn("sync skipped, no upstream credential configured", zap.String("kind", string(kind)))
		return &Result{Reason: ReasonNoCredential}
	}

	s.log.Info("sync starting", zap.String("kind", string(kind)), zap.Bool("force", force))

	var stats *Stats
	var err error
	switch kind {
	case KindCategories:
		stats, err = s.reconciler.SyncCategories(ctx)
	case KindProducts:
		stats, err = s.reconciler.SyncProducts(ctx)
	default:
		err = fmt.Errorf("unknown sync kind %q", kind)
	}
	if err != nil {
		s.log.Error("sync failed",
			zap.String("kind", string(kind)),
			zap.Error(err))
		return &Result{Reason: ReasonError, Stats: stats}
	}

	now := s.clock.Now()
	// The timestamp outlives one interval so a missed run still reads as
	// recent, but a dead scheduler cannot suppress syncing forever.
	if err := s.guard.SetLastRun(ctx, kind, now, 2*s.cfg.MinInterval); err != nil {
		s.log.Warn("could not record sync timestamp", zap.String("kind", string(kind)), zap.Error(err))
	}

	s.log.Info("sync finished",
		zap.String("kind", string(kind)),
		zap.Int("total", stats.Total),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("errors", stats.Errors),
		zap.Duration("took", now.Sub(started)))

	return &Result{Success: true, Stats: stats}
}

func (s *Scheduler) observe(kind Kind, started time.Time, result *Result) {
	if s.metrics == nil || result == nil {
		return
	}
	took := s.clock.Now().Sub(started)
	s.metrics.ObserveDuration(string(kind), took)
	switch {
	case result.Success:
		s.metrics.IncRun(string(kind), metrics.SyncResultSuccess)
		s.metrics.SetLastSuccess(string(kind), s.clock.Now())
	case result.Reason == ReasonError:
		s.metrics.IncRun(string(kind), metrics.SyncResultError)
	default:
		s.metrics.IncRun(string(kind), metrics.SyncResultSkipped)
	}
	if result.Stats != nil {
		s.metrics.AddRecordErrors(string(kind), result.Stats.Errors)
	}
}
