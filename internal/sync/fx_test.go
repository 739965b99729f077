package sync

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	catalogdomain "github.com/bolibana/boutique/internal/catalog/domain"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestRegisterHooks_StopReleasesResources(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	guard := NewGuard(client)

	db := openTestDB(t)
	upstream := &fakeUpstream{
		categories: []map[string]any{
			{"id": 10, "name": "Epicerie", "slug": "epicerie"},
		},
	}
	srv := upstream.server(t)
	rec, fake := newTestReconciler(t, db, srv.URL, Config{MinInterval: time.Minute})

	sched := NewScheduler(SchedulerParams{
		Log:        zap.NewNop(),
		Guard:      guard,
		Reconciler: rec,
		Vault:      &staticVault{key: "test-key"},
		Clock:      fake,
		Cfg:        Config{MinInterval: time.Minute},
	})
	worker := NewWorker(zap.NewNop(), sched, Config{MinInterval: time.Minute})

	lc := fxtest.NewLifecycle(t)
	registerHooks(lc, worker, client)
	lc.RequireStart()

	// The worker ticks once right after start.
	assert.Eventually(t, func() bool {
		var count int64
		return db.Model(&catalogdomain.Category{}).Count(&count).Error == nil && count == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Stopping the lifecycle must actually reach the OnStop hook: the redis
	// client ends up closed and the worker context cancelled.
	lc.RequireStop()
	assert.ErrorIs(t, client.Ping(context.Background()).Err(), redis.ErrClosed)
}
