package sync

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bolibana/boutique/internal/clock"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestScheduler(t *testing.T, key string, upstream *fakeUpstream, cfg Config) (*Scheduler, *Guard, *clock.FakeClock) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	guard := NewGuard(client)

	db := openTestDB(t)
	srv := upstream.server(t)
	rec, fake := newTestReconciler(t, db, srv.URL, cfg)

	sched := NewScheduler(SchedulerParams{
		Log:        zap.NewNop(),
		Guard:      guard,
		Reconciler: rec,
		Vault:      &staticVault{key: key},
		Clock:      fake,
		Cfg:        cfg,
	})
	return sched, guard, fake
}

func TestSyncNow_RunsAndReleasesLock(t *testing.T) {
	upstream := &fakeUpstream{
		categories: []map[string]any{
			{"id": 10, "name": "Epicerie", "slug": "epicerie"},
		},
	}
	sched, guard, _ := newTestScheduler(t, "test-key", upstream, Config{MinInterval: 10 * time.Minute})
	ctx := context.Background()

	result := sched.SyncNow(ctx, KindCategories, false)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Stats.Created)

	locked, err := guard.IsLocked(ctx, KindCategories)
	assert.NoError(t, err)
	assert.False(t, locked)

	last, err := guard.LastRun(ctx, KindCategories)
	assert.NoError(t, err)
	assert.False(t, last.IsZero())
}

func TestSyncNow_SingleFlight(t *testing.T) {
	upstream := &fakeUpstream{}
	sched, guard, _ := newTestScheduler(t, "test-key", upstream, Config{MinInterval: 10 * time.Minute})
	ctx := context.Background()

	_, acquired, err := guard.TryLock(ctx, KindProducts, time.Minute)
	assert.NoError(t, err)
	assert.True(t, acquired)

	result := sched.SyncNow(ctx, KindProducts, false)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonInProgress, result.Reason)

	// Force does not bypass the mutual exclusion lock.
	result = sched.SyncNow(ctx, KindProducts, true)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonInProgress, result.Reason)
}

func TestSyncNow_CooldownAndForce(t *testing.T) {
	upstream := &fakeUpstream{
		categories: []map[string]any{
			{"id": 10, "name": "Epicerie", "slug": "epicerie"},
		},
	}
	sched, _, fake := newTestScheduler(t, "test-key", upstream, Config{MinInterval: 10 * time.Minute})
	ctx := context.Background()

	assert.True(t, sched.SyncNow(ctx, KindCategories, false).Success)

	result := sched.SyncNow(ctx, KindCategories, false)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonCooldown, result.Reason)

	// Force bypasses the cooldown.
	assert.True(t, sched.SyncNow(ctx, KindCategories, true).Success)

	// And the cooldown naturally elapses.
	fake.Advance(11 * time.Minute)
	assert.True(t, sched.SyncNow(ctx, KindCategories, false).Success)
}

func TestSyncNow_NoCredential(t *testing.T) {
	upstream := &fakeUpstream{}
	sched, guard, _ := newTestScheduler(t, "", upstream, Config{MinInterval: 10 * time.Minute})
	ctx := context.Background()

	result := sched.SyncNow(ctx, KindProducts, false)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonNoCredential, result.Reason)

	locked, err := guard.IsLocked(ctx, KindProducts)
	assert.NoError(t, err)
	assert.False(t, locked)

	// A skipped run must not count as a successful one.
	last, err := guard.LastRun(ctx, KindProducts)
	assert.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestShouldSync(t *testing.T) {
	upstream := &fakeUpstream{
		categories: []map[string]any{
			{"id": 10, "name": "Epicerie", "slug": "epicerie"},
		},
	}
	sched, guard, fake := newTestScheduler(t, "test-key", upstream, Config{MinInterval: 10 * time.Minute})
	ctx := context.Background()

	allowed, reason := sched.ShouldSync(ctx, KindCategories)
	assert.True(t, allowed)
	assert.Empty(t, reason)

	assert.True(t, sched.SyncNow(ctx, KindCategories, false).Success)
	allowed, reason = sched.ShouldSync(ctx, KindCategories)
	assert.False(t, allowed)
	assert.Equal(t, ReasonCooldown, reason)

	fake.Advance(11 * time.Minute)
	allowed, _ = sched.ShouldSync(ctx, KindCategories)
	assert.True(t, allowed)

	token, acquired, err := guard.TryLock(ctx, KindCategories, time.Minute)
	assert.NoError(t, err)
	assert.True(t, acquired)
	allowed, reason = sched.ShouldSync(ctx, KindCategories)
	assert.False(t, allowed)
	assert.Equal(t, ReasonInProgress, reason)
	assert.NoError(t, guard.Release(ctx, KindCategories, token))
}

func TestTriggerAsync_CollapsesConcurrentTriggers(t *testing.T) {
	upstream := &fakeUpstream{
		categories: []map[string]any{
			{"id": 10, "name": "Epicerie", "slug": "epicerie"},
		},
	}
	sched, guard, _ := newTestScheduler(t, "test-key", upstream, Config{MinInterval: 10 * time.Minute})
	ctx := context.Background()

	_, acquired, err := guard.TryLock(ctx, KindCategories, time.Minute)
	assert.NoError(t, err)
	assert.True(t, acquired)

	// Lock already held: the trigger is refused at the call site.
	assert.False(t, sched.TriggerAsync(KindCategories, false))

	_, err = guard.client.Del(ctx, lockKey(KindCategories)).Result()
	assert.NoError(t, err)

	assert.True(t, sched.TriggerAsync(KindCategories, false))
	assert.Eventually(t, func() bool {
		locked, err := guard.IsLocked(ctx, KindCategories)
		return err == nil && !locked
	}, 5*time.Second, 10*time.Millisecond)

	last, err := guard.LastRun(ctx, KindCategories)
	assert.NoError(t, err)
	assert.False(t, last.IsZero())
}

func TestGuard_ReleaseIsTokenGuarded(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	guard := NewGuard(client)
	ctx := context.Background()

	token, acquired, err := guard.TryLock(ctx, KindProducts, time.Minute)
	assert.NoError(t, err)
	assert.True(t, acquired)

	// A stale token must not release someone else's lock.
	assert.NoError(t, guard.Release(ctx, KindProducts, "stale-token"))
	locked, err := guard.IsLocked(ctx, KindProducts)
	assert.NoError(t, err)
	assert.True(t, locked)

	assert.NoError(t, guard.Release(ctx, KindProducts, token))
	locked, err = guard.IsLocked(ctx, KindProducts)
	assert.NoError(t, err)
	assert.False(t, locked)
}

func TestShouldSync_NoCredential(t *testing.T) {
	upstream := &fakeUpstream{}
	sched, _, _ := newTestScheduler(t, "", upstream, Config{MinInterval: 10 * time.Minute})

	allowed, reason := sched.ShouldSync(context.Background(), KindProducts)
	assert.False(t, allowed)
	assert.Equal(t, ReasonNoCredential, reason)
}
