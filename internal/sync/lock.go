package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const guardReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Guard is the redis side of the run protocol: a per-kind mutual exclusion
// lock plus the last successful run timestamp used for cooldown checks.
type Guard struct {
	client *redis.Client
	script *redis.Script
}

func NewGuard(client *redis.Client) *Guard {
	if client == nil {
		return nil
	}
	return &Guard{
		client: client,
		script: redis.NewScript(guardReleaseScript),
	}
}

func lockKey(kind Kind) string      { return fmt.Sprintf("boutique:sync:lock:%s", kind) }
func timestampKey(kind Kind) string { return fmt.Sprintf("boutique:sync:last:%s", kind) }

// TryLock acquires the per-kind lock and returns a release token. The token
// makes release safe after the TTL expired and another worker took the lock.
func (g *Guard) TryLock(ctx context.Context, kind Kind, ttl time.Duration) (string, bool, error) {
	if g == nil || g.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, lockKey(kind), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release deletes the lock only when it still holds the caller's token.
func (g *Guard) Release(ctx context.Context, kind Kind, token string) error {
	if g == nil || g.client == nil || token == "" {
		return nil
	}
	return g.script.Run(ctx, g.client, []string{lockKey(kind)}, token).Err()
}

func (g *Guard) IsLocked(ctx context.Context, kind Kind) (bool, error) {
	if g == nil || g.client == nil {
		return false, errors.New("lock client not configured")
	}
	n, err := g.client.Exists(ctx, lockKey(kind)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetLastRun records a successful run. The entry expires on its own so a
// stale timestamp can never suppress syncing forever.
func (g *Guard) SetLastRun(ctx context.Context, kind Kind, at time.Time, ttl time.Duration) error {
	if g == nil || g.client == nil {
		return errors.New("lock client not configured")
	}
	return g.client.Set(ctx, timestampKey(kind), at.UTC().Format(time.RFC3339), ttl).Err()
}

// LastRun returns the recorded timestamp of the last successful run, or the
// zero time when none is recorded.
func (g *Guard) LastRun(ctx context.Context, kind Kind) (time.Time, error) {
	if g == nil || g.client == nil {
		return time.Time{}, errors.New("lock client not configured")
	}
	raw, err := g.client.Get(ctx, timestampKey(kind)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, nil
	}
	return at, nil
}
