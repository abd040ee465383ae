package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL  = 3 * time.Minute
	defaultPoll = 100 * time.Millisecond
	keyPrefix   = "conversation_lock:"
)

// releaseScript deletes the lock only while it still holds our token.
// KEYS[1] = lock key
// ARGV[1] = token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

type Config struct {
	// TTL bounds how long a crashed holder can block a conversation.
	TTL time.Duration
	// Poll is the wait between acquisition attempts.
	Poll time.Duration
}

// RedisKeyLocker serializes conversation runs across worker processes.
type RedisKeyLocker struct {
	client *redis.Client
	cfg    Config
}

func NewRedisKeyLocker(client *redis.Client, cfg Config) *RedisKeyLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Poll <= 0 {
		cfg.Poll = defaultPoll
	}
	return &RedisKeyLocker{client: client, cfg: cfg}
}

// Lock blocks until key is acquired or ctx is done. The returned func releases the
// lock at most once.
func (l *RedisKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.cfg.Poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.cfg.TTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(ctx, key, redisKey, token) })
	}, nil
}

func (l *RedisKeyLocker) release(ctx context.Context, key, redisKey, token string) {
	// Release even when the run's context was cancelled.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	n, err := releaseScript.Run(rctx, l.client, []string{redisKey}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		slog.WarnContext(rctx, "releasing conversation lock failed", "error", err, "key", key)
		return
	}
	if n == 0 {
		slog.WarnContext(rctx, "conversation lock expired before release", "key", key, "ttl", l.cfg.TTL)
	}
}
