package keylock

import (
	"TextDesk/internal/lib/sl"
	"context"
	"fmt"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"time"
)

const lockPrefix = "textdesk:conv:"

// Redis holds per-key locks across service instances.
type Redis struct {
	client *redis.Client
	rs     *redsync.Redsync
	ttl    time.Duration
	log    *slog.Logger
}

func NewRedis(url string, ttl time.Duration, log *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
		ttl:    ttl,
		log:    log.With(sl.Module("keylock.redis")),
	}, nil
}

func (r *Redis) Lock(ctx context.Context, keys ...string) (Unlocker, error) {
	keys = normalize(keys)
	held := make([]*redsync.Mutex, 0, len(keys))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			if _, err := held[i].Unlock(); err != nil {
				r.log.Warn("unlock failed", slog.String("lock", held[i].Name()), sl.Err(err))
			}
		}
	}
	for _, key := range keys {
		mutex := r.rs.NewMutex(lockPrefix+key, redsync.WithExpiry(r.ttl))
		if err := mutex.LockContext(ctx); err != nil {
			unlock()
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		held = append(held, mutex)
	}
	return unlock, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
