package ownership

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/janhq/jan-chat/internal/domain/generation"
	"github.com/janhq/jan-chat/internal/infrastructure/logger"
)

const keyPrefix = "jan-chat:lease:"

// RedisLeaser hands out per-conversation leases backed by redsync mutexes so a
// conversation is generated by at most one instance at a time.
type RedisLeaser struct {
	client redis.UniversalClient
	rs     *redsync.Redsync
	ttl    time.Duration
}

var _ generation.Leaser = (*RedisLeaser)(nil)

func NewRedisLeaser(redisURL string, ttl time.Duration) (*RedisLeaser, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("Redis URL must be provided")
	}
	opts, err := buildUniversalOptions(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if len(opts.Addrs) > 1 && opts.DB != 0 {
		log := logger.GetLogger()
		log.Warn().Msg("Ignoring non-zero DB when using Redis Cluster configuration")
		opts.DB = 0
	}

	client := redis.NewUniversalClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log := logger.GetLogger()
	log.Info().Msg("Successfully connected to Redis for generation ownership")
	return &RedisLeaser{
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
		ttl:    ttl,
	}, nil
}

// Acquire makes a single attempt; a key held elsewhere is reported as an error.
func (l *RedisLeaser) Acquire(ctx context.Context, key string) (generation.Lease, error) {
	mutex := l.rs.NewMutex(keyPrefix+key,
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	return &redisLease{mutex: mutex}, nil
}

func (l *RedisLeaser) Close() error {
	return l.client.Close()
}

type redisLease struct {
	mutex *redsync.Mutex
}

func (l *redisLease) Extend(ctx context.Context) error {
	ok, err := l.mutex.ExtendContext(ctx)
	if err != nil {
		return fmt.Errorf("extend lease %s: %w", l.mutex.Name(), err)
	}
	if !ok {
		return fmt.Errorf("extend lease %s: lease lost", l.mutex.Name())
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	if _, err := l.mutex.UnlockContext(ctx); err != nil {
		return fmt.Errorf("release lease %s: %w", l.mutex.Name(), err)
	}
	return nil
}

// buildUniversalOptions accepts a comma separated list of redis:// URLs or host:port pairs.
func buildUniversalOptions(raw string) (*redis.UniversalOptions, error) {
	opts := &redis.UniversalOptions{}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "://") {
			opts.Addrs = append(opts.Addrs, part)
			continue
		}

		parsed, err := redis.ParseURL(part)
		if err != nil {
			return nil, err
		}
		opts.Addrs = append(opts.Addrs, parsed.Addr)
		if opts.Username == "" {
			opts.Username = parsed.Username
		}
		if opts.Password == "" {
			opts.Password = parsed.Password
		}
		if opts.DB == 0 {
			opts.DB = parsed.DB
		}
		if opts.TLSConfig == nil {
			opts.TLSConfig = parsed.TLSConfig
		}
		if opts.DialTimeout == 0 {
			opts.DialTimeout = parsed.DialTimeout
		}
		if opts.PoolSize == 0 {
			opts.PoolSize = parsed.PoolSize
		}
	}

	if len(opts.Addrs) == 0 {
		return nil, fmt.Errorf("no Redis addresses provided")
	}
	return opts, nil
}
