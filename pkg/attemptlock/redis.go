package attemptlock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidRedisURL = errors.New("attemptlock: failed to parse redis connection string")
	ErrRedisNotReady   = errors.New("attemptlock: redis did not become ready")
)

const defaultKeyPrefix = "checkout:attempt:"

// releaseScript deletes the key only if it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker backed by SET NX with expiry.
type Redis struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ Locker = (*Redis)(nil)

// NewRedis creates a Redis locker. Panics if client is nil.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if client == nil {
		panic("attemptlock: redis client cannot be nil")
	}
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix, now: time.Now}
}

// Acquire sets the key only if it is absent, with ttl as expiry.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.prefix+key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lease{Key: key, Token: token, ExpiresAt: r.now().Add(ttl)}, nil
}

// Release deletes the key if it still holds the lease token.
func (r *Redis) Release(ctx context.Context, lease *Lease) error {
	if lease == nil || lease.Key == "" {
		return ErrInvalidLease
	}
	n, err := releaseScript.Run(ctx, r.client, []string{r.prefix + lease.Key}, lease.Token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Ping checks that Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// RedisConfig holds the connection settings.
type RedisConfig struct {
	URL            string        `env:"REDIS_URL"`
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"checkout:attempt:"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"15s"`
}

// Connect opens a Redis client, retrying the first ping.
func Connect(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrInvalidRedisURL, err)
	}

	attempts := max(cfg.RetryAttempts, 1)
	var lastErr error
	for i := range attempts {
		client := redis.NewClient(opt)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, errors.Join(ErrRedisNotReady, lastErr)
}
