package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPingTimeout  = 5 * time.Second
	defaultWriteTimeout = 3 * time.Second
	defaultPoolTimeout  = 4 * time.Second
)

// Config holds Redis configuration
type Config struct {
	// Addr overrides Host and Port when set, e.g. for an embedded test server.
	Addr        string
	Host        string
	Port        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	MinIdleConn int
	DialTimeout time.Duration
	ReadTimeout time.Duration
	PingTimeout time.Duration
}

// Address returns the host:port the client dials
func (c Config) Address() string {
	if c.Addr != "" {
		return c.Addr
	}
	return net.JoinHostPort(c.Host, c.Port)
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:         c.Address(),
		Password:     c.Password,
		DB:           c.DB,
		MaxRetries:   c.MaxRetries,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConn,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		PoolTimeout:  defaultPoolTimeout,
	}
}

// NewRedisClient creates a Redis client and verifies the server answers
func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(cfg.options())

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address(), err),
			client.Close(),
		)
	}
	return client, nil
}

// Close closes the client; nil is a no-op
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// GetClientStats reports connection pool counters keyed for APM
func GetClientStats(client *redis.Client) map[string]interface{} {
	s := client.PoolStats()
	return map[string]interface{}{
		"hits":        s.Hits,
		"misses":      s.Misses,
		"timeouts":    s.Timeouts,
		"total_conns": s.TotalConns,
		"idle_conns":  s.IdleConns,
		"stale_conns": s.StaleConns,
	}
}

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1]
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SetWithExpiry stores value under key for expiry
func SetWithExpiry(ctx context.Context, client redis.Cmdable, key string, value interface{}, expiry time.Duration) error {
	return client.Set(ctx, key, value, expiry).Err()
}

// Get returns redis.Nil when key is absent
func Get(ctx context.Context, client redis.Cmdable, key string) (string, error) {
	return client.Get(ctx, key).Result()
}

// Delete removes keys unconditionally
func Delete(ctx context.Context, client redis.Cmdable, keys ...string) error {
	return client.Del(ctx, keys...).Err()
}

// DeleteIfEquals removes key only if its value is still expected.
// Returns true when the key was deleted.
func DeleteIfEquals(ctx context.Context, client redis.Scripter, key, expected string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, client, []string{key}, expected).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
