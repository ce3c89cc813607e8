package redis

import (
	"context"
	"time"

	"github.com/muhammadchandra19/orderbook-aggregator/pkg/errors"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type client struct {
	logger  logger.Interface
	config  *Config
	cmdable redis.UniversalClient
}

// NewClient creates a new Redis client with the provided logger and configuration.
func NewClient(logger logger.Interface, config *Config) Client {
	return &client{
		logger: logger,
		config: config,
	}
}

// Validate reports every invalid setting of c at once.
func (c *Config) Validate() error {
	errs := errors.NewBaseError()
	invalid := func(message, field string) {
		errs.AddErrorDetails(errors.NewErrorDetails(message, string(errors.RedisConfigError), field))
	}

	if len(c.Addrs) == 0 {
		invalid("Redis addresses are empty", "addrs")
	}
	if c.Mode != Standalone && c.Mode != Cluster {
		invalid("Invalid Redis mode", "mode")
	}
	if c.ConnectTimeout <= 0 {
		invalid("Invalid Redis connect timeout", "connect_timeout")
	}
	if c.PoolSize <= 0 {
		invalid("Invalid Redis pool size", "pool_size")
	}
	if c.MaxIdleConns < 0 {
		invalid("Invalid Redis max idle connections", "max_idle_conns")
	}
	if c.ConnMaxLifetime <= 0 {
		invalid("Invalid Redis connection max lifetime", "conn_max_lifetime")
	}
	if c.ConnMaxIdleTime <= 0 {
		invalid("Invalid Redis connection max idle time", "conn_max_idle_time")
	}
	if c.PoolTimeout <= 0 {
		invalid("Invalid Redis pool timeout", "pool_timeout")
	}
	if c.MaxRetries < 0 {
		invalid("Invalid Redis max retries", "max_retries")
	}
	if c.MinRetryBackoff < 0 || c.MaxRetryBackoff < 0 {
		invalid("Invalid Redis retry backoff", "retry_backoff")
	}

	if errs.HasDetails() {
		return errs
	}
	return nil
}

func (c *client) Connect(ctx context.Context) error {
	if c.config == nil {
		return errors.NewErrorDetails("Redis config is nil", string(errors.RedisConfigError), "connect")
	}
	if err := c.config.Validate(); err != nil {
		return err
	}

	switch c.config.Mode {
	case Standalone:
		c.cmdable = redis.NewClient(&redis.Options{
			Addr:            c.config.Addrs[0],
			Username:        c.config.Username,
			Password:        c.config.Password,
			DB:              c.config.DB,
			MaxRetries:      c.config.MaxRetries,
			MinRetryBackoff: c.config.MinRetryBackoff,
			MaxRetryBackoff: c.config.MaxRetryBackoff,
			DialTimeout:     c.config.ConnectTimeout,
			ReadTimeout:     c.config.ConnectTimeout,
			WriteTimeout:    c.config.ConnectTimeout,
			PoolSize:        c.config.PoolSize,
			MinIdleConns:    c.config.MinIdleConns,
			MaxIdleConns:    c.config.MaxIdleConns,
			ConnMaxLifetime: c.config.ConnMaxLifetime,
			ConnMaxIdleTime: c.config.ConnMaxIdleTime,
			PoolTimeout:     c.config.PoolTimeout,
		})
	case Cluster:
		c.cmdable = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           c.config.Addrs,
			Username:        c.config.Username,
			Password:        c.config.Password,
			MaxRetries:      c.config.MaxRetries,
			MinRetryBackoff: c.config.MinRetryBackoff,
			MaxRetryBackoff: c.config.MaxRetryBackoff,
			DialTimeout:     c.config.ConnectTimeout,
			ReadTimeout:     c.config.ConnectTimeout,
			WriteTimeout:    c.config.ConnectTimeout,
			PoolSize:        c.config.PoolSize,
			MinIdleConns:    c.config.MinIdleConns,
			MaxIdleConns:    c.config.MaxIdleConns,
			ConnMaxLifetime: c.config.ConnMaxLifetime,
			ConnMaxIdleTime: c.config.ConnMaxIdleTime,
			PoolTimeout:     c.config.PoolTimeout,
		})
	}

	if err := c.cmdable.Ping(ctx).Err(); err != nil {
		c.logger.Error(errors.TracerFromError(err), logger.Field{
			Key:   "action",
			Value: "connect_redis",
		}, logger.Field{
			Key:   "addrs",
			Value: c.config.Addrs,
		})
		return errors.NewErrorDetails("Failed to connect to Redis", string(errors.RedisConnectionError), "connect")
	}

	c.logger.Info("Connected to Redis", logger.Field{
		Key:   "mode",
		Value: c.config.Mode,
	})
	return nil
}

func (c *client) Disconnect(ctx context.Context) error {
	if c.cmdable == nil {
		return nil
	}
	if err := c.cmdable.Close(); err != nil {
		return errors.NewErrorDetails("Failed to close Redis client", string(errors.RedisDisconnectionError), "disconnect")
	}
	return nil
}

func (c *client) Ping(ctx context.Context) error {
	if err := c.cmdable.Ping(ctx).Err(); err != nil {
		return errors.NewErrorDetails("Failed to ping Redis", string(errors.RedisPingError), "ping")
	}
	return nil
}

// Get returns an empty string without error when the key does not exist.
func (c *client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.cmdable.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", errors.NewErrorDetails("Failed to get value from Redis", string(errors.RedisGetError), "get")
	}
	return val, nil
}

func (c *client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if err := c.cmdable.Set(ctx, key, value, expiration).Err(); err != nil {
		return errors.NewErrorDetails("Failed to set value in Redis", string(errors.RedisSetError), "set")
	}
	return nil
}
