package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sapdesk/sapdesk/internal/config"
)

// Redis holds the client backing the dashboard-stats cache and the scheduler
// heartbeat. Both degrade gracefully when the server is unreachable.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds the client. Connection problems are logged, not fatal.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unreachable, cache and heartbeat degraded", zap.Error(err))
	} else {
		logger.Info("redis connected", zap.String("addr", cfg.Addr))
	}

	return &Redis{Client: client}
}

// Close releases the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping reports cache connectivity; the readiness probe surfaces it.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
