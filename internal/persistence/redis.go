package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/config"
)

// Redis holds the client shared by the workflow step store and the event
// stream dispatcher.
type Redis struct {
	Client *redis.Client
}

// ConnectRedis dials Redis and waits up to timeout for a PING reply. On error
// the client is already closed; callers fall back to in-process backends.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, timeout time.Duration, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}

	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &Redis{Client: client}, nil
}

// Close is safe on a nil Redis.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}
