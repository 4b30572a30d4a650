package cache

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fieldrunner/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewClient connects to REDIS_ADDR. It returns nil when redis is not
// configured, which disables the processed cache and the event lock.
func NewClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		log.Info("redis not configured, processed event cache and event lock disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warn("redis unreachable, cache lookups will miss", zap.Error(err))
				}
				return nil
			},
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}
	return client
}
