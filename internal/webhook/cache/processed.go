// Package cache holds the redis side of webhook ingestion: short-lived
// markers for processed deliveries and the per-event processing lock.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fieldrunner/internal/config"
	"github.com/smallbiznis/fieldrunner/internal/webhook/domain"
)

const (
	keyProcessed = "webhook:processed:%s"
	defaultTTL   = 24 * time.Hour
)

type ProcessedCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProcessedCache(client *redis.Client, ttl time.Duration) *ProcessedCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ProcessedCache{client: client, ttl: ttl}
}

// Provide builds the cache over the shared client. Without a client it
// returns a nil interface and the service goes straight to the event log.
func Provide(client *redis.Client, cfg config.Config) domain.ProcessedCache {
	if client == nil {
		return nil
	}
	return NewProcessedCache(client, cfg.Webhook.ProcessedTTL)
}

func (c *ProcessedCache) IsProcessed(ctx context.Context, providerEventID string) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	if providerEventID == "" {
		return false, errors.New("provider event id is empty")
	}
	n, err := c.client.Exists(ctx, fmt.Sprintf(keyProcessed, providerEventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *ProcessedCache) MarkProcessed(ctx context.Context, providerEventID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if providerEventID == "" {
		return errors.New("provider event id is empty")
	}
	return c.client.Set(ctx, fmt.Sprintf(keyProcessed, providerEventID), time.Now().UTC().Unix(), c.ttl).Err()
}
