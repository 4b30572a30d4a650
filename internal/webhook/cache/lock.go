package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fieldrunner/internal/config"
	"github.com/smallbiznis/fieldrunner/internal/webhook/domain"
)

const (
	keyEventLock   = "webhook:lock:%s"
	defaultLockTTL = 30 * time.Second
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// EventLock keeps two replicas from processing the same delivery at once.
// The TTL bounds how long a crashed holder blocks redelivery.
type EventLock struct {
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
}

func NewEventLock(client *redis.Client, ttl time.Duration) *EventLock {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &EventLock{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		ttl:    ttl,
	}
}

// ProvideLocker returns a nil interface when redis is not configured.
func ProvideLocker(client *redis.Client, cfg config.Config) domain.EventLocker {
	if client == nil {
		return nil
	}
	return NewEventLock(client, cfg.Webhook.LockTTL)
}

func (l *EventLock) TryLock(ctx context.Context, providerEventID string) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if providerEventID == "" {
		return "", false, errors.New("provider event id is empty")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, fmt.Sprintf(keyEventLock, providerEventID), token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release only deletes the lock while it still holds token, so an expired
// holder cannot free a lock taken over by another replica.
func (l *EventLock) Release(ctx context.Context, providerEventID, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if providerEventID == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{fmt.Sprintf(keyEventLock, providerEventID)}, token).Err()
}
