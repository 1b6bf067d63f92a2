package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/carehub-backend/pkg/redis"
)

// Manager marks external references as processed per consumer using Redis
// SETNX with a TTL. Keys follow `ch:idempotency:processed:<consumer>:<ref>`.
// It is a fast-path guard; durable replay protection lives in the database.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// CheckAndMarkProcessed returns true if ref was already seen and otherwise
// marks it as processed.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, ref string) (bool, error) {
	key, err := m.processedKey(consumer, ref)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Delete clears the marker so a failed attempt can be retried.
func (m *Manager) Delete(ctx context.Context, consumer, ref string) error {
	key, err := m.processedKey(consumer, ref)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) processedKey(consumer, ref string) (string, error) {
	if strings.TrimSpace(consumer) == "" {
		return "", errors.New("consumer name is required")
	}
	if strings.TrimSpace(ref) == "" {
		return "", errors.New("reference is required")
	}
	return m.store.IdempotencyKey(fmt.Sprintf("processed:%s", consumer), ref), nil
}
