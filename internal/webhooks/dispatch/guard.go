package dispatchwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/stowaway-backend/pkg/redis"
)

// Scope namespaces dispatch delivery fingerprints in Redis.
const Scope = "dispatch-webhook"

// IdempotencyGuard suppresses redeliveries of the same dispatch trigger within ttl.
// Persisted status transitions remain the authority; the guard only saves work.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether fingerprint was already seen, marking it otherwise.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, errors.New("fingerprint is required")
	}
	key := g.store.IdempotencyKey(g.scope, fingerprint)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete releases fingerprint so a redelivery can run again.
func (g *IdempotencyGuard) Delete(ctx context.Context, fingerprint string) error {
	if fingerprint == "" {
		return errors.New("fingerprint is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, fingerprint))
}
