package dispatchwebhook

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *inMemoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	s.ttls[key] = ttl
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("sw:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func TestGuardMarksOnceAndReleases(t *testing.T) {
	ctx := context.Background()
	store := newInMemoryStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, Scope)
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}

	seen, err := guard.CheckAndMark(ctx, "task-1:taskCompleted:1700")
	if err != nil || seen {
		t.Fatalf("first delivery should be new, seen=%v err=%v", seen, err)
	}
	if ttl := store.ttls["sw:idempotency:dispatch-webhook:task-1:taskCompleted:1700"]; ttl != time.Hour {
		t.Fatalf("expected ttl 1h, got %v", ttl)
	}
	seen, err = guard.CheckAndMark(ctx, "task-1:taskCompleted:1700")
	if err != nil || !seen {
		t.Fatalf("redelivery should be seen, seen=%v err=%v", seen, err)
	}

	if err := guard.Delete(ctx, "task-1:taskCompleted:1700"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	seen, _ = guard.CheckAndMark(ctx, "task-1:taskCompleted:1700")
	if seen {
		t.Fatal("released fingerprint should be processed again")
	}
}

func TestGuardValidation(t *testing.T) {
	if _, err := NewIdempotencyGuard(nil, time.Hour, Scope); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewIdempotencyGuard(newInMemoryStore(), 0, Scope); err == nil {
		t.Fatal("expected error for zero ttl")
	}
	guard, _ := NewIdempotencyGuard(newInMemoryStore(), time.Minute, Scope)
	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty fingerprint")
	}
}
