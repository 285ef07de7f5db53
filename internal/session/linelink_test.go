package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisLinkSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisLinkSessionStoreFromClient(client), mr
}

func TestRedisConsumeIsSingleUse(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "tok1", "U1", time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	uid, ok, err := store.Consume(ctx, "tok1")
	if err != nil || !ok || uid != "U1" {
		t.Fatalf("first consume: uid=%q ok=%v err=%v", uid, ok, err)
	}
	_, ok, err = store.Consume(ctx, "tok1")
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if ok {
		t.Fatalf("token redeemed twice")
	}
}

func TestRedisConsumeAfterExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "tok2", "U2", time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	_, ok, err := store.Consume(ctx, "tok2")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ok {
		t.Fatalf("expired token redeemed")
	}
}

func TestRedisCreateValidation(t *testing.T) {
	store, _ := newTestRedisStore(t)
	if err := store.Create(context.Background(), "", "U1", time.Minute); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestMemoryStoreSingleUseAndExpiry(t *testing.T) {
	store := NewMemoryLinkSessionStore()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Create(ctx, "tok", "U1", time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	uid, ok, err := store.Consume(ctx, "tok")
	if err != nil || !ok || uid != "U1" {
		t.Fatalf("consume: uid=%q ok=%v err=%v", uid, ok, err)
	}
	if _, ok, _ := store.Consume(ctx, "tok"); ok {
		t.Fatalf("token redeemed twice")
	}

	if err := store.Create(ctx, "tok2", "U1", time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := store.Consume(ctx, "tok2"); ok {
		t.Fatalf("expired token redeemed")
	}
	// expired tokens are gone after the failed consume as well
	if _, ok, _ := store.Consume(ctx, "tok2"); ok {
		t.Fatalf("expired token redeemed on retry")
	}
}
