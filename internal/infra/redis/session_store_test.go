package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	session := store.GetOrCreate("u1")
	if !mr.Exists("quiz:attempt:u1") {
		t.Fatalf("expected redis key to be set")
	}
	if got, ok := store.Get("u1"); !ok || got != session {
		t.Fatalf("expected the same local session")
	}
	if live, err := store.Live(context.Background(), "u1"); err != nil || !live {
		t.Fatalf("expected live marker, got %v %v", live, err)
	}

	mr.FastForward(2 * time.Minute)
	if live, _ := store.Live(context.Background(), "u1"); live {
		t.Fatalf("expected marker to expire")
	}

	_, cancel := store.GetOrCreate("u1").Subscribe()
	if store.Release("u1") || !mr.Exists("quiz:attempt:u1") {
		t.Fatalf("a subscribed session must keep its marker")
	}
	cancel()
	if !store.Release("u1") {
		t.Fatalf("expected idle session released")
	}
	if mr.Exists("quiz:attempt:u1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("u1"); ok {
		t.Fatalf("expected local session removed")
	}
}
