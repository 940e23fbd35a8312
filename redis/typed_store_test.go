package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/taskflow/logger"
)

// newTestClient creates a redis.Client backed by miniredis for testing.
func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)

	client, err := New(Config{Addr: mini.Addr()}, logger.Nop())
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mini
}

type testResult struct {
	NodeID  string         `json:"node_id"`
	Outputs map[string]any `json:"outputs"`
}

func TestTypedStore_SaveAndLoad(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testResult](client, "taskflow:result")
	ctx := context.Background()

	in := testResult{NodeID: "a", Outputs: map[string]any{"x": 1}}
	if err := store.Save(ctx, "k1", &in, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Load(ctx, "k1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil || got.NodeID != "a" || got.Outputs["x"] != float64(1) {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestTypedStore_LoadMissing(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testResult](client, "test")

	got, err := store.Load(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing key, got %+v", got)
	}
}

func TestTypedStore_Delete(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testResult](client, "test")
	ctx := context.Background()

	store.Save(ctx, "k1", &testResult{NodeID: "a"}, 0)
	if err := store.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got, _ := store.Load(ctx, "k1"); got != nil {
		t.Fatalf("expected nil after delete, got %+v", got)
	}
}

func TestTypedStore_TTL(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[testResult](client, "test")
	ctx := context.Background()

	if err := store.Save(ctx, "k1", &testResult{NodeID: "a"}, 2*time.Second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	mini.FastForward(3 * time.Second)

	got, err := store.Load(ctx, "k1")
	if err != nil {
		t.Fatalf("Load after TTL failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil after TTL expiration, got %+v", got)
	}
}

func TestTypedStore_KeyPrefix(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[testResult](client, "myprefix")
	store.Save(context.Background(), "k1", &testResult{NodeID: "a"}, 0)

	if store.Key("k1") != "myprefix:k1" {
		t.Fatalf("unexpected key %q", store.Key("k1"))
	}
	if raw, err := mini.Get("myprefix:k1"); err != nil || raw == "" {
		t.Fatalf("expected prefixed key in Redis, err: %v", err)
	}
	if NewTypedStore[testResult](client, "").Key("bare") != "bare" {
		t.Fatal("expected bare key without prefix")
	}
}
