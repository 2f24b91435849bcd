//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx, 4); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestEmbeddingCache(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	cache := NewEmbeddingCache(pool)

	// Miss on an empty cache.
	_, ok, err := cache.Get(ctx, "alice", "sha-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("expected cache miss on empty cache")
	}

	// Store and retrieve.
	want := []float32{0.1, 0.2, 0.3, 0.4}
	if err := cache.Put(ctx, "alice", "sha-1", want); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := cache.Get(ctx, "alice", "sha-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d dims, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dim %d: expected %f, got %f", i, want[i], got[i])
		}
	}

	// A new image hash for the same identity replaces the old entry.
	if err := cache.Put(ctx, "alice", "sha-2", []float32{0.5, 0.6, 0.7, 0.8}); err != nil {
		t.Fatalf("put replacement: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "alice", "sha-1"); ok {
		t.Error("expected stale entry evicted after re-registration")
	}
	if _, ok, _ := cache.Get(ctx, "alice", "sha-2"); !ok {
		t.Error("expected replacement entry present")
	}

	count, err := cache.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 cached embedding, got %d", count)
	}

	// Delete by identity.
	if err := cache.DeleteByName(ctx, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if count, _ := cache.Count(ctx); count != 0 {
		t.Errorf("expected empty cache after delete, got %d", count)
	}
}
