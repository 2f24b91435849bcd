package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// EmbeddingCache stores computed face embeddings keyed by identity name and
// image content hash. It satisfies gallery.Cache.
type EmbeddingCache struct {
	pool *Pool
}

// NewEmbeddingCache creates a new embedding cache repository.
func NewEmbeddingCache(pool *Pool) *EmbeddingCache {
	return &EmbeddingCache{pool: pool}
}

// Get retrieves a cached embedding. The second return value reports whether
// the cache held an entry for the (name, imageSHA) pair.
func (r *EmbeddingCache) Get(ctx context.Context, name, imageSHA string) ([]float32, bool, error) {
	var vec pgvector.Vector
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT embedding
		FROM face_embeddings
		WHERE name = $1 AND image_sha = $2
	`, name, imageSHA).Scan(&vec)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached embedding: %w", err)
	}
	return vec.Slice(), true, nil
}

// Put stores an embedding, replacing any previous entry for the same
// identity so a re-registered face does not leave stale vectors behind.
func (r *EmbeddingCache) Put(ctx context.Context, name, imageSHA string, embedding []float32) error {
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM face_embeddings WHERE name = $1", name); err != nil {
		return fmt.Errorf("clear stale embeddings: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO face_embeddings (name, image_sha, embedding)
		VALUES ($1, $2, $3)
	`, name, imageSHA, pgvector.NewVector(embedding)); err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}

	return tx.Commit()
}

// DeleteByName removes all cached embeddings for an identity.
func (r *EmbeddingCache) DeleteByName(ctx context.Context, name string) error {
	if _, err := r.pool.db.ExecContext(ctx, "DELETE FROM face_embeddings WHERE name = $1", name); err != nil {
		return fmt.Errorf("delete cached embeddings: %w", err)
	}
	return nil
}

// Count returns the number of cached embeddings.
func (r *EmbeddingCache) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM face_embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count cached embeddings: %w", err)
	}
	return count, nil
}
