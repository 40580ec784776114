// Package postgres provides the PostgreSQL-backed [store.RecordStore] and
// [store.SessionIndex].
//
// Records live in a single (collection, key) → JSONB table; session
// embeddings live in a pgvector column with an HNSW index for approximate
// nearest-neighbour search. Both share one [pgxpool.Pool]. The pgvector
// extension must be available in the target database; [Migrate] installs it
// via CREATE EXTENSION IF NOT EXISTS.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/orato-voice/orato/internal/store"
)

var (
	_ store.RecordStore  = (*Store)(nil)
	_ store.SessionIndex = (*Store)(nil)
)

const ddlRecords = `
CREATE TABLE IF NOT EXISTS records (
    collection  TEXT         NOT NULL,
    key         TEXT         NOT NULL,
    value       JSONB        NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, key)
);

CREATE INDEX IF NOT EXISTS idx_records_collection
    ON records (collection);
`

// ddlEmbeddings returns the embedding DDL with the vector dimension
// substituted. The dimension is baked into the column type at schema
// creation time.
func ddlEmbeddings(dimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS session_embeddings (
    session_id  TEXT         PRIMARY KEY,
    transcript  TEXT         NOT NULL,
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_session_embeddings_embedding
    ON session_embeddings USING hnsw (embedding vector_cosine_ops);
`, dimensions)
}

// Migrate creates or ensures all required tables and extensions exist. It
// is idempotent and safe to run on every application start.
//
// embeddingDimensions must match the configured embedding model (1536 for
// OpenAI text-embedding-3-small). Changing it after the first migration
// requires a manual schema change.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	for _, stmt := range []string{ddlRecords, ddlEmbeddings(embeddingDimensions)} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}

// Store is the PostgreSQL record store and session index. All operations
// are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, registers pgvector types on
// every connection, and runs [Migrate].
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Vector columns scan into and insert from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Put implements [store.RecordStore.Put] with an upsert.
func (s *Store) Put(ctx context.Context, collection, key string, value []byte) error {
	const q = `
		INSERT INTO records (collection, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, key) DO UPDATE SET
		    value      = EXCLUDED.value,
		    updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, collection, key, value); err != nil {
		return fmt.Errorf("postgres store: put %s/%s: %w", collection, key, err)
	}
	return nil
}

// Get implements [store.RecordStore.Get].
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	const q = `SELECT value FROM records WHERE collection = $1 AND key = $2`

	var value []byte
	err := s.pool.QueryRow(ctx, q, collection, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get %s/%s: %w", collection, key, err)
	}
	return value, nil
}

// GetAll implements [store.RecordStore.GetAll].
func (s *Store) GetAll(ctx context.Context, collection string) (map[string][]byte, error) {
	const q = `SELECT key, value FROM records WHERE collection = $1`

	rows, err := s.pool.Query(ctx, q, collection)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get all %s: %w", collection, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("postgres store: scan %s: %w", collection, err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: iterate %s: %w", collection, err)
	}
	return out, nil
}

// Delete implements [store.RecordStore.Delete].
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	const q = `DELETE FROM records WHERE collection = $1 AND key = $2`

	tag, err := s.pool.Exec(ctx, q, collection, key)
	if err != nil {
		return fmt.Errorf("postgres store: delete %s/%s: %w", collection, key, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// IndexSession implements [store.SessionIndex.IndexSession] with an upsert.
func (s *Store) IndexSession(ctx context.Context, sessionID, transcript string, embedding []float32) error {
	const q = `
		INSERT INTO session_embeddings (session_id, transcript, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET
		    transcript = EXCLUDED.transcript,
		    embedding  = EXCLUDED.embedding`

	if _, err := s.pool.Exec(ctx, q, sessionID, transcript, pgvector.NewVector(embedding)); err != nil {
		return fmt.Errorf("postgres store: index session %s: %w", sessionID, err)
	}
	return nil
}

// SimilarSessions implements [store.SessionIndex.SimilarSessions] with an
// approximate nearest-neighbour search over cosine distance, most similar
// first.
func (s *Store) SimilarSessions(ctx context.Context, embedding []float32, topK int, excludeSessionID string) ([]store.SimilarSession, error) {
	const q = `
		SELECT session_id, transcript,
		       embedding <=> $1 AS distance
		FROM   session_embeddings
		WHERE  session_id <> $2
		ORDER  BY distance
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), excludeSessionID, topK)
	if err != nil {
		return nil, fmt.Errorf("postgres store: similar sessions: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.SimilarSession, error) {
		var ss store.SimilarSession
		if err := row.Scan(&ss.SessionID, &ss.Transcript, &ss.Distance); err != nil {
			return store.SimilarSession{}, err
		}
		return ss, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan similar sessions: %w", err)
	}
	if results == nil {
		results = []store.SimilarSession{}
	}
	return results, nil
}

// RemoveSession implements [store.SessionIndex.RemoveSession].
func (s *Store) RemoveSession(ctx context.Context, sessionID string) error {
	const q = `DELETE FROM session_embeddings WHERE session_id = $1`

	if _, err := s.pool.Exec(ctx, q, sessionID); err != nil {
		return fmt.Errorf("postgres store: remove session %s: %w", sessionID, err)
	}
	return nil
}
