package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/orato-voice/orato/internal/store"
	"github.com/orato-voice/orato/internal/store/postgres"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test when ORATO_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("ORATO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ORATO_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	s, err := postgres.NewStore(context.Background(), testDSN(t), testEmbeddingDim)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestRecordRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "test_sessions", "s1", []byte(`{"title":"Pitch"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	t.Cleanup(func() { _ = s.Delete(ctx, "test_sessions", "s1") })

	got, err := s.Get(ctx, "test_sessions", "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"title": "Pitch"}` && string(got) != `{"title":"Pitch"}` {
		t.Errorf("Get = %s", got)
	}

	// Upsert replaces.
	if err := s.Put(ctx, "test_sessions", "s1", []byte(`{"title":"Pitch v2"}`)); err != nil {
		t.Fatalf("Put replace: %v", err)
	}

	all, err := s.GetAll(ctx, "test_sessions")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("GetAll len = %d, want 1", len(all))
	}

	if err := s.Delete(ctx, "test_sessions", "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "test_sessions", "s1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after delete err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "test_sessions", "s1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
}

func TestSessionIndexSimilarity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sessions := map[string][]float32{
		"vendas":     {1, 0, 0, 0},
		"produto":    {0.9, 0.1, 0, 0},
		"matematica": {0, 0, 1, 0},
	}
	for id, emb := range sessions {
		if err := s.IndexSession(ctx, id, "transcript "+id, emb); err != nil {
			t.Fatalf("IndexSession(%s): %v", id, err)
		}
		t.Cleanup(func() { _ = s.RemoveSession(ctx, id) })
	}

	results, err := s.SimilarSessions(ctx, []float32{1, 0, 0, 0}, 2, "vendas")
	if err != nil {
		t.Fatalf("SimilarSessions: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].SessionID != "produto" {
		t.Errorf("nearest = %s, want produto", results[0].SessionID)
	}
	for _, r := range results {
		if r.SessionID == "vendas" {
			t.Error("excluded session must not appear")
		}
	}

	if err := s.RemoveSession(ctx, "produto"); err != nil {
		t.Fatalf("RemoveSession: %v", err)
	}
	results, _ = s.SimilarSessions(ctx, []float32{1, 0, 0, 0}, 5, "")
	for _, r := range results {
		if r.SessionID == "produto" {
			t.Error("removed session must not appear")
		}
	}
}
