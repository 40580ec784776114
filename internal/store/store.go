// Package store defines the persistent keyed storage the application core
// writes sessions, challenges and personas through.
//
// The contract is deliberately narrow: per-key atomic put/get/delete over
// named collections of JSON values, no cross-key transactions. The core's
// invariants (single active challenge, report/transcript consistency) are
// enforced at the application layer, which assumes nothing stronger from
// storage than this interface offers.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get and Delete for a missing record.
var ErrNotFound = errors.New("store: record not found")

// Well-known collection names.
const (
	CollectionSessions   = "sessions"
	CollectionChallenges = "challenges"
	CollectionPersonas   = "personas"
	CollectionDrills     = "drills"
	CollectionSettings   = "settings"
)

// RecordStore is black-box keyed storage for JSON-encoded records.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// Put writes value under (collection, key), replacing any existing
	// record atomically.
	Put(ctx context.Context, collection, key string, value []byte) error

	// Get returns the record under (collection, key), or [ErrNotFound].
	Get(ctx context.Context, collection, key string) ([]byte, error)

	// GetAll returns every record in collection, keyed by record key. An
	// empty collection yields an empty non-nil map.
	GetAll(ctx context.Context, collection string) (map[string][]byte, error)

	// Delete removes the record under (collection, key). Deleting a
	// missing record returns [ErrNotFound].
	Delete(ctx context.Context, collection, key string) error
}

// PutJSON marshals v and stores it under (collection, key).
func PutJSON[T any](ctx context.Context, s RecordStore, collection, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", collection, key, err)
	}
	return s.Put(ctx, collection, key, data)
}

// GetJSON loads and unmarshals the record under (collection, key).
func GetJSON[T any](ctx context.Context, s RecordStore, collection, key string) (T, error) {
	var v T
	data, err := s.Get(ctx, collection, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("store: decode %s/%s: %w", collection, key, err)
	}
	return v, nil
}

// GetAllJSON loads and unmarshals every record in collection.
func GetAllJSON[T any](ctx context.Context, s RecordStore, collection string) (map[string]T, error) {
	raw, err := s.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(raw))
	for key, data := range raw {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("store: decode %s/%s: %w", collection, key, err)
		}
		out[key] = v
	}
	return out, nil
}

// SimilarSession is one hit from a [SessionIndex] similarity search.
type SimilarSession struct {
	SessionID  string
	Transcript string

	// Distance is the cosine distance to the query embedding; smaller is
	// more similar.
	Distance float64
}

// SessionIndex is the optional semantic index over session transcripts,
// used to ground history-aware analysis in the speaker's most similar past
// speeches. Implementations must be safe for concurrent use.
type SessionIndex interface {
	// IndexSession upserts the embedding for a session transcript.
	IndexSession(ctx context.Context, sessionID, transcript string, embedding []float32) error

	// SimilarSessions returns up to topK indexed sessions nearest to the
	// query embedding, most similar first, excluding excludeSessionID.
	SimilarSessions(ctx context.Context, embedding []float32, topK int, excludeSessionID string) ([]SimilarSession, error)

	// RemoveSession drops a session from the index. Removing an unindexed
	// session is a no-op.
	RemoveSession(ctx context.Context, sessionID string) error
}
