package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemStorePutGetDelete(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Put(ctx, CollectionSessions, "s1", []byte(`{"title":"Pitch"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, CollectionSessions, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"title":"Pitch"}` {
		t.Errorf("Get = %s", got)
	}

	// Replacement is whole-record.
	if err := s.Put(ctx, CollectionSessions, "s1", []byte(`{"title":"Pitch v2"}`)); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	got, _ = s.Get(ctx, CollectionSessions, "s1")
	if string(got) != `{"title":"Pitch v2"}` {
		t.Errorf("after replace = %s", got)
	}

	if err := s.Delete(ctx, CollectionSessions, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, CollectionSessions, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, CollectionSessions, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
}

func TestMemStoreCollectionsAreIsolated(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	_ = s.Put(ctx, CollectionSessions, "x", []byte(`1`))
	_ = s.Put(ctx, CollectionChallenges, "x", []byte(`2`))

	got, err := s.Get(ctx, CollectionChallenges, "x")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "2" {
		t.Errorf("challenges/x = %s, want 2", got)
	}

	all, err := s.GetAll(ctx, CollectionSessions)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 || string(all["x"]) != "1" {
		t.Errorf("sessions = %v", all)
	}
}

func TestMemStoreCopiesValues(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	value := []byte(`original`)
	_ = s.Put(ctx, CollectionSettings, "k", value)
	value[0] = 'X'

	got, _ := s.Get(ctx, CollectionSettings, "k")
	if string(got) != "original" {
		t.Errorf("stored value mutated by caller: %s", got)
	}

	got[0] = 'Y'
	again, _ := s.Get(ctx, CollectionSettings, "k")
	if string(again) != "original" {
		t.Errorf("stored value mutated through Get result: %s", again)
	}
}

func TestJSONHelpers(t *testing.T) {
	type session struct {
		Title    string `json:"title"`
		Favorite bool   `json:"favorite"`
	}
	s := NewMemStore()
	ctx := context.Background()

	want := session{Title: "Apresentação", Favorite: true}
	if err := PutJSON(ctx, s, CollectionSessions, "s1", want); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}

	got, err := GetJSON[session](ctx, s, CollectionSessions, "s1")
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if got != want {
		t.Errorf("GetJSON = %+v, want %+v", got, want)
	}

	_ = PutJSON(ctx, s, CollectionSessions, "s2", session{Title: "Aula"})
	all, err := GetAllJSON[session](ctx, s, CollectionSessions)
	if err != nil {
		t.Fatalf("GetAllJSON: %v", err)
	}
	if len(all) != 2 || all["s2"].Title != "Aula" {
		t.Errorf("GetAllJSON = %v", all)
	}

	if _, err := GetJSON[session](ctx, s, CollectionSessions, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJSON missing err = %v, want ErrNotFound", err)
	}
}

func TestMemStoreSimilarSessions(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	_ = s.IndexSession(ctx, "a", "discurso sobre vendas", []float32{1, 0, 0})
	_ = s.IndexSession(ctx, "b", "discurso sobre produto", []float32{0.9, 0.1, 0})
	_ = s.IndexSession(ctx, "c", "aula de matemática", []float32{0, 0, 1})

	results, err := s.SimilarSessions(ctx, []float32{1, 0, 0}, 2, "a")
	if err != nil {
		t.Fatalf("SimilarSessions: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].SessionID != "b" {
		t.Errorf("nearest = %s, want b", results[0].SessionID)
	}
	if results[0].Distance >= results[1].Distance {
		t.Errorf("results not ordered by distance: %v", results)
	}
	for _, r := range results {
		if r.SessionID == "a" {
			t.Error("excluded session must not appear in results")
		}
	}

	if err := s.RemoveSession(ctx, "b"); err != nil {
		t.Fatalf("RemoveSession: %v", err)
	}
	results, _ = s.SimilarSessions(ctx, []float32{1, 0, 0}, 5, "")
	for _, r := range results {
		if r.SessionID == "b" {
			t.Error("removed session must not appear in results")
		}
	}
}
