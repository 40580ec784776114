package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orato-voice/orato/internal/journey"
	"github.com/orato-voice/orato/internal/session"
	"github.com/orato-voice/orato/internal/store"
)

func TestGenerateDrills(t *testing.T) {
	env := newTestEnv(t)
	seedSession(t, env, "s1")
	env.oracle.Drills = []session.Drill{
		{ID: "d1", Title: "Trava-línguas", Description: "Repita três vezes.", Goal: "clareza"},
		{ID: "d2", Title: "Pausa consciente", Description: "Conte até dois.", Goal: "ritmo"},
	}

	drills, err := env.m.GenerateDrills(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GenerateDrills: %v", err)
	}
	if len(drills) != 2 {
		t.Fatalf("drills = %d, want 2", len(drills))
	}

	stored, err := env.m.Drills(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Errorf("stored drills = %d, want 2", len(stored))
	}
}

func TestGenerateDrillsRequiresReport(t *testing.T) {
	env := newTestEnv(t)
	s := session.Session{ID: "bare", Transcript: "fala sem análise"}
	if err := store.PutJSON(context.Background(), env.store, store.CollectionSessions, s.ID, s); err != nil {
		t.Fatal(err)
	}

	_, err := env.m.GenerateDrills(context.Background(), "bare")
	if !errors.Is(err, ErrNoReport) {
		t.Fatalf("err = %v, want ErrNoReport", err)
	}
}

func TestCompleteDrill(t *testing.T) {
	env := newTestEnv(t)
	d := session.Drill{ID: "d1", Title: "Trava-línguas", Description: "x", Goal: "clareza"}
	if err := store.PutJSON(context.Background(), env.store, store.CollectionDrills, d.ID, d); err != nil {
		t.Fatal(err)
	}

	done, err := env.m.CompleteDrill(context.Background(), "d1")
	if err != nil {
		t.Fatalf("CompleteDrill: %v", err)
	}
	if !done.Completed || done.CompletedAt == nil {
		t.Errorf("drill = %+v, want completed with timestamp", done)
	}

	// Idempotent: the original completion time survives a second call.
	first := *done.CompletedAt
	env.now = env.now.Add(time.Hour)
	again, err := env.m.CompleteDrill(context.Background(), "d1")
	if err != nil {
		t.Fatal(err)
	}
	if !again.CompletedAt.Equal(first) {
		t.Errorf("completion time changed: %v -> %v", first, again.CompletedAt)
	}
}

func TestCompleteDrillFeedsSkillMilestone(t *testing.T) {
	env := newTestEnv(t)
	challenges := []journey.Challenge{{
		ID:     "ch1",
		Status: journey.StatusActive,
		Milestones: []journey.Milestone{{
			Description: "Faça um exercício de clareza",
			TaskType:    journey.TaskSkillDrill,
			Target:      "clareza",
			Status:      journey.MilestonePending,
		}},
	}}
	if err := store.PutJSON(context.Background(), env.store, store.CollectionChallenges, keyChallenges, challenges); err != nil {
		t.Fatal(err)
	}
	d := session.Drill{ID: "d1", Title: "Trava-línguas", Description: "x", Goal: "clareza"}
	if err := store.PutJSON(context.Background(), env.store, store.CollectionDrills, d.ID, d); err != nil {
		t.Fatal(err)
	}

	if _, err := env.m.CompleteDrill(context.Background(), "d1"); err != nil {
		t.Fatalf("CompleteDrill: %v", err)
	}

	stored, _ := env.m.Challenges(context.Background())
	if stored[0].Status != journey.StatusCompleted {
		t.Errorf("challenge status = %s, want completed", stored[0].Status)
	}
}

func TestCompleteUnknownDrill(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.m.CompleteDrill(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
