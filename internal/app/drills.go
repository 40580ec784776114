package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/orato-voice/orato/internal/journey"
	"github.com/orato-voice/orato/internal/session"
	"github.com/orato-voice/orato/internal/store"
)

// Drills returns every stored drill, incomplete first, then by title.
func (m *Manager) Drills(ctx context.Context) ([]session.Drill, error) {
	byID, err := store.GetAllJSON[session.Drill](ctx, m.store, store.CollectionDrills)
	if err != nil {
		return nil, err
	}
	out := make([]session.Drill, 0, len(byID))
	for _, d := range byID {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b session.Drill) int {
		if a.Completed != b.Completed {
			if a.Completed {
				return 1
			}
			return -1
		}
		return strings.Compare(a.Title, b.Title)
	})
	return out, nil
}

// GenerateDrills asks the oracle for exercises targeting a session's
// weakest dimensions and stores them. The session must have an analysis
// report (the newest practice attempt's counts).
func (m *Manager) GenerateDrills(ctx context.Context, sessionID string) ([]session.Drill, error) {
	sess, err := m.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rep := latestReport(sess)
	if rep == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoReport, sessionID)
	}

	drills, err := m.oracle.GenerateDrills(ctx, rep)
	if err != nil {
		return nil, err
	}
	for _, d := range drills {
		if err := store.PutJSON(ctx, m.store, store.CollectionDrills, d.ID, d); err != nil {
			return nil, err
		}
	}
	return drills, nil
}

// CompleteDrill marks a drill done and feeds its goal to any active
// challenge's skill-drill milestones. Completing an already completed drill
// is a no-op.
func (m *Manager) CompleteDrill(ctx context.Context, drillID string) (*session.Drill, error) {
	d, err := store.GetJSON[session.Drill](ctx, m.store, store.CollectionDrills, drillID)
	if err != nil {
		return nil, fmt.Errorf("drill %s: %w", drillID, err)
	}
	if d.Completed {
		return &d, nil
	}

	now := m.now()
	d.Completed = true
	d.CompletedAt = &now
	if err := store.PutJSON(ctx, m.store, store.CollectionDrills, d.ID, d); err != nil {
		return nil, err
	}

	m.evaluateDrill(ctx, d.Goal)
	return &d, nil
}

// evaluateDrill runs a completed drill's goal against the active
// challenge's skill-drill milestones. Failures never fail the completion.
func (m *Manager) evaluateDrill(ctx context.Context, goal string) {
	challenges, err := m.loadChallenges(ctx)
	if err != nil {
		m.log.Warn("loading challenges for drill evaluation failed", "error", err)
		return
	}
	active := journey.Active(challenges)
	if active == nil {
		return
	}
	before := completedMilestones(active)
	evaluator := journey.NewEvaluator(m.log, m.metrics)
	completed := evaluator.EvaluateDrill(ctx, active, goal, m.now())
	if !completed && completedMilestones(active) == before {
		return
	}
	if err := m.saveChallenges(ctx, challenges); err != nil {
		m.log.Warn("persisting drill evaluation failed", "error", err)
	}
}
