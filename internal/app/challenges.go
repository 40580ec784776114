package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/orato-voice/orato/internal/journey"
	"github.com/orato-voice/orato/internal/store"
)

// ErrGenerationUnavailable indicates challenge generation was refused: a
// cooldown is in effect, a non-terminal challenge exists, no sessions are
// stored yet, or another generation is already in flight.
var ErrGenerationUnavailable = errors.New("app: challenge generation unavailable")

// Challenge list and generation policy live under fixed keys so every
// update replaces the whole value atomically.
const (
	keyChallenges = "all"
	keyPolicy     = "generation_policy"
)

func (m *Manager) loadChallenges(ctx context.Context) ([]journey.Challenge, error) {
	challenges, err := store.GetJSON[[]journey.Challenge](ctx, m.store, store.CollectionChallenges, keyChallenges)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return challenges, err
}

func (m *Manager) saveChallenges(ctx context.Context, challenges []journey.Challenge) error {
	return store.PutJSON(ctx, m.store, store.CollectionChallenges, keyChallenges, challenges)
}

func (m *Manager) loadPolicy(ctx context.Context) (journey.GenerationPolicy, error) {
	policy, err := store.GetJSON[journey.GenerationPolicy](ctx, m.store, store.CollectionSettings, keyPolicy)
	if errors.Is(err, store.ErrNotFound) {
		return journey.DefaultGenerationPolicy(), nil
	}
	return policy, err
}

func (m *Manager) savePolicy(ctx context.Context, policy journey.GenerationPolicy) error {
	return store.PutJSON(ctx, m.store, store.CollectionSettings, keyPolicy, policy)
}

// Challenges returns every challenge, newest last.
func (m *Manager) Challenges(ctx context.Context) ([]journey.Challenge, error) {
	return m.loadChallenges(ctx)
}

// GenerateChallenge asks the oracle for a new suggested challenge.
// Generation is single-flight and gated by the stored [journey.GenerationPolicy]:
// it requires at least one stored session, no non-terminal challenge, and
// both cooldowns elapsed.
func (m *Manager) GenerateChallenge(ctx context.Context) (*journey.Challenge, error) {
	if !m.genMu.TryLock() {
		return nil, fmt.Errorf("%w: generation already in flight", ErrGenerationUnavailable)
	}
	defer m.genMu.Unlock()

	challenges, err := m.loadChallenges(ctx)
	if err != nil {
		return nil, err
	}
	policy, err := m.loadPolicy(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := m.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("%w: no sessions recorded yet", ErrGenerationUnavailable)
	}
	now := m.now()
	if !policy.CanGenerate(challenges, now) {
		return nil, fmt.Errorf("%w: cooldown or open challenge", ErrGenerationUnavailable)
	}

	ch, err := m.oracle.ProposeChallenge(ctx, sessions, challenges)
	if err != nil {
		return nil, err
	}

	challenges = append(challenges, *ch)
	if err := m.saveChallenges(ctx, challenges); err != nil {
		return nil, err
	}
	policy.MarkGenerated(now)
	if err := m.savePolicy(ctx, policy); err != nil {
		m.log.Warn("persisting generation policy failed", "error", err)
	}
	m.log.Info("challenge generated", "challenge_id", ch.ID, "title", ch.Title)
	return ch, nil
}

// AcceptChallenge activates a suggested challenge, auto-declining any
// previously active one.
func (m *Manager) AcceptChallenge(ctx context.Context, id string) error {
	challenges, err := m.loadChallenges(ctx)
	if err != nil {
		return err
	}
	if err := journey.Accept(challenges, id, m.now()); err != nil {
		return err
	}
	return m.saveChallenges(ctx, challenges)
}

// DeclineChallenge declines a suggested or active challenge and starts the
// extended generation cooldown.
func (m *Manager) DeclineChallenge(ctx context.Context, id string) error {
	challenges, err := m.loadChallenges(ctx)
	if err != nil {
		return err
	}
	if err := journey.Decline(challenges, id); err != nil {
		return err
	}
	if err := m.saveChallenges(ctx, challenges); err != nil {
		return err
	}
	policy, err := m.loadPolicy(ctx)
	if err != nil {
		return err
	}
	policy.MarkDeclined(m.now())
	return m.savePolicy(ctx, policy)
}
