package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/orato-voice/orato/internal/session"
	"github.com/orato-voice/orato/internal/store"
)

// Sessions returns every stored session, newest first.
func (m *Manager) Sessions(ctx context.Context) ([]session.Session, error) {
	byID, err := store.GetAllJSON[session.Session](ctx, m.store, store.CollectionSessions)
	if err != nil {
		return nil, err
	}
	out := make([]session.Session, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b session.Session) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return out, nil
}

// Session loads one session by ID.
func (m *Manager) Session(ctx context.Context, id string) (*session.Session, error) {
	s, err := store.GetJSON[session.Session](ctx, m.store, store.CollectionSessions, id)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return &s, nil
}

// RenameSession sets a session's title.
func (m *Manager) RenameSession(ctx context.Context, id, title string) error {
	s, err := m.Session(ctx, id)
	if err != nil {
		return err
	}
	s.Title = title
	return store.PutJSON(ctx, m.store, store.CollectionSessions, id, s)
}

// SetFavorite toggles a session's favorite flag.
func (m *Manager) SetFavorite(ctx context.Context, id string, favorite bool) error {
	s, err := m.Session(ctx, id)
	if err != nil {
		return err
	}
	s.Favorite = favorite
	return store.PutJSON(ctx, m.store, store.CollectionSessions, id, s)
}

// DeleteSession removes a session and its semantic-index entry.
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, store.CollectionSessions, id); err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	if m.index != nil {
		if err := m.index.RemoveSession(ctx, id); err != nil {
			m.log.Warn("removing session from index failed", "session_id", id, "error", err)
		}
	}
	return nil
}

// Personas returns every stored persona, sorted by name.
func (m *Manager) Personas(ctx context.Context) ([]session.Persona, error) {
	byID, err := store.GetAllJSON[session.Persona](ctx, m.store, store.CollectionPersonas)
	if err != nil {
		return nil, err
	}
	out := make([]session.Persona, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b session.Persona) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// SavePersona creates or updates a persona. A persona without an ID gets a
// fresh one.
func (m *Manager) SavePersona(ctx context.Context, p session.Persona) (*session.Persona, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := store.PutJSON(ctx, m.store, store.CollectionPersonas, p.ID, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePersona removes a persona. Sessions that referenced it keep their
// stored reports unchanged.
func (m *Manager) DeletePersona(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, store.CollectionPersonas, id); err != nil {
		return fmt.Errorf("persona %s: %w", id, err)
	}
	return nil
}
