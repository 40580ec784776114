package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/orato-voice/orato/internal/session"
	"github.com/orato-voice/orato/internal/store"
)

// ErrQuestionAnswered indicates an answer submitted to a question round
// whose latest question already has an answer.
var ErrQuestionAnswered = errors.New("app: question already answered")

// StartQA opens a question round on a stored session: the oracle plays
// audience (optionally as a stored persona) and asks the first question.
func (m *Manager) StartQA(ctx context.Context, sessionID, personaID string) (*session.QASession, error) {
	sess, err := m.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	persona, err := m.lookupPersona(ctx, personaID)
	if err != nil {
		return nil, err
	}

	turn, err := m.oracle.NextQATurn(ctx, sess.Transcript, persona, nil)
	if err != nil {
		return nil, err
	}

	now := m.now()
	qa := session.QASession{
		ID:        uuid.NewString(),
		StartedAt: now,
		PersonaID: personaID,
		Exchanges: []session.QAExchange{{Question: turn.NextQuestion, AskedAt: now}},
	}
	sess.QASessions = append(sess.QASessions, qa)
	if err := store.PutJSON(ctx, m.store, store.CollectionSessions, sess.ID, sess); err != nil {
		return nil, err
	}
	return &qa, nil
}

// AnswerQA records the user's answer to the round's open question, gets the
// oracle's feedback plus the next question, and returns the updated round.
func (m *Manager) AnswerQA(ctx context.Context, sessionID, qaID, answer string) (*session.QASession, error) {
	sess, err := m.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var qa *session.QASession
	for i := range sess.QASessions {
		if sess.QASessions[i].ID == qaID {
			qa = &sess.QASessions[i]
			break
		}
	}
	if qa == nil {
		return nil, fmt.Errorf("qa round %s: %w", qaID, store.ErrNotFound)
	}
	last := &qa.Exchanges[len(qa.Exchanges)-1]
	if last.Answer != "" {
		return nil, fmt.Errorf("%w: %s", ErrQuestionAnswered, qaID)
	}
	last.Answer = answer

	persona, err := m.lookupPersona(ctx, qa.PersonaID)
	if err != nil {
		return nil, err
	}
	turn, err := m.oracle.NextQATurn(ctx, sess.Transcript, persona, qa.Exchanges)
	if err != nil {
		return nil, err
	}
	last.Feedback = turn.Feedback
	qa.Exchanges = append(qa.Exchanges, session.QAExchange{
		Question: turn.NextQuestion,
		AskedAt:  m.now(),
	})

	if err := store.PutJSON(ctx, m.store, store.CollectionSessions, sess.ID, sess); err != nil {
		return nil, err
	}
	return qa, nil
}
