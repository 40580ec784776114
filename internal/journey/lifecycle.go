package journey

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrChallengeNotFound indicates an operation referencing a challenge
	// ID absent from the set.
	ErrChallengeNotFound = errors.New("journey: challenge not found")

	// ErrInvalidTransition indicates a status change the lifecycle state
	// machine forbids, such as accepting a declined challenge.
	ErrInvalidTransition = errors.New("journey: invalid challenge status transition")
)

// Accept moves the identified suggested challenge to active. If another
// challenge is currently active it is moved to declined first, preserving
// the single-active-challenge invariant. The slice is modified in place.
func Accept(challenges []Challenge, id string, now time.Time) error {
	idx, err := indexOf(challenges, id)
	if err != nil {
		return err
	}
	if s := challenges[idx].Status; s != StatusSuggested {
		return fmt.Errorf("%w: cannot accept a %s challenge", ErrInvalidTransition, s)
	}
	for i := range challenges {
		if i != idx && challenges[i].Status == StatusActive {
			challenges[i].Status = StatusDeclined
		}
	}
	challenges[idx].Status = StatusActive
	challenges[idx].StartDate = now
	return nil
}

// Decline moves the identified suggested or active challenge to declined.
// Declined is terminal; the challenge is never reactivated.
func Decline(challenges []Challenge, id string) error {
	idx, err := indexOf(challenges, id)
	if err != nil {
		return err
	}
	switch challenges[idx].Status {
	case StatusSuggested, StatusActive:
		challenges[idx].Status = StatusDeclined
		return nil
	default:
		return fmt.Errorf("%w: cannot decline a %s challenge", ErrInvalidTransition, challenges[idx].Status)
	}
}

// Active returns a pointer to the currently active challenge, or nil.
func Active(challenges []Challenge) *Challenge {
	for i := range challenges {
		if challenges[i].Status == StatusActive {
			return &challenges[i]
		}
	}
	return nil
}

func indexOf(challenges []Challenge, id string) (int, error) {
	for i := range challenges {
		if challenges[i].ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrChallengeNotFound, id)
}

// Default cooldowns for [GenerationPolicy].
const (
	DefaultGenerationCooldown = 5 * time.Second
	DefaultDeclineCooldown    = time.Hour
)

// GenerationPolicy rate-limits challenge generation. It is an explicit
// value owned by the caller and passed through generation decisions, so
// cooldown behavior is testable with plain clock values.
type GenerationPolicy struct {
	// Cooldown suppresses generation for this long after the previous
	// generation.
	Cooldown time.Duration `json:"cooldown"`

	// DeclineCooldown suppresses generation for this long after the user
	// declines a challenge, so a replacement is not proposed immediately
	// after a refusal.
	DeclineCooldown time.Duration `json:"declineCooldown"`

	LastGenerated time.Time `json:"lastGenerated"`
	LastDeclined  time.Time `json:"lastDeclined"`
}

// DefaultGenerationPolicy returns a policy with the standard cooldowns and
// no history.
func DefaultGenerationPolicy() GenerationPolicy {
	return GenerationPolicy{
		Cooldown:        DefaultGenerationCooldown,
		DeclineCooldown: DefaultDeclineCooldown,
	}
}

// CanGenerate reports whether a new challenge may be proposed at now.
// Generation is suppressed while any challenge is non-terminal and during
// either cooldown window.
func (p GenerationPolicy) CanGenerate(challenges []Challenge, now time.Time) bool {
	for i := range challenges {
		if !challenges[i].Status.Terminal() {
			return false
		}
	}
	if !p.LastGenerated.IsZero() && now.Sub(p.LastGenerated) < p.Cooldown {
		return false
	}
	if !p.LastDeclined.IsZero() && now.Sub(p.LastDeclined) < p.DeclineCooldown {
		return false
	}
	return true
}

// MarkGenerated records a successful generation at now.
func (p *GenerationPolicy) MarkGenerated(now time.Time) {
	p.LastGenerated = now
}

// MarkDeclined records a user decline at now.
func (p *GenerationPolicy) MarkDeclined(now time.Time) {
	p.LastDeclined = now
}
