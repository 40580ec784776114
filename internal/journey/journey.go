// Package journey implements the gamified speaking-journey domain: challenges
// composed of measurable milestones, the rule evaluator that decides when a
// milestone is satisfied, and the lifecycle state machine governing challenge
// status transitions and generation cooldowns.
package journey

import "time"

// ChallengeStatus is the lifecycle state of a [Challenge].
type ChallengeStatus string

const (
	// StatusSuggested marks a freshly generated challenge awaiting a user
	// decision.
	StatusSuggested ChallengeStatus = "suggested"

	// StatusActive marks the challenge the user is currently pursuing. At
	// most one challenge is active at a time.
	StatusActive ChallengeStatus = "active"

	// StatusCompleted marks a challenge whose milestones have all been
	// satisfied. Terminal.
	StatusCompleted ChallengeStatus = "completed"

	// StatusDeclined marks a challenge the user refused, or that was
	// displaced by accepting another. Terminal.
	StatusDeclined ChallengeStatus = "declined"
)

// Terminal reports whether s is a final state for a challenge instance.
func (s ChallengeStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusDeclined
}

// MilestoneStatus is the lifecycle state of a [Milestone].
type MilestoneStatus string

const (
	// MilestonePending marks a milestone not yet satisfied.
	MilestonePending MilestoneStatus = "pending"

	// MilestoneCompleted marks a satisfied milestone. The transition is
	// one-way: evaluation never reverts a completed milestone.
	MilestoneCompleted MilestoneStatus = "completed"
)

// TaskType describes how a milestone is satisfied.
type TaskType string

const (
	// TaskSkillDrill is satisfied by completing a matching drill exercise.
	TaskSkillDrill TaskType = "skill_drill"

	// TaskRecordSession is satisfied when a new session's report meets the
	// milestone's target.
	TaskRecordSession TaskType = "record_session"

	// TaskReRecordSession is satisfied like [TaskRecordSession] but framed
	// to the user as re-recording an earlier speech.
	TaskReRecordSession TaskType = "re_record_session"
)

// Milestone is one measurable sub-goal of a challenge. Target holds the
// oracle-authored expression, e.g. "clareza >= 8"; see [ParseTarget] for the
// grammar.
type Milestone struct {
	Description string          `json:"description"`
	TaskType    TaskType        `json:"taskType"`
	Target      string          `json:"target"`
	Status      MilestoneStatus `json:"status"`
}

// Challenge is a multi-milestone gamified goal.
type Challenge struct {
	ID            string          `json:"id"`
	Type          string          `json:"type,omitempty"`
	Title         string          `json:"title"`
	Narrative     string          `json:"narrative,omitempty"`
	Status        ChallengeStatus `json:"status"`
	Milestones    []Milestone     `json:"milestones"`
	StartDate     time.Time       `json:"startDate"`
	CompletedDate *time.Time      `json:"completedDate,omitempty"`
}

// AllMilestonesCompleted reports whether every milestone of c has been
// satisfied. A challenge with no milestones is never considered complete.
func (c *Challenge) AllMilestonesCompleted() bool {
	if len(c.Milestones) == 0 {
		return false
	}
	for _, m := range c.Milestones {
		if m.Status != MilestoneCompleted {
			return false
		}
	}
	return true
}
