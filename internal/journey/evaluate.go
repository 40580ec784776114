package journey

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/orato-voice/orato/internal/observe"
	"github.com/orato-voice/orato/internal/report"
)

// drillFuzzyThreshold is the minimum Jaro-Winkler score for a drill goal
// token to be considered the same word as a milestone target token. It
// absorbs LLM spelling drift ("clareza" vs "clareza vocal" tokens, plural
// forms) without matching unrelated words.
const drillFuzzyThreshold = 0.85

// genericDrillKeywords mark a milestone that any completed drill satisfies.
var genericDrillKeywords = []string{"skill", "treino", "drill", "exercicio"}

// Evaluator decides whether pending milestones are satisfied by a new
// session report or a completed skill drill, and flips challenge status when
// the last milestone completes.
//
// Milestone completion is monotonic: an evaluator never reverts a completed
// milestone or a completed challenge. Unparseable targets fail closed and
// are surfaced through the logger and the unparseable-target counter rather
// than silently dropped.
type Evaluator struct {
	log     *slog.Logger
	metrics *observe.Metrics
}

// NewEvaluator returns an Evaluator logging through log and recording
// telemetry through metrics. Both may be nil; nil log falls back to
// [slog.Default].
func NewEvaluator(log *slog.Logger, metrics *observe.Metrics) *Evaluator {
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{log: log, metrics: metrics}
}

// EvaluateReport checks every pending report-driven milestone of ch against
// r and returns true when this evaluation completed the challenge. Only
// active challenges are evaluated; suggested, declined and completed
// challenges are left untouched.
func (e *Evaluator) EvaluateReport(ctx context.Context, ch *Challenge, r *report.Report, now time.Time) bool {
	if ch == nil || r == nil || ch.Status != StatusActive {
		return false
	}

	for i := range ch.Milestones {
		m := &ch.Milestones[i]
		if m.Status != MilestonePending {
			continue
		}
		if m.TaskType != TaskRecordSession && m.TaskType != TaskReRecordSession {
			continue
		}

		target, err := ParseTarget(m.Target)
		if err != nil {
			if errors.Is(err, ErrUnparseableTarget) {
				e.log.Warn("milestone target unparseable, treating as unsatisfiable",
					"challenge_id", ch.ID, "target", m.Target)
				if e.metrics != nil {
					e.metrics.RecordUnparseableTarget(ctx)
				}
			}
			continue
		}

		value, ok := r.MetricValue(target.Metric)
		if !ok {
			continue
		}
		if target.Met(value) {
			e.completeMilestone(ctx, ch, m)
		}
	}

	return e.maybeComplete(ch, now)
}

// EvaluateDrill checks every pending skill_drill milestone of ch against the
// goal category of a just-completed drill and returns true when this
// evaluation completed the challenge.
func (e *Evaluator) EvaluateDrill(ctx context.Context, ch *Challenge, drillGoal string, now time.Time) bool {
	if ch == nil || ch.Status != StatusActive {
		return false
	}

	for i := range ch.Milestones {
		m := &ch.Milestones[i]
		if m.Status != MilestonePending || m.TaskType != TaskSkillDrill {
			continue
		}
		if drillMatches(drillGoal, m.Target) {
			e.completeMilestone(ctx, ch, m)
		}
	}

	return e.maybeComplete(ch, now)
}

func (e *Evaluator) completeMilestone(ctx context.Context, ch *Challenge, m *Milestone) {
	m.Status = MilestoneCompleted
	e.log.Info("milestone completed",
		"challenge_id", ch.ID, "task_type", string(m.TaskType), "target", m.Target)
	if e.metrics != nil {
		e.metrics.RecordMilestoneCompletion(ctx, string(m.TaskType))
	}
}

// maybeComplete transitions an active challenge whose milestones are all
// satisfied to completed, stamping CompletedDate. The transition happens in
// the same evaluation pass that satisfied the last milestone, so a
// fully-satisfied challenge is never observable as still active.
func (e *Evaluator) maybeComplete(ch *Challenge, now time.Time) bool {
	if ch.Status != StatusActive || !ch.AllMilestonesCompleted() {
		return false
	}
	ch.Status = StatusCompleted
	ch.CompletedDate = &now
	e.log.Info("challenge completed", "challenge_id", ch.ID, "title", ch.Title)
	return true
}

// drillMatches reports whether a completed drill with the given goal
// category satisfies a milestone with the given target text. Matching is on
// normalized text: same metric family, direct substring containment, a
// generic skill/treino milestone (one naming no metric), or a fuzzy
// token-level match.
func drillMatches(drillGoal, targetText string) bool {
	goal := Normalize(drillGoal)
	target := Normalize(targetText)
	if goal == "" || target == "" {
		return false
	}

	goalMetric, goalHasMetric := resolveMetric(goal)
	targetMetric, targetHasMetric := resolveMetric(target)
	if goalHasMetric && targetHasMetric {
		return goalMetric == targetMetric
	}

	if strings.Contains(target, goal) || strings.Contains(goal, target) {
		return true
	}

	if !targetHasMetric {
		for _, kw := range genericDrillKeywords {
			if strings.Contains(target, kw) {
				return true
			}
		}
	}

	for _, gt := range strings.Fields(goal) {
		for _, tt := range strings.Fields(target) {
			if matchr.JaroWinkler(gt, tt, false) >= drillFuzzyThreshold {
				return true
			}
		}
	}
	return false
}
