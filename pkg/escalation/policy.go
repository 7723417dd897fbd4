// Package escalation decides whether a scored document may proceed
// automatically or must be routed to a human reviewer, and at what priority.
//
// Evaluation never fails: given any input it produces a decision. Rules run
// in a fixed order; each satisfied rule accumulates a reason and sets a
// floor on the priority, which never downgrades within one evaluation.
package escalation

import (
	"fmt"
	"strings"
	"time"

	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/scoring"
)

// Priority ranks how urgently a human must look at the document.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
	PriorityNone     Priority = "NONE"
)

// rank orders priorities for floor comparisons. Higher is more urgent.
func (p Priority) rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// criticalFlags force review on their own regardless of score.
var criticalFlags = []scoring.RiskFlag{
	scoring.FlagComplianceConcerns,
	scoring.FlagMissingRequiredContent,
	scoring.FlagScopeMismatch,
}

// Decision is the outcome of one policy evaluation.
type Decision struct {
	RequiresReview bool      `json:"requires_review"`
	Priority       Priority  `json:"priority"`
	Reasons        []string  `json:"reasons,omitempty"`
	DecidedAt      time.Time `json:"decided_at"`
}

// Policy evaluates confidence scores against thresholds.
type Policy struct {
	clock func() time.Time
}

// NewPolicy creates an escalation policy.
func NewPolicy() *Policy {
	return &Policy{clock: time.Now}
}

// WithClock overrides clock for deterministic testing.
func (p *Policy) WithClock(clock func() time.Time) *Policy {
	p.clock = clock
	return p
}

// Evaluate applies the escalation rules to a document score. It always
// returns a decision; missing inputs fail closed into a forced review
// rather than an error.
func (p *Policy) Evaluate(score *scoring.ConfidenceScore, th *scoring.Thresholds) *Decision {
	d := &Decision{Priority: PriorityNone, DecidedAt: p.clock()}

	if score == nil || th == nil {
		d.RequiresReview = true
		d.elevate(PriorityHigh)
		d.Reasons = append(d.Reasons, "escalation evaluated without a score or thresholds; failing closed")
		return d
	}

	// Rule 1: unresolved Critical critiques anywhere.
	if score.UnresolvedCritical > 0 {
		d.RequiresReview = true
		d.elevate(PriorityCritical)
		d.Reasons = append(d.Reasons,
			fmt.Sprintf("%d unresolved critical critique(s)", score.UnresolvedCritical))
	}

	// Rule 2: overall score below the human-review threshold.
	if score.OverallScore < th.HumanReviewThreshold {
		d.RequiresReview = true
		d.elevate(PriorityHigh)
		d.Reasons = append(d.Reasons,
			fmt.Sprintf("overall confidence %.2f below review threshold %.2f",
				score.OverallScore, th.HumanReviewThreshold))
	}

	// Rule 3: any section below the per-section floor.
	var weak []string
	for _, sec := range score.Sections {
		if sec.AdjustedScore < th.MinSectionScore {
			weak = append(weak, sec.Section)
		}
	}
	if len(weak) > 0 {
		d.RequiresReview = true
		d.elevate(PriorityHigh)
		d.Reasons = append(d.Reasons,
			fmt.Sprintf("section(s) below minimum score %.2f: %s",
				th.MinSectionScore, strings.Join(weak, ", ")))
	}

	// Rule 4: document-level flags from the critical set.
	for _, flag := range criticalFlags {
		if score.HasFlag(flag) {
			d.RequiresReview = true
			d.elevate(PriorityHigh)
			d.Reasons = append(d.Reasons, fmt.Sprintf("document flagged %s", flag))
		}
	}

	return d
}

// elevate raises the priority to at least floor, never downgrading.
func (d *Decision) elevate(floor Priority) {
	if floor.rank() > d.Priority.rank() {
		d.Priority = floor
	}
}
