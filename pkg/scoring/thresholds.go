// Package scoring converts a section's exchange history into a confidence
// score and aggregates section scores into one document-level score.
//
// Scoring is a deterministic fold over the immutable exchange sequence:
// penalties for unresolved critiques, bonuses for accepted or rebutted
// resolutions, with the running score clamped to [0, 1] after every step.
package scoring

import (
	"fmt"
	"math"
)

// Thresholds holds the numeric policy constants for one run. Supplied once
// and treated as immutable; every scoring and escalation entry point takes
// it explicitly so tests can inject boundary values.
type Thresholds struct {
	// BaseScore seeds each section before adjustments.
	BaseScore float64 `json:"base_score" yaml:"base_score"`

	// ApprovalThreshold is the overall score at or above which the document
	// may proceed without reservation.
	ApprovalThreshold float64 `json:"approval_threshold" yaml:"approval_threshold"`

	// HumanReviewThreshold is the overall score below which a human must
	// review the document.
	HumanReviewThreshold float64 `json:"human_review_threshold" yaml:"human_review_threshold"`

	// CriticalHaltThreshold is the overall score below which generation
	// should halt outright.
	CriticalHaltThreshold float64 `json:"critical_halt_threshold" yaml:"critical_halt_threshold"`

	// MinSectionScore is the floor any single section must clear to avoid
	// forcing review.
	MinSectionScore float64 `json:"min_section_score" yaml:"min_section_score"`

	// Per-severity penalties for unresolved critiques. Observations share
	// the minor penalty.
	CriticalCritiquePenalty float64 `json:"critical_critique_penalty" yaml:"critical_critique_penalty"`
	MajorCritiquePenalty    float64 `json:"major_critique_penalty" yaml:"major_critique_penalty"`
	MinorCritiquePenalty    float64 `json:"minor_critique_penalty" yaml:"minor_critique_penalty"`

	// Bonuses for resolved exchanges. Partial accepts, acknowledgements,
	// and deferrals earn nothing.
	AcceptedResolutionBonus float64 `json:"accepted_resolution_bonus" yaml:"accepted_resolution_bonus"`
	RebuttedResolutionBonus float64 `json:"rebutted_resolution_bonus" yaml:"rebutted_resolution_bonus"`
}

// DefaultThresholds returns the static policy defaults.
func DefaultThresholds() *Thresholds {
	return &Thresholds{
		BaseScore:               0.80,
		ApprovalThreshold:       0.85,
		HumanReviewThreshold:    0.70,
		CriticalHaltThreshold:   0.50,
		MinSectionScore:         0.60,
		CriticalCritiquePenalty: 0.15,
		MajorCritiquePenalty:    0.08,
		MinorCritiquePenalty:    0.03,
		AcceptedResolutionBonus: 0.05,
		RebuttedResolutionBonus: 0.03,
	}
}

// Validate rejects thresholds that could break the scoring invariants.
func (t *Thresholds) Validate() error {
	unit := map[string]float64{
		"base_score":              t.BaseScore,
		"approval_threshold":      t.ApprovalThreshold,
		"human_review_threshold":  t.HumanReviewThreshold,
		"critical_halt_threshold": t.CriticalHaltThreshold,
		"min_section_score":       t.MinSectionScore,
	}
	for name, v := range unit {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("threshold %s=%v outside [0, 1]", name, v)
		}
	}

	nonNegative := map[string]float64{
		"critical_critique_penalty": t.CriticalCritiquePenalty,
		"major_critique_penalty":    t.MajorCritiquePenalty,
		"minor_critique_penalty":    t.MinorCritiquePenalty,
		"accepted_resolution_bonus": t.AcceptedResolutionBonus,
		"rebutted_resolution_bonus": t.RebuttedResolutionBonus,
	}
	for name, v := range nonNegative {
		if math.IsNaN(v) || v < 0 {
			return fmt.Errorf("threshold %s=%v is negative", name, v)
		}
	}
	return nil
}
