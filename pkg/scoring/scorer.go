package scoring

import (
	"fmt"
	"iter"
	"math"
	"sort"
	"strings"

	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/debate"
)

// InvariantViolation reports a score escaping [0, 1] after clamping. It is a
// defensive check on a programming defect, not a user-facing condition.
type InvariantViolation struct {
	Target string
	Value  float64
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("score invariant violated for %s: %v outside [0, 1]", e.Target, e.Value)
}

// SectionContext carries per-section inputs the scorer does not compute:
// an optional externally seeded starting score and rendering context.
type SectionContext struct {
	// BaseScore overrides the thresholds' base score when positive.
	BaseScore     float64
	WordCount     int
	RevisionCount int
}

// DocumentContext carries document-wide inputs the scorer does not compute.
type DocumentContext struct {
	DebateRounds     int
	ConsensusReached bool

	// ExtraFlags are externally attached risk flags (compliance concerns,
	// missing required content, scope mismatch) folded into the document
	// flag set.
	ExtraFlags []RiskFlag
}

// ScoreSection folds one section's exchange history into a SectionConfidence.
// The fold is deterministic and idempotent: scoring the same exchange
// sequence twice yields identical output.
func ScoreSection(section string, exchanges iter.Seq[debate.Exchange], th *Thresholds, ctx SectionContext) (*SectionConfidence, error) {
	if th == nil {
		return nil, fmt.Errorf("section %q: thresholds are required", section)
	}
	if err := th.Validate(); err != nil {
		return nil, fmt.Errorf("section %q: %w", section, err)
	}

	base := th.BaseScore
	if ctx.BaseScore > 0 {
		base = ctx.BaseScore
	}

	sc := &SectionConfidence{
		Section:       section,
		BaseScore:     base,
		AdjustedScore: clamp01(base),
		WordCount:     ctx.WordCount,
		RevisionCount: ctx.RevisionCount,
	}

	var history []debate.Exchange
	for ex := range exchanges {
		history = append(history, ex)

		sc.TotalCritiques++
		if !ex.IsResolved() {
			sc.UnresolvedCritiques++
		}
		switch ex.Critique.Severity {
		case debate.SeverityCritical:
			sc.CriticalCritiques++
			if !ex.IsResolved() {
				sc.UnresolvedCritical++
			}
		case debate.SeverityMajor:
			sc.MajorCritiques++
			if !ex.IsResolved() {
				sc.UnresolvedMajor++
			}
		}
	}

	// Penalties for unresolved critiques, in exchange order.
	for _, ex := range history {
		if ex.IsResolved() {
			continue
		}
		penalty := th.MinorCritiquePenalty
		switch ex.Critique.Severity {
		case debate.SeverityCritical:
			penalty = th.CriticalCritiquePenalty
		case debate.SeverityMajor:
			penalty = th.MajorCritiquePenalty
		}
		reason := fmt.Sprintf("unresolved %s critique %s", ex.Critique.Severity, ex.Critique.CritiqueID)
		if err := sc.apply(reason, -penalty); err != nil {
			return nil, err
		}
	}

	// Bonuses for accepted or rebutted resolutions. Partial accepts,
	// acknowledgements, and deferrals earn nothing.
	for _, ex := range history {
		switch ex.Outcome() {
		case debate.OutcomeAccepted:
			reason := fmt.Sprintf("accepted resolution of critique %s", ex.Critique.CritiqueID)
			if err := sc.apply(reason, th.AcceptedResolutionBonus); err != nil {
				return nil, err
			}
		case debate.OutcomeRebutted:
			reason := fmt.Sprintf("rebutted resolution of critique %s", ex.Critique.CritiqueID)
			if err := sc.apply(reason, th.RebuttedResolutionBonus); err != nil {
				return nil, err
			}
		}
	}

	flags := make(map[RiskFlag]bool)
	for _, ex := range history {
		if !ex.IsResolved() {
			continue
		}
		weighty := ex.Critique.Severity == debate.SeverityCritical || ex.Critique.Severity == debate.SeverityMajor
		if weighty && strings.TrimSpace(ex.Response.Evidence) == "" {
			flags[FlagLowEvidenceSupport] = true
		}
	}
	if sc.UnresolvedMajor > 2 {
		flags[FlagHighCritiqueDensity] = true
	}
	sc.RiskFlags = sortedFlags(flags)

	sc.Level = LevelFor(sc.AdjustedScore)
	return sc, nil
}

// apply records one named adjustment and clamps the running score.
func (s *SectionConfidence) apply(reason string, delta float64) error {
	s.Adjustments = append(s.Adjustments, Adjustment{Reason: reason, Delta: delta})
	s.AdjustedScore = clamp01(s.AdjustedScore + delta)
	if math.IsNaN(s.AdjustedScore) || s.AdjustedScore < 0 || s.AdjustedScore > 1 {
		return &InvariantViolation{Target: "section " + s.Section, Value: s.AdjustedScore}
	}
	return nil
}

// ScoreDocument aggregates section scores into the document-level score.
// The overall score is the minimum section score — the document is never
// more confident than its weakest section — further reduced by one critical
// penalty per unresolved Critical critique.
func ScoreDocument(sections []*SectionConfidence, th *Thresholds, ctx DocumentContext) (*ConfidenceScore, error) {
	if th == nil {
		return nil, fmt.Errorf("document scoring: thresholds are required")
	}
	if err := th.Validate(); err != nil {
		return nil, fmt.Errorf("document scoring: %w", err)
	}

	cs := &ConfidenceScore{
		Sections:         sections,
		DebateRounds:     ctx.DebateRounds,
		ConsensusReached: ctx.ConsensusReached,
	}

	overall := 0.0
	for i, sec := range sections {
		if i == 0 || sec.AdjustedScore < overall {
			overall = sec.AdjustedScore
		}
		cs.TotalCritiques += sec.TotalCritiques
		cs.ResolvedCritiques += sec.TotalCritiques - sec.UnresolvedCritiques
		cs.UnresolvedCritical += sec.UnresolvedCritical
		cs.UnresolvedMajor += sec.UnresolvedMajor
	}

	flags := make(map[RiskFlag]bool)
	for _, f := range ctx.ExtraFlags {
		flags[f] = true
	}

	if cs.UnresolvedCritical > 0 {
		overall -= float64(cs.UnresolvedCritical) * th.CriticalCritiquePenalty
		flags[FlagUnresolvedCritical] = true
		cs.RequiresHumanReview = true
		cs.ReviewReasons = append(cs.ReviewReasons,
			fmt.Sprintf("%d unresolved critical critique(s)", cs.UnresolvedCritical))
	}
	if cs.UnresolvedMajor > 2 {
		flags[FlagHighCritiqueDensity] = true
	}

	cs.OverallScore = clamp01(overall)
	if math.IsNaN(cs.OverallScore) {
		return nil, &InvariantViolation{Target: "document", Value: cs.OverallScore}
	}
	cs.OverallLevel = LevelFor(cs.OverallScore)
	cs.RiskFlags = sortedFlags(flags)
	return cs, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sortedFlags(set map[RiskFlag]bool) []RiskFlag {
	if len(set) == 0 {
		return nil
	}
	out := make([]RiskFlag, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
