// Package report assembles the final run artifacts: a confidence report
// (score-centric) and a red-team transparency report (exchange-centric).
//
// Compilation is pure aggregation. No scoring or escalation decision is made
// here; both reports carry the same review conclusion, taken verbatim from
// the escalation decision they were compiled with.
package report

import (
	"time"

	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/debate"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/escalation"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/rounds"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/scoring"
)

// SectionEntry is one section's line in the confidence report.
type SectionEntry struct {
	Section             string             `json:"section"`
	Score               float64            `json:"score"`
	Level               scoring.Level      `json:"level"`
	TotalCritiques      int                `json:"total_critiques"`
	UnresolvedCritiques int                `json:"unresolved_critiques"`
	ResolutionRate      float64            `json:"resolution_rate"`
	RiskFlags           []scoring.RiskFlag `json:"risk_flags,omitempty"`
	WordCount           int                `json:"word_count,omitempty"`
	RevisionCount       int                `json:"revision_count,omitempty"`
}

// ConfidenceReport is the score-centric artifact for the rendering layer.
type ConfidenceReport struct {
	ReportID    string    `json:"report_id"`
	GeneratedAt time.Time `json:"generated_at"`

	OverallScore   float64            `json:"overall_score"`
	OverallLevel   scoring.Level      `json:"overall_level"`
	ResolutionRate float64            `json:"resolution_rate"`
	RiskFlags      []scoring.RiskFlag `json:"risk_flags,omitempty"`

	TotalCritiques    int  `json:"total_critiques"`
	ResolvedCritiques int  `json:"resolved_critiques"`
	DebateRounds      int  `json:"debate_rounds"`
	ConsensusReached  bool `json:"consensus_reached"`

	RequiresHumanReview bool                `json:"requires_human_review"`
	ReviewPriority      escalation.Priority `json:"review_priority"`
	ReviewItems         []string            `json:"review_items,omitempty"`

	Sections []SectionEntry `json:"sections"`

	ContentHash string `json:"content_hash,omitempty"`
}

// ExchangeEntry is one exchange in the transparency report, with its derived
// resolution state materialized for serialization.
type ExchangeEntry struct {
	Critique *debate.Critique `json:"critique"`
	Response *debate.Response `json:"response,omitempty"`
	Resolved bool             `json:"resolved"`
	Outcome  debate.Outcome   `json:"outcome"`
}

// RedTeamReport is the exchange-centric transparency artifact.
type RedTeamReport struct {
	ReportID    string    `json:"report_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Exchanges []ExchangeEntry   `json:"exchanges"`
	Rounds    []*rounds.Summary `json:"rounds,omitempty"`

	BySeverity    map[debate.Severity]int      `json:"by_severity,omitempty"`
	BySection     map[string]int               `json:"by_section,omitempty"`
	ByChallenge   map[debate.ChallengeType]int `json:"by_challenge,omitempty"`
	ByDisposition map[debate.Disposition]int   `json:"by_disposition,omitempty"`

	// CriticalFindings holds every Critical critique, resolved or not.
	CriticalFindings []*debate.Critique `json:"critical_findings,omitempty"`

	// UnresolvedIssues holds every critique left without a response.
	UnresolvedIssues []*debate.Critique `json:"unresolved_issues,omitempty"`

	TotalCritiques    int     `json:"total_critiques"`
	ResolvedCritiques int     `json:"resolved_critiques"`
	ResolutionRate    float64 `json:"resolution_rate"`

	RequiresHumanReview bool                `json:"requires_human_review"`
	ReviewPriority      escalation.Priority `json:"review_priority"`

	ContentHash string `json:"content_hash,omitempty"`
}
