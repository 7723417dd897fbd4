package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/debate"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/escalation"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/rounds"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/scoring"
)

// Compiler assembles the two run artifacts. It holds no run state of its
// own; it is invoked once, at the end of the run.
type Compiler struct {
	clock func() time.Time
	newID func() string
}

// NewCompiler creates a report compiler.
func NewCompiler() *Compiler {
	return &Compiler{
		clock: time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// WithClock overrides clock for deterministic testing.
func (c *Compiler) WithClock(clock func() time.Time) *Compiler {
	c.clock = clock
	return c
}

// WithIDFunc overrides report ID generation for deterministic testing.
func (c *Compiler) WithIDFunc(newID func() string) *Compiler {
	c.newID = newID
	return c
}

// Confidence compiles the score-centric report from a finalized document
// score and the escalation decision made on it.
func (c *Compiler) Confidence(score *scoring.ConfidenceScore, decision *escalation.Decision) (*ConfidenceReport, error) {
	if score == nil {
		return nil, fmt.Errorf("confidence report requires a document score")
	}
	if decision == nil {
		return nil, fmt.Errorf("confidence report requires an escalation decision")
	}

	r := &ConfidenceReport{
		ReportID:    c.newID(),
		GeneratedAt: c.clock(),

		OverallScore:   score.OverallScore,
		OverallLevel:   score.OverallLevel,
		ResolutionRate: score.ResolutionRate(),
		RiskFlags:      score.RiskFlags,

		TotalCritiques:    score.TotalCritiques,
		ResolvedCritiques: score.ResolvedCritiques,
		DebateRounds:      score.DebateRounds,
		ConsensusReached:  score.ConsensusReached,

		RequiresHumanReview: decision.RequiresReview,
		ReviewPriority:      decision.Priority,
		ReviewItems:         append([]string(nil), decision.Reasons...),
	}

	for _, sec := range score.Sections {
		r.Sections = append(r.Sections, SectionEntry{
			Section:             sec.Section,
			Score:               sec.AdjustedScore,
			Level:               sec.Level,
			TotalCritiques:      sec.TotalCritiques,
			UnresolvedCritiques: sec.UnresolvedCritiques,
			ResolutionRate:      sec.ResolutionRate(),
			RiskFlags:           sec.RiskFlags,
			WordCount:           sec.WordCount,
			RevisionCount:       sec.RevisionCount,
		})
	}

	hash, err := contentHash(r)
	if err != nil {
		return nil, fmt.Errorf("failed to hash confidence report: %w", err)
	}
	r.ContentHash = hash
	return r, nil
}

// Transparency compiles the exchange-centric report from the full exchange
// history, the closed-round summaries, and the same escalation decision the
// confidence report carries.
func (c *Compiler) Transparency(exchanges iter.Seq[debate.Exchange], roundSummaries []*rounds.Summary, decision *escalation.Decision) (*RedTeamReport, error) {
	if decision == nil {
		return nil, fmt.Errorf("transparency report requires an escalation decision")
	}

	r := &RedTeamReport{
		ReportID:    c.newID(),
		GeneratedAt: c.clock(),
		Rounds:      roundSummaries,

		BySeverity:    make(map[debate.Severity]int),
		BySection:     make(map[string]int),
		ByChallenge:   make(map[debate.ChallengeType]int),
		ByDisposition: make(map[debate.Disposition]int),

		RequiresHumanReview: decision.RequiresReview,
		ReviewPriority:      decision.Priority,
	}

	for ex := range exchanges {
		r.Exchanges = append(r.Exchanges, ExchangeEntry{
			Critique: ex.Critique,
			Response: ex.Response,
			Resolved: ex.IsResolved(),
			Outcome:  ex.Outcome(),
		})

		r.TotalCritiques++
		r.BySeverity[ex.Critique.Severity]++
		r.BySection[ex.Critique.Section]++
		r.ByChallenge[ex.Critique.Challenge]++
		if ex.IsResolved() {
			r.ResolvedCritiques++
			r.ByDisposition[ex.Response.Disposition]++
		} else {
			r.UnresolvedIssues = append(r.UnresolvedIssues, ex.Critique)
		}
		if ex.Critique.Severity == debate.SeverityCritical {
			r.CriticalFindings = append(r.CriticalFindings, ex.Critique)
		}
	}

	if r.TotalCritiques == 0 {
		r.ResolutionRate = 100.0
	} else {
		r.ResolutionRate = 100.0 * float64(r.ResolvedCritiques) / float64(r.TotalCritiques)
	}

	hash, err := contentHash(r)
	if err != nil {
		return nil, fmt.Errorf("failed to hash transparency report: %w", err)
	}
	r.ContentHash = hash
	return r, nil
}

// contentHash hashes the report over canonical JSON, computed before the
// hash field itself is set.
func contentHash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}
