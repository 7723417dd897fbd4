// Package run drives one document-generation run through the adversarial
// review pipeline: records flow into the exchange ledger, rounds open and
// close around them, and Finalize folds the history into scores, an
// escalation decision, and the two report artifacts.
package run

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/audit"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/debate"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/escalation"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/ledger"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/report"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/rounds"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/scoring"
)

// Result bundles the finalized artifacts of one run.
type Result struct {
	Score        *scoring.ConfidenceScore `json:"score"`
	Decision     *escalation.Decision     `json:"decision"`
	Confidence   *report.ConfidenceReport `json:"confidence_report"`
	Transparency *report.RedTeamReport    `json:"transparency_report"`
}

// FinalizeInput carries the document-wide context the run cannot derive
// from its own records.
type FinalizeInput struct {
	// Sections seeds per-section context (word counts, revision counts,
	// externally computed base scores), keyed by section name.
	Sections map[string]scoring.SectionContext

	// ExtraFlags are document-level risk flags attached by the
	// orchestration layer.
	ExtraFlags []scoring.RiskFlag

	ConsensusReached bool
}

// Run is one document-generation run. Single-threaded synchronous use;
// rounds are logically sequential.
type Run struct {
	id       string
	ledger   *ledger.Ledger
	tracker  *rounds.Tracker
	policy   *escalation.Policy
	compiler *report.Compiler
	th       *scoring.Thresholds
	trail    audit.Trail

	mu        sync.Mutex
	finalized bool
	result    *Result
}

// Option customizes a run.
type Option func(*Run)

// WithTrail sets the audit trail. Defaults to a discard trail.
func WithTrail(t audit.Trail) Option {
	return func(r *Run) { r.trail = t }
}

// WithClock overrides every component clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(r *Run) {
		r.ledger.WithClock(clock)
		r.tracker.WithClock(clock)
		r.policy.WithClock(clock)
		r.compiler.WithClock(clock)
	}
}

// New creates a run with the given thresholds. Thresholds are required;
// there is no implicit default policy.
func New(th *scoring.Thresholds, opts ...Option) (*Run, error) {
	if th == nil {
		return nil, fmt.Errorf("run requires thresholds")
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}

	r := &Run{
		id:       uuid.New().String(),
		ledger:   ledger.New(),
		tracker:  rounds.NewTracker(),
		policy:   escalation.NewPolicy(),
		compiler: report.NewCompiler(),
		th:       th,
		trail:    audit.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Ledger exposes the exchange ledger for read access.
func (r *Run) Ledger() *ledger.Ledger { return r.ledger }

// OpenRound registers a debate round.
func (r *Run) OpenRound(round int, roundType rounds.Type) error {
	if err := r.tracker.OpenRound(round, roundType); err != nil {
		return err
	}
	_ = r.trail.Record(audit.EventRoundOpened, "", fmt.Sprintf("round %d", round),
		map[string]any{"round_type": roundType})
	return nil
}

// CloseRound freezes the round's summary from the exchange history so far.
func (r *Run) CloseRound(round int) (*rounds.Summary, error) {
	s, err := r.tracker.CloseRound(round, r.ledger.Exchanges())
	if err != nil {
		return nil, err
	}
	_ = r.trail.Record(audit.EventRoundClosed, "", fmt.Sprintf("round %d", round), map[string]any{
		"critiques_issued": s.CritiquesIssued,
		"responses_given":  s.ResponsesGiven,
	})
	return s, nil
}

// RecordCritique appends a red-team critique to the ledger. A rejected
// record leaves the run unchanged and is noted on the trail.
func (r *Run) RecordCritique(c *debate.Critique) error {
	if c == nil {
		return r.ledger.RecordCritique(nil)
	}
	if err := r.ledger.RecordCritique(c); err != nil {
		r.auditRejection(c.AgentName, c.CritiqueID, err)
		return err
	}
	_ = r.trail.Record(audit.EventCritiqueRecorded, c.AgentName, c.CritiqueID, map[string]any{
		"section":  c.Section,
		"severity": c.Severity,
		"round":    c.Round,
	})
	return nil
}

// RecordResponse appends a blue-team response to the ledger.
func (r *Run) RecordResponse(resp *debate.Response) error {
	if resp == nil {
		return r.ledger.RecordResponse(nil)
	}
	if err := r.ledger.RecordResponse(resp); err != nil {
		r.auditRejection(resp.AgentName, resp.ResponseID, err)
		return err
	}
	_ = r.trail.Record(audit.EventResponseRecorded, resp.AgentName, resp.ResponseID, map[string]any{
		"critique_id": resp.CritiqueID,
		"disposition": resp.Disposition,
		"round":       resp.Round,
	})
	return nil
}

func (r *Run) auditRejection(actor, subject string, cause error) {
	_ = r.trail.Record(audit.EventRecordRejected, actor, subject, map[string]any{
		"error": cause.Error(),
	})
}

// Finalize folds the full exchange history into section and document
// scores, evaluates the escalation policy, and compiles both reports.
// It is idempotent: repeated calls return the first result.
func (r *Run) Finalize(input FinalizeInput) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return r.result, nil
	}

	var sections []*scoring.SectionConfidence
	for _, name := range r.ledger.Sections() {
		sc, err := scoring.ScoreSection(name, r.ledger.SectionExchanges(name), r.th, input.Sections[name])
		if err != nil {
			return nil, fmt.Errorf("failed to score section %q: %w", name, err)
		}
		sections = append(sections, sc)
	}
	// Sections that drew no critiques still get scored if the caller
	// supplied context for them, in name order so identical inputs always
	// produce the same section sequence.
	scored := make(map[string]bool, len(sections))
	for _, sc := range sections {
		scored[sc.Section] = true
	}
	var pending []string
	for name := range input.Sections {
		if !scored[name] {
			pending = append(pending, name)
		}
	}
	sort.Strings(pending)
	for _, name := range pending {
		sc, err := scoring.ScoreSection(name, r.ledger.SectionExchanges(name), r.th, input.Sections[name])
		if err != nil {
			return nil, fmt.Errorf("failed to score section %q: %w", name, err)
		}
		sections = append(sections, sc)
	}

	docCtx := scoring.DocumentContext{
		DebateRounds:     r.tracker.ClosedCount(),
		ConsensusReached: input.ConsensusReached,
		ExtraFlags:       append(r.derivedFlags(), input.ExtraFlags...),
	}
	score, err := scoring.ScoreDocument(sections, r.th, docCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to score document: %w", err)
	}

	decision := r.policy.Evaluate(score, r.th)
	// The policy decision is authoritative for both reports.
	score.RequiresHumanReview = decision.RequiresReview
	score.ReviewReasons = append([]string(nil), decision.Reasons...)

	_ = r.trail.Record(audit.EventDecisionMade, "", "escalation", map[string]any{
		"requires_review": decision.RequiresReview,
		"priority":        decision.Priority,
		"overall_score":   score.OverallScore,
	})

	confidence, err := r.compiler.Confidence(score, decision)
	if err != nil {
		return nil, err
	}
	transparency, err := r.compiler.Transparency(r.ledger.Exchanges(), r.tracker.Summaries(), decision)
	if err != nil {
		return nil, err
	}
	_ = r.trail.Record(audit.EventReportCompiled, "", confidence.ReportID, nil)
	_ = r.trail.Record(audit.EventReportCompiled, "", transparency.ReportID, nil)

	r.result = &Result{
		Score:        score,
		Decision:     decision,
		Confidence:   confidence,
		Transparency: transparency,
	}
	r.finalized = true
	return r.result, nil
}

// derivedFlags computes document flags the run can see directly in its own
// records: unresolved compliance-lane findings of weighty severity.
func (r *Run) derivedFlags() []scoring.RiskFlag {
	for ex := range r.ledger.Exchanges() {
		if ex.IsResolved() {
			continue
		}
		if ex.Critique.Challenge != debate.ChallengeCompliance {
			continue
		}
		if ex.Critique.Severity == debate.SeverityCritical || ex.Critique.Severity == debate.SeverityMajor {
			return []scoring.RiskFlag{scoring.FlagComplianceConcerns}
		}
	}
	return nil
}
