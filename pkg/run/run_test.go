package run

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/audit"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/debate"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/escalation"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/rounds"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/scoring"
)

func newTestRun(t *testing.T, opts ...Option) *Run {
	t.Helper()
	opts = append(opts, WithClock(func() time.Time { return time.Unix(1700000000, 0).UTC() }))
	r, err := New(scoring.DefaultThresholds(), opts...)
	require.NoError(t, err)
	return r
}

func TestRunRequiresThresholds(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestCleanDocumentProceedsAutomatically(t *testing.T) {
	r := newTestRun(t)
	require.NoError(t, r.OpenRound(1, rounds.TypeRedAttack))
	_, err := r.CloseRound(1)
	require.NoError(t, err)

	result, err := r.Finalize(FinalizeInput{
		Sections: map[string]scoring.SectionContext{
			"Technical Approach": {WordCount: 900},
		},
		ConsensusReached: true,
	})
	require.NoError(t, err)

	require.Len(t, result.Score.Sections, 1)
	assert.InDelta(t, 0.80, result.Score.OverallScore, 1e-9)
	assert.Equal(t, scoring.LevelHigh, result.Score.OverallLevel)
	assert.False(t, result.Decision.RequiresReview)
	assert.Equal(t, escalation.PriorityNone, result.Decision.Priority)
	assert.True(t, result.Score.ConsensusReached)
}

func TestUnresolvedCriticalForcesReview(t *testing.T) {
	r := newTestRun(t)
	require.NoError(t, r.OpenRound(1, rounds.TypeRedAttack))
	require.NoError(t, r.RecordCritique(&debate.Critique{
		CritiqueID: "c1", AgentName: "red-logic", Section: "Pricing",
		Challenge: debate.ChallengeLogic, Severity: debate.SeverityCritical, Round: 1,
	}))
	_, err := r.CloseRound(1)
	require.NoError(t, err)

	result, err := r.Finalize(FinalizeInput{})
	require.NoError(t, err)

	// Section: 0.80 - 0.15 = 0.65; document: 0.65 - 0.15 = 0.50.
	sec := result.Score.Sections[0]
	assert.InDelta(t, 0.65, sec.AdjustedScore, 1e-9)
	assert.Equal(t, scoring.LevelLow, sec.Level)

	assert.InDelta(t, 0.50, result.Score.OverallScore, 1e-9)
	assert.True(t, result.Score.RequiresHumanReview)
	assert.True(t, result.Decision.RequiresReview)
	assert.Equal(t, escalation.PriorityCritical, result.Decision.Priority)
	assert.True(t, result.Score.HasFlag(scoring.FlagUnresolvedCritical))
}

func TestComplianceFindingFlagsDocument(t *testing.T) {
	r := newTestRun(t)
	require.NoError(t, r.OpenRound(1, rounds.TypeRedAttack))
	require.NoError(t, r.RecordCritique(&debate.Critique{
		CritiqueID: "c1", AgentName: "red-compliance", Section: "Certifications",
		Challenge: debate.ChallengeCompliance, Severity: debate.SeverityMajor, Round: 1,
	}))
	_, err := r.CloseRound(1)
	require.NoError(t, err)

	result, err := r.Finalize(FinalizeInput{})
	require.NoError(t, err)

	assert.True(t, result.Score.HasFlag(scoring.FlagComplianceConcerns))
	assert.True(t, result.Decision.RequiresReview)

	found := false
	for _, reason := range result.Decision.Reasons {
		if strings.Contains(reason, "COMPLIANCE_CONCERNS") {
			found = true
		}
	}
	assert.True(t, found, "decision reasons should name the compliance flag: %v", result.Decision.Reasons)
}

func TestResolvedDebateEarnsBonus(t *testing.T) {
	r := newTestRun(t)
	require.NoError(t, r.OpenRound(1, rounds.TypeRedAttack))
	require.NoError(t, r.RecordCritique(&debate.Critique{
		CritiqueID: "c1", AgentName: "red-evidence", Section: "Pricing",
		Challenge: debate.ChallengeEvidence, Severity: debate.SeverityMajor, Round: 1,
	}))
	require.NoError(t, r.RecordCritique(&debate.Critique{
		CritiqueID: "c2", AgentName: "red-evidence", Section: "Pricing",
		Challenge: debate.ChallengeEvidence, Severity: debate.SeverityMinor, Round: 1,
	}))
	_, err := r.CloseRound(1)
	require.NoError(t, err)

	require.NoError(t, r.OpenRound(2, rounds.TypeBlueDefense))
	require.NoError(t, r.RecordResponse(&debate.Response{
		ResponseID: "r1", CritiqueID: "c1", AgentName: "blue-author",
		Disposition: debate.DispositionAccept, Evidence: "revised basis of estimate", Round: 2,
	}))
	summary, err := r.CloseRound(2)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ResponsesGiven)

	result, err := r.Finalize(FinalizeInput{})
	require.NoError(t, err)

	// 0.80 + 0.05 (accepted) - 0.03 (unresolved minor) = 0.82.
	assert.InDelta(t, 0.82, result.Score.Sections[0].AdjustedScore, 1e-9)
	assert.Equal(t, 2, result.Score.DebateRounds)
	assert.False(t, result.Decision.RequiresReview)
}

func TestFinalizeIdempotent(t *testing.T) {
	r := newTestRun(t)
	require.NoError(t, r.OpenRound(1, rounds.TypeRedAttack))
	require.NoError(t, r.RecordCritique(&debate.Critique{
		CritiqueID: "c1", AgentName: "red-logic", Section: "Pricing",
		Challenge: debate.ChallengeLogic, Severity: debate.SeverityMajor, Round: 1,
	}))
	_, err := r.CloseRound(1)
	require.NoError(t, err)

	first, err := r.Finalize(FinalizeInput{})
	require.NoError(t, err)
	second, err := r.Finalize(FinalizeInput{})
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestFinalizeSectionOrderDeterministic(t *testing.T) {
	input := FinalizeInput{Sections: map[string]scoring.SectionContext{
		"Staffing": {WordCount: 100}, "Pricing": {WordCount: 200},
		"Transition": {WordCount: 300}, "Quality": {WordCount: 400},
		"Management": {WordCount: 500}, "Past Performance": {WordCount: 600},
		"Risk": {WordCount: 700}, "Executive Summary": {WordCount: 800},
	}}

	build := func() []string {
		r := newTestRun(t)
		require.NoError(t, r.OpenRound(1, rounds.TypeRedAttack))
		require.NoError(t, r.RecordCritique(&debate.Critique{
			CritiqueID: "c1", AgentName: "red-logic", Section: "Transition",
			Challenge: debate.ChallengeLogic, Severity: debate.SeverityMinor, Round: 1,
		}))
		_, err := r.CloseRound(1)
		require.NoError(t, err)

		result, err := r.Finalize(input)
		require.NoError(t, err)
		var names []string
		for _, sec := range result.Score.Sections {
			names = append(names, sec.Section)
		}
		return names
	}

	first := build()
	// Critiqued sections lead in ledger order; the rest follow sorted.
	require.Equal(t, "Transition", first[0])
	assert.Equal(t, []string{
		"Transition", "Executive Summary", "Management", "Past Performance",
		"Pricing", "Quality", "Risk", "Staffing",
	}, first)

	for i := 0; i < 5; i++ {
		assert.Equal(t, first, build(), "identical runs must order sections identically")
	}
}

func TestRejectedRecordDoesNotCorruptRun(t *testing.T) {
	r := newTestRun(t)
	require.NoError(t, r.OpenRound(1, rounds.TypeRedAttack))

	err := r.RecordCritique(&debate.Critique{
		CritiqueID: "c1", Section: "", Challenge: debate.ChallengeLogic,
		Severity: debate.SeverityMajor, Round: 1,
	})
	require.Error(t, err)

	require.NoError(t, r.RecordCritique(&debate.Critique{
		CritiqueID: "c2", AgentName: "red-logic", Section: "Pricing",
		Challenge: debate.ChallengeLogic, Severity: debate.SeverityMinor, Round: 1,
	}))

	assert.Equal(t, 1, r.Ledger().CritiqueCount())
	ok, detail := r.Ledger().Verify()
	assert.True(t, ok, detail)
}

func TestAuditTrailRecordsActivity(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRun(t, WithTrail(audit.NewTrailWithWriter("run-test", &buf)))

	require.NoError(t, r.OpenRound(1, rounds.TypeRedAttack))
	require.NoError(t, r.RecordCritique(&debate.Critique{
		CritiqueID: "c1", AgentName: "red-logic", Section: "Pricing",
		Challenge: debate.ChallengeLogic, Severity: debate.SeverityCritical, Round: 1,
	}))
	_ = r.RecordCritique(&debate.Critique{CritiqueID: "bad", Round: 1})
	_, err := r.CloseRound(1)
	require.NoError(t, err)
	_, err = r.Finalize(FinalizeInput{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 5)

	var types []string
	for _, line := range lines {
		var ev audit.Event
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		assert.Equal(t, "run-test", ev.RunID)
		types = append(types, string(ev.Type))
	}
	assert.Contains(t, types, string(audit.EventRoundOpened))
	assert.Contains(t, types, string(audit.EventCritiqueRecorded))
	assert.Contains(t, types, string(audit.EventRecordRejected))
	assert.Contains(t, types, string(audit.EventRoundClosed))
	assert.Contains(t, types, string(audit.EventDecisionMade))
	assert.Contains(t, types, string(audit.EventReportCompiled))
}

func TestReportsAgreeWithDecision(t *testing.T) {
	r := newTestRun(t)
	require.NoError(t, r.OpenRound(1, rounds.TypeRedAttack))
	require.NoError(t, r.RecordCritique(&debate.Critique{
		CritiqueID: "c1", AgentName: "red-logic", Section: "Pricing",
		Challenge: debate.ChallengeLogic, Severity: debate.SeverityCritical, Round: 1,
	}))
	_, err := r.CloseRound(1)
	require.NoError(t, err)

	result, err := r.Finalize(FinalizeInput{})
	require.NoError(t, err)

	assert.Equal(t, result.Decision.RequiresReview, result.Confidence.RequiresHumanReview)
	assert.Equal(t, result.Decision.RequiresReview, result.Transparency.RequiresHumanReview)
	assert.Equal(t, result.Decision.Priority, result.Confidence.ReviewPriority)
	assert.Equal(t, result.Decision.Priority, result.Transparency.ReviewPriority)
	assert.Equal(t, result.Decision.Reasons, result.Confidence.ReviewItems)
}
