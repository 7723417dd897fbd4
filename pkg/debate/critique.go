// Package debate defines the contracts for the adversarial review protocol —
// the structured critique/response records exchanged between red-team and
// blue-team agents over a generated proposal document.
//
// Records are produced by the agent-orchestration layer after it parses model
// output into these fields; this package only defines shape and validation.
package debate

import (
	"fmt"
	"strings"
	"time"
)

// Severity classifies how much a critique matters. Closed set.
type Severity string

const (
	// SeverityCritical findings block auto-approval while unresolved.
	SeverityCritical Severity = "CRITICAL"

	// SeverityMajor findings materially weaken a section.
	SeverityMajor Severity = "MAJOR"

	// SeverityMinor findings are worth fixing but not load-bearing.
	SeverityMinor Severity = "MINOR"

	// SeverityObservation is commentary with no required action.
	SeverityObservation Severity = "OBSERVATION"
)

// Valid reports whether s is a member of the severity set.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityMajor, SeverityMinor, SeverityObservation:
		return true
	}
	return false
}

// ChallengeType categorizes the angle of attack. Open set: the canonical
// constants below cover the debate protocol's standard lanes, but agents may
// tag a critique with any non-empty label (see OtherChallenge).
type ChallengeType string

const (
	ChallengeLogic        ChallengeType = "LOGIC"
	ChallengeEvidence     ChallengeType = "EVIDENCE"
	ChallengeCompleteness ChallengeType = "COMPLETENESS"
	ChallengeRisk         ChallengeType = "RISK"
	ChallengeCompliance   ChallengeType = "COMPLIANCE"
	ChallengeCompetitive  ChallengeType = "COMPETITIVE"
	ChallengeFinancial    ChallengeType = "FINANCIAL"
)

// Canonical reports whether c is one of the standard challenge lanes.
func (c ChallengeType) Canonical() bool {
	switch c {
	case ChallengeLogic, ChallengeEvidence, ChallengeCompleteness,
		ChallengeRisk, ChallengeCompliance, ChallengeCompetitive, ChallengeFinancial:
		return true
	}
	return false
}

// OtherChallenge builds an open-ended challenge tag from a free-form label.
// The label is uppercased with spaces collapsed to underscores so it
// round-trips through serialization like the canonical constants.
func OtherChallenge(label string) ChallengeType {
	norm := strings.ToUpper(strings.TrimSpace(label))
	norm = strings.Join(strings.Fields(norm), "_")
	return ChallengeType(norm)
}

// Valid reports whether c carries a usable label. Any non-empty tag is
// accepted; only canonical lanes get special handling downstream.
func (c ChallengeType) Valid() bool {
	return strings.TrimSpace(string(c)) != ""
}

// Critique is an atomic finding raised by a red-team agent against one
// section of the document. Immutable once recorded; owned by the round in
// which it was raised.
type Critique struct {
	CritiqueID string        `json:"critique_id"`
	AgentName  string        `json:"agent_name"`
	Section    string        `json:"section"`
	Challenge  ChallengeType `json:"challenge_type"`
	Severity   Severity      `json:"severity"`

	Title    string `json:"title,omitempty"`
	Argument string `json:"argument,omitempty"`
	Evidence string `json:"evidence,omitempty"`
	Remedy   string `json:"suggested_remedy,omitempty"`

	Round     int       `json:"round"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields the ledger requires before accepting a critique.
func (c *Critique) Validate() error {
	if c.CritiqueID == "" {
		return fmt.Errorf("critique has no identifier")
	}
	if c.Section == "" {
		return fmt.Errorf("critique %q has no target section", c.CritiqueID)
	}
	if !c.Severity.Valid() {
		return fmt.Errorf("critique %q has invalid severity %q", c.CritiqueID, c.Severity)
	}
	if !c.Challenge.Valid() {
		return fmt.Errorf("critique %q has no challenge type", c.CritiqueID)
	}
	return nil
}
