package debate

import (
	"fmt"
	"strings"
	"time"
)

// Disposition is the blue team's stance toward a critique. Open set: the
// canonical constants below map 1:1 onto exchange outcomes, but agents may
// respond with any non-empty tag (see OtherDisposition).
type Disposition string

const (
	// DispositionAccept concedes the critique in full.
	DispositionAccept Disposition = "ACCEPT"

	// DispositionPartialAccept concedes part of the critique.
	DispositionPartialAccept Disposition = "PARTIAL_ACCEPT"

	// DispositionRebut argues the critique is wrong.
	DispositionRebut Disposition = "REBUT"

	// DispositionAcknowledge notes the critique without committing either way.
	DispositionAcknowledge Disposition = "ACKNOWLEDGE"

	// DispositionDefer postpones the critique to a later revision.
	DispositionDefer Disposition = "DEFER"
)

// Canonical reports whether d is one of the standard dispositions.
func (d Disposition) Canonical() bool {
	switch d {
	case DispositionAccept, DispositionPartialAccept, DispositionRebut,
		DispositionAcknowledge, DispositionDefer:
		return true
	}
	return false
}

// OtherDisposition builds an open-ended disposition from a free-form label,
// normalized the same way OtherChallenge normalizes challenge tags.
func OtherDisposition(label string) Disposition {
	norm := strings.ToUpper(strings.TrimSpace(label))
	norm = strings.Join(strings.Fields(norm), "_")
	return Disposition(norm)
}

// Valid reports whether d carries a usable label. Any non-empty tag is
// accepted; only canonical dispositions derive a canonical outcome.
func (d Disposition) Valid() bool {
	return strings.TrimSpace(string(d)) != ""
}

// Outcome is the derived resolution state of an exchange. It maps 1:1 from
// the response's disposition when a response exists, else Unresolved.
type Outcome string

const (
	OutcomeAccepted          Outcome = "ACCEPTED"
	OutcomePartiallyAccepted Outcome = "PARTIALLY_ACCEPTED"
	OutcomeRebutted          Outcome = "REBUTTED"
	OutcomeAcknowledged      Outcome = "ACKNOWLEDGED"
	OutcomeDeferred          Outcome = "DEFERRED"
	OutcomeUnresolved        Outcome = "UNRESOLVED"
)

// OutcomeFor maps a disposition to its exchange outcome. Canonical
// dispositions map 1:1; an open-ended disposition carries its own label
// through as the outcome so it survives serialization unchanged.
func OutcomeFor(d Disposition) Outcome {
	switch d {
	case DispositionAccept:
		return OutcomeAccepted
	case DispositionPartialAccept:
		return OutcomePartiallyAccepted
	case DispositionRebut:
		return OutcomeRebutted
	case DispositionAcknowledge:
		return OutcomeAcknowledged
	case DispositionDefer:
		return OutcomeDeferred
	}
	if !d.Valid() {
		return OutcomeUnresolved
	}
	return Outcome(d)
}

// Response is a blue-team reply to a critique. At most one per critique.
type Response struct {
	ResponseID  string      `json:"response_id"`
	CritiqueID  string      `json:"critique_id"`
	AgentName   string      `json:"agent_name"`
	Disposition Disposition `json:"disposition"`

	Summary      string `json:"summary,omitempty"`
	Action       string `json:"action,omitempty"`
	Rationale    string `json:"rationale,omitempty"`
	Evidence     string `json:"evidence,omitempty"`
	ResidualRisk string `json:"residual_risk,omitempty"`

	Round     int       `json:"round"`
	CreatedAt time.Time `json:"created_at"`
}

// Outcome returns the exchange outcome this response produces.
func (r *Response) Outcome() Outcome {
	return OutcomeFor(r.Disposition)
}

// Validate checks the fields the ledger requires before accepting a response.
func (r *Response) Validate() error {
	if r.ResponseID == "" {
		return fmt.Errorf("response has no identifier")
	}
	if r.CritiqueID == "" {
		return fmt.Errorf("response %q references no critique", r.ResponseID)
	}
	if !r.Disposition.Valid() {
		return fmt.Errorf("response %q has no disposition", r.ResponseID)
	}
	return nil
}
