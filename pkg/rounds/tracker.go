// Package rounds tracks the debate round lifecycle and freezes per-round
// summaries when rounds close.
//
// Rounds are logically sequential: each blue defense answers the prior red
// attack. The tracker enforces close ordering (non-decreasing round number,
// gaps permitted) and never mutates a summary after its round closes.
package rounds

import (
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/debate"
)

// Type categorizes a debate round.
type Type string

const (
	TypeBlueBuild   Type = "BLUE_BUILD"
	TypeRedAttack   Type = "RED_ATTACK"
	TypeBlueDefense Type = "BLUE_DEFENSE"
	TypeSynthesis   Type = "SYNTHESIS"
)

// Valid reports whether t is a member of the round-type set.
func (t Type) Valid() bool {
	switch t {
	case TypeBlueBuild, TypeRedAttack, TypeBlueDefense, TypeSynthesis:
		return true
	}
	return false
}

// DuplicateRoundError rejects opening a round number that is already open
// or already closed.
type DuplicateRoundError struct {
	Round int
}

func (e *DuplicateRoundError) Error() string {
	return fmt.Sprintf("round %d is already open or closed", e.Round)
}

// RoundAlreadyClosedError rejects closing a round the tracker has already
// moved past.
type RoundAlreadyClosedError struct {
	Round int
}

func (e *RoundAlreadyClosedError) Error() string {
	return fmt.Sprintf("round %d is already closed", e.Round)
}

// Summary is the frozen snapshot of one closed round.
type Summary struct {
	Round           int                          `json:"round"`
	Type            Type                         `json:"round_type"`
	CritiquesIssued int                          `json:"critiques_issued"`
	ResponsesGiven  int                          `json:"responses_given"`
	BySeverity      map[debate.Severity]int      `json:"by_severity,omitempty"`
	ByChallenge     map[debate.ChallengeType]int `json:"by_challenge,omitempty"`
	ByDisposition   map[debate.Disposition]int   `json:"by_disposition,omitempty"`
	Participants    []string                     `json:"participants,omitempty"`
	OpenedAt        time.Time                    `json:"opened_at"`
	ClosedAt        time.Time                    `json:"closed_at"`
	Elapsed         time.Duration                `json:"elapsed_ns"`
}

type openRound struct {
	roundType Type
	openedAt  time.Time
}

// Tracker manages round lifecycle for one run.
type Tracker struct {
	mu        sync.Mutex
	open      map[int]*openRound
	summaries map[int]*Summary
	maxClosed int
	anyClosed bool
	clock     func() time.Time
}

// NewTracker creates an empty round tracker.
func NewTracker() *Tracker {
	return &Tracker{
		open:      make(map[int]*openRound),
		summaries: make(map[int]*Summary),
		clock:     time.Now,
	}
}

// WithClock overrides clock for deterministic testing.
func (t *Tracker) WithClock(clock func() time.Time) *Tracker {
	t.clock = clock
	return t
}

// OpenRound registers a new round. Reopening a number that is open or
// closed fails with DuplicateRoundError.
func (t *Tracker) OpenRound(round int, roundType Type) error {
	if round < 0 {
		return fmt.Errorf("round number %d is negative", round)
	}
	if !roundType.Valid() {
		return fmt.Errorf("round %d has invalid type %q", round, roundType)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, isOpen := t.open[round]; isOpen {
		return &DuplicateRoundError{Round: round}
	}
	if _, isClosed := t.summaries[round]; isClosed {
		return &DuplicateRoundError{Round: round}
	}

	t.open[round] = &openRound{roundType: roundType, openedAt: t.clock()}
	return nil
}

// CloseRound freezes a Summary for the round from the exchange history.
// Critiques are attributed to the round they were raised in; responses to
// the round they were given in. Rounds must close in non-decreasing order;
// closing a round at or below an already-closed number fails with
// RoundAlreadyClosedError.
func (t *Tracker) CloseRound(round int, exchanges iter.Seq[debate.Exchange]) (*Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, isClosed := t.summaries[round]; isClosed {
		return nil, &RoundAlreadyClosedError{Round: round}
	}
	if t.anyClosed && round < t.maxClosed {
		return nil, &RoundAlreadyClosedError{Round: round}
	}
	or, isOpen := t.open[round]
	if !isOpen {
		return nil, fmt.Errorf("round %d is not open", round)
	}

	now := t.clock()
	s := &Summary{
		Round:         round,
		Type:          or.roundType,
		BySeverity:    make(map[debate.Severity]int),
		ByChallenge:   make(map[debate.ChallengeType]int),
		ByDisposition: make(map[debate.Disposition]int),
		OpenedAt:      or.openedAt,
		ClosedAt:      now,
		Elapsed:       now.Sub(or.openedAt),
	}

	participants := make(map[string]bool)
	for ex := range exchanges {
		if ex.Critique.Round == round {
			s.CritiquesIssued++
			s.BySeverity[ex.Critique.Severity]++
			s.ByChallenge[ex.Critique.Challenge]++
			if ex.Critique.AgentName != "" {
				participants[ex.Critique.AgentName] = true
			}
		}
		if ex.Response != nil && ex.Response.Round == round {
			s.ResponsesGiven++
			s.ByDisposition[ex.Response.Disposition]++
			if ex.Response.AgentName != "" {
				participants[ex.Response.AgentName] = true
			}
		}
	}
	for name := range participants {
		s.Participants = append(s.Participants, name)
	}
	sort.Strings(s.Participants)

	delete(t.open, round)
	t.summaries[round] = s
	if !t.anyClosed || round > t.maxClosed {
		t.maxClosed = round
	}
	t.anyClosed = true

	return s, nil
}

// Summary returns the frozen summary for a closed round.
func (t *Tracker) Summary(round int) (*Summary, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.summaries[round]
	return s, ok
}

// Summaries returns all closed-round summaries in round order.
func (t *Tracker) Summaries() []*Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Summary, 0, len(t.summaries))
	for _, s := range t.summaries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out
}

// ClosedCount returns the number of closed rounds.
func (t *Tracker) ClosedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.summaries)
}
