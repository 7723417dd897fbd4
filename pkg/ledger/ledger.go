// Package ledger — the Exchange Ledger.
//
// An append-only, hash-chained store of critique and response records for one
// document-generation run:
//   - Records are never deleted or mutated after acceptance
//   - Each accepted record is chained to its predecessor by content hash
//   - Exchange views (critique + optional response) are derived on read
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/debate"
)

// EntryKind categorizes a chain entry.
type EntryKind string

const (
	EntryCritique EntryKind = "CRITIQUE"
	EntryResponse EntryKind = "RESPONSE"
)

// Entry is an immutable, hash-chained record of one accepted ingestion.
type Entry struct {
	Sequence    uint64    `json:"sequence"`
	Kind        EntryKind `json:"kind"`
	RecordID    string    `json:"record_id"`
	ContentHash string    `json:"content_hash"`
	PrevHash    string    `json:"prev_hash"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Ledger stores critiques and their responses for a single run.
type Ledger struct {
	mu        sync.RWMutex
	critiques []*debate.Critique
	byID      map[string]*debate.Critique
	responses map[string]*debate.Response // keyed by critique ID
	entries   []Entry
	headHash  string
	clock     func() time.Time
}

// New creates an empty exchange ledger.
func New() *Ledger {
	return &Ledger{
		byID:      make(map[string]*debate.Critique),
		responses: make(map[string]*debate.Response),
		headHash:  "genesis",
		clock:     time.Now,
	}
}

// WithClock overrides clock for deterministic testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// RecordCritique appends a critique. A critique missing its section,
// severity, or challenge type is rejected with ValidationError and leaves
// the ledger unchanged.
func (l *Ledger) RecordCritique(c *debate.Critique) error {
	if c == nil {
		return &ValidationError{Reason: "nil critique"}
	}
	if err := c.Validate(); err != nil {
		return &ValidationError{RecordID: c.CritiqueID, Reason: err.Error()}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byID[c.CritiqueID]; exists {
		return &ValidationError{RecordID: c.CritiqueID, Reason: "critique ID already recorded"}
	}

	if err := l.appendEntry(EntryCritique, c.CritiqueID, c); err != nil {
		return err
	}
	l.critiques = append(l.critiques, c)
	l.byID[c.CritiqueID] = c
	return nil
}

// RecordResponse appends a response. The response must reference a recorded,
// not-yet-answered critique; a second response to the same critique is
// rejected with DuplicateResponseError and the original is retained.
func (l *Ledger) RecordResponse(r *debate.Response) error {
	if r == nil {
		return &ValidationError{Reason: "nil response"}
	}
	if err := r.Validate(); err != nil {
		return &ValidationError{RecordID: r.ResponseID, Reason: err.Error()}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byID[r.CritiqueID]; !ok {
		return &ValidationError{
			RecordID: r.ResponseID,
			Reason:   fmt.Sprintf("references unknown critique %q", r.CritiqueID),
		}
	}
	if _, answered := l.responses[r.CritiqueID]; answered {
		return &DuplicateResponseError{CritiqueID: r.CritiqueID, ResponseID: r.ResponseID}
	}

	if err := l.appendEntry(EntryResponse, r.ResponseID, r); err != nil {
		return err
	}
	l.responses[r.CritiqueID] = r
	return nil
}

// appendEntry chains a record. Caller holds l.mu.
func (l *Ledger) appendEntry(kind EntryKind, recordID string, record any) error {
	seq := uint64(len(l.entries)) + 1

	contentHash, err := chainHash(seq, kind, record, l.headHash)
	if err != nil {
		return fmt.Errorf("failed to hash %s %q: %w", kind, recordID, err)
	}

	l.entries = append(l.entries, Entry{
		Sequence:    seq,
		Kind:        kind,
		RecordID:    recordID,
		ContentHash: contentHash,
		PrevHash:    l.headHash,
		RecordedAt:  l.clock(),
	})
	l.headHash = contentHash
	return nil
}

func chainHash(seq uint64, kind EntryKind, record any, prevHash string) (string, error) {
	hashInput := struct {
		Seq    uint64    `json:"seq"`
		Kind   EntryKind `json:"kind"`
		Record any       `json:"record"`
		Prev   string    `json:"prev"`
	}{seq, kind, record, prevHash}

	raw, err := json.Marshal(hashInput)
	if err != nil {
		return "", err
	}
	// Canonicalize so the hash is independent of encoder field ordering.
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}

// Exchanges returns a lazy, order-preserving sequence of exchange views in
// critique insertion order. The sequence is restartable: each range starts
// from the beginning and reflects the ledger as of the call.
func (l *Ledger) Exchanges() iter.Seq[debate.Exchange] {
	return l.exchanges(func(*debate.Critique) bool { return true })
}

// SectionExchanges is Exchanges filtered to one document section.
func (l *Ledger) SectionExchanges(section string) iter.Seq[debate.Exchange] {
	return l.exchanges(func(c *debate.Critique) bool { return c.Section == section })
}

func (l *Ledger) exchanges(keep func(*debate.Critique) bool) iter.Seq[debate.Exchange] {
	l.mu.RLock()
	critiques := make([]*debate.Critique, len(l.critiques))
	copy(critiques, l.critiques)
	responses := make(map[string]*debate.Response, len(l.responses))
	for id, r := range l.responses {
		responses[id] = r
	}
	l.mu.RUnlock()

	return func(yield func(debate.Exchange) bool) {
		for _, c := range critiques {
			if !keep(c) {
				continue
			}
			if !yield(debate.Exchange{Critique: c, Response: responses[c.CritiqueID]}) {
				return
			}
		}
	}
}

// RoundExchanges returns exchanges whose critique was raised in the given
// round, in insertion order.
func (l *Ledger) RoundExchanges(round int) iter.Seq[debate.Exchange] {
	return l.exchanges(func(c *debate.Critique) bool { return c.Round == round })
}

// Sections returns the distinct section names with at least one critique,
// in first-appearance order.
func (l *Ledger) Sections() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]bool, len(l.critiques))
	var sections []string
	for _, c := range l.critiques {
		if !seen[c.Section] {
			seen[c.Section] = true
			sections = append(sections, c.Section)
		}
	}
	return sections
}

// CritiqueCount returns the number of recorded critiques.
func (l *Ledger) CritiqueCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.critiques)
}

// ResponseCount returns the number of recorded responses.
func (l *Ledger) ResponseCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.responses)
}

// Head returns the current chain head hash.
func (l *Ledger) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.headHash
}

// Entries returns a copy of the hash chain.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Verify checks the integrity of the entire chain.
func (l *Ledger) Verify() (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	prevHash := "genesis"
	for _, entry := range l.entries {
		if entry.PrevHash != prevHash {
			return false, fmt.Sprintf("chain broken at seq %d: expected prev %s, got %s",
				entry.Sequence, prevHash, entry.PrevHash)
		}

		record, ok := l.recordFor(entry)
		if !ok {
			return false, fmt.Sprintf("no record for seq %d (%s %q)", entry.Sequence, entry.Kind, entry.RecordID)
		}
		computed, err := chainHash(entry.Sequence, entry.Kind, record, entry.PrevHash)
		if err != nil {
			return false, fmt.Sprintf("failed to rehash seq %d", entry.Sequence)
		}
		if computed != entry.ContentHash {
			return false, fmt.Sprintf("hash mismatch at seq %d", entry.Sequence)
		}
		prevHash = entry.ContentHash
	}

	return true, "chain verified"
}

// recordFor resolves a chain entry back to its stored record. Caller holds l.mu.
func (l *Ledger) recordFor(entry Entry) (any, bool) {
	switch entry.Kind {
	case EntryCritique:
		c, ok := l.byID[entry.RecordID]
		return c, ok
	case EntryResponse:
		for _, r := range l.responses {
			if r.ResponseID == entry.RecordID {
				return r, true
			}
		}
	}
	return nil, false
}
