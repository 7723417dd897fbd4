// Package audit records the run's activity trail: every accepted record,
// rejected record, closed round, and escalation decision, as structured
// JSON events on a configurable writer.
package audit

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a trail event.
type EventType string

const (
	EventCritiqueRecorded EventType = "CRITIQUE_RECORDED"
	EventResponseRecorded EventType = "RESPONSE_RECORDED"
	EventRecordRejected   EventType = "RECORD_REJECTED"
	EventRoundOpened      EventType = "ROUND_OPENED"
	EventRoundClosed      EventType = "ROUND_CLOSED"
	EventDecisionMade     EventType = "DECISION_MADE"
	EventReportCompiled   EventType = "REPORT_COMPILED"
)

// Event is one structured trail record.
type Event struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id"`
	Actor     string         `json:"actor,omitempty"`
	Type      EventType      `json:"type"`
	Subject   string         `json:"subject"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Trail records events for one run.
type Trail interface {
	Record(eventType EventType, actor, subject string, metadata map[string]any) error
}

// trail implements Trail, writing line-delimited JSON to a Writer.
type trail struct {
	mu     sync.Mutex
	runID  string
	writer io.Writer
	clock  func() time.Time
}

// NewTrail creates a Trail for a run, writing to os.Stderr.
func NewTrail(runID string) Trail {
	return NewTrailWithWriter(runID, os.Stderr)
}

// NewTrailWithWriter creates a Trail writing to the given writer. This
// allows injection for testing and custom sinks.
func NewTrailWithWriter(runID string, w io.Writer) Trail {
	if w == nil {
		w = os.Stderr
	}
	return &trail{runID: runID, writer: w, clock: time.Now}
}

func (t *trail) Record(eventType EventType, actor, subject string, metadata map[string]any) error {
	event := Event{
		ID:        uuid.New().String(),
		RunID:     t.runID,
		Actor:     actor,
		Type:      eventType,
		Subject:   subject,
		Timestamp: t.clock(),
		Metadata:  metadata,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.writer.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// Discard is a Trail that drops every event. Useful when the caller does
// not want a trail.
var Discard Trail = discard{}

type discard struct{}

func (discard) Record(EventType, string, string, map[string]any) error { return nil }
