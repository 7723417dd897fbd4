package ledger

import "fmt"

// ValidationError rejects a record that is missing required fields or
// carries an out-of-set enum value. The record is dropped; ledger state is
// untouched.
type ValidationError struct {
	RecordID string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record %q: %s", e.RecordID, e.Reason)
}

// DuplicateResponseError rejects a second response to an already-answered
// critique. The original response is retained.
type DuplicateResponseError struct {
	CritiqueID string
	ResponseID string
}

func (e *DuplicateResponseError) Error() string {
	return fmt.Sprintf("critique %q already has a response; rejecting %q", e.CritiqueID, e.ResponseID)
}
