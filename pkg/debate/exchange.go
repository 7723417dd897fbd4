package debate

// Exchange pairs one critique with its optional response. All state is
// derived on read; an exchange never owns mutable data of its own.
type Exchange struct {
	Critique *Critique `json:"critique"`
	Response *Response `json:"response,omitempty"`
}

// IsResolved reports whether a response has been paired with the critique.
func (e Exchange) IsResolved() bool {
	return e.Response != nil
}

// Outcome returns the response's outcome when present, else Unresolved.
func (e Exchange) Outcome() Outcome {
	if e.Response == nil {
		return OutcomeUnresolved
	}
	return e.Response.Outcome()
}

// Section is the document section the exchange belongs to.
func (e Exchange) Section() string {
	return e.Critique.Section
}
