// Package bounce extracts a bounce reason and the intended recipient from the raw
// header lines of a non-delivery notification.
package bounce

// ReasonAutoResponder is recorded when a message carries no usable Diagnostic-Code.
const ReasonAutoResponder = "auto responder"

// RawMessage is one message as loaded from its resource, split into physical lines.
type RawMessage struct {
	Name  string
	Lines []string
}

// Classification is the canonical (code, reason) pair for a diagnostic code.
type Classification struct {
	Code   string
	Reason string
}

// HeaderMatch is a header line picked by the recipient resolver. Value may hold a
// folded continuation line.
type HeaderMatch struct {
	Index  int
	Header string
	Value  string
}

// Record is the output unit: one per processed message.
type Record struct {
	Source    string
	Recipient string
	Code      string
	Reason    string
}

// Fields returns the CSV columns of the record.
func (r Record) Fields() []string {
	return []string{r.Recipient, r.Code, r.Reason}
}
