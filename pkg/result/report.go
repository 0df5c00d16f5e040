package result

import (
	"fmt"
	"strings"
)

// maxRenderedFailures bounds how many failed records a rendered report
// lists. The counts always cover the whole batch.
const maxRenderedFailures = 5

// Report aggregates the records of one batch operation against one form.
type Report struct {
	// Operation names what was attempted, e.g. "insert" or "upsert".
	Operation string
	// Form is the event or profile form the batch targeted.
	Form string
	// Records holds one entry per logical entity, in submission order.
	Records []Record
}

// NewReport builds a Report over recs.
func NewReport(operation, form string, recs []Record) *Report {
	return &Report{Operation: operation, Form: form, Records: recs}
}

// Succeeded returns the number of accepted entities.
func (r *Report) Succeeded() int {
	n := 0
	for _, rec := range r.Records {
		if rec.State == StateSuccess {
			n++
		}
	}
	return n
}

// Failed returns the number of entities that were not accepted.
func (r *Report) Failed() int {
	return len(r.Records) - r.Succeeded()
}

// Failures returns the non-success records in submission order.
func (r *Report) Failures() []Record {
	var out []Record
	for _, rec := range r.Records {
		if rec.State != StateSuccess {
			out = append(out, rec)
		}
	}
	return out
}

// IDs returns every entity identifier the server reported, in submission
// order.
func (r *Report) IDs() []int64 {
	var out []int64
	for _, rec := range r.Records {
		out = append(out, rec.IDs...)
	}
	return out
}

// String renders a human-readable summary. Rendering does not modify the
// report; calling it repeatedly yields the same text. At most
// maxRenderedFailures failures are listed, with a trailing count of the
// rest.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d of %d records succeeded",
		r.Form, r.Operation, r.Succeeded(), len(r.Records))

	failures := r.Failures()
	if len(failures) == 0 {
		return b.String()
	}
	b.WriteString("\nFailed records:")
	for i, rec := range failures {
		if i == maxRenderedFailures {
			fmt.Fprintf(&b, "\n  ... and %d more", len(failures)-maxRenderedFailures)
			break
		}
		msg := rec.Message
		if msg == "" {
			msg = "no reason given"
		}
		fmt.Fprintf(&b, "\n  [%s] %s", rec.State, msg)
	}
	return b.String()
}
