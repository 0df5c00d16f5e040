// Package result models the per-entity outcomes AMS import and save
// endpoints report. A batch that reaches the server always yields a Report;
// entities the server rejected become ERROR records inside it rather than Go
// errors, so one bad row never hides the rows that landed.
package result

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// State classifies one entity's outcome.
type State int

const (
	// StateUnknown marks responses whose state field was missing or
	// unrecognized.
	StateUnknown State = iota
	// StateSuccess marks an entity the server accepted.
	StateSuccess
	// StateError marks an entity the server rejected.
	StateError
)

func (s State) String() string {
	switch s {
	case StateSuccess:
		return "SUCCESS"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseState maps the server's state strings onto a State. The import and
// save endpoints use different success constants.
func ParseState(raw string) State {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESS", "SUCCESSFULLY_IMPORTED":
		return StateSuccess
	case "":
		return StateUnknown
	default:
		return StateError
	}
}

// Record is the normalized outcome for one logical entity in a batch.
type Record struct {
	State   State
	IDs     []int64
	Message string
}

type rawRecord struct {
	State   string  `mapstructure:"state"`
	Message string  `mapstructure:"message"`
	IDs     []int64 `mapstructure:"ids"`
	ID      *int64  `mapstructure:"id"`
}

// Normalize converts a decoded response body into records. A nil body means
// the server acknowledged without detail and yields a single success record.
// A list yields one record per element; a single object yields one record.
func Normalize(body any) ([]Record, error) {
	if body == nil {
		return []Record{{State: StateSuccess}}, nil
	}
	if list, ok := body.([]any); ok {
		out := make([]Record, 0, len(list))
		for i, item := range list {
			rec, err := normalizeOne(item)
			if err != nil {
				return nil, fmt.Errorf("result %d: %w", i, err)
			}
			out = append(out, rec)
		}
		return out, nil
	}
	rec, err := normalizeOne(body)
	if err != nil {
		return nil, err
	}
	return []Record{rec}, nil
}

func normalizeOne(item any) (Record, error) {
	var raw rawRecord
	if err := mapstructure.WeakDecode(item, &raw); err != nil {
		return Record{}, fmt.Errorf("unexpected result shape: %w", err)
	}
	rec := Record{
		State:   ParseState(raw.State),
		Message: raw.Message,
		IDs:     raw.IDs,
	}
	if raw.ID != nil {
		rec.IDs = append(rec.IDs, *raw.ID)
	}
	return rec, nil
}
