package importer

import (
	"fmt"
	"time"

	"github.com/brandonyach/teamworksams/pkg/table"
)

// excludedFields are the identity and scheduling columns that never become
// form field pairs.
var excludedFields = map[string]struct{}{
	"user_id": {}, "about": {}, "username": {}, "email": {}, "form": {},
	"entered_by_user_id": {}, "full_name": {}, "sex": {}, "dob": {},
	"start_date": {}, "start_time": {}, "end_date": {}, "end_time": {},
	"event_id": {},
}

// CategorizeFields returns the columns of t that map onto non-table form
// fields: everything except the identity and scheduling columns and the
// declared table fields. Order follows the table's column order.
func CategorizeFields(t *table.Table, tableFields []string) []string {
	inTable := make(map[string]struct{}, len(tableFields))
	for _, f := range tableFields {
		inTable[f] = struct{}{}
	}
	var out []string
	for _, col := range t.Columns() {
		if _, ok := excludedFields[col]; ok {
			continue
		}
		if _, ok := inTable[col]; ok {
			continue
		}
		out = append(out, col)
	}
	return out
}

// Fields flattens its arguments into a field name list. Each argument may be
// a string or a slice of strings; this keeps call sites readable when table
// field sets are assembled from several sources.
func Fields(values ...any) []string {
	var out []string
	for _, v := range values {
		switch x := v.(type) {
		case string:
			out = append(out, x)
		case []string:
			out = append(out, x...)
		case []any:
			for _, item := range x {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// Pair is one form field value.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EventRow is one numbered row of form field pairs. Non-table forms use a
// single row 0; table forms use one row per source record.
type EventRow struct {
	Row   int    `json:"row"`
	Pairs []Pair `json:"pairs"`
}

type userIDRef struct {
	UserID int64 `json:"userId"`
}

// Event is one event entity as eventsimport expects it.
type Event struct {
	FormName        string     `json:"formName"`
	StartDate       string     `json:"startDate"`
	StartTime       string     `json:"startTime"`
	FinishDate      string     `json:"finishDate"`
	FinishTime      string     `json:"finishTime"`
	UserID          userIDRef  `json:"userId"`
	EnteredByUserID int64      `json:"enteredByUserId"`
	ExistingEventID *int64     `json:"existingEventId,omitempty"`
	Rows            []EventRow `json:"rows"`
}

// EventEnvelope wraps a batch of events for one eventsimport call.
type EventEnvelope struct {
	Events []Event `json:"events"`
}

// Profile is one profile entity as profileimport expects it. Profile forms
// have no schedule; each user holds at most one profile record per form.
type Profile struct {
	FormName        string     `json:"formName"`
	UserID          userIDRef  `json:"userId"`
	EnteredByUserID int64      `json:"enteredByUserId"`
	Rows            []EventRow `json:"rows"`
}

// PayloadBuilder turns a cleaned record table into import payloads. The
// zero builder is not usable; fill in Form and EnteredBy.
type PayloadBuilder struct {
	Form        string
	TableFields []string
	EnteredBy   int64
	// Overwrite attaches existing event IDs so the server replaces events
	// instead of inserting new ones.
	Overwrite bool
	// Now supplies the clock for default dates and times. Nil means
	// time.Now.
	Now func() time.Time
}

func (b *PayloadBuilder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// BuildEvents groups rows into event entities and builds their payloads.
// Rows sharing user_id and start_date (plus event_id when overwriting) form
// one event; grouping follows first occurrence, so payload order is
// deterministic for a given table.
func (b *PayloadBuilder) BuildEvents(t *table.Table) ([]Event, error) {
	groupKeys := []string{"user_id", "start_date"}
	if b.Overwrite && t.HasColumn("event_id") {
		groupKeys = append(groupKeys, "event_id")
	}
	nonTable := CategorizeFields(t, b.TableFields)

	var events []Event
	for _, g := range t.GroupBy(groupKeys) {
		first := t.Row(g.Indices[0])
		userID, ok := first.Get("user_id").Int64()
		if !ok {
			return nil, fmt.Errorf("row %d: user_id is not a valid identifier", g.Indices[0])
		}

		startDate, startTime, endDate, endTime := b.scheduleFor(first)
		ev := Event{
			FormName:        b.Form,
			StartDate:       startDate,
			StartTime:       startTime,
			FinishDate:      endDate,
			FinishTime:      endTime,
			UserID:          userIDRef{UserID: userID},
			EnteredByUserID: b.EnteredBy,
			Rows:            b.buildRows(t, g.Indices, nonTable),
		}
		if b.Overwrite {
			if id, ok := t.FirstNonEmpty(g.Indices, "event_id").Int64(); ok {
				existing := id
				ev.ExistingEventID = &existing
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

// BuildProfiles groups rows by user and builds one profile entity per user.
func (b *PayloadBuilder) BuildProfiles(t *table.Table) ([]Profile, error) {
	nonTable := CategorizeFields(t, nil)

	var profiles []Profile
	for _, g := range t.GroupBy([]string{"user_id"}) {
		userID, ok := t.Row(g.Indices[0]).Get("user_id").Int64()
		if !ok {
			return nil, fmt.Errorf("row %d: user_id is not a valid identifier", g.Indices[0])
		}
		profiles = append(profiles, Profile{
			FormName:        b.Form,
			UserID:          userIDRef{UserID: userID},
			EnteredByUserID: b.EnteredBy,
			Rows:            []EventRow{{Row: 0, Pairs: firstValuePairs(t, g.Indices, nonTable)}},
		})
	}
	return profiles, nil
}

// scheduleFor resolves the event schedule from the entity's first row,
// applying defaults once per entity: missing start values fall back to the
// current clock, a missing end date falls back to the start date, and a
// missing end time falls back to one hour after now.
func (b *PayloadBuilder) scheduleFor(row table.Row) (startDate, startTime, endDate, endTime string) {
	now := b.now()

	startDate = row.Get("start_date").String()
	if startDate == "" {
		startDate = now.Format("02/01/2006")
	}
	startTime = row.Get("start_time").String()
	if startTime == "" {
		startTime = now.Format("3:04 PM")
	}
	endDate = row.Get("end_date").String()
	if endDate == "" {
		endDate = startDate
	}
	endTime = row.Get("end_time").String()
	if endTime == "" {
		endTime = now.Add(time.Hour).Format("3:04 PM")
	}
	return startDate, startTime, endDate, endTime
}

// buildRows builds the numbered field rows for one event. Table forms carry
// the shared non-table values on row 0 only and the table fields on every
// row; forms without table fields collapse to a single row 0. An entity
// always has at least row 0, even when every field is empty.
func (b *PayloadBuilder) buildRows(t *table.Table, indices []int, nonTable []string) []EventRow {
	var rows []EventRow
	if len(b.TableFields) > 0 {
		for idx, ri := range indices {
			var pairs []Pair
			if idx == 0 {
				pairs = append(pairs, firstValuePairs(t, indices, nonTable)...)
			}
			row := t.Row(ri)
			for _, f := range b.TableFields {
				if v := row.Get(f); !v.IsNull() {
					pairs = append(pairs, Pair{Key: f, Value: v.String()})
				}
			}
			if len(pairs) > 0 {
				rows = append(rows, EventRow{Row: idx, Pairs: pairs})
			}
		}
	} else {
		rows = append(rows, EventRow{Row: 0, Pairs: firstValuePairs(t, indices, nonTable)})
	}
	if len(rows) == 0 {
		rows = []EventRow{{Row: 0, Pairs: []Pair{}}}
	}
	return rows
}

// firstValuePairs resolves each field to its first non-empty value across
// the entity's rows. Fields empty in every row are omitted.
func firstValuePairs(t *table.Table, indices []int, fields []string) []Pair {
	var pairs []Pair
	for _, f := range fields {
		if v := t.FirstNonEmpty(indices, f); !v.IsNull() {
			pairs = append(pairs, Pair{Key: f, Value: v.String()})
		}
	}
	if pairs == nil {
		pairs = []Pair{}
	}
	return pairs
}
