package database

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/brandonyach/teamworksams/pkg/client"
	"github.com/brandonyach/teamworksams/pkg/result"
	"github.com/brandonyach/teamworksams/pkg/table"
)

// entry is the body of one database save request. EntryMode distinguishes
// inserts ("0") from updates ("1"), and ID carries the entry identifier for
// updates or the sentinel "-1" for inserts.
type entry struct {
	EntryMode       string                       `json:"entryMode"`
	ApplicationID   int64                        `json:"applicationId"`
	FormID          int64                        `json:"formId"`
	EnteredByUserID int64                        `json:"enteredByUserId"`
	ID              string                       `json:"id"`
	Rows            map[string]map[string]string `json:"rows"`
}

type entryEnvelope struct {
	Event entry `json:"event"`
}

const insertSentinelID = "-1"

// InsertDatabaseEntry creates new entries from the table's rows. When
// TableFields is set, rows sharing the same non-table values collapse into
// one entry with a multi-row table section; otherwise every row becomes its
// own entry.
func InsertDatabaseEntry(ctx context.Context, c *client.Client, t *table.Table, formName string, opts Options) (*result.Report, error) {
	return saveEntries(ctx, c, t, formName, false, opts)
}

// UpdateDatabaseEntry overwrites existing entries. Rows are grouped by their
// entry_id column and each group replaces the entry it names. When a Confirm
// hook is set it is asked before anything is sent.
func UpdateDatabaseEntry(ctx context.Context, c *client.Client, t *table.Table, formName string, opts Options) (*result.Report, error) {
	return saveEntries(ctx, c, t, formName, true, opts)
}

func saveEntries(ctx context.Context, c *client.Client, t *table.Table, formName string, overwrite bool, opts Options) (*result.Report, error) {
	if err := validateEntries(t, formName, overwrite, opts.TableFields); err != nil {
		return nil, err
	}
	form, err := findDatabaseForm(ctx, c, formName, opts)
	if err != nil {
		return nil, err
	}
	info := c.LoginInfo()
	if info == nil {
		return nil, client.NewError("not logged in")
	}

	entries := buildEntries(t, form.ID, info, overwrite, opts.TableFields)

	operation := "insert"
	if overwrite {
		operation = "update"
	}
	if overwrite && opts.Confirm != nil && !opts.Confirm(len(entries), formName) {
		return nil, client.NewError("update operation cancelled")
	}

	log := opts.logger()
	log.Info("saving database entries", "form", formName, "operation", operation, "count", len(entries))

	records := make([]result.Record, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records = append(records, saveOne(ctx, c, e))
	}
	return result.NewReport(operation, formName, records), nil
}

// saveOne posts a single entry. The server acknowledges success with either
// an empty body or a bare positive integer; anything else is a rejection.
func saveOne(ctx context.Context, c *client.Client, e entry) result.Record {
	body, err := c.Fetch(ctx, http.MethodPost, "userdefineddatabase/save",
		entryEnvelope{Event: e}, client.WithoutCache())
	if err != nil {
		return result.Record{State: result.StateError, Message: err.Error()}
	}
	rec := result.Record{State: result.StateSuccess}
	if e.ID != insertSentinelID {
		if id, perr := strconv.ParseInt(e.ID, 10, 64); perr == nil {
			rec.IDs = []int64{id}
		}
	}
	switch v := body.(type) {
	case nil:
		return rec
	case float64:
		if v > 0 {
			rec.IDs = []int64{int64(v)}
			return rec
		}
	}
	return result.Record{
		State:   result.StateError,
		Message: fmt.Sprintf("unexpected save response: %v", body),
	}
}

// buildEntries groups rows into save payloads and renders their cells. Null
// cells are omitted; empty strings are kept so updates can clear fields.
func buildEntries(t *table.Table, formID int64, info *client.LoginInfo, overwrite bool, tableFields []string) []entry {
	shared := sharedFields(t, tableFields)

	var groups []table.Group
	switch {
	case overwrite:
		groups = t.GroupBy([]string{"entry_id"})
	case len(tableFields) > 0:
		groups = t.GroupBy(shared)
	default:
		for i := 0; i < t.Len(); i++ {
			groups = append(groups, table.Group{Indices: []int{i}})
		}
	}

	entries := make([]entry, 0, len(groups))
	for _, g := range groups {
		e := entry{
			EntryMode:       "0",
			ApplicationID:   info.ApplicationID,
			FormID:          formID,
			EnteredByUserID: info.UserID,
			ID:              insertSentinelID,
			Rows:            map[string]map[string]string{},
		}
		if overwrite {
			e.EntryMode = "1"
			e.ID = t.Row(g.Indices[0]).Get("entry_id").String()
		}
		for _, f := range shared {
			if v := t.FirstNonEmpty(g.Indices, f); !v.IsNull() {
				rowAt(e.Rows, 0)[f] = v.String()
			}
		}
		for i, ri := range g.Indices {
			for _, f := range tableFields {
				if v := t.Row(ri).Get(f); !v.IsNull() {
					rowAt(e.Rows, i)[f] = v.String()
				}
			}
		}
		if len(e.Rows) == 0 {
			e.Rows["0"] = map[string]string{}
		}
		entries = append(entries, e)
	}
	return entries
}

func rowAt(rows map[string]map[string]string, i int) map[string]string {
	key := strconv.Itoa(i)
	if rows[key] == nil {
		rows[key] = map[string]string{}
	}
	return rows[key]
}

// sharedFields lists the columns that describe the entry as a whole, i.e.
// everything outside the table section and the entry identifier.
func sharedFields(t *table.Table, tableFields []string) []string {
	inTable := make(map[string]struct{}, len(tableFields))
	for _, f := range tableFields {
		inTable[f] = struct{}{}
	}
	var out []string
	for _, col := range t.Columns() {
		if col == "entry_id" {
			continue
		}
		if _, ok := inTable[col]; ok {
			continue
		}
		out = append(out, col)
	}
	return out
}

func validateEntries(t *table.Table, formName string, overwrite bool, tableFields []string) error {
	var errs *multierror.Error
	if strings.TrimSpace(formName) == "" {
		errs = multierror.Append(errs, fmt.Errorf("form name is required"))
	}
	if t == nil || t.Len() == 0 {
		errs = multierror.Append(errs, fmt.Errorf("no rows to save"))
		return client.WrapError(errs.ErrorOrNil(), "invalid database input")
	}
	for _, f := range tableFields {
		if !t.HasColumn(f) {
			errs = multierror.Append(errs, fmt.Errorf("table field '%s' is not a column", f))
		}
	}
	if overwrite {
		if !t.HasColumn("entry_id") {
			errs = multierror.Append(errs, fmt.Errorf("updates require an entry_id column"))
		} else {
			for i, r := range t.Rows() {
				if _, ok := r.Get("entry_id").Int64(); !ok {
					errs = multierror.Append(errs,
						fmt.Errorf("row %d: entry_id is not a valid identifier", i))
				}
			}
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return client.WrapError(err, "invalid database input")
	}
	return nil
}
