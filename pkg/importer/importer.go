// Package importer turns tabular athlete data into AMS event and profile
// imports. Rows are grouped into logical entities, field values become
// key/value pair rows, and each batch yields a result report with one record
// per entity the server acknowledged.
package importer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"

	"github.com/brandonyach/teamworksams/pkg/client"
	"github.com/brandonyach/teamworksams/pkg/result"
	"github.com/brandonyach/teamworksams/pkg/table"
	"github.com/brandonyach/teamworksams/pkg/users"
)

// Mode selects how an event import treats existing events.
type Mode int

const (
	// ModeInsert always creates new events.
	ModeInsert Mode = iota
	// ModeUpdate replaces existing events identified by event_id.
	ModeUpdate
	// ModeUpsert updates rows carrying an event_id and inserts the rest.
	ModeUpsert
)

func (m Mode) String() string {
	switch m {
	case ModeInsert:
		return "insert"
	case ModeUpdate:
		return "update"
	case ModeUpsert:
		return "upsert"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Options adjusts an import.
type Options struct {
	// IDColumn names the column identifying the athlete: "user_id",
	// "about", "username", or "email". Empty means "user_id".
	IDColumn string
	// TableFields declares which columns belong to a table section of the
	// form. Rows of one entity each contribute a numbered table row.
	TableFields []string
	// Confirm, when set, is asked before updates overwrite existing
	// events. Returning false cancels the operation.
	Confirm func(count int, form string) bool
	// Now supplies the clock for default dates and times, mainly for
	// tests. Nil means time.Now.
	Now    func() time.Time
	Logger hclog.Logger
}

func (o Options) idColumn() string {
	if o.IDColumn == "" {
		return "user_id"
	}
	return o.IDColumn
}

func (o Options) logger() hclog.Logger {
	if o.Logger == nil {
		return hclog.NewNullLogger()
	}
	return o.Logger
}

func (o Options) validate() error {
	switch o.idColumn() {
	case "user_id", "about", "username", "email":
		return nil
	default:
		return fmt.Errorf("id column must be 'user_id', 'about', 'username', or 'email'")
	}
}

// InsertEventData creates one event per row group of t on the named event
// form. The returned report carries one record per imported entity.
func InsertEventData(ctx context.Context, c *client.Client, t *table.Table, form string, opts Options) (*result.Report, error) {
	return importEvents(ctx, c, t, form, ModeInsert, opts)
}

// UpdateEventData replaces existing events. Every row group must carry an
// event_id naming the event to overwrite.
func UpdateEventData(ctx context.Context, c *client.Client, t *table.Table, form string, opts Options) (*result.Report, error) {
	return importEvents(ctx, c, t, form, ModeUpdate, opts)
}

// UpsertEventData updates row groups carrying an event_id and inserts the
// rest, in one report.
func UpsertEventData(ctx context.Context, c *client.Client, t *table.Table, form string, opts Options) (*result.Report, error) {
	return importEvents(ctx, c, t, form, ModeUpsert, opts)
}

func importEvents(ctx context.Context, c *client.Client, t *table.Table, form string, mode Mode, opts Options) (*result.Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	log := opts.logger()

	cleaned := cleanTable(t, log.Warn)
	if err := validateShape(cleaned, form, opts.TableFields); err != nil {
		return nil, err
	}
	cleaned, err := mapIDColumn(ctx, c, cleaned, opts.idColumn())
	if err != nil {
		return nil, err
	}
	if err := validateImport(cleaned, form, opts.TableFields); err != nil {
		return nil, err
	}
	if mode == ModeUpdate && !cleaned.HasColumn("event_id") {
		return nil, fmt.Errorf("event_id column is required to update events")
	}

	info := c.LoginInfo()
	if info == nil {
		return nil, client.NewError("client is not logged in")
	}

	builder := &PayloadBuilder{
		Form:        form,
		TableFields: opts.TableFields,
		EnteredBy:   info.UserID,
		Now:         opts.Now,
	}

	var updates, inserts *table.Table
	switch mode {
	case ModeInsert:
		inserts = cleaned
	case ModeUpdate:
		updates = cleaned
	case ModeUpsert:
		updates = cleaned.Filter(func(r table.Row) bool { return !r.Get("event_id").IsEmpty() })
		inserts = cleaned.Filter(func(r table.Row) bool { return r.Get("event_id").IsEmpty() })
	}

	var records []result.Record
	if updates != nil && updates.Len() > 0 {
		builder.Overwrite = true
		events, err := builder.BuildEvents(updates)
		if err != nil {
			return nil, err
		}
		if opts.Confirm != nil && !opts.Confirm(len(events), form) {
			return nil, client.NewError("update operation cancelled")
		}
		log.Info("updating events", "form", form, "count", len(events))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := sendEvents(ctx, c, events)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	if inserts != nil && inserts.Len() > 0 {
		builder.Overwrite = false
		events, err := builder.BuildEvents(inserts)
		if err != nil {
			return nil, err
		}
		log.Info("inserting events", "form", form, "count", len(events))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := sendEvents(ctx, c, events)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}

	report := result.NewReport(mode.String(), form, records)
	log.Info("import complete", "form", form,
		"succeeded", report.Succeeded(), "failed", report.Failed())
	return report, nil
}

// UpsertProfileData writes one profile record per user on the named profile
// form. Profile forms hold a single record per athlete, so repeated rows for
// one user collapse into one entity.
func UpsertProfileData(ctx context.Context, c *client.Client, t *table.Table, form string, opts Options) (*result.Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	log := opts.logger()

	cleaned := cleanTable(t, log.Warn)
	if err := validateShape(cleaned, form, nil); err != nil {
		return nil, err
	}
	cleaned, err := mapIDColumn(ctx, c, cleaned, opts.idColumn())
	if err != nil {
		return nil, err
	}
	if err := validateImport(cleaned, form, nil); err != nil {
		return nil, err
	}

	info := c.LoginInfo()
	if info == nil {
		return nil, client.NewError("client is not logged in")
	}
	builder := &PayloadBuilder{Form: form, EnteredBy: info.UserID, Now: opts.Now}
	profiles, err := builder.BuildProfiles(cleaned)
	if err != nil {
		return nil, err
	}
	if opts.Confirm != nil && !opts.Confirm(len(profiles), form) {
		return nil, client.NewError("upsert operation cancelled")
	}
	log.Info("upserting profiles", "form", form, "count", len(profiles))

	var records []result.Record
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := c.Fetch(ctx, http.MethodPost, "profileimport", p,
			client.WithVersion("v1"), client.WithoutCache())
		if err != nil {
			records = append(records, result.Record{State: result.StateError, Message: err.Error()})
			continue
		}
		recs, err := normalizeImportResponse(body)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}

	report := result.NewReport("upsert", form, records)
	log.Info("profile import complete", "form", form,
		"succeeded", report.Succeeded(), "failed", report.Failed())
	return report, nil
}

// mapIDColumn resolves the identity column to numeric user IDs, adding a
// user_id column when the source identifies athletes by name, username, or
// email. Unmapped values fail the whole import before anything is sent.
func mapIDColumn(ctx context.Context, c *client.Client, t *table.Table, idCol string) (*table.Table, error) {
	if idCol == "user_id" {
		if !t.HasColumn("user_id") {
			return nil, fmt.Errorf("user_id column is required")
		}
		return t, nil
	}
	if !t.HasColumn(idCol) {
		return nil, fmt.Errorf("'%s' column not found", idCol)
	}

	values := t.Distinct(idCol)
	if len(values) == 0 {
		return nil, fmt.Errorf("no valid '%s' values", idCol)
	}
	ids, missing, err := users.ResolveUserIDs(ctx, c, idCol, values)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, client.NewError(
			fmt.Sprintf("failed to map '%s' values to users: %s", idCol, strings.Join(missing, ", ")))
	}

	out := t.Clone()
	out.DropColumn("user_id")
	for i := 0; i < out.Len(); i++ {
		out.Set(i, "user_id", table.Int(ids[out.Get(i, idCol).String()]))
	}
	return out, nil
}

// sendEvents submits one eventsimport envelope and normalizes the response.
// The server reports one state for the batch with the created event IDs;
// each ID becomes its own record so callers see per-entity outcomes. A
// transport failure likewise becomes one ERROR record per submitted event
// rather than aborting the batch.
func sendEvents(ctx context.Context, c *client.Client, events []Event) ([]result.Record, error) {
	body, err := c.Fetch(ctx, http.MethodPost, "eventsimport",
		EventEnvelope{Events: events}, client.WithVersion("v1"), client.WithoutCache())
	if err != nil {
		records := make([]result.Record, len(events))
		for i := range records {
			records[i] = result.Record{State: result.StateError, Message: err.Error()}
		}
		return records, nil
	}
	return normalizeImportResponse(body)
}

func normalizeImportResponse(body any) ([]result.Record, error) {
	if body == nil {
		return result.Normalize(nil)
	}
	var resp struct {
		State   string  `mapstructure:"state"`
		Message string  `mapstructure:"message"`
		IDs     []int64 `mapstructure:"ids"`
		Result  *struct {
			State   string  `mapstructure:"state"`
			Message string  `mapstructure:"message"`
			IDs     []int64 `mapstructure:"ids"`
		} `mapstructure:"result"`
	}
	if err := mapstructure.WeakDecode(body, &resp); err != nil {
		return nil, client.WrapError(err, "unexpected import response shape")
	}
	// A nested result object overrides the top level only for the keys it
	// actually carries.
	state, message, ids := resp.State, resp.Message, resp.IDs
	if resp.Result != nil {
		if resp.Result.State != "" {
			state = resp.Result.State
		}
		if resp.Result.Message != "" {
			message = resp.Result.Message
		}
		if len(resp.Result.IDs) > 0 {
			ids = resp.Result.IDs
		}
	}

	parsed := result.ParseState(state)
	if len(ids) == 0 {
		return []result.Record{{State: parsed, Message: message}}, nil
	}
	records := make([]result.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, result.Record{State: parsed, IDs: []int64{id}, Message: message})
	}
	return records, nil
}
