// Package export pulls event and profile data out of AMS forms into record
// tables: ranged and filtered event searches, incremental synchronisation,
// and profile reads, with the nested pair rows flattened back into columns.
package export

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"

	"github.com/brandonyach/teamworksams/pkg/client"
	"github.com/brandonyach/teamworksams/pkg/table"
	"github.com/brandonyach/teamworksams/pkg/users"
)

// AttachmentDownloader saves one event attachment. The files package
// provides an implementation; exports only need the behavior.
type AttachmentDownloader interface {
	Download(ctx context.Context, url, fileName string) error
}

// EventOptions adjusts an event export.
type EventOptions struct {
	// CleanNames rewrites form field columns to snake_case.
	CleanNames bool
	// GuessColumnTypes converts all-numeric field columns to numbers.
	GuessColumnTypes bool
	// ConvertDates rewrites start_date and end_date to ISO format.
	ConvertDates bool
	// IncludeMissingUsers keeps a row for athletes with no events.
	IncludeMissingUsers bool
	// Attachments, when set, downloads every event attachment.
	Attachments AttachmentDownloader
	Logger      hclog.Logger
}

// SyncOptions adjusts an incremental event sync.
type SyncOptions struct {
	GuessColumnTypes bool
	// IncludeUserData joins athlete names onto the result.
	IncludeUserData bool
	// IncludeUUID joins athlete UUIDs onto the result.
	IncludeUUID bool
	Logger      hclog.Logger
}

// ProfileOptions adjusts a profile export.
type ProfileOptions struct {
	CleanNames          bool
	GuessColumnTypes    bool
	IncludeMissingUsers bool
	Logger              hclog.Logger
}

type apiEvent struct {
	ID              int64  `mapstructure:"id"`
	FormName        string `mapstructure:"formName"`
	StartDate       string `mapstructure:"startDate"`
	StartTime       string `mapstructure:"startTime"`
	FinishDate      string `mapstructure:"finishDate"`
	FinishTime      string `mapstructure:"finishTime"`
	UserID          int64  `mapstructure:"userId"`
	EnteredByUserID int64  `mapstructure:"enteredByUserId"`
	Rows            []struct {
		Pairs []struct {
			Key   string `mapstructure:"key"`
			Value any    `mapstructure:"value"`
		} `mapstructure:"pairs"`
	} `mapstructure:"rows"`
	AttachmentURL []struct {
		AttachmentURL string `mapstructure:"attachmentUrl"`
		Name          string `mapstructure:"name"`
	} `mapstructure:"attachmentUrl"`
}

// GetEventData exports the events of one form between two dates, one table
// row per form row. Dates accept most common formats.
func GetEventData(ctx context.Context, c *client.Client, form, startDate, endDate string, filter *EventFilter, opts EventOptions) (*table.Table, error) {
	if form == "" {
		return nil, client.NewError("form name is required")
	}
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return nil, err
		}
	}
	log := logger(opts.Logger)

	start, end, err := parseDateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	var userFilter *UserFilter
	if filter != nil && filter.UserKey != "" {
		userFilter = &UserFilter{UserKey: filter.UserKey, UserValues: filter.UserValues}
	}
	userIDs, userTable, err := resolveUsers(ctx, c, userFilter)
	if err != nil {
		return nil, err
	}

	endpoint := "eventsearch"
	payload := map[string]any{
		"formNames":  []string{form},
		"userIds":    userIDs,
		"startDate":  start.Format("02/01/2006"),
		"finishDate": end.Format("02/01/2006"),
		"startTime":  "12:00 AM",
		"finishTime": "11:59 PM",
	}
	if filter.hasDataFilter() {
		endpoint = "filteredeventsearch"
		payload = map[string]any{
			"filter": []any{map[string]any{
				"formName": form,
				"filterSet": []any{map[string]any{
					"key":             filter.DataKey,
					"value":           filter.DataValue,
					"filterCondition": conditionMap[filter.DataCondition],
				}},
			}},
			"userIds":    userIDs,
			"startDate":  start.Format("02/01/2006"),
			"finishDate": end.Format("02/01/2006"),
			"startTime":  "12:00 AM",
			"finishTime": "11:59 PM",
		}
	}
	if filter != nil && filter.EventsPerUser > 0 {
		payload["resultsPerUser"] = filter.EventsPerUser
	}

	log.Info("requesting event data", "form", form,
		"start", start.Format("02/01/2006"), "end", end.Format("02/01/2006"))
	body, err := c.Fetch(ctx, http.MethodPost, endpoint, payload, client.WithVersion("v1"))
	if err != nil {
		return nil, err
	}

	events, err := decodeEvents(body, endpoint)
	if err != nil {
		return nil, err
	}
	log.Info("processing events", "count", len(events))

	t := eventsToTable(events)
	if opts.Attachments != nil {
		downloadAttachments(ctx, events, opts.Attachments, log)
	}
	if opts.CleanNames {
		cleanColumnNames(t)
	}
	if opts.GuessColumnTypes {
		guessColumnTypes(t)
	}
	if opts.ConvertDates {
		convertDateColumns(t)
	}
	t = appendUserData(t, userTable, opts.IncludeMissingUsers)
	t = reorderColumns(t, []string{"about", "user_id"},
		[]string{"end_date", "start_time", "end_time", "entered_by_user_id"})
	sortEventRows(t)
	return t, nil
}

// SyncEventData exports the events of one form inserted or updated since
// lastSync (milliseconds since the Unix epoch). It returns the events, the
// server's new synchronisation time to pass next call, and the IDs of
// events deleted since lastSync.
func SyncEventData(ctx context.Context, c *client.Client, form string, lastSync int64, filter *UserFilter, opts SyncOptions) (*table.Table, int64, []int64, error) {
	if form == "" {
		return nil, 0, nil, client.NewError("form name is required")
	}
	if lastSync < 0 {
		return nil, 0, nil, fmt.Errorf("last synchronisation time must not be negative")
	}
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return nil, 0, nil, err
		}
	}
	log := logger(opts.Logger)

	userIDs, userTable, err := resolveUsers(ctx, c, filter)
	if err != nil {
		return nil, 0, nil, err
	}

	payload := map[string]any{
		"formName":                        form,
		"lastSynchronisationTimeOnServer": lastSync,
		"userIds":                         userIDs,
	}
	log.Info("requesting event sync", "form", form,
		"since", time.UnixMilli(lastSync).UTC().Format(time.RFC3339))
	body, err := c.Fetch(ctx, http.MethodPost, "synchronise", payload,
		client.WithVersion("v1"), client.WithoutCache())
	if err != nil {
		return nil, 0, nil, err
	}

	var resp struct {
		Export struct {
			Events []map[string]any `mapstructure:"events"`
		} `mapstructure:"export"`
		LastSynchronisationTimeOnServer int64   `mapstructure:"lastSynchronisationTimeOnServer"`
		IDsOfDeletedEvents              []int64 `mapstructure:"idsOfDeletedEvents"`
	}
	if err := mapstructure.WeakDecode(body, &resp); err != nil {
		return nil, 0, nil, client.WrapError(err, "unexpected response shape from synchronise")
	}
	newSync := resp.LastSynchronisationTimeOnServer
	if newSync == 0 {
		newSync = lastSync
	}

	events := make([]apiEvent, 0, len(resp.Export.Events))
	for _, raw := range resp.Export.Events {
		var ev apiEvent
		if err := mapstructure.WeakDecode(raw, &ev); err != nil {
			return nil, 0, nil, client.WrapError(err, "unexpected event object from synchronise")
		}
		events = append(events, ev)
	}

	t := eventsToTable(events)
	if opts.GuessColumnTypes {
		guessColumnTypes(t)
	}
	if opts.IncludeUserData {
		t = appendUserData(t, userTable, false)
	}
	if opts.IncludeUUID {
		t = appendUserColumn(t, userTable, "uuid")
	}
	front := []string{"user_id"}
	if opts.IncludeUserData {
		front = []string{"about", "user_id"}
	}
	if opts.IncludeUUID {
		front = append(front, "uuid")
	}
	t = reorderColumns(t, front,
		[]string{"end_date", "start_time", "end_time", "entered_by_user_id"})
	sortEventRows(t)

	log.Info("event sync complete", "form", form, "events", t.Len(),
		"deleted", len(resp.IDsOfDeletedEvents))
	return t, newSync, resp.IDsOfDeletedEvents, nil
}

// GetProfileData exports the profile records of one profile form, one table
// row per athlete.
func GetProfileData(ctx context.Context, c *client.Client, form string, filter *UserFilter, opts ProfileOptions) (*table.Table, error) {
	if form == "" {
		return nil, client.NewError("form name is required")
	}
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return nil, err
		}
	}
	log := logger(opts.Logger)

	userIDs, userTable, err := resolveUsers(ctx, c, filter)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{"formNames": []string{form}, "userIds": userIDs}
	log.Info("requesting profile data", "form", form)
	body, err := c.Fetch(ctx, http.MethodPost, "profilesearch", payload, client.WithVersion("v1"))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Profiles []map[string]any `mapstructure:"profiles"`
		Error    string           `mapstructure:"error"`
	}
	if err := mapstructure.WeakDecode(body, &resp); err != nil {
		return nil, client.WrapError(err, "unexpected response shape from profilesearch")
	}
	if resp.Error != "" {
		return nil, client.NewError(fmt.Sprintf("no profiles found for form '%s': %s", form, resp.Error))
	}

	t := table.New("user_id", "profile_id", "form")
	for _, raw := range resp.Profiles {
		var p struct {
			ID              int64  `mapstructure:"id"`
			FormName        string `mapstructure:"formName"`
			UserID          int64  `mapstructure:"userId"`
			EnteredByUserID int64  `mapstructure:"enteredByUserId"`
			Rows            []struct {
				Pairs []struct {
					Key   string `mapstructure:"key"`
					Value any    `mapstructure:"value"`
				} `mapstructure:"pairs"`
			} `mapstructure:"rows"`
		}
		if err := mapstructure.WeakDecode(raw, &p); err != nil {
			return nil, client.WrapError(err, "unexpected profile object from profilesearch")
		}
		base := table.Row{
			"profile_id":         table.Int(p.ID),
			"form":               table.String(p.FormName),
			"user_id":            table.Int(p.UserID),
			"entered_by_user_id": table.Int(p.EnteredByUserID),
		}
		if len(p.Rows) == 0 {
			t.Append(base)
			continue
		}
		for _, row := range p.Rows {
			r := base.Clone()
			for _, pair := range row.Pairs {
				r[pair.Key] = table.FromAny(pair.Value)
			}
			t.Append(r)
		}
	}
	log.Info("processing profiles", "count", t.Len())

	if opts.CleanNames {
		cleanColumnNames(t)
	}
	if opts.GuessColumnTypes {
		guessColumnTypes(t)
	}
	t = appendUserData(t, userTable, opts.IncludeMissingUsers)
	t = reorderColumns(t, []string{"about", "user_id"}, []string{"entered_by_user_id"})
	sortProfileRows(t)
	return t, nil
}

func logger(l hclog.Logger) hclog.Logger {
	if l == nil {
		return hclog.NewNullLogger()
	}
	return l
}

// parseDateRange accepts flexible date input and returns the inclusive
// range, rejecting reversed ranges.
func parseDateRange(startDate, endDate string) (time.Time, time.Time, error) {
	// Ambiguous numeric dates read day-first, matching the wire format.
	start, err := dateparse.ParseAny(startDate, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date '%s': %w", startDate, err)
	}
	end, err := dateparse.ParseAny(endDate, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date '%s': %w", endDate, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date precedes start date")
	}
	return start, end, nil
}

// resolveUsers turns a user filter into the user ID list the search
// endpoints take, along with the athlete table for joining names.
func resolveUsers(ctx context.Context, c *client.Client, filter *UserFilter) ([]int64, *table.Table, error) {
	var uf *users.Filter
	if filter != nil && filter.UserKey != "" {
		uf = &users.Filter{Key: filter.UserKey, Values: filter.UserValues}
	}
	userTable, err := users.GetUsers(ctx, c, uf, users.Options{})
	if err != nil {
		return nil, nil, err
	}
	ids := make([]int64, 0, userTable.Len())
	for i := 0; i < userTable.Len(); i++ {
		if id, ok := userTable.Get(i, "user_id").Int64(); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil, client.NewError("no users found to export data for")
	}
	return ids, userTable, nil
}

func decodeEvents(body any, endpoint string) ([]apiEvent, error) {
	var resp struct {
		Events []map[string]any `mapstructure:"events"`
		Error  string           `mapstructure:"error"`
	}
	if err := mapstructure.WeakDecode(body, &resp); err != nil {
		return nil, client.WrapError(err, fmt.Sprintf("unexpected response shape from %s", endpoint))
	}
	if resp.Error != "" {
		return nil, client.NewError(fmt.Sprintf("event search failed: %s", resp.Error))
	}
	events := make([]apiEvent, 0, len(resp.Events))
	for _, raw := range resp.Events {
		var ev apiEvent
		if err := mapstructure.WeakDecode(raw, &ev); err != nil {
			return nil, client.WrapError(err, fmt.Sprintf("unexpected event object from %s", endpoint))
		}
		events = append(events, ev)
	}
	return events, nil
}

// eventsToTable flattens event entities to one table row per pair row,
// repeating the event's identity and schedule columns.
func eventsToTable(events []apiEvent) *table.Table {
	t := table.New("event_id", "form", "start_date", "start_time", "end_date",
		"end_time", "user_id", "entered_by_user_id")
	for _, ev := range events {
		base := table.Row{
			"event_id":           table.Int(ev.ID),
			"form":               table.String(ev.FormName),
			"start_date":         table.String(ev.StartDate),
			"start_time":         table.String(ev.StartTime),
			"end_date":           table.String(ev.FinishDate),
			"end_time":           table.String(ev.FinishTime),
			"user_id":            table.Int(ev.UserID),
			"entered_by_user_id": table.Int(ev.EnteredByUserID),
		}
		if len(ev.Rows) == 0 {
			t.Append(base)
			continue
		}
		for _, row := range ev.Rows {
			r := base.Clone()
			for _, pair := range row.Pairs {
				r[pair.Key] = table.FromAny(pair.Value)
			}
			t.Append(r)
		}
	}
	return t
}

func downloadAttachments(ctx context.Context, events []apiEvent, dl AttachmentDownloader, log hclog.Logger) {
	count := 0
	for _, ev := range events {
		for _, att := range ev.AttachmentURL {
			if att.AttachmentURL == "" {
				continue
			}
			name := att.Name
			if name == "" {
				name = "unnamed"
			}
			fileName := sanitizeFileName(fmt.Sprintf("%s_%d_%s", ev.FormName, ev.ID, name))
			if err := dl.Download(ctx, att.AttachmentURL, fileName); err != nil {
				log.Warn("could not download attachment",
					"event", ev.ID, "name", name, "error", err)
				continue
			}
			count++
		}
	}
	if count > 0 {
		log.Info("downloaded attachments", "count", count)
	}
}

var fileNameReplacer = strings.NewReplacer("/", "", ":", "", " ", "")

func sanitizeFileName(s string) string {
	return fileNameReplacer.Replace(s)
}
