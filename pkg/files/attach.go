package files

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/brandonyach/teamworksams/pkg/client"
	"github.com/brandonyach/teamworksams/pkg/export"
	"github.com/brandonyach/teamworksams/pkg/importer"
	"github.com/brandonyach/teamworksams/pkg/table"
	"github.com/brandonyach/teamworksams/pkg/users"
)

// FileResult is the outcome for one file in an attach or avatar batch.
// Failed files never abort the batch; each carries its own reason.
type FileResult struct {
	// Key is the identity value that named the target, e.g. a username.
	Key      string
	FileName string
	UserID   int64
	// EventID is set for attach-to-event flows once the file matched an
	// event.
	EventID    int64
	FileID     int64
	ServerName string
	OK         bool
	Reason     string
}

// Succeeded counts the files that uploaded and attached.
func Succeeded(results []FileResult) int {
	n := 0
	for _, r := range results {
		if r.OK {
			n++
		}
	}
	return n
}

// AttachOptions adjusts AttachToEvents.
type AttachOptions struct {
	// MappingColumn names the event field whose value pairs a file with
	// its event. Empty means "attachment_id".
	MappingColumn string
	Logger        hclog.Logger
}

func (o AttachOptions) mappingColumn() string {
	if o.MappingColumn == "" {
		return "attachment_id"
	}
	return o.MappingColumn
}

// AttachToEvents uploads the files named in mapping and stores their
// references on matching events of form. The mapping table needs three
// columns: userKey identifying the athlete, file_name naming a file inside
// dir, and the mapping column whose value locates the target event. The
// file reference lands in the event field named fileField.
func (s *Service) AttachToEvents(ctx context.Context, mapping *table.Table, dir, userKey, form, fileField string, opts AttachOptions) ([]FileResult, error) {
	mappingCol := opts.mappingColumn()
	if err := validateMapping(mapping, userKey, "file_name", mappingCol); err != nil {
		return nil, err
	}
	log := s.log
	if opts.Logger != nil {
		log = opts.Logger.Named("files")
	}

	results := make([]FileResult, mapping.Len())
	pending := make([]int, 0, mapping.Len())
	for i, row := range mapping.Rows() {
		results[i] = FileResult{
			Key:      row.Get(userKey).String(),
			FileName: row.Get("file_name").String(),
		}
		if err := validExtension(results[i].FileName, documentExtensions); err != nil {
			results[i].Reason = err.Error()
			continue
		}
		pending = append(pending, i)
	}

	pending, err := s.resolveTargets(ctx, mapping, userKey, results, pending)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		log.Warn("no files eligible for attaching", "form", form)
		return results, nil
	}

	// Match files to events through the mapping column. An export with no
	// events carries no columns at all, so the mapping column check only
	// applies to a non-empty export.
	events, err := export.GetEventData(ctx, s.client, form,
		"01/01/1970", time.Now().Format("02/01/2006"),
		&export.EventFilter{UserKey: userKey, UserValues: mapping.Distinct(userKey)},
		export.EventOptions{Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	if events.Len() > 0 && !events.HasColumn(mappingCol) {
		return nil, client.NewError(fmt.Sprintf(
			"event form '%s' does not have a '%s' field", form, mappingCol))
	}
	type target struct {
		row table.Row
		id  int64
	}
	byMapping := make(map[string]target, events.Len())
	for _, row := range events.Rows() {
		v := row.Get(mappingCol)
		if v.IsEmpty() {
			continue
		}
		id, _ := row.Get("event_id").Int64()
		byMapping[v.String()] = target{row: row, id: id}
	}

	update := table.New("user_id", "event_id", "start_date", "start_time",
		"end_date", "end_time", fileField)
	matched := pending[:0]
	for _, i := range pending {
		tgt, ok := byMapping[mapping.Row(i).Get(mappingCol).String()]
		if !ok {
			results[i].Reason = fmt.Sprintf("no matching event found for %s", mappingCol)
			continue
		}
		results[i].EventID = tgt.id

		up, err := s.upload(ctx, dir, results[i].FileName, processorDocument)
		if err != nil {
			results[i].Reason = fmt.Sprintf("upload failed: %v", err)
			continue
		}
		results[i].FileID = up.FileID
		results[i].ServerName = up.ServerName

		update.Append(table.Row{
			"user_id":    table.Int(results[i].UserID),
			"event_id":   tgt.row.Get("event_id"),
			"start_date": tgt.row.Get("start_date"),
			"start_time": tgt.row.Get("start_time"),
			"end_date":   tgt.row.Get("end_date"),
			"end_time":   tgt.row.Get("end_time"),
			fileField:    table.String(up.Reference()),
		})
		matched = append(matched, i)
	}

	if update.Len() == 0 {
		log.Warn("no files attached", "form", form)
		return results, nil
	}

	log.Info("updating events with file references",
		"form", form, "count", update.Len(), "field", fileField)
	report, err := importer.UpdateEventData(ctx, s.client, update, form,
		importer.Options{Logger: opts.Logger})
	if err != nil {
		for _, i := range matched {
			results[i].Reason = fmt.Sprintf("event update failed: %v", err)
		}
		return results, nil
	}

	failedEvents := make(map[int64]string)
	for _, rec := range report.Failures() {
		for _, id := range rec.IDs {
			failedEvents[id] = rec.Message
		}
	}
	for _, i := range matched {
		if msg, ok := failedEvents[results[i].EventID]; ok {
			results[i].Reason = fmt.Sprintf("event update failed: %s", msg)
			continue
		}
		results[i].OK = true
	}
	log.Info("attached files", "form", form,
		"succeeded", Succeeded(results), "failed", len(results)-Succeeded(results))
	return results, nil
}

// resolveTargets fills UserID for the pending rows and fails the ones whose
// identity value matched no account. It returns the still-pending indices.
func (s *Service) resolveTargets(ctx context.Context, mapping *table.Table, userKey string, results []FileResult, pending []int) ([]int, error) {
	ids, _, err := users.ResolveUserIDs(ctx, s.client, userKey, mapping.Distinct(userKey))
	if err != nil {
		return nil, err
	}
	remaining := pending[:0]
	for _, i := range pending {
		id, ok := ids[results[i].Key]
		if !ok {
			results[i].Reason = fmt.Sprintf("user not found for %s value", userKey)
			continue
		}
		results[i].UserID = id
		remaining = append(remaining, i)
	}
	return remaining, nil
}

// validateMapping checks the mapping table shape: every named column must
// exist and the file and mapping columns must be duplicate free.
func validateMapping(mapping *table.Table, cols ...string) error {
	if mapping == nil || mapping.Len() == 0 {
		return client.NewError("no file mappings provided")
	}
	for _, col := range cols {
		if !mapping.HasColumn(col) {
			return client.NewError(fmt.Sprintf("missing required column '%s'", col))
		}
	}
	for _, col := range cols[1:] {
		seen := make(map[string]int, mapping.Len())
		for _, row := range mapping.Rows() {
			v := row.Get(col).String()
			if v == "" {
				continue
			}
			seen[v]++
			if seen[v] > 1 {
				return client.NewError(
					fmt.Sprintf("duplicate '%s' value: %s", col, v))
			}
		}
	}
	return nil
}
