// Package database reads and writes custom database forms: reference tables
// like exercise catalogs that AMS stores outside event and profile forms.
// Entries use flat keyed rows rather than the pair lists event imports use.
package database

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"

	"github.com/brandonyach/teamworksams/pkg/client"
	"github.com/brandonyach/teamworksams/pkg/forms"
	"github.com/brandonyach/teamworksams/pkg/table"
)

// Options adjusts database operations.
type Options struct {
	// TableFields declares which columns belong to the entry's table
	// section.
	TableFields []string
	// Confirm, when set, is asked before updates overwrite entries.
	Confirm func(count int, form string) bool
	Logger  hclog.Logger
}

func (o Options) logger() hclog.Logger {
	if o.Logger == nil {
		return hclog.NewNullLogger()
	}
	return o.Logger
}

// findDatabaseForm resolves a form name and checks it is a database form.
func findDatabaseForm(ctx context.Context, c *client.Client, formName string, opts Options) (forms.Form, error) {
	form, err := forms.FindForm(ctx, c, formName, forms.Options{Logger: opts.Logger})
	if err != nil {
		return forms.Form{}, err
	}
	if form.Type != "database" {
		return forms.Form{}, client.NewError(
			fmt.Sprintf("form '%s' is not a database form (type: %s)", formName, form.Type))
	}
	return form, nil
}

// GetDatabase reads database entries as a table, one row per entry, with an
// id column carrying the entry identifier. Limit and offset page through
// large tables.
func GetDatabase(ctx context.Context, c *client.Client, formName string, limit, offset int, opts Options) (*table.Table, error) {
	if formName == "" {
		return nil, client.NewError("form name is required")
	}
	if limit < 1 {
		return nil, fmt.Errorf("limit must be a positive integer")
	}
	if offset < 0 {
		return nil, fmt.Errorf("offset must not be negative")
	}
	form, err := findDatabaseForm(ctx, c, formName, opts)
	if err != nil {
		return nil, err
	}
	log := opts.logger()
	log.Info("fetching database entries", "form", formName, "id", form.ID)

	payload := map[string]any{
		"databaseFormId": form.ID,
		"limit":          limit,
		"offset":         offset,
	}
	body, err := c.Fetch(ctx, http.MethodPost,
		"userdefineddatabase/findTableByDatabaseFormId", payload)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, client.NewError(
			fmt.Sprintf("no database entries found for form '%s'", formName))
	}

	var resp struct {
		Error   bool   `mapstructure:"error"`
		Message string `mapstructure:"message"`
		Value   struct {
			Rows        [][]any           `mapstructure:"rows"`
			IDs         []int64           `mapstructure:"ids"`
			IndexToName map[string]string `mapstructure:"indexToName"`
		} `mapstructure:"value"`
	}
	if err := mapstructure.WeakDecode(body, &resp); err != nil {
		return nil, client.WrapError(err, "unexpected database response shape")
	}
	if resp.Error {
		return nil, client.NewError(fmt.Sprintf(
			"failed to fetch database entries for form '%s': %s", formName, resp.Message))
	}

	t := table.New("id", "form_name")
	for i, entry := range resp.Value.Rows {
		row := table.Row{"form_name": table.String(formName)}
		if i < len(resp.Value.IDs) {
			row["id"] = table.Int(resp.Value.IDs[i])
		}
		for col, v := range entry {
			name, ok := resp.Value.IndexToName[fmt.Sprintf("%d", col)]
			if !ok {
				name = fmt.Sprintf("field_%d", col)
			}
			row[name] = table.FromAny(v)
		}
		t.Append(row)
	}
	log.Info("retrieved database entries", "form", formName, "count", t.Len())
	return t, nil
}

// DeleteDatabaseEntry removes one entry by its identifier. The server
// acknowledges a successful delete with an empty body.
func DeleteDatabaseEntry(ctx context.Context, c *client.Client, entryID int64) error {
	if entryID < 0 {
		return fmt.Errorf("entry id must not be negative")
	}
	body, err := c.Fetch(ctx, http.MethodPost, "userdefineddatabase/delete",
		map[string]any{"id": entryID}, client.WithoutCache())
	if err != nil {
		return err
	}
	if body != nil {
		return client.NewError(fmt.Sprintf("failed to delete database entry %d", entryID))
	}
	return nil
}
