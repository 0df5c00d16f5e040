package users

import (
	"context"
	"net/http"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"

	"github.com/brandonyach/teamworksams/pkg/client"
	"github.com/brandonyach/teamworksams/pkg/table"
)

// Options adjusts user and group lookups.
type Options struct {
	// Columns restricts the returned table to the named columns, in the
	// given order. Empty means the default column set.
	Columns []string
	Logger  hclog.Logger
}

func (o Options) logger() hclog.Logger {
	if o.Logger == nil {
		return hclog.NewNullLogger()
	}
	return o.Logger
}

var defaultColumns = []string{
	"user_id", "about", "first_name", "last_name", "dob", "username", "email",
	"uuid", "middle_name", "known_as", "sex", "role", "athlete_group",
	"coach_group", "phone_number",
}

// GetUsers fetches user accounts as a table, one row per account. A filter
// narrows the result to accounts matching an identity attribute or a group.
func GetUsers(ctx context.Context, c *client.Client, filter *Filter, opts Options) (*table.Table, error) {
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return nil, err
		}
	}
	log := opts.logger()
	log.Debug("fetching user data")

	matched, err := fetchUsers(ctx, c, filter)
	if err != nil {
		return nil, err
	}

	t := table.New(defaultColumns...)
	for _, u := range matched {
		t.Append(userRow(&u))
	}
	t = selectColumns(t, opts.Columns, log)
	log.Info("retrieved users", "count", t.Len())
	return t, nil
}

func userRow(u *apiUser) table.Row {
	row := table.Row{
		"user_id":    table.Int(u.id()),
		"about":      table.String(u.about()),
		"first_name": table.String(u.FirstName),
		"last_name":  table.String(u.LastName),
	}
	setIfPresent := func(col, v string) {
		if v != "" {
			row[col] = table.String(v)
		}
	}
	setIfPresent("dob", u.DOB)
	setIfPresent("username", u.Username)
	setIfPresent("email", u.EmailAddress)
	setIfPresent("uuid", u.UUID)
	setIfPresent("middle_name", u.MiddleName)
	setIfPresent("known_as", u.KnownAs)
	setIfPresent("sex", u.Sex)
	setIfPresent("role", joinNames(u.GroupsAndRoles.Role))
	setIfPresent("athlete_group", joinNames(u.GroupsAndRoles.AthleteGroups))
	setIfPresent("coach_group", joinNames(u.GroupsAndRoles.CoachGroups))
	setIfPresent("phone_number", joinPhones(u.PhoneNumbers))
	return row
}

func joinNames(items []apiNamed) string {
	var parts []string
	for _, it := range items {
		if it.Name != "" {
			parts = append(parts, it.Name)
		}
	}
	return strings.Join(parts, "; ")
}

func joinPhones(phones []apiPhone) string {
	var parts []string
	for _, p := range phones {
		full := strings.ReplaceAll(p.CountryCode+p.Prefix+p.Number, " ", "")
		if full != "" {
			parts = append(parts, full)
		}
	}
	return strings.Join(parts, "; ")
}

func selectColumns(t *table.Table, want []string, log hclog.Logger) *table.Table {
	if len(want) == 0 {
		return t
	}
	out := table.New()
	var kept []string
	for _, col := range want {
		if !t.HasColumn(col) {
			log.Warn("requested column not available in user data", "column", col)
			continue
		}
		kept = append(kept, col)
	}
	out = table.New(kept...)
	for _, r := range t.Rows() {
		row := make(table.Row, len(kept))
		for _, col := range kept {
			row[col] = r.Get(col)
		}
		out.Append(row)
	}
	return out
}

// GetGroups lists the groups visible to the session's user, one row per
// group name.
func GetGroups(ctx context.Context, c *client.Client, opts Options) (*table.Table, error) {
	log := opts.logger()
	log.Debug("fetching group data")

	body, err := c.Fetch(ctx, http.MethodPost, "listgroups",
		map[string]any{"name": c.Username()}, client.WithVersion("v1"))
	if err != nil {
		return nil, err
	}
	var resp struct {
		Name []string `mapstructure:"name"`
	}
	if err := mapstructure.WeakDecode(body, &resp); err != nil {
		return nil, client.WrapError(err, "unexpected response shape from listgroups")
	}
	if len(resp.Name) == 0 {
		return nil, client.NewError("no groups returned from server")
	}

	t := table.New("name")
	for _, name := range resp.Name {
		t.Append(table.Row{"name": table.String(name)})
	}
	log.Info("retrieved groups", "count", t.Len())
	return t, nil
}
