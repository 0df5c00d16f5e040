// Package users implements account lookups and account maintenance: fetching
// user and group data, creating and editing accounts, and resolving identity
// attributes to the numeric user IDs every other operation keys on.
package users

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/brandonyach/teamworksams/pkg/client"
)

type apiPhone struct {
	CountryCode string `mapstructure:"countryCode"`
	Prefix      string `mapstructure:"prefix"`
	Number      string `mapstructure:"number"`
}

type apiNamed struct {
	Name string `mapstructure:"name"`
}

type apiUser struct {
	UserID       int64      `mapstructure:"userId"`
	ID           int64      `mapstructure:"id"`
	FirstName    string     `mapstructure:"firstName"`
	LastName     string     `mapstructure:"lastName"`
	DOB          string     `mapstructure:"dob"`
	Username     string     `mapstructure:"username"`
	EmailAddress string     `mapstructure:"emailAddress"`
	UUID         string     `mapstructure:"uuid"`
	MiddleName   string     `mapstructure:"middleName"`
	KnownAs      string     `mapstructure:"knownAs"`
	Sex          string     `mapstructure:"sex"`
	PhoneNumbers []apiPhone `mapstructure:"phoneNumbers"`

	GroupsAndRoles struct {
		Role          []apiNamed `mapstructure:"role"`
		AthleteGroups []apiNamed `mapstructure:"athleteGroups"`
		CoachGroups   []apiNamed `mapstructure:"coachGroups"`
	} `mapstructure:"groupsAndRoles"`

	// Raw keeps the full decoded object for edit round-trips.
	Raw map[string]any `mapstructure:"-"`
}

func (u *apiUser) about() string {
	return strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName)
}

func (u *apiUser) id() int64 {
	if u.UserID != 0 {
		return u.UserID
	}
	return u.ID
}

// fetchUsers runs the search endpoint the filter calls for and returns the
// decoded user objects. Group filters use the group membership endpoint;
// everything else goes through usersearch.
func fetchUsers(ctx context.Context, c *client.Client, filter *Filter) ([]apiUser, error) {
	endpoint := "usersearch"
	var payload any = filter.payload()
	if filter != nil && filter.Key == "group" {
		endpoint = "groupmembers"
		payload = map[string]any{"name": filter.Values}
	}

	body, err := c.Fetch(ctx, http.MethodPost, endpoint, payload, client.WithVersion("v1"))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results []struct {
			Results []map[string]any `mapstructure:"results"`
		} `mapstructure:"results"`
	}
	if err := mapstructure.WeakDecode(body, &resp); err != nil {
		return nil, client.WrapError(err, fmt.Sprintf("unexpected response shape from %s", endpoint))
	}

	var users []apiUser
	for _, group := range resp.Results {
		for _, raw := range group.Results {
			var u apiUser
			if err := mapstructure.WeakDecode(raw, &u); err != nil {
				return nil, client.WrapError(err, fmt.Sprintf("unexpected user object from %s", endpoint))
			}
			u.Raw = raw
			users = append(users, u)
		}
	}
	if len(users) == 0 {
		if filter != nil && filter.Key == "group" {
			return nil, client.NewError(
				fmt.Sprintf("no members found in group '%s'", strings.Join(filter.Values, ", ")))
		}
		return nil, client.NewError("no users returned from server")
	}

	if filter != nil && filter.Key == "about" {
		users = filterByAbout(users, filter.Values)
		if len(users) == 0 {
			return nil, client.NewError(
				fmt.Sprintf("no users matched about values '%s'", strings.Join(filter.Values, ", ")))
		}
	}
	return users, nil
}

func filterByAbout(users []apiUser, values []string) []apiUser {
	want := make(map[string]struct{}, len(values))
	for _, v := range values {
		want[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	var out []apiUser
	for _, u := range users {
		if _, ok := want[strings.ToLower(u.about())]; ok {
			out = append(out, u)
		}
	}
	return out
}

// fetchAllUserData loads the complete person objects for the given user IDs
// through person/get, which returns fields usersearch omits. A nil ids slice
// loads every account the session can see.
func fetchAllUserData(ctx context.Context, c *client.Client, ids []string) ([]apiUser, error) {
	if ids == nil {
		users, err := fetchUsers(ctx, c, nil)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			ids = append(ids, fmt.Sprintf("%d", u.id()))
		}
	}

	payload := map[string]any{
		"filter": map[string]any{
			"comparisons": map[string]any{
				"op": "0",
				"branches": []any{
					map[string]any{
						"leaf": map[string]any{
							"negated":      false,
							"comp":         "1",
							"fieldName":    "id",
							"valueInteger": ids,
						},
					},
				},
			},
			"limit":  "-1",
			"offset": "-1",
		},
	}
	body, err := c.Fetch(ctx, http.MethodPost, "person/get", payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Objects []map[string]any `mapstructure:"objects"`
	}
	if err := mapstructure.WeakDecode(body, &resp); err != nil {
		return nil, client.WrapError(err, "unexpected response shape from person/get")
	}
	if len(resp.Objects) == 0 {
		return nil, client.NewError("no users returned from server")
	}

	users := make([]apiUser, 0, len(resp.Objects))
	for _, raw := range resp.Objects {
		var u apiUser
		if err := mapstructure.WeakDecode(raw, &u); err != nil {
			return nil, client.WrapError(err, "unexpected user object from person/get")
		}
		u.Raw = raw
		users = append(users, u)
	}
	return users, nil
}
