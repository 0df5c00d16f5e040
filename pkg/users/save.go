package users

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"

	"github.com/brandonyach/teamworksams/pkg/client"
	"github.com/brandonyach/teamworksams/pkg/table"
)

// OpResult records the outcome of one account create or edit. Account
// maintenance is per-row; failures are collected here rather than raised,
// so a bad row never aborts the batch.
type OpResult struct {
	// UserID is the account identifier, when the server returned one.
	UserID int64
	// Key is the value that identified the row, e.g. its username.
	Key string
	// OK reports whether the save was accepted.
	OK bool
	// Reason explains a failure.
	Reason string
}

// OpResults is the outcome of a whole account maintenance batch.
type OpResults []OpResult

// Succeeded returns the number of accepted rows.
func (rs OpResults) Succeeded() int {
	n := 0
	for _, r := range rs {
		if r.OK {
			n++
		}
	}
	return n
}

// Failed returns the number of rejected rows.
func (rs OpResults) Failed() int { return len(rs) - rs.Succeeded() }

// createColumns are the account fields a create row may carry, keyed by
// table column and giving the API field name.
var createColumns = map[string]string{
	"first_name":    "firstName",
	"last_name":     "lastName",
	"username":      "username",
	"email":         "emailAddress",
	"dob":           "dateOfBirth",
	"password":      "password",
	"active":        "active",
	"uuid":          "uuid",
	"known_as":      "knownAs",
	"middle_names":  "middleNames",
	"language":      "language",
	"sidebar_width": "sidebarWidth",
	"sex":           "sex",
	"avatar_id":     "avatarId",
}

var requiredCreateColumns = []string{
	"first_name", "last_name", "username", "email", "dob", "password",
}

// CreateUser creates one account per row of t. Rows must carry at least the
// required identity columns; the server assigns the new user IDs.
func CreateUser(ctx context.Context, c *client.Client, t *table.Table, opts Options) (OpResults, error) {
	if t.Len() == 0 {
		return nil, client.NewError("no user rows provided")
	}
	for _, col := range requiredCreateColumns {
		if !t.HasColumn(col) {
			return nil, client.NewError(fmt.Sprintf("missing required column '%s'", col))
		}
	}
	log := opts.logger()
	log.Info("creating users", "count", t.Len())

	results := make(OpResults, 0, t.Len())
	for _, row := range t.Rows() {
		person := map[string]any{"id": "-1"}
		for col, field := range createColumns {
			if !t.HasColumn(col) {
				continue
			}
			v := row.Get(col)
			if col == "active" {
				b, ok := v.Bool()
				person[field] = ok && b
				continue
			}
			person[field] = v.String()
		}
		key := row.Get("username").String()
		results = append(results, saveUser(ctx, c, person, key, log))
	}
	log.Info("created users", "succeeded", results.Succeeded(), "failed", results.Failed())
	return results, nil
}

// EditUser updates existing accounts. Each row of mapping identifies an
// account by userKey ("username", "email", "about", or "uuid") and carries
// the columns to change; unmatched rows and rejected saves become failed
// results.
func EditUser(ctx context.Context, c *client.Client, mapping *table.Table, userKey string, opts Options) (OpResults, error) {
	if mapping.Len() == 0 {
		return nil, client.NewError("no user rows provided")
	}
	if !mapping.HasColumn(userKey) {
		return nil, client.NewError(fmt.Sprintf("missing required column '%s'", userKey))
	}
	log := opts.logger()

	keys := mapping.Distinct(userKey)
	log.Info("mapping users", "key", userKey, "count", len(keys))
	ids, missing, err := ResolveUserIDs(ctx, c, userKey, keys)
	if err != nil {
		return nil, err
	}

	idList := make([]string, 0, len(ids))
	for _, id := range ids {
		idList = append(idList, fmt.Sprintf("%d", id))
	}
	var current []apiUser
	if len(idList) > 0 {
		current, err = fetchAllUserData(ctx, c, idList)
		if err != nil {
			return nil, err
		}
	}
	byID := make(map[int64]apiUser, len(current))
	for _, u := range current {
		byID[u.id()] = u
	}

	missingSet := make(map[string]struct{}, len(missing))
	for _, m := range missing {
		missingSet[m] = struct{}{}
	}

	results := make(OpResults, 0, mapping.Len())
	for _, row := range mapping.Rows() {
		key := row.Get(userKey).String()
		if _, ok := missingSet[key]; ok {
			results = append(results, OpResult{
				Key: key, Reason: fmt.Sprintf("user not found for %s value", userKey),
			})
			continue
		}
		id := ids[key]
		existing, ok := byID[id]
		if !ok {
			results = append(results, OpResult{
				UserID: id, Key: key, Reason: "user data not found",
			})
			continue
		}

		person := make(map[string]any, len(existing.Raw))
		for k, v := range existing.Raw {
			person[k] = v
		}
		changed := false
		for col, field := range createColumns {
			if col == userKey || !mapping.HasColumn(col) {
				continue
			}
			v := row.Get(col)
			if v.IsEmpty() {
				continue
			}
			if col == "active" {
				b, _ := v.Bool()
				person[field] = b
			} else {
				person[field] = v.String()
			}
			changed = true
		}
		if !changed {
			results = append(results, OpResult{
				UserID: id, Key: key, Reason: "no updatable columns provided",
			})
			continue
		}
		res := saveUser(ctx, c, person, key, log)
		if res.UserID == 0 {
			res.UserID = id
		}
		results = append(results, res)
	}
	log.Info("updated users", "succeeded", results.Succeeded(), "failed", results.Failed())
	return results, nil
}

func saveUser(ctx context.Context, c *client.Client, person map[string]any, key string, log hclog.Logger) OpResult {
	body, err := c.Fetch(ctx, http.MethodPost, "person/save",
		map[string]any{"person": person}, client.WithoutCache())
	if err != nil {
		log.Warn("user save failed", "key", key, "error", err)
		return OpResult{Key: key, Reason: err.Error()}
	}

	var resp struct {
		ID             int64  `mapstructure:"id"`
		IsRPCException bool   `mapstructure:"__is_rpc_exception__"`
		Type           string `mapstructure:"type"`
		Value          struct {
			DetailMessage string `mapstructure:"detailMessage"`
		} `mapstructure:"value"`
	}
	if err := mapstructure.WeakDecode(body, &resp); err != nil {
		return OpResult{Key: key, Reason: "unexpected response shape from person/save"}
	}
	if resp.IsRPCException {
		msg := resp.Value.DetailMessage
		if msg == "" {
			msg = resp.Type
		}
		log.Warn("user save rejected", "key", key, "reason", msg)
		return OpResult{Key: key, Reason: msg}
	}
	return OpResult{UserID: resp.ID, Key: key, OK: true}
}
