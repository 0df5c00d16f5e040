package users

import (
	"context"
	"strings"

	"github.com/brandonyach/teamworksams/pkg/client"
)

// ResolveUserIDs maps identity attribute values onto numeric user IDs. The
// returned map is keyed by the original values; values that matched no
// account are listed in missing, in input order, and do not fail the call.
func ResolveUserIDs(ctx context.Context, c *client.Client, key string, values []string) (ids map[string]int64, missing []string, err error) {
	filter := &Filter{Key: key, Values: values}
	if err := filter.Validate(); err != nil {
		return nil, nil, err
	}

	matched, err := fetchUsers(ctx, c, filter)
	if err != nil {
		return nil, nil, err
	}

	byAttr := make(map[string]int64, len(matched))
	for _, u := range matched {
		var attr string
		switch key {
		case "about":
			attr = u.about()
		case "username":
			attr = u.Username
		case "email":
			attr = u.EmailAddress
		case "uuid":
			attr = u.UUID
		}
		if attr != "" {
			byAttr[normalizeKey(attr)] = u.id()
		}
	}

	ids = make(map[string]int64, len(values))
	for _, v := range values {
		if id, ok := byAttr[normalizeKey(v)]; ok {
			ids[v] = id
		} else {
			missing = append(missing, v)
		}
	}
	return ids, missing, nil
}

// ResolveGroupUserIDs returns the user IDs of every member of the named
// group, in server order.
func ResolveGroupUserIDs(ctx context.Context, c *client.Client, group string) ([]int64, error) {
	matched, err := fetchUsers(ctx, c, &Filter{Key: "group", Values: []string{group}})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(matched))
	for _, u := range matched {
		ids = append(ids, u.id())
	}
	return ids, nil
}

// AllUserIDs returns the IDs of every account the session can see.
func AllUserIDs(ctx context.Context, c *client.Client) ([]int64, error) {
	matched, err := fetchUsers(ctx, c, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(matched))
	for _, u := range matched {
		ids = append(ids, u.id())
	}
	return ids, nil
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
