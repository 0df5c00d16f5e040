package export

import (
	"github.com/brandonyach/teamworksams/pkg/table"
)

// appendUserData joins athlete names onto the export by user_id. With
// includeMissing, athletes from the user table with no exported rows get a
// row of their own so absences are visible.
func appendUserData(t *table.Table, userTable *table.Table, includeMissing bool) *table.Table {
	if userTable == nil || !userTable.HasColumn("user_id") {
		return t
	}
	about := make(map[int64]string, userTable.Len())
	for i := 0; i < userTable.Len(); i++ {
		if id, ok := userTable.Get(i, "user_id").Int64(); ok {
			about[id] = userTable.Get(i, "about").String()
		}
	}

	t.AddColumn("about")
	present := make(map[int64]struct{}, t.Len())
	for i := 0; i < t.Len(); i++ {
		id, ok := t.Get(i, "user_id").Int64()
		if !ok {
			continue
		}
		present[id] = struct{}{}
		if name, found := about[id]; found {
			t.Set(i, "about", table.String(name))
		}
	}

	if includeMissing {
		for i := 0; i < userTable.Len(); i++ {
			id, ok := userTable.Get(i, "user_id").Int64()
			if !ok {
				continue
			}
			if _, seen := present[id]; seen {
				continue
			}
			t.Append(table.Row{
				"user_id": table.Int(id),
				"about":   table.String(about[id]),
			})
		}
	}
	return t
}

// appendUserColumn joins one extra athlete attribute onto the export by
// user_id.
func appendUserColumn(t *table.Table, userTable *table.Table, col string) *table.Table {
	if userTable == nil || !userTable.HasColumn(col) {
		return t
	}
	values := make(map[int64]table.Value, userTable.Len())
	for i := 0; i < userTable.Len(); i++ {
		if id, ok := userTable.Get(i, "user_id").Int64(); ok {
			values[id] = userTable.Get(i, col)
		}
	}
	t.AddColumn(col)
	for i := 0; i < t.Len(); i++ {
		if id, ok := t.Get(i, "user_id").Int64(); ok {
			if v, found := values[id]; found && !v.IsNull() {
				t.Set(i, col, v)
			}
		}
	}
	return t
}
