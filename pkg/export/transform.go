package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/iancoleman/strcase"

	"github.com/brandonyach/teamworksams/pkg/table"
)

// typedColumns never get their type guessed or their names rewritten; they
// carry identifiers and schedule strings other code keys on.
var typedColumns = map[string]struct{}{
	"start_date": {}, "end_date": {}, "start_time": {}, "end_time": {},
	"form": {}, "event_id": {}, "profile_id": {}, "user_id": {},
	"entered_by_user_id": {}, "about": {}, "uuid": {},
}

// cleanColumnNames rewrites form field column names to snake_case,
// de-duplicating collisions with a numeric suffix.
func cleanColumnNames(t *table.Table) {
	seen := map[string]int{}
	for _, col := range t.Columns() {
		if _, fixed := typedColumns[col]; fixed {
			seen[col] = 0
			continue
		}
		name := strcase.ToSnake(sanitizeName(col))
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[name] = 0
		if name != col {
			t.RenameColumn(col, name)
		}
	}
}

var nameReplacer = strings.NewReplacer(
	"%", " percent", "#", " num", "?", " query", "/", " slash",
	"*", " star", "@", " at", "(", " ", ")", " ", "[", " ", "]", " ",
	".", " ", ",", " ", "-", " ",
)

func sanitizeName(s string) string {
	return strings.Join(strings.Fields(nameReplacer.Replace(s)), " ")
}

// guessColumnTypes converts form field columns whose every non-empty cell
// parses as a number into numeric cells. Identifier and schedule columns are
// left alone.
func guessColumnTypes(t *table.Table) {
	for _, col := range t.Columns() {
		if _, fixed := typedColumns[col]; fixed {
			continue
		}
		numeric := true
		any := false
		for i := 0; i < t.Len(); i++ {
			v := t.Get(i, col)
			if v.IsEmpty() {
				continue
			}
			any = true
			if _, ok := v.Float(); !ok {
				numeric = false
				break
			}
		}
		if !numeric || !any {
			continue
		}
		for i := 0; i < t.Len(); i++ {
			v := t.Get(i, col)
			if v.IsEmpty() {
				continue
			}
			f, _ := v.Float()
			t.Set(i, col, table.Number(f))
		}
	}
}

// convertDateColumns rewrites start_date and end_date into ISO dates.
func convertDateColumns(t *table.Table) {
	for _, col := range []string{"start_date", "end_date"} {
		if !t.HasColumn(col) {
			continue
		}
		for i := 0; i < t.Len(); i++ {
			v := t.Get(i, col)
			if v.IsEmpty() {
				continue
			}
			parsed, err := time.Parse("02/01/2006", v.String())
			if err != nil {
				continue
			}
			t.Set(i, col, table.String(parsed.Format("2006-01-02")))
		}
	}
}

// reorderColumns rebuilds t's column order as front, the rest in place, then
// back. Named columns the table lacks are skipped.
func reorderColumns(t *table.Table, front, back []string) *table.Table {
	inFront := map[string]struct{}{}
	inBack := map[string]struct{}{}
	var order []string
	for _, c := range front {
		if t.HasColumn(c) {
			order = append(order, c)
			inFront[c] = struct{}{}
		}
	}
	for _, c := range back {
		if t.HasColumn(c) {
			inBack[c] = struct{}{}
		}
	}
	for _, c := range t.Columns() {
		if _, ok := inFront[c]; ok {
			continue
		}
		if _, ok := inBack[c]; ok {
			continue
		}
		order = append(order, c)
	}
	for _, c := range back {
		if t.HasColumn(c) {
			order = append(order, c)
		}
	}

	out := table.New(order...)
	for _, r := range t.Rows() {
		out.Append(r)
	}
	return out
}

// sortEventRows orders events by start date, then athlete, then event ID.
func sortEventRows(t *table.Table) {
	sortRows(t, func(a, b table.Row) bool {
		ad, aok := parseEventDate(a.Get("start_date").String())
		bd, bok := parseEventDate(b.Get("start_date").String())
		if aok != bok {
			return aok
		}
		if aok && !ad.Equal(bd) {
			return ad.Before(bd)
		}
		au, _ := a.Get("user_id").Int64()
		bu, _ := b.Get("user_id").Int64()
		if au != bu {
			return au < bu
		}
		ae, _ := a.Get("event_id").Int64()
		be, _ := b.Get("event_id").Int64()
		return ae < be
	})
}

// sortProfileRows orders profiles by athlete, then profile ID.
func sortProfileRows(t *table.Table) {
	sortRows(t, func(a, b table.Row) bool {
		au, _ := a.Get("user_id").Int64()
		bu, _ := b.Get("user_id").Int64()
		if au != bu {
			return au < bu
		}
		ap, _ := a.Get("profile_id").Int64()
		bp, _ := b.Get("profile_id").Int64()
		return ap < bp
	})
}

func sortRows(t *table.Table, less func(a, b table.Row) bool) {
	t.Sort(less)
}

func parseEventDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	d, err := time.Parse("02/01/2006", s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
