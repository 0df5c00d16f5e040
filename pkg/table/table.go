// Package table provides the column-ordered record table that every import
// and export operation consumes or produces. A Table preserves column order
// and row order, which the payload builders rely on for deterministic
// grouping and row numbering.
package table

import (
	"fmt"
	"sort"
)

// Row maps column names to cell values. Missing columns read as Null.
type Row map[string]Value

// Get returns the cell for col, or Null when the row has no such column.
func (r Row) Get(col string) Value {
	v, ok := r[col]
	if !ok {
		return Null
	}
	return v
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered collection of rows sharing a column set. Column order
// is the declaration order, not lexical order.
type Table struct {
	cols []string
	rows []Row
}

// New returns an empty table with the given columns.
func New(cols ...string) *Table {
	t := &Table{}
	for _, c := range cols {
		t.AddColumn(c)
	}
	return t
}

// Columns returns the column names in declaration order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.cols))
	copy(out, t.cols)
	return out
}

// HasColumn reports whether the table declares col.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.cols {
		if c == col {
			return true
		}
	}
	return false
}

// AddColumn declares a new column. Declaring an existing column is a no-op.
func (t *Table) AddColumn(col string) {
	if !t.HasColumn(col) {
		t.cols = append(t.cols, col)
	}
}

// RenameColumn renames a declared column in place, preserving its position
// and every row's cell under the new name.
func (t *Table) RenameColumn(from, to string) {
	for i, c := range t.cols {
		if c == from {
			t.cols[i] = to
			for _, r := range t.rows {
				if v, ok := r[from]; ok {
					r[to] = v
					delete(r, from)
				}
			}
			return
		}
	}
}

// DropColumn removes a column and its cells from every row.
func (t *Table) DropColumn(col string) {
	for i, c := range t.cols {
		if c == col {
			t.cols = append(t.cols[:i], t.cols[i+1:]...)
			for _, r := range t.rows {
				delete(r, col)
			}
			return
		}
	}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns row i. The returned map aliases the table's storage.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Rows returns the underlying row slice. Callers must not reorder it.
func (t *Table) Rows() []Row { return t.rows }

// Append adds a row, declaring any columns the row carries that the table
// does not yet know about.
func (t *Table) Append(r Row) {
	keys := make([]string, 0, len(r))
	for k := range r {
		if !t.HasColumn(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.AddColumn(k)
	}
	t.rows = append(t.rows, r)
}

// Set writes a cell, declaring the column if needed.
func (t *Table) Set(i int, col string, v Value) {
	t.AddColumn(col)
	t.rows[i][col] = v
}

// Get reads a cell; rows without the column read as Null.
func (t *Table) Get(i int, col string) Value {
	return t.rows[i].Get(col)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := New(t.cols...)
	for _, r := range t.rows {
		out.rows = append(out.rows, r.Clone())
	}
	return out
}

// Filter returns a new table holding the rows for which keep returns true,
// preserving order and the full column set.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := New(t.cols...)
	for _, r := range t.rows {
		if keep(r) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// Sort reorders rows in place using a stable sort.
func (t *Table) Sort(less func(a, b Row) bool) {
	sort.SliceStable(t.rows, func(i, j int) bool { return less(t.rows[i], t.rows[j]) })
}

// Group is one bucket produced by GroupBy: the shared key cells plus the
// member row indices in original order.
type Group struct {
	Key     []Value
	Indices []int
}

// GroupBy buckets rows by the rendered values of the key columns. Groups are
// returned in order of first occurrence and members keep their original row
// order, so grouping is deterministic for a given input.
func (t *Table) GroupBy(keyCols []string) []Group {
	index := make(map[string]int)
	var groups []Group
	for i, r := range t.rows {
		sig := ""
		key := make([]Value, len(keyCols))
		for j, c := range keyCols {
			v := r.Get(c)
			key[j] = v
			sig += fmt.Sprintf("%d\x1f%s\x1e", v.Kind(), v.String())
		}
		if gi, ok := index[sig]; ok {
			groups[gi].Indices = append(groups[gi].Indices, i)
			continue
		}
		index[sig] = len(groups)
		groups = append(groups, Group{Key: key, Indices: []int{i}})
	}
	return groups
}

// FirstNonEmpty returns the first non-empty cell of col across the given row
// indices, or Null when every cell is empty.
func (t *Table) FirstNonEmpty(indices []int, col string) Value {
	for _, i := range indices {
		if v := t.rows[i].Get(col); !v.IsEmpty() {
			return v
		}
	}
	return Null
}

// Distinct returns the distinct rendered values of col in row order,
// skipping empty cells.
func (t *Table) Distinct(col string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.rows {
		v := r.Get(col)
		if v.IsEmpty() {
			continue
		}
		s := v.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
