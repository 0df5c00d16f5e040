package importer

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-multierror"

	"github.com/brandonyach/teamworksams/pkg/table"
)

// protectedColumns are account fields an import must never write through a
// form; they are dropped with a warning rather than failing the batch.
var protectedColumns = []string{"first name", "last name"}

// identityColumns are normalized to lower case so callers can use any
// capitalization in source files.
var identityColumns = map[string]struct{}{
	"about": {}, "user_id": {}, "username": {}, "email": {}, "event_id": {},
}

// cleanTable copies t, drops protected columns, and lowercases the identity
// column names. The input table is not modified.
func cleanTable(t *table.Table, warn func(msg string, args ...any)) *table.Table {
	out := t.Clone()
	for _, col := range t.Columns() {
		lower := strings.ToLower(col)
		for _, p := range protectedColumns {
			if lower == p {
				warn("protected column removed from import", "column", col)
				out.DropColumn(col)
			}
		}
	}
	for _, col := range out.Columns() {
		lower := strings.ToLower(col)
		if _, ok := identityColumns[lower]; ok && lower != col {
			out.RenameColumn(col, lower)
		}
	}
	return out
}

// validateShape checks the structural half of the import contract: a form
// name, at least one row, and a column for every declared table field. It
// runs before identifier resolution so a malformed table is rejected without
// any network traffic.
func validateShape(t *table.Table, form string, tableFields []string) error {
	var errs *multierror.Error

	if err := validation.Validate(form, validation.Required); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("form name: %w", err))
	}
	if t.Len() == 0 {
		errs = multierror.Append(errs, fmt.Errorf("no rows to import"))
	}
	for _, f := range tableFields {
		if !t.HasColumn(f) {
			errs = multierror.Append(errs, fmt.Errorf("declared table field '%s' has no column", f))
		}
	}
	return errs.ErrorOrNil()
}

// validateImport checks the cleaned, user-mapped table against the import
// contract: a form name, at least one row, identifiers on every row, and
// dates in DD/MM/YYYY. Every violation is reported, not just the first.
func validateImport(t *table.Table, form string, tableFields []string) error {
	var errs *multierror.Error

	if err := validateShape(t, form, tableFields); err != nil {
		errs = multierror.Append(errs, err)
	}
	if !t.HasColumn("user_id") {
		errs = multierror.Append(errs, fmt.Errorf("user_id column is required"))
	} else {
		for i := 0; i < t.Len(); i++ {
			if _, ok := t.Get(i, "user_id").Int64(); !ok {
				errs = multierror.Append(errs,
					fmt.Errorf("row %d: user_id is not a valid identifier", i))
			}
		}
	}
	for _, col := range []string{"start_date", "end_date"} {
		if !t.HasColumn(col) {
			continue
		}
		for i := 0; i < t.Len(); i++ {
			v := t.Get(i, col)
			if v.IsEmpty() {
				continue
			}
			if _, err := time.Parse("02/01/2006", v.String()); err != nil {
				errs = multierror.Append(errs,
					fmt.Errorf("row %d: %s '%s' is not in DD/MM/YYYY format", i, col, v.String()))
			}
		}
	}
	return errs.ErrorOrNil()
}
