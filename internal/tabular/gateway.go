// Package tabular is the only door to the remotely-hosted tabular store.
// A logical table is an ordered list of rows of named text columns plus a
// version token; every durable read and write in the application goes
// through the Gateway interface.
package tabular

import "context"

// Row is one record of a logical table: column name -> cell value.
// The remote store types nothing, so every cell is a string.
type Row map[string]string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CloneRows copies a row slice deeply.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// Table is a snapshot of a logical table: its rows in store order and the
// version token observed at read time.
type Table struct {
	Name    string
	Rows    []Row
	Version int64
}

// Gateway reads and writes logical tables. Implementations enforce their
// own timeouts; upper layers only handle the error taxonomy.
type Gateway interface {
	// ReadTable returns the current rows and version of a table. A table
	// that does not exist yet reads as empty at version 0.
	ReadTable(ctx context.Context, name string) (Table, error)

	// WriteTable replaces the whole table. expectedVersion must match the
	// store's current version or a *ConflictError is returned and nothing
	// is written. Returns the new version on success.
	WriteTable(ctx context.Context, name string, rows []Row, expectedVersion int64) (int64, error)

	// AppendRows adds rows at the tail. Appends take no version token, so
	// they cannot lose a race, but they do advance the table version so a
	// concurrent whole-table writer holding an older token will conflict
	// instead of silently dropping the appended rows.
	AppendRows(ctx context.Context, name string, rows []Row) error
}
