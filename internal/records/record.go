// Package records is the scoped store of intake rows: every list, create
// and update is checked against the caller's client scope before anything
// else happens, so no filter or payload can reach another client's data.
package records

import (
	"time"

	"github.com/ritetech/intake/internal/schema"
	"github.com/ritetech/intake/internal/tabular"
)

// Record is one intake row. System columns are split out; Fields carries
// the business columns exactly as stored.
type Record struct {
	ID        string
	ClientID  string
	Status    string
	CreatedBy string
	CreatedAt time.Time
	UpdatedBy string
	UpdatedAt time.Time
	Fields    tabular.Row
}

var systemColumns = map[string]bool{
	schema.ColRecordID:  true,
	schema.ColClientID:  true,
	schema.ColStatus:    true,
	schema.ColCreatedBy: true,
	schema.ColCreatedAt: true,
	schema.ColUpdatedBy: true,
	schema.ColUpdatedAt: true,
}

// FromRow splits a stored Data row into a Record. Unparseable timestamps
// read as zero; they are validated on the way in, not the way out.
func FromRow(row tabular.Row) Record {
	rec := Record{
		ID:        row[schema.ColRecordID],
		ClientID:  row[schema.ColClientID],
		Status:    row[schema.ColStatus],
		CreatedBy: row[schema.ColCreatedBy],
		UpdatedBy: row[schema.ColUpdatedBy],
		Fields:    tabular.Row{},
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, row[schema.ColCreatedAt])
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, row[schema.ColUpdatedAt])
	for name, val := range row {
		if !systemColumns[name] {
			rec.Fields[name] = val
		}
	}
	return rec
}

// ToRow flattens the record back to a full Data row.
func (r Record) ToRow() tabular.Row {
	row := r.Fields.Clone()
	row[schema.ColRecordID] = r.ID
	row[schema.ColClientID] = r.ClientID
	row[schema.ColStatus] = r.Status
	row[schema.ColCreatedBy] = r.CreatedBy
	row[schema.ColUpdatedBy] = r.UpdatedBy
	if !r.CreatedAt.IsZero() {
		row[schema.ColCreatedAt] = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !r.UpdatedAt.IsZero() {
		row[schema.ColUpdatedAt] = r.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return row
}
