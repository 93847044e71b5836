// Package export turns an already-scoped, already-filtered record set
// into flat tabular blobs. No access-control logic lives here: the caller
// is responsible for having scoped the input.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/ritetech/intake/internal/records"
	"github.com/ritetech/intake/internal/schema"
)

// ProjectCSV renders records as CSV: one header row, then one row per
// record in the given column order. Columns not declared on the Data
// table are dropped from the projection; a declared column missing from a
// record renders empty. The output is a pure function of the input, so
// projecting the same sequence twice is byte-identical.
func ProjectCSV(reg *schema.Registry, recs []records.Record, columns []string) ([]byte, error) {
	cols := projectionColumns(reg, columns)
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cols); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	line := make([]string, len(cols))
	for _, rec := range recs {
		row := rec.ToRow()
		for i, col := range cols {
			line[i] = row[col]
		}
		if err := w.Write(line); err != nil {
			return nil, fmt.Errorf("write record %s: %w", rec.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// projectionColumns filters the requested order down to declared Data
// columns; an empty request means the full declared order.
func projectionColumns(reg *schema.Registry, columns []string) []string {
	declared := reg.ColumnOrder(schema.TableData)
	if len(columns) == 0 {
		return declared
	}
	known := make(map[string]bool, len(declared))
	for _, c := range declared {
		known[c] = true
	}
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if known[c] {
			out = append(out, c)
		}
	}
	return out
}
