package export

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/ritetech/intake/internal/records"
	"github.com/ritetech/intake/internal/schema"
)

const summarySheet = "Summary"

// summaryKey groups records for the pivot.
type summaryKey struct {
	mode string
	date string
}

// ProjectSummaryXLSX builds the Excel summary workbook: net amount
// pivoted by submission mode and date, one column per pharmacy, with a
// subtotal row per mode and a grand total. Records without a parseable
// net amount count as zero.
func ProjectSummaryXLSX(recs []records.Record) ([]byte, error) {
	pharmacies := map[string]bool{}
	sums := map[summaryKey]map[string]float64{}
	for _, rec := range recs {
		row := rec.ToRow()
		key := summaryKey{mode: row[schema.ColSubmissionMode], date: row[schema.ColSubmissionDate]}
		ph := row[schema.ColPharmacyID]
		pharmacies[ph] = true
		amount, _ := strconv.ParseFloat(row[schema.ColNetAmount], 64)
		if sums[key] == nil {
			sums[key] = map[string]float64{}
		}
		sums[key][ph] += amount
	}

	phCols := make([]string, 0, len(pharmacies))
	for ph := range pharmacies {
		phCols = append(phCols, ph)
	}
	sort.Strings(phCols)

	keys := make([]summaryKey, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].mode != keys[j].mode {
			return keys[i].mode < keys[j].mode
		}
		return keys[i].date < keys[j].date
	})

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return nil, err
	}

	header := append([]string{"Submission Mode", "Date"}, phCols...)
	header = append(header, "Total")
	if err := writeLine(f, 1, header); err != nil {
		return nil, err
	}

	line := 2
	grand := make([]float64, len(phCols)+1)
	var mode string
	var subtotal []float64
	flushSubtotal := func() error {
		if subtotal == nil {
			return nil
		}
		cells := append([]any{mode + " total", ""}, floatsToCells(subtotal)...)
		if err := writeCells(f, line, cells); err != nil {
			return err
		}
		line++
		subtotal = nil
		return nil
	}

	for _, key := range keys {
		if key.mode != mode {
			if err := flushSubtotal(); err != nil {
				return nil, err
			}
			mode = key.mode
			subtotal = make([]float64, len(phCols)+1)
		}
		cells := []any{key.mode, key.date}
		var rowTotal float64
		for i, ph := range phCols {
			v := sums[key][ph]
			cells = append(cells, v)
			rowTotal += v
			subtotal[i] += v
			grand[i] += v
		}
		cells = append(cells, rowTotal)
		subtotal[len(phCols)] += rowTotal
		grand[len(phCols)] += rowTotal
		if err := writeCells(f, line, cells); err != nil {
			return nil, err
		}
		line++
	}
	if err := flushSubtotal(); err != nil {
		return nil, err
	}
	cells := append([]any{"Grand total", ""}, floatsToCells(grand)...)
	if err := writeCells(f, line, cells); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeLine(f *excelize.File, row int, values []string) error {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return writeCells(f, row, cells)
}

func writeCells(f *excelize.File, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func floatsToCells(vals []float64) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
