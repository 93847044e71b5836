package schema

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ritetech/intake/internal/tabular"
)

// Violation reason codes.
const (
	ReasonRequired         = "required"
	ReasonBadDate          = "bad_date"
	ReasonBadNumber        = "bad_number"
	ReasonBadTimestamp     = "bad_timestamp"
	ReasonBadRecipient     = "bad_recipient_list"
	ReasonUnknownColumn    = "unknown_column"
	ReasonUnknownReference = "unknown_reference"
	ReasonDuplicate        = "possible_duplicate"
)

// Violations maps field name to a short reason code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// ValidationError reports the fields of a row that failed validation.
// It is terminal for the attempt: callers correct input, never retry.
type ValidationError struct {
	Table      string
	Violations Violations
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f, reason := range e.Violations {
		fields = append(fields, f+": "+reason)
	}
	sort.Strings(fields)
	return fmt.Sprintf("invalid %s row (%s)", e.Table, strings.Join(fields, ", "))
}

// RefSource answers membership questions against reference tables. The
// master cache implements it; tests use a fixed map.
type RefSource interface {
	// HasRef reports whether value is present in the key column of table.
	HasRef(ctx context.Context, table, value string) (bool, error)
}

// ValidateRow checks a row against its table definition: required fields
// present, typed fields parseable, reference fields resolvable, no
// undeclared columns. Returns a *ValidationError listing every violation,
// or a plain error when a reference lookup itself fails.
func (r *Registry) ValidateRow(ctx context.Context, table string, row tabular.Row, refs RefSource) error {
	def, ok := r.defs[table]
	if !ok {
		return fmt.Errorf("schema: unknown table %q", table)
	}

	v := Violations{}
	declared := make(map[string]bool, len(def.Columns))
	for _, col := range def.Columns {
		declared[col.Name] = true
		val := strings.TrimSpace(row[col.Name])
		if val == "" {
			if col.Required {
				v[col.Name] = ReasonRequired
			}
			continue
		}
		if reason := checkType(col.Type, val); reason != "" {
			v[col.Name] = reason
			continue
		}
		if col.Ref != "" {
			found, err := refs.HasRef(ctx, col.Ref, val)
			if err != nil {
				return fmt.Errorf("resolve %s.%s against %s: %w", table, col.Name, col.Ref, err)
			}
			if !found {
				v[col.Name] = ReasonUnknownReference
			}
		}
	}
	for name := range row {
		if !declared[name] {
			v[name] = ReasonUnknownColumn
		}
	}
	if !v.Empty() {
		return &ValidationError{Table: table, Violations: v}
	}
	return nil
}

func checkType(t Type, val string) string {
	switch t {
	case TypeDate:
		if _, err := time.Parse("2006-01-02", val); err != nil {
			return ReasonBadDate
		}
	case TypeDecimal:
		if _, err := strconv.ParseFloat(val, 64); err != nil {
			return ReasonBadNumber
		}
	case TypeTimestamp:
		if _, err := time.Parse(time.RFC3339, val); err != nil {
			return ReasonBadTimestamp
		}
	case TypeRecipients:
		for _, addr := range SplitList(val) {
			if !strings.Contains(addr, "@") && !isDigits(addr) {
				return ReasonBadRecipient
			}
		}
	}
	return ""
}

// SplitList splits a comma-separated cell into trimmed non-empty items.
func SplitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// isDigits allows phone-style recipients alongside email addresses.
func isDigits(s string) bool {
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
