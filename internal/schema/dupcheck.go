package schema

import (
	"strings"

	"github.com/ritetech/intake/internal/tabular"
)

// dupSignature joins the dup-key values of a row. Empty when the row has
// no value in any dup-key column, which opts it out of duplicate checks.
func dupSignature(keys []string, row tabular.Row) string {
	parts := make([]string, len(keys))
	empty := true
	for i, k := range keys {
		parts[i] = strings.TrimSpace(row[k])
		if parts[i] != "" {
			empty = false
		}
	}
	if empty {
		return ""
	}
	return strings.Join(parts, "|")
}

// FindDuplicate returns the position of the first existing row sharing the
// candidate's duplicate signature, or -1. Rows identified by skipKey in
// the table's key column are ignored, so an update never collides with the
// row being updated.
func FindDuplicate(def Definition, existing []tabular.Row, candidate tabular.Row, skipKey string) int {
	if len(def.DupKeys) == 0 {
		return -1
	}
	sig := dupSignature(def.DupKeys, candidate)
	if sig == "" {
		return -1
	}
	for i, row := range existing {
		if skipKey != "" && def.Key != "" && row[def.Key] == skipKey {
			continue
		}
		if dupSignature(def.DupKeys, row) == sig {
			return i
		}
	}
	return -1
}
