package records

import (
	"sort"
	"strings"
	"time"

	"github.com/ritetech/intake/internal/schema"
	"github.com/ritetech/intake/internal/tabular"
)

// Filter narrows an already-scoped result set. Filters run strictly after
// the scope restriction, so a crafted filter cannot widen visibility.
type Filter struct {
	// From and To bound SubmissionDate inclusively; zero means unbounded.
	From time.Time
	To   time.Time
	// Status keeps rows with this exact status value.
	Status string
	// ClientID keeps rows of one client. A value outside the caller's
	// scope just yields an empty result.
	ClientID string
	// Search is a case-insensitive substring match across all columns.
	Search string
	// SortBy orders by a column instead of creation order. The sort is
	// stable, so ties keep creation order.
	SortBy string
}

func (f Filter) matches(row tabular.Row) bool {
	if f.Status != "" && row[schema.ColStatus] != f.Status {
		return false
	}
	if f.ClientID != "" && row[schema.ColClientID] != f.ClientID {
		return false
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		d, err := time.Parse("2006-01-02", row[schema.ColSubmissionDate])
		if err != nil {
			return false
		}
		if !f.From.IsZero() && d.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && d.After(f.To) {
			return false
		}
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		found := false
		for _, val := range row {
			if strings.Contains(strings.ToLower(val), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (f Filter) sortRows(rows []tabular.Row) {
	if f.SortBy == "" {
		return
	}
	col := f.SortBy
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i][col] < rows[j][col]
	})
}
