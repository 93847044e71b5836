package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ritetech/intake/internal/access"
	"github.com/ritetech/intake/internal/schema"
	"github.com/ritetech/intake/internal/tabular"
)

// ErrNotFound reports an unknown record ID.
var ErrNotFound = errors.New("records: record not found")

// Store is the scoped CRUD interface over the Data table. Records are
// never physically deleted; closure is a status transition to a terminal
// value.
type Store struct {
	gw   tabular.Gateway
	reg  *schema.Registry
	refs schema.RefSource

	// RetryAttempts and RetryBackoff govern transient-failure retries on
	// gateway calls.
	RetryAttempts int
	RetryBackoff  time.Duration

	now   func() time.Time
	newID func() string
}

// NewStore wires the record store. refs resolves reference-table
// membership (normally the master cache).
func NewStore(gw tabular.Gateway, reg *schema.Registry, refs schema.RefSource) *Store {
	return &Store{
		gw:            gw,
		reg:           reg,
		refs:          refs,
		RetryAttempts: 3,
		RetryBackoff:  300 * time.Millisecond,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// List returns the records visible to the identity: the scope restriction
// is applied first, then the filter, then the optional sort. Without a
// sort the order is creation order, so repeated calls without mutation
// are deterministic.
func (s *Store) List(ctx context.Context, id *access.Identity, f Filter) ([]Record, error) {
	if err := access.Authorize(id, access.ActionList, access.ResourceRecord, ""); err != nil {
		return nil, err
	}
	table, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	scoped := make([]tabular.Row, 0, len(table.Rows))
	for _, row := range table.Rows {
		if id.Role != access.RoleAdmin && !id.Scope.Contains(row[schema.ColClientID]) {
			continue
		}
		if f.matches(row) {
			scoped = append(scoped, row)
		}
	}
	f.sortRows(scoped)
	out := make([]Record, len(scoped))
	for i, row := range scoped {
		out[i] = FromRow(row)
	}
	return out, nil
}

// Get returns one record by ID, subject to the caller's scope.
func (s *Store) Get(ctx context.Context, id *access.Identity, recordID string) (Record, error) {
	if err := access.Authorize(id, access.ActionView, access.ResourceRecord, ""); err != nil {
		return Record{}, err
	}
	table, err := s.read(ctx)
	if err != nil {
		return Record{}, err
	}
	row := findRecord(table.Rows, recordID)
	if row == nil {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, recordID)
	}
	if err := access.Authorize(id, access.ActionView, access.ResourceRecord, row[schema.ColClientID]); err != nil {
		return Record{}, err
	}
	return FromRow(row), nil
}

// Create authorizes against the payload's client, validates, assigns the
// record ID and audit fields, and appends through the gateway. Set
// allowDuplicate to override the duplicate check; Admin overrides
// implicitly.
func (s *Store) Create(ctx context.Context, id *access.Identity, fields tabular.Row, allowDuplicate bool) (string, error) {
	clientID := fields[schema.ColClientID]
	if err := access.Authorize(id, access.ActionCreate, access.ResourceRecord, clientID); err != nil {
		return "", err
	}

	row := fields.Clone()
	now := s.now().UTC().Format(time.RFC3339)
	row[schema.ColRecordID] = s.newID()
	row[schema.ColCreatedBy] = id.Username
	row[schema.ColCreatedAt] = now
	row[schema.ColUpdatedBy] = id.Username
	row[schema.ColUpdatedAt] = now

	if err := s.reg.ValidateRow(ctx, schema.TableData, row, s.refs); err != nil {
		return "", err
	}
	table, err := s.read(ctx)
	if err != nil {
		return "", err
	}
	if err := s.checkDuplicate(id, table.Rows, row, "", allowDuplicate); err != nil {
		return "", err
	}

	err = tabular.Retry(ctx, s.RetryAttempts, s.RetryBackoff, func() error {
		return s.gw.AppendRows(ctx, schema.TableData, []tabular.Row{row})
	})
	if err != nil {
		return "", err
	}
	return row[schema.ColRecordID], nil
}

// Update merges fields into an existing record. The scope check runs
// against the stored record's client at update time, not creation time,
// so a scope change takes effect immediately. The whole-table write is
// guarded by the version token with one conflict retry.
func (s *Store) Update(ctx context.Context, id *access.Identity, recordID string, fields tabular.Row, allowDuplicate bool) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		table, err := s.read(ctx)
		if err != nil {
			return err
		}
		existing := findRecord(table.Rows, recordID)
		if existing == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, recordID)
		}
		if err := access.Authorize(id, access.ActionUpdate, access.ResourceRecord, existing[schema.ColClientID]); err != nil {
			return err
		}
		// A payload that moves the record must be in scope for the target
		// client as well.
		if target := fields[schema.ColClientID]; target != "" && target != existing[schema.ColClientID] {
			if err := access.Authorize(id, access.ActionUpdate, access.ResourceRecord, target); err != nil {
				return err
			}
		}

		merged := existing.Clone()
		for name, val := range fields {
			merged[name] = val
		}
		// Identity and creation audit fields are immutable.
		merged[schema.ColRecordID] = recordID
		merged[schema.ColCreatedBy] = existing[schema.ColCreatedBy]
		merged[schema.ColCreatedAt] = existing[schema.ColCreatedAt]
		merged[schema.ColUpdatedBy] = id.Username
		merged[schema.ColUpdatedAt] = s.now().UTC().Format(time.RFC3339)

		if err := s.reg.ValidateRow(ctx, schema.TableData, merged, s.refs); err != nil {
			return err
		}
		if err := s.checkDuplicate(id, table.Rows, merged, recordID, allowDuplicate); err != nil {
			return err
		}

		rows := tabular.CloneRows(table.Rows)
		for i, row := range rows {
			if row[schema.ColRecordID] == recordID {
				rows[i] = merged
				break
			}
		}
		err = tabular.Retry(ctx, s.RetryAttempts, s.RetryBackoff, func() error {
			_, werr := s.gw.WriteTable(ctx, schema.TableData, rows, table.Version)
			return werr
		})
		if err == nil {
			return nil
		}
		var conflict *tabular.ConflictError
		if !errors.As(err, &conflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *Store) checkDuplicate(id *access.Identity, existing []tabular.Row, row tabular.Row, skipID string, allow bool) error {
	if allow || id.Role == access.RoleAdmin {
		return nil
	}
	def, _ := s.reg.Definition(schema.TableData)
	if pos := schema.FindDuplicate(def, existing, row, skipID); pos >= 0 {
		return &schema.ValidationError{
			Table:      schema.TableData,
			Violations: schema.Violations{"DupKeys": schema.ReasonDuplicate},
		}
	}
	return nil
}

func (s *Store) read(ctx context.Context) (tabular.Table, error) {
	var table tabular.Table
	err := tabular.Retry(ctx, s.RetryAttempts, s.RetryBackoff, func() error {
		var err error
		table, err = s.gw.ReadTable(ctx, schema.TableData)
		return err
	})
	return table, err
}

func findRecord(rows []tabular.Row, recordID string) tabular.Row {
	for _, row := range rows {
		if row[schema.ColRecordID] == recordID {
			return row
		}
	}
	return nil
}
