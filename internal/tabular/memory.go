package tabular

import (
	"context"
	"errors"
	"sync"
)

// Memory is an in-process Gateway used by tests and single-user dev runs.
// It honours the same version semantics as Store and can be told to fail
// upcoming calls to exercise retry paths.
type Memory struct {
	mu       sync.Mutex
	tables   map[string]*memTable
	failNext int
}

type memTable struct {
	rows    []Row
	version int64
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memTable)}
}

// FailNext makes the next n gateway calls fail with a *TransientError.
func (m *Memory) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// Seed loads fixture rows into a table, advancing its version.
func (m *Memory) Seed(name string, rows []Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.table(name)
	t.rows = append(t.rows, CloneRows(rows)...)
	t.version++
}

// Version reports a table's current version token.
func (m *Memory) Version(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table(name).version
}

func (m *Memory) ReadTable(ctx context.Context, name string) (Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.maybeFail(ctx, "read", name); err != nil {
		return Table{}, err
	}
	t := m.table(name)
	return Table{Name: name, Rows: CloneRows(t.rows), Version: t.version}, nil
}

func (m *Memory) WriteTable(ctx context.Context, name string, rows []Row, expectedVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.maybeFail(ctx, "write", name); err != nil {
		return 0, err
	}
	t := m.table(name)
	if t.version != expectedVersion {
		return 0, &ConflictError{Table: name, Expected: expectedVersion, Actual: t.version}
	}
	t.rows = CloneRows(rows)
	t.version++
	return t.version, nil
}

func (m *Memory) AppendRows(ctx context.Context, name string, rows []Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.maybeFail(ctx, "append", name); err != nil {
		return err
	}
	t := m.table(name)
	t.rows = append(t.rows, CloneRows(rows)...)
	t.version++
	return nil
}

// table returns the named table, creating it empty at version 0. Callers
// hold m.mu.
func (m *Memory) table(name string) *memTable {
	t, ok := m.tables[name]
	if !ok {
		t = &memTable{}
		m.tables[name] = t
	}
	return t
}

func (m *Memory) maybeFail(ctx context.Context, op, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failNext > 0 {
		m.failNext--
		return &TransientError{Op: op, Table: name, Err: errors.New("injected failure")}
	}
	return nil
}
