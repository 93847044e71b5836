package tabular

import (
	"context"
	"errors"
	"testing"
)

func TestMemory_ReadEmptyTable(t *testing.T) {
	m := NewMemory()
	table, err := m.ReadTable(context.Background(), "Status")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(table.Rows) != 0 || table.Version != 0 {
		t.Errorf("expected empty table at version 0, got %d rows at %d", len(table.Rows), table.Version)
	}
}

func TestMemory_WriteVersionGuard(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	v1, err := m.WriteTable(ctx, "Status", []Row{{"Value": "Open"}}, 0)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	if v1 != 1 {
		t.Errorf("expected version 1, got %d", v1)
	}

	// A writer still holding version 0 must lose.
	_, err = m.WriteTable(ctx, "Status", []Row{{"Value": "Stale"}}, 0)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Expected != 0 || conflict.Actual != 1 {
		t.Errorf("conflict tokens: expected=%d actual=%d", conflict.Expected, conflict.Actual)
	}

	// The winning write must not have been overwritten.
	table, err := m.ReadTable(ctx, "Status")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(table.Rows) != 1 || table.Rows[0]["Value"] != "Open" {
		t.Errorf("first writer's rows were lost: %v", table.Rows)
	}
}

func TestMemory_AppendAdvancesVersion(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	table, _ := m.ReadTable(ctx, "Data")
	if err := m.AppendRows(ctx, "Data", []Row{{"RecordID": "r1"}}); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}

	// A whole-table writer that read before the append must conflict
	// instead of silently dropping the appended row.
	_, err := m.WriteTable(ctx, "Data", nil, table.Version)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError after append, got %v", err)
	}
}

func TestMemory_ReadReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Seed("Status", []Row{{"Value": "Open"}})

	table, _ := m.ReadTable(ctx, "Status")
	table.Rows[0]["Value"] = "mutated"

	again, _ := m.ReadTable(ctx, "Status")
	if again.Rows[0]["Value"] != "Open" {
		t.Error("mutating a read result leaked into the store")
	}
}

func TestMemory_FailNext(t *testing.T) {
	m := NewMemory()
	m.FailNext(1)

	_, err := m.ReadTable(context.Background(), "Status")
	var te *TransientError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransientError, got %v", err)
	}
	if _, err := m.ReadTable(context.Background(), "Status"); err != nil {
		t.Errorf("second read should succeed, got %v", err)
	}
}
