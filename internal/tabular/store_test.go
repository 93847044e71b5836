package tabular

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection, or every pooled connection gets its own empty
	// in-memory database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	store, err := NewStore(db, time.Second)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, db
}

func TestStore_WriteReadRoundTrip(t *testing.T) {
	store, _ := newSQLStore(t)
	ctx := context.Background()

	v, err := store.WriteTable(ctx, "Status", []Row{{"Value": "Open"}, {"Value": "Closed"}}, 0)
	if err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	if v != 1 {
		t.Errorf("version = %d, want 1", v)
	}

	table, err := store.ReadTable(ctx, "Status")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if table.Version != 1 || len(table.Rows) != 2 {
		t.Fatalf("table = %+v", table)
	}
	if table.Rows[0]["Value"] != "Open" || table.Rows[1]["Value"] != "Closed" {
		t.Errorf("store order lost: %v", table.Rows)
	}
}

func TestStore_ConflictCarriesActualVersion(t *testing.T) {
	store, _ := newSQLStore(t)
	ctx := context.Background()

	if _, err := store.WriteTable(ctx, "Status", []Row{{"Value": "Open"}}, 0); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := store.WriteTable(ctx, "Status", []Row{{"Value": "Closed"}}, 1); err != nil {
		t.Fatalf("second write: %v", err)
	}

	_, err := store.WriteTable(ctx, "Status", []Row{{"Value": "Stale"}}, 1)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Expected != 1 || conflict.Actual != 2 {
		t.Errorf("conflict tokens: expected=%d actual=%d, want 1/2", conflict.Expected, conflict.Actual)
	}
}

func TestStore_AppendAdvancesVersion(t *testing.T) {
	store, _ := newSQLStore(t)
	ctx := context.Background()

	table, err := store.ReadTable(ctx, "Data")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if err := store.AppendRows(ctx, "Data", []Row{{"RecordID": "r1"}}); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}

	_, err = store.WriteTable(ctx, "Data", nil, table.Version)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("stale write after append must conflict, got %v", err)
	}

	again, err := store.ReadTable(ctx, "Data")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(again.Rows) != 1 || again.Rows[0]["RecordID"] != "r1" {
		t.Errorf("appended row lost: %v", again.Rows)
	}
}

func TestStore_CorruptRowIsTerminal(t *testing.T) {
	store, db := newSQLStore(t)
	ctx := context.Background()

	bad := tableRow{TableName: "Status", Pos: 0, Data: "{"}
	if err := db.Create(&bad).Error; err != nil {
		t.Fatalf("plant corrupt row: %v", err)
	}

	_, err := store.ReadTable(ctx, "Status")
	if err == nil {
		t.Fatal("corrupt row read as success")
	}
	var te *TransientError
	if errors.As(err, &te) {
		t.Errorf("corrupt data classified as retryable: %v", err)
	}
}

func TestStore_CallerCancellationPassesThrough(t *testing.T) {
	store, _ := newSQLStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.ReadTable(ctx, "Status")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var te *TransientError
	if errors.As(err, &te) {
		t.Errorf("caller cancellation classified as retryable: %v", err)
	}
}
