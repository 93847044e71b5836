package tabular

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// tableRow is the storage shape of one logical row. Data holds the
// JSON-encoded column map; Pos preserves store order.
type tableRow struct {
	ID        uint   `gorm:"primaryKey"`
	TableName string `gorm:"size:128;index;not null"`
	Pos       int64  `gorm:"not null"`
	Data      string `gorm:"not null"`
}

// tableVersion carries the per-table version token. Every mutation bumps
// it; whole-table writes additionally guard on it.
type tableVersion struct {
	TableName string `gorm:"primaryKey;size:128"`
	Version   int64  `gorm:"not null"`
}

// errConflict signals a version mismatch out of a transaction closure so
// the surrounding call can build a *ConflictError instead of wrapping it
// as transient.
var errConflict = errors.New("tabular: version mismatch")

// errCorrupt marks a stored row that cannot be decoded. Terminal:
// retrying cannot repair stored data.
var errCorrupt = errors.New("tabular: corrupt stored row")

// classify maps a transaction failure onto the error taxonomy: caller
// cancellation and corrupt stored data are terminal, everything else is
// a retryable store failure. parent is the caller's context, before the
// per-call timeout was attached.
func classify(parent context.Context, op, name string, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}
	if errors.Is(err, errCorrupt) {
		return err
	}
	return &TransientError{Op: op, Table: name, Err: err}
}

// Store is the SQL-backed Gateway. It keeps every logical table in two
// shared SQL tables (rows + versions), mirroring the hosted store's
// sheet-of-text-cells shape rather than one SQL schema per table.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewStore migrates the two backing tables and returns a ready Store.
// timeout bounds each gateway call; zero selects a 10s default.
func NewStore(db *gorm.DB, timeout time.Duration) (*Store, error) {
	if err := db.AutoMigrate(&tableRow{}, &tableVersion{}); err != nil {
		return nil, fmt.Errorf("migrate gateway tables: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{db: db, timeout: timeout}, nil
}

func (s *Store) ReadTable(parent context.Context, name string) (Table, error) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	out := Table{Name: name}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ver, err := currentVersion(tx, name)
		if err != nil {
			return err
		}
		var stored []tableRow
		if err := tx.Order("pos").Find(&stored, "table_name = ?", name).Error; err != nil {
			return err
		}
		rows := make([]Row, 0, len(stored))
		for _, sr := range stored {
			var r Row
			if err := json.Unmarshal([]byte(sr.Data), &r); err != nil {
				return fmt.Errorf("%w at pos %d: %v", errCorrupt, sr.Pos, err)
			}
			rows = append(rows, r)
		}
		out.Rows = rows
		out.Version = ver
		return nil
	})
	if err != nil {
		return Table{}, classify(parent, "read", name, err)
	}
	return out, nil
}

func (s *Store) WriteTable(parent context.Context, name string, rows []Row, expectedVersion int64) (int64, error) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	var newVersion int64
	var actual int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ver, err := ensureVersion(tx, name)
		if err != nil {
			return err
		}
		if ver != expectedVersion {
			actual = ver
			return errConflict
		}
		if err := tx.Delete(&tableRow{}, "table_name = ?", name).Error; err != nil {
			return err
		}
		if err := insertRows(tx, name, rows, 0); err != nil {
			return err
		}
		newVersion = ver + 1
		if err := bumpVersion(tx, name, ver, newVersion); err != nil {
			if errors.Is(err, errConflict) {
				if cur, verr := currentVersion(tx, name); verr == nil {
					actual = cur
				}
			}
			return err
		}
		return nil
	})
	if errors.Is(err, errConflict) {
		return 0, &ConflictError{Table: name, Expected: expectedVersion, Actual: actual}
	}
	if err != nil {
		return 0, classify(parent, "write", name, err)
	}
	return newVersion, nil
}

func (s *Store) AppendRows(parent context.Context, name string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ver, err := ensureVersion(tx, name)
		if err != nil {
			return err
		}
		var maxPos int64
		row := tx.Model(&tableRow{}).Where("table_name = ?", name).Select("COALESCE(MAX(pos), -1)").Row()
		if err := row.Scan(&maxPos); err != nil {
			return err
		}
		if err := insertRows(tx, name, rows, maxPos+1); err != nil {
			return err
		}
		return bumpVersion(tx, name, ver, ver+1)
	})
	if err != nil {
		return classify(parent, "append", name, err)
	}
	return nil
}

func currentVersion(tx *gorm.DB, name string) (int64, error) {
	var ver tableVersion
	err := tx.First(&ver, "table_name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ver.Version, nil
}

// ensureVersion reads the version row, creating it at 0 for a table seen
// for the first time.
func ensureVersion(tx *gorm.DB, name string) (int64, error) {
	var ver tableVersion
	err := tx.First(&ver, "table_name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ver = tableVersion{TableName: name, Version: 0}
		if err := tx.Create(&ver).Error; err != nil {
			return 0, err
		}
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ver.Version, nil
}

func bumpVersion(tx *gorm.DB, name string, from, to int64) error {
	res := tx.Model(&tableVersion{}).
		Where("table_name = ? AND version = ?", name, from).
		Update("version", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return errConflict
	}
	return nil
}

func insertRows(tx *gorm.DB, name string, rows []Row, startPos int64) error {
	if len(rows) == 0 {
		return nil
	}
	stored := make([]tableRow, len(rows))
	for i, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		stored[i] = tableRow{TableName: name, Pos: startPos + int64(i), Data: string(data)}
	}
	return tx.Create(&stored).Error
}
