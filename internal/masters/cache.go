// Package masters keeps an in-process snapshot of each reference table
// and pushes edits back through the gateway with optimistic concurrency.
// Reference tables are edited rarely and read often; the snapshot is
// short-lived and treated as potentially stale at the start of every
// write.
package masters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ritetech/intake/internal/schema"
	"github.com/ritetech/intake/internal/tabular"
)

// ErrNotFound reports a keyed row absent from a master table.
var ErrNotFound = errors.New("masters: row not found")

// Cache is a read-through, write-through view of the master tables. One
// snapshot per table with the version token seen at fetch time; reads
// refresh synchronously once the snapshot is older than the staleness
// threshold.
type Cache struct {
	gw  tabular.Gateway
	reg *schema.Registry

	staleness time.Duration

	// RetryAttempts and RetryBackoff govern transient-failure retries on
	// gateway calls. Defaults match the original tool's retry helper.
	RetryAttempts int
	RetryBackoff  time.Duration

	mu    sync.RWMutex
	snaps map[string]*snapshot
	now   func() time.Time
}

type snapshot struct {
	rows      []tabular.Row
	version   int64
	fetchedAt time.Time
}

// NewCache builds a cache over the gateway. staleness bounds how old a
// snapshot may be before a read refreshes it; zero selects 30s.
func NewCache(gw tabular.Gateway, reg *schema.Registry, staleness time.Duration) *Cache {
	if staleness <= 0 {
		staleness = 30 * time.Second
	}
	return &Cache{
		gw:            gw,
		reg:           reg,
		staleness:     staleness,
		RetryAttempts: 3,
		RetryBackoff:  300 * time.Millisecond,
		snaps:         make(map[string]*snapshot),
		now:           time.Now,
	}
}

// Get returns the rows of a master table, refreshing the snapshot first
// when it is missing or older than the staleness threshold. A failed
// refresh is surfaced, never papered over with stale rows.
func (c *Cache) Get(ctx context.Context, table string) ([]tabular.Row, error) {
	if _, ok := c.reg.Definition(table); !ok {
		return nil, fmt.Errorf("masters: unknown table %q", table)
	}
	c.mu.RLock()
	snap, ok := c.snaps[table]
	fresh := ok && c.now().Sub(snap.fetchedAt) < c.staleness
	c.mu.RUnlock()
	if fresh {
		return tabular.CloneRows(snap.rows), nil
	}
	snap, err := c.refresh(ctx, table)
	if err != nil {
		return nil, err
	}
	return tabular.CloneRows(snap.rows), nil
}

// Version reports the last-seen version token of a table, fetching the
// table if it has never been read.
func (c *Cache) Version(ctx context.Context, table string) (int64, error) {
	c.mu.RLock()
	snap, ok := c.snaps[table]
	c.mu.RUnlock()
	if ok {
		return snap.version, nil
	}
	snap, err := c.refresh(ctx, table)
	if err != nil {
		return 0, err
	}
	return snap.version, nil
}

// Users adapts the Users table for the authenticator.
func (c *Cache) Users(ctx context.Context) ([]tabular.Row, error) {
	return c.Get(ctx, schema.TableUsers)
}

// HasRef implements schema.RefSource: membership of value in the key
// column of a reference table.
func (c *Cache) HasRef(ctx context.Context, table, value string) (bool, error) {
	def, ok := c.reg.Definition(table)
	if !ok || def.Key == "" {
		return false, fmt.Errorf("masters: %q is not a keyed reference table", table)
	}
	rows, err := c.Get(ctx, table)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row[def.Key] == value {
			return true, nil
		}
	}
	return false, nil
}

// Upsert validates a row and merges it into its table under the
// optimistic protocol: read version, merge, write with the expected
// token; on conflict re-read, re-merge and retry once, then surface the
// conflict. A row that fails validation touches neither the store nor
// the snapshot.
func (c *Cache) Upsert(ctx context.Context, table string, row tabular.Row) error {
	def, ok := c.reg.Definition(table)
	if !ok {
		return fmt.Errorf("masters: unknown table %q", table)
	}
	if def.Key == "" {
		return fmt.Errorf("masters: table %q has no key column", table)
	}
	if err := c.reg.ValidateRow(ctx, table, row, c); err != nil {
		return err
	}
	return c.rewrite(ctx, table, func(rows []tabular.Row) ([]tabular.Row, error) {
		return mergeRow(def.Key, rows, row), nil
	})
}

// Delete removes the row keyed by keyValue. Removal is an explicit admin
// action; there is no silent deletion anywhere else.
func (c *Cache) Delete(ctx context.Context, table string, keyValue string) error {
	def, ok := c.reg.Definition(table)
	if !ok {
		return fmt.Errorf("masters: unknown table %q", table)
	}
	if def.Key == "" {
		return fmt.Errorf("masters: table %q has no key column", table)
	}
	return c.rewrite(ctx, table, func(rows []tabular.Row) ([]tabular.Row, error) {
		out := rows[:0]
		found := false
		for _, r := range rows {
			if r[def.Key] == keyValue {
				found = true
				continue
			}
			out = append(out, r)
		}
		if !found {
			return nil, fmt.Errorf("%w: %s %q", ErrNotFound, table, keyValue)
		}
		return out, nil
	})
}

// rewrite runs the read-transform-write cycle with one conflict retry.
// Both legs get the bounded transient retry; a write retried after an
// unnoticed commit loses the version check and falls into the conflict
// path, which re-merges.
func (c *Cache) rewrite(ctx context.Context, table string, transform func([]tabular.Row) ([]tabular.Row, error)) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		current, err := c.read(ctx, table)
		if err != nil {
			return err
		}
		merged, err := transform(tabular.CloneRows(current.Rows))
		if err != nil {
			return err
		}
		var newVersion int64
		err = tabular.Retry(ctx, c.RetryAttempts, c.RetryBackoff, func() error {
			var werr error
			newVersion, werr = c.gw.WriteTable(ctx, table, merged, current.Version)
			return werr
		})
		if err == nil {
			c.store(table, merged, newVersion)
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

// refresh fetches a table through the gateway with bounded retries and
// installs the snapshot.
func (c *Cache) refresh(ctx context.Context, table string) (*snapshot, error) {
	current, err := c.read(ctx, table)
	if err != nil {
		return nil, err
	}
	return c.store(table, current.Rows, current.Version), nil
}

func (c *Cache) read(ctx context.Context, table string) (tabular.Table, error) {
	var current tabular.Table
	err := tabular.Retry(ctx, c.RetryAttempts, c.RetryBackoff, func() error {
		var err error
		current, err = c.gw.ReadTable(ctx, table)
		return err
	})
	return current, err
}

func (c *Cache) store(table string, rows []tabular.Row, version int64) *snapshot {
	snap := &snapshot{rows: tabular.CloneRows(rows), version: version, fetchedAt: c.now()}
	c.mu.Lock()
	c.snaps[table] = snap
	c.mu.Unlock()
	return snap
}

// mergeRow replaces the row sharing the key value in place, preserving
// store order, or appends when the key is new.
func mergeRow(key string, rows []tabular.Row, row tabular.Row) []tabular.Row {
	for i, existing := range rows {
		if existing[key] == row[key] {
			rows[i] = row.Clone()
			return rows
		}
	}
	return append(rows, row.Clone())
}
