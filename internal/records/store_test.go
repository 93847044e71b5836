package records

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ritetech/intake/internal/access"
	"github.com/ritetech/intake/internal/schema"
	"github.com/ritetech/intake/internal/tabular"
)

type fakeRefs map[string]map[string]bool

func (f fakeRefs) HasRef(_ context.Context, table, value string) (bool, error) {
	return f[table][value], nil
}

func testRefs() fakeRefs {
	return fakeRefs{
		schema.TableClients:    {"C1": true, "C2": true},
		schema.TablePharmacies: {"PH1": true},
		schema.TableStatus:     {"Open": true, "Closed": true},
	}
}

func newTestStore(gw tabular.Gateway) *Store {
	s := NewStore(gw, schema.NewRegistry(), testRefs())
	s.RetryBackoff = time.Millisecond
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("R%03d", n)
	}
	return s
}

func agentIdentity(clients ...string) *access.Identity {
	return &access.Identity{Username: "agent1", Role: access.RoleAgent, Scope: access.NewScope(clients...)}
}

func adminIdentity() *access.Identity {
	return &access.Identity{Username: "root", Role: access.RoleAdmin, Scope: access.AllClients()}
}

func baseFields(clientID string) tabular.Row {
	return tabular.Row{
		schema.ColClientID:       clientID,
		schema.ColPharmacyID:     "PH1",
		schema.ColERXNumber:      "ERX-1",
		schema.ColSubmissionDate: "2026-08-01",
		schema.ColNetAmount:      "120.50",
		schema.ColStatus:         "Open",
	}
}

func TestCreate_AssignsIDAndAudit(t *testing.T) {
	m := tabular.NewMemory()
	s := newTestStore(m)
	agent := agentIdentity("C1")

	id, err := s.Create(context.Background(), agent, baseFields("C1"), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("record ID not assigned")
	}

	recs, err := s.List(context.Background(), agent, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("record listed %d times, want 1", len(recs))
	}
	rec := recs[0]
	if rec.ID != id || rec.ClientID != "C1" || rec.CreatedBy != "agent1" {
		t.Errorf("record = %+v", rec)
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("audit timestamps missing")
	}
}

func TestCreate_OutOfScope(t *testing.T) {
	m := tabular.NewMemory()
	s := newTestStore(m)

	_, err := s.Create(context.Background(), agentIdentity("C1"), baseFields("C2"), false)
	var ae *access.AuthError
	if !errors.As(err, &ae) || ae.Reason != access.ReasonOutOfScope {
		t.Fatalf("expected out_of_scope, got %v", err)
	}
	table, _ := m.ReadTable(context.Background(), schema.TableData)
	if len(table.Rows) != 0 {
		t.Error("rejected create reached the store")
	}
}

func TestCreate_ValidationRejected(t *testing.T) {
	m := tabular.NewMemory()
	s := newTestStore(m)
	fields := baseFields("C1")
	fields[schema.ColStatus] = "NotAStatus"

	_, err := s.Create(context.Background(), agentIdentity("C1"), fields, false)
	var ve *schema.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Violations[schema.ColStatus] != schema.ReasonUnknownReference {
		t.Errorf("violations = %v", ve.Violations)
	}
}

func TestList_ScopeFilters(t *testing.T) {
	m := tabular.NewMemory()
	s := newTestStore(m)
	ctx := context.Background()
	admin := adminIdentity()

	f1 := baseFields("C1")
	f2 := baseFields("C2")
	f2[schema.ColERXNumber] = "ERX-2"
	if _, err := s.Create(ctx, admin, f1, false); err != nil {
		t.Fatalf("Create C1: %v", err)
	}
	if _, err := s.Create(ctx, admin, f2, false); err != nil {
		t.Fatalf("Create C2: %v", err)
	}

	recs, err := s.List(ctx, agentIdentity("C1"), Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].ClientID != "C1" {
		t.Errorf("scoped list = %+v", recs)
	}

	// A filter naming another client cannot widen visibility.
	recs, err = s.List(ctx, agentIdentity("C1"), Filter{ClientID: "C2"})
	if err != nil {
		t.Fatalf("List with foreign filter: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("filter escaped the scope: %+v", recs)
	}

	recs, err = s.List(ctx, admin, Filter{})
	if err != nil {
		t.Fatalf("admin List: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("admin sees %d records, want 2", len(recs))
	}
}

func TestList_StableCreationOrder(t *testing.T) {
	m := tabular.NewMemory()
	s := newTestStore(m)
	ctx := context.Background()
	agent := agentIdentity("C1")

	var want []string
	for i := 0; i < 5; i++ {
		fields := baseFields("C1")
		fields[schema.ColERXNumber] = fmt.Sprintf("ERX-%d", i)
		id, err := s.Create(ctx, agent, fields, false)
		if err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		want = append(want, id)
	}

	for pass := 0; pass < 2; pass++ {
		recs, err := s.List(ctx, agent, Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		for i, rec := range recs {
			if rec.ID != want[i] {
				t.Fatalf("pass %d: position %d = %s, want %s", pass, i, rec.ID, want[i])
			}
		}
	}
}

func TestList_FilterAndSort(t *testing.T) {
	m := tabular.NewMemory()
	s := newTestStore(m)
	ctx := context.Background()
	agent := agentIdentity("C1")

	dates := []string{"2026-08-03", "2026-08-01", "2026-08-02"}
	for i, d := range dates {
		fields := baseFields("C1")
		fields[schema.ColERXNumber] = fmt.Sprintf("ERX-%d", i)
		fields[schema.ColSubmissionDate] = d
		if i == 0 {
			fields[schema.ColStatus] = "Closed"
		}
		if _, err := s.Create(ctx, agent, fields, false); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	recs, err := s.List(ctx, agent, Filter{Status: "Open"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("status filter kept %d records, want 2", len(recs))
	}

	from, _ := time.Parse("2006-01-02", "2026-08-02")
	recs, err = s.List(ctx, agent, Filter{From: from, SortBy: schema.ColSubmissionDate})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("date filter kept %d records, want 2", len(recs))
	}
	if recs[0].Fields[schema.ColSubmissionDate] != "2026-08-02" {
		t.Errorf("sort order wrong: %+v", recs)
	}
}

func TestCreate_DuplicateSignature(t *testing.T) {
	m := tabular.NewMemory()
	s := newTestStore(m)
	ctx := context.Background()
	agent := agentIdentity("C1")

	if _, err := s.Create(ctx, agent, baseFields("C1"), false); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := s.Create(ctx, agent, baseFields("C1"), false)
	var ve *schema.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if ve.Violations["DupKeys"] != schema.ReasonDuplicate {
		t.Errorf("violations = %v", ve.Violations)
	}

	// Explicit override and Admin both bypass the check.
	if _, err := s.Create(ctx, agent, baseFields("C1"), true); err != nil {
		t.Errorf("allowDuplicate override failed: %v", err)
	}
	if _, err := s.Create(ctx, adminIdentity(), baseFields("C1"), false); err != nil {
		t.Errorf("admin duplicate bypass failed: %v", err)
	}
}

func TestGet(t *testing.T) {
	m := tabular.NewMemory()
	s := newTestStore(m)
	ctx := context.Background()
	admin := adminIdentity()

	id, err := s.Create(ctx, admin, baseFields("C2"), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec, err := s.Get(ctx, admin, id)
	if err != nil || rec.ID != id {
		t.Fatalf("Get = %+v, %v", rec, err)
	}

	if _, err := s.Get(ctx, admin, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Existence of an out-of-scope record is not revealed as not-found; it
	// is an authorization failure.
	_, err = s.Get(ctx, agentIdentity("C1"), id)
	var ae *access.AuthError
	if !errors.As(err, &ae) || ae.Reason != access.ReasonOutOfScope {
		t.Errorf("expected out_of_scope, got %v", err)
	}
}

func TestUpdate_MergesAndPreservesAudit(t *testing.T) {
	m := tabular.NewMemory()
	s := newTestStore(m)
	ctx := context.Background()
	agent := agentIdentity("C1")

	id, err := s.Create(ctx, agent, baseFields("C1"), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	created, _ := s.Get(ctx, agent, id)

	manager := &access.Identity{Username: "mgr1", Role: access.RoleManager, Scope: access.NewScope("C1")}
	err = s.Update(ctx, manager, id, tabular.Row{schema.ColStatus: "Closed"}, false)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	rec, _ := s.Get(ctx, agent, id)
	if rec.Status != "Closed" {
		t.Errorf("status = %s", rec.Status)
	}
	if rec.Fields[schema.ColERXNumber] != "ERX-1" {
		t.Error("untouched field lost in merge")
	}
	if rec.CreatedBy != "agent1" || !rec.CreatedAt.Equal(created.CreatedAt) {
		t.Error("creation audit fields changed on update")
	}
	if rec.UpdatedBy != "mgr1" {
		t.Errorf("UpdatedBy = %s", rec.UpdatedBy)
	}
}

func TestUpdate_ScopeCheckedAtUpdateTime(t *testing.T) {
	m := tabular.NewMemory()
	s := newTestStore(m)
	ctx := context.Background()

	id, err := s.Create(ctx, agentIdentity("C1"), baseFields("C1"), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The same user whose scope no longer covers C1 is refused, even
	// though they created the record.
	narrowed := agentIdentity("C2")
	err = s.Update(ctx, narrowed, id, tabular.Row{schema.ColStatus: "Closed"}, false)
	var ae *access.AuthError
	if !errors.As(err, &ae) || ae.Reason != access.ReasonOutOfScope {
		t.Fatalf("expected out_of_scope, got %v", err)
	}
}

func TestUpdate_MoveNeedsTargetScope(t *testing.T) {
	m := tabular.NewMemory()
	s := newTestStore(m)
	ctx := context.Background()

	id, err := s.Create(ctx, agentIdentity("C1"), baseFields("C1"), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	err = s.Update(ctx, agentIdentity("C1"), id, tabular.Row{schema.ColClientID: "C2"}, false)
	var ae *access.AuthError
	if !errors.As(err, &ae) || ae.Reason != access.ReasonOutOfScope {
		t.Fatalf("expected out_of_scope for target client, got %v", err)
	}

	if err := s.Update(ctx, agentIdentity("C1", "C2"), id, tabular.Row{schema.ColClientID: "C2"}, false); err != nil {
		t.Fatalf("in-scope move failed: %v", err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	m := tabular.NewMemory()
	s := newTestStore(m)
	err := s.Update(context.Background(), adminIdentity(), "ghost", tabular.Row{schema.ColStatus: "Closed"}, false)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// racingGateway bumps the table version just before each of the first n
// writes, forcing the caller's token stale.
type racingGateway struct {
	*tabular.Memory
	races int
}

func (g *racingGateway) WriteTable(ctx context.Context, name string, rows []tabular.Row, expectedVersion int64) (int64, error) {
	if g.races > 0 {
		g.races--
		current, err := g.Memory.ReadTable(ctx, name)
		if err != nil {
			return 0, err
		}
		if _, err := g.Memory.WriteTable(ctx, name, current.Rows, current.Version); err != nil {
			return 0, err
		}
	}
	return g.Memory.WriteTable(ctx, name, rows, expectedVersion)
}

func TestUpdate_RetriesOnceOnConflict(t *testing.T) {
	m := tabular.NewMemory()
	gw := &racingGateway{Memory: m}
	s := newTestStore(gw)
	ctx := context.Background()
	agent := agentIdentity("C1")

	id, err := s.Create(ctx, agent, baseFields("C1"), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	gw.races = 1
	if err := s.Update(ctx, agent, id, tabular.Row{schema.ColStatus: "Closed"}, false); err != nil {
		t.Fatalf("update lost a winnable race: %v", err)
	}

	gw.races = 5
	err = s.Update(ctx, agent, id, tabular.Row{schema.ColStatus: "Open"}, false)
	var conflict *tabular.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError after retry budget, got %v", err)
	}
}

// flakyWriteGateway fails the first n whole-table writes with a
// transient error while leaving reads and appends untouched.
type flakyWriteGateway struct {
	*tabular.Memory
	writeFails int
}

func (g *flakyWriteGateway) WriteTable(ctx context.Context, name string, rows []tabular.Row, expectedVersion int64) (int64, error) {
	if g.writeFails > 0 {
		g.writeFails--
		return 0, &tabular.TransientError{Op: "write", Table: name, Err: errors.New("injected failure")}
	}
	return g.Memory.WriteTable(ctx, name, rows, expectedVersion)
}

func TestUpdate_RetriesTransientWrite(t *testing.T) {
	m := tabular.NewMemory()
	gw := &flakyWriteGateway{Memory: m}
	s := newTestStore(gw)
	ctx := context.Background()
	agent := agentIdentity("C1")

	id, err := s.Create(ctx, agent, baseFields("C1"), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	gw.writeFails = 2
	if err := s.Update(ctx, agent, id, tabular.Row{schema.ColStatus: "Closed"}, false); err != nil {
		t.Fatalf("transient write failure not retried: %v", err)
	}
	rec, err := s.Get(ctx, agent, id)
	if err != nil || rec.Status != "Closed" {
		t.Fatalf("record after update = %+v, %v", rec, err)
	}
}

func TestCreate_SurvivesTransientFailures(t *testing.T) {
	m := tabular.NewMemory()
	s := newTestStore(m)

	m.FailNext(2)
	if _, err := s.Create(context.Background(), agentIdentity("C1"), baseFields("C1"), false); err != nil {
		t.Fatalf("Create should recover via retry: %v", err)
	}
}
