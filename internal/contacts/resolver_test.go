package contacts

import (
	"context"
	"testing"
	"time"

	"github.com/ritetech/intake/internal/masters"
	"github.com/ritetech/intake/internal/schema"
	"github.com/ritetech/intake/internal/tabular"
)

func newTestResolver() *Resolver {
	m := tabular.NewMemory()
	m.Seed(schema.TableClientContacts, []tabular.Row{
		{
			schema.ColClientID: "C1",
			schema.ColTo:       "billing@clinic-one.example, ops@clinic-one.example",
			schema.ColCC:       "lead@clinic-one.example",
		},
		{
			schema.ColClientID: "C2",
			schema.ColTo:       "desk@clinic-two.example",
		},
	})
	cache := masters.NewCache(m, schema.NewRegistry(), 30*time.Second)
	return NewResolver(cache)
}

func TestRecipients(t *testing.T) {
	r := newTestResolver()
	to, cc, err := r.Recipients(context.Background(), "C1")
	if err != nil {
		t.Fatalf("Recipients: %v", err)
	}
	if len(to) != 2 || to[0] != "billing@clinic-one.example" || to[1] != "ops@clinic-one.example" {
		t.Errorf("to = %v", to)
	}
	if len(cc) != 1 || cc[0] != "lead@clinic-one.example" {
		t.Errorf("cc = %v", cc)
	}
}

func TestRecipients_NoCCRow(t *testing.T) {
	r := newTestResolver()
	to, cc, err := r.Recipients(context.Background(), "C2")
	if err != nil {
		t.Fatalf("Recipients: %v", err)
	}
	if len(to) != 1 || to[0] != "desk@clinic-two.example" {
		t.Errorf("to = %v", to)
	}
	if len(cc) != 0 {
		t.Errorf("cc = %v", cc)
	}
}

func TestRecipients_UnknownClientIsEmpty(t *testing.T) {
	r := newTestResolver()
	to, cc, err := r.Recipients(context.Background(), "C9")
	if err != nil {
		t.Fatalf("unknown client must not error: %v", err)
	}
	if len(to) != 0 || len(cc) != 0 {
		t.Errorf("to = %v, cc = %v", to, cc)
	}
}
