// Package contacts resolves the prefill recipients for outgoing
// communication about a client's records. It only supplies addresses:
// composing and transporting the message belong to the caller.
package contacts

import (
	"context"

	"github.com/ritetech/intake/internal/masters"
	"github.com/ritetech/intake/internal/schema"
)

// Resolver looks up To/CC recipients from the ClientContacts master.
type Resolver struct {
	cache *masters.Cache
}

func NewResolver(cache *masters.Cache) *Resolver {
	return &Resolver{cache: cache}
}

// Recipients returns the ordered To and CC lists for a client. A client
// without a contact row resolves to empty lists, not an error: the
// prefill is best-effort by contract.
func (r *Resolver) Recipients(ctx context.Context, clientID string) (to, cc []string, err error) {
	rows, err := r.cache.Get(ctx, schema.TableClientContacts)
	if err != nil {
		return nil, nil, err
	}
	for _, row := range rows {
		if row[schema.ColClientID] == clientID {
			return schema.SplitList(row[schema.ColTo]), schema.SplitList(row[schema.ColCC]), nil
		}
	}
	return []string{}, []string{}, nil
}
