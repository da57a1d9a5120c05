// Package source contains the three order data sources the gateway tiers
// over: the PostgreSQL store, the local HTTP API and the fixed sample set.
package source

import (
	"context"

	"order-dashboard/internal/domain"
)

// Guard is evaluated against the status a source currently holds before a
// status write. A nil Guard allows every write.
type Guard func(current domain.Status) error

// Source is one tier. Errors other than domain.ErrNotFound,
// domain.ErrUnsupported and guard errors mean the tier is unavailable.
type Source interface {
	Name() string
	List(ctx context.Context) ([]domain.Order, error)
	Create(ctx context.Context, in domain.NewOrder) (domain.Order, error)
	SetStatus(ctx context.Context, id string, status domain.Status, guard Guard) (domain.Order, error)
	Delete(ctx context.Context, id string) error
}

func (g Guard) check(current domain.Status) error {
	if g == nil {
		return nil
	}
	return g(current)
}
