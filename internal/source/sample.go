package source

import (
	"context"
	"sync"
	"time"

	"order-dashboard/internal/adapter"
	"order-dashboard/internal/domain"
)

// Sample serves a fixed in-memory order set. Each instance owns its own copy,
// so status changes made on one never leak into another.
type Sample struct {
	mu     sync.Mutex
	orders []domain.Order
}

func NewSample(orders []domain.Order) *Sample {
	return &Sample{orders: cloneOrders(orders)}
}

// DefaultSampleOrders is the built-in fixture, timestamped relative to now.
func DefaultSampleOrders(now time.Time) []domain.Order {
	recs := []adapter.FallbackRecord{
		{
			ID:          "1",
			TableNumber: domain.Table(5),
			Items: []domain.OrderItem{
				{Name: "Paella Valenciana", Quantity: 2, Variations: "Sin marisco"},
				{Name: "Ensalada César", Quantity: 1},
				{Name: "Agua mineral", Quantity: 3},
			},
			SpecialInstructions: "Cliente alérgico a los frutos de mar",
			Timestamp:           now,
			Status:              domain.StatusPending,
		},
		{
			ID:          "2",
			TableNumber: domain.Table(3),
			Items: []domain.OrderItem{
				{Name: "Hamburguesa completa", Quantity: 1, Variations: "Término medio"},
				{Name: "Patatas bravas", Quantity: 1},
				{Name: "Refresco cola", Quantity: 1},
			},
			Timestamp: now.Add(-10 * time.Minute),
			Status:    domain.StatusPreparing,
		},
		{
			ID: "3",
			Items: []domain.OrderItem{
				{Name: "Pizza Margarita", Quantity: 1},
				{Name: "Tiramisú", Quantity: 2},
			},
			SpecialInstructions: "Para llevar",
			Timestamp:           now.Add(-15 * time.Minute),
			Status:              domain.StatusReady,
		},
		{
			ID:          "4",
			TableNumber: domain.Table(8),
			Items: []domain.OrderItem{
				{Name: "Solomillo", Quantity: 2, Variations: "Uno poco hecho, otro al punto"},
				{Name: "Ensalada mixta", Quantity: 1},
				{Name: "Botella de vino tinto", Quantity: 1, Variations: "Rioja Reserva"},
			},
			Timestamp: now.Add(-5 * time.Minute),
			Status:    domain.StatusPending,
		},
	}
	out := make([]domain.Order, 0, len(recs))
	for _, r := range recs {
		out = append(out, adapter.Normalize(adapter.FromFallback(r)))
	}
	return out
}

func (s *Sample) Name() string { return "sample" }

func (s *Sample) List(context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrders(s.orders), nil
}

func (s *Sample) Create(context.Context, domain.NewOrder) (domain.Order, error) {
	return domain.Order{}, domain.ErrUnsupported
}

func (s *Sample) SetStatus(_ context.Context, id string, status domain.Status, guard Guard) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID != id {
			continue
		}
		if err := guard.check(s.orders[i].Status); err != nil {
			return domain.Order{}, err
		}
		s.orders[i].Status = status
		return cloneOrder(s.orders[i]), nil
	}
	return domain.Order{}, domain.ErrNotFound
}

func (s *Sample) Delete(context.Context, string) error { return domain.ErrUnsupported }

func cloneOrders(in []domain.Order) []domain.Order {
	out := make([]domain.Order, len(in))
	for i, o := range in {
		out[i] = cloneOrder(o)
	}
	return out
}

func cloneOrder(o domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}
