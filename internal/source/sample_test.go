package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-dashboard/internal/domain"
	"order-dashboard/internal/lifecycle"
)

func TestDefaultSampleOrders(t *testing.T) {
	now := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	orders := DefaultSampleOrders(now)

	require.Len(t, orders, 4)
	assert.Equal(t, "ORDER-1", orders[0].DisplayID)
	assert.Equal(t, now, orders[0].CreatedAt)
	assert.False(t, orders[2].TableNumber.Known())
	for _, o := range orders {
		assert.NotEmpty(t, o.Items, "order %s", o.ID)
		assert.True(t, o.Status.Valid())
	}
}

func TestSampleInstancesAreIsolated(t *testing.T) {
	ctx := context.Background()
	fixture := DefaultSampleOrders(time.Now())
	a := NewSample(fixture)
	b := NewSample(fixture)

	_, err := a.SetStatus(ctx, "1", domain.StatusPreparing, nil)
	require.NoError(t, err)

	listA, _ := a.List(ctx)
	listB, _ := b.List(ctx)
	assert.Equal(t, domain.StatusPreparing, listA[0].Status)
	assert.Equal(t, domain.StatusPending, listB[0].Status)
	assert.Equal(t, domain.StatusPending, fixture[0].Status)
}

func TestSampleListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewSample(DefaultSampleOrders(time.Now()))

	list, _ := s.List(ctx)
	list[0].Items[0].Name = "mutated"

	again, _ := s.List(ctx)
	assert.Equal(t, "Paella Valenciana", again[0].Items[0].Name)
}

func TestSampleSetStatusRunsGuard(t *testing.T) {
	ctx := context.Background()
	s := NewSample(DefaultSampleOrders(time.Now()))
	engine := lifecycle.NewEngine(lifecycle.Enforce, nil)

	_, err := s.SetStatus(ctx, "3", domain.StatusPending, engine.Guard(domain.StatusPending))
	var te *lifecycle.TransitionError
	require.True(t, errors.As(err, &te))

	got, err := s.SetStatus(ctx, "3", domain.StatusDelivered, engine.Guard(domain.StatusDelivered))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, got.Status)

	_, err = s.SetStatus(ctx, "99", domain.StatusReady, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSampleRejectsCreateAndDelete(t *testing.T) {
	s := NewSample(nil)
	_, err := s.Create(context.Background(), domain.NewOrder{})
	assert.ErrorIs(t, err, domain.ErrUnsupported)
	assert.ErrorIs(t, s.Delete(context.Background(), "1"), domain.ErrUnsupported)
}
