package source

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-dashboard/internal/common/logger"
	"order-dashboard/internal/domain"
	"order-dashboard/internal/lifecycle"
)

const orderUUID = "3f2b8c1e-5d4a-4e7b-9c61-0a1b2c3d4e5f"

var (
	orderCols = []string{"id", "order_id", "table_number", "special_instructions", "status", "created_at", "updated_at"}
	itemCols  = []string{"id", "order_id", "name", "quantity", "variations", "created_at"}
)

func newMockStore(t *testing.T) (*OrdersPG, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewOrdersPG(mock), mock
}

func strptr(s string) *string { return &s }

func TestOrdersPGList(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM orders ORDER BY created_at DESC`).
		WillReturnRows(pgxmock.NewRows(orderCols).
			AddRow(orderUUID, "OD-20240501-007", "5", strptr("sin sal"), "preparing", created, created))
	mock.ExpectQuery(`FROM order_items`).
		WithArgs([]string{orderUUID}).
		WillReturnRows(pgxmock.NewRows(itemCols).
			AddRow("i1", orderUUID, "Paella", 2, strptr("mixta"), created).
			AddRow("i2", orderUUID, "Agua", 1, (*string)(nil), created))

	orders, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, orderUUID, o.ID)
	assert.Equal(t, "OD-20240501-007", o.DisplayID)
	assert.Equal(t, domain.Table(5), o.TableNumber)
	assert.Equal(t, domain.StatusPreparing, o.Status)
	assert.Equal(t, "sin sal", o.SpecialInstructions)
	assert.Equal(t, []domain.OrderItem{
		{Name: "Paella", Quantity: 2, Variations: "mixta"},
		{Name: "Agua", Quantity: 1},
	}, o.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersPGListEmptySkipsItems(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM orders ORDER BY`).WillReturnRows(pgxmock.NewRows(orderCols))

	orders, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersPGCreateWritesOrderAndItemsInOneTx(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(pgxmock.AnyArg(), "OD-20240501-042", "5", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(orderCols).
			AddRow(orderUUID, "OD-20240501-042", "5", strptr("alergia"), "pending", now, now))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(orderUUID, 0, "Paella", 2, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(orderUUID, 1, "Pan", 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`FROM order_items`).
		WithArgs([]string{orderUUID}).
		WillReturnRows(pgxmock.NewRows(itemCols).
			AddRow("i1", orderUUID, "Paella", 2, strptr("mixta"), now).
			AddRow("i2", orderUUID, "Pan", 1, (*string)(nil), now))
	mock.ExpectCommit()

	got, err := store.Create(context.Background(), domain.NewOrder{
		DisplayID:   "OD-20240501-042",
		TableNumber: domain.Table(5),
		Items: []domain.OrderItem{
			{Name: "Paella", Quantity: 2, Variations: "mixta"},
			{Name: "Pan", Quantity: 1},
		},
		SpecialInstructions: "alergia",
	})
	require.NoError(t, err)
	assert.Equal(t, orderUUID, got.ID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, "alergia", got.SpecialInstructions)
	assert.Len(t, got.Items, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersPGCreateRollsBackOnItemFailure(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO orders`).
		WillReturnRows(pgxmock.NewRows(orderCols).
			AddRow(orderUUID, "OD-1", "unknown", (*string)(nil), "pending", now, now))
	mock.ExpectExec(`INSERT INTO order_items`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := store.Create(context.Background(), domain.NewOrder{
		DisplayID: "OD-1",
		Items:     []domain.OrderItem{{Name: "Paella", Quantity: 1}},
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersPGSetStatusGuardsUnderRowLock(t *testing.T) {
	store, mock := newMockStore(t)
	engine := lifecycle.NewEngine(lifecycle.Enforce, logger.Nop())
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM orders WHERE id = \$1 FOR UPDATE`).
		WithArgs(orderUUID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectQuery(`UPDATE orders SET status`).
		WithArgs(orderUUID, "preparing").
		WillReturnRows(pgxmock.NewRows(orderCols).
			AddRow(orderUUID, "OD-1", "3", (*string)(nil), "preparing", now, now))
	mock.ExpectQuery(`FROM order_items`).
		WithArgs([]string{orderUUID}).
		WillReturnRows(pgxmock.NewRows(itemCols).AddRow("i1", orderUUID, "Paella", 1, (*string)(nil), now))
	mock.ExpectCommit()

	got, err := store.SetStatus(context.Background(), orderUUID, domain.StatusPreparing, engine.Guard(domain.StatusPreparing))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreparing, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersPGSetStatusRejectedTransitionRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	engine := lifecycle.NewEngine(lifecycle.Enforce, logger.Nop())

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(orderUUID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectRollback()

	_, err := store.SetStatus(context.Background(), orderUUID, domain.StatusDelivered, engine.Guard(domain.StatusDelivered))
	var te *lifecycle.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.StatusPending, te.From)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersPGSetStatusMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(orderUUID).WillReturnRows(pgxmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	_, err := store.SetStatus(context.Background(), orderUUID, domain.StatusReady, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = store.SetStatus(context.Background(), "not-a-uuid", domain.StatusReady, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrdersPGDeleteRemovesItemsThenOrder(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM order_items WHERE order_id = \$1`).
		WithArgs(orderUUID).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM orders WHERE id = \$1`).
		WithArgs(orderUUID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, store.Delete(context.Background(), orderUUID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersPGDeleteMissingOrder(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM order_items`).WithArgs(orderUUID).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM orders WHERE`).WithArgs(orderUUID).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, store.Delete(context.Background(), orderUUID), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersPGDeleteItemFailureKeepsOrder(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM order_items`).WithArgs(orderUUID).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := store.Delete(context.Background(), orderUUID)
	require.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
