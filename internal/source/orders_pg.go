package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"order-dashboard/internal/adapter"
	"order-dashboard/internal/domain"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// querier is satisfied by both DB and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OrdersPG is the primary store: orders plus order_items in PostgreSQL.
type OrdersPG struct {
	db DB
}

func NewOrdersPG(db DB) *OrdersPG { return &OrdersPG{db: db} }

func (r *OrdersPG) Name() string { return "postgres" }

const orderColumns = `id::text, order_id, table_number, special_instructions, status, created_at, updated_at`

func scanOrder(row pgx.Row) (adapter.StoreRecord, error) {
	var rec adapter.StoreRecord
	err := row.Scan(&rec.ID, &rec.OrderCode, &rec.TableNumber, &rec.SpecialInstructions,
		&rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func (r *OrdersPG) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (adapter.StoreRecord, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	if len(recs) == 0 {
		return []domain.Order{}, nil
	}

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	items, err := loadItems(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(recs))
	for _, rec := range recs {
		rec.Items = items[rec.ID]
		out = append(out, adapter.Normalize(adapter.FromStore(rec)))
	}
	return out, nil
}

func loadItems(ctx context.Context, q querier, orderIDs []string) (map[string][]adapter.StoreItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id::text, order_id::text, name, quantity, variations, created_at
		FROM order_items
		WHERE order_id::text = ANY($1)
		ORDER BY order_id, position
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]adapter.StoreItem, len(orderIDs))
	for rows.Next() {
		var it adapter.StoreItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Name, &it.Quantity, &it.Variations, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func (r *OrdersPG) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var special *string
	if in.SpecialInstructions != "" {
		special = &in.SpecialInstructions
	}
	rec, err := scanOrder(tx.QueryRow(ctx, `
		INSERT INTO orders (id, order_id, table_number, special_instructions, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', now(), now())
		RETURNING `+orderColumns,
		uuid.NewString(), in.DisplayID, in.TableNumber.String(), special,
	))
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	for i, it := range in.Items {
		var variations *string
		if it.Variations != "" {
			v := it.Variations
			variations = &v
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, position, name, quantity, variations, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
		`, rec.ID, i, it.Name, it.Quantity, variations); err != nil {
			return domain.Order{}, fmt.Errorf("failed to insert order item %s: %w", it.Name, err)
		}
	}

	items, err := loadItems(ctx, tx, []string{rec.ID})
	if err != nil {
		return domain.Order{}, err
	}
	rec.Items = items[rec.ID]

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return adapter.Normalize(adapter.FromStore(rec)), nil
}

// SetStatus locks the row, runs guard against the stored status and writes
// the new one in the same transaction.
func (r *OrdersPG) SetStatus(ctx context.Context, id string, status domain.Status, guard Guard) (domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Order{}, domain.ErrNotFound
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("lock order: %w", err)
	}
	if err := guard.check(domain.Status(current)); err != nil {
		return domain.Order{}, err
	}

	rec, err := scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, id, string(status)))
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}
	items, err := loadItems(ctx, tx, []string{rec.ID})
	if err != nil {
		return domain.Order{}, err
	}
	rec.Items = items[rec.ID]

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return adapter.Normalize(adapter.FromStore(rec)), nil
}

// Delete removes the items first, then the order, as one unit.
func (r *OrdersPG) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
