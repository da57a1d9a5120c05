package source

import (
	"context"
	"fmt"
)

// NotifyChannel is the LISTEN/NOTIFY channel the orders trigger writes to.
const NotifyChannel = "orders_changes"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS orders (
	id                   uuid PRIMARY KEY,
	order_id             text NOT NULL,
	table_number         text NOT NULL DEFAULT 'unknown',
	special_instructions text,
	status               text NOT NULL DEFAULT 'pending'
	                     CHECK (status IN ('pending', 'preparing', 'ready', 'delivered')),
	created_at           timestamptz NOT NULL DEFAULT now(),
	updated_at           timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS order_items (
	id          bigserial PRIMARY KEY,
	order_id    uuid NOT NULL REFERENCES orders (id),
	position    int NOT NULL,
	name        text NOT NULL CHECK (name <> ''),
	quantity    int NOT NULL CHECK (quantity >= 1),
	variations  text,
	created_at  timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS order_items_order_id_idx ON order_items (order_id, position);
CREATE INDEX IF NOT EXISTS orders_created_at_idx ON orders (created_at DESC);

CREATE OR REPLACE FUNCTION notify_orders_changes() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('` + NotifyChannel + `', json_build_object(
		'eventType', TG_OP,
		'new', CASE WHEN TG_OP = 'DELETE' THEN NULL ELSE row_to_json(NEW) END,
		'old', CASE WHEN TG_OP = 'INSERT' THEN NULL ELSE row_to_json(OLD) END
	)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS orders_changes_notify ON orders;
CREATE TRIGGER orders_changes_notify
	AFTER INSERT OR UPDATE OR DELETE ON orders
	FOR EACH ROW EXECUTE FUNCTION notify_orders_changes();
`

// EnsureSchema creates the tables and the change-notify trigger. Safe to rerun.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
