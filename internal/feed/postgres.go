package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"order-dashboard/internal/adapter"
	"order-dashboard/internal/common/logger"
	"order-dashboard/internal/domain"
	"order-dashboard/internal/source"
)

// PGListener subscribes to the orders trigger channel on a dedicated pool
// connection.
type PGListener struct {
	pool    *pgxpool.Pool
	channel string
	logger  *logger.Logger
}

func NewPGListener(pool *pgxpool.Pool, lg *logger.Logger) *PGListener {
	if lg == nil {
		lg = logger.Nop()
	}
	return &PGListener{pool: pool, channel: source.NotifyChannel, logger: lg}
}

func (l *PGListener) Subscribe(ctx context.Context) (Subscription, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", l.channel, err)
	}

	s, sctx := newStream(ctx)
	go func() {
		var runErr error
		defer func() {
			if !conn.Conn().IsClosed() {
				_, _ = conn.Exec(context.Background(), "UNLISTEN *")
			}
			conn.Release()
			s.finish(runErr)
		}()
		for {
			n, err := conn.Conn().WaitForNotification(sctx)
			if err != nil {
				if sctx.Err() == nil {
					runErr = err
				}
				return
			}
			ev, err := DecodeStoreEvent([]byte(n.Payload))
			if err != nil {
				l.logger.Warn("feed_decode_failed", err, map[string]any{"channel": n.Channel})
				continue
			}
			if !s.send(sctx, ev) {
				return
			}
		}
	}()
	return s, nil
}

type storeEvent struct {
	EventType string               `json:"eventType"`
	New       *adapter.StoreRecord `json:"new"`
	Old       *adapter.StoreRecord `json:"old"`
}

// DecodeStoreEvent parses a trigger payload whose rows are store-shaped.
func DecodeStoreEvent(payload []byte) (domain.ChangeEvent, error) {
	var raw storeEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("decode store event: %w", err)
	}
	et, ok := domain.ParseEventType(raw.EventType)
	if !ok {
		return domain.ChangeEvent{}, fmt.Errorf("decode store event: unknown event type %q", raw.EventType)
	}
	ev := domain.ChangeEvent{Type: et}
	if raw.New != nil {
		o := adapter.Normalize(adapter.FromStore(*raw.New))
		ev.New = &o
	}
	if raw.Old != nil {
		o := adapter.Normalize(adapter.FromStore(*raw.Old))
		ev.Old = &o
	}
	if ev.OrderID() == "" {
		return domain.ChangeEvent{}, errors.New("decode store event: no order id")
	}
	return ev, nil
}
