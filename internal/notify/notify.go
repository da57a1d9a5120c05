// Package notify carries user-facing notices: the on-screen board with its
// auto-hide timer, and sinks that forward notices to the log or RabbitMQ.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"order-dashboard/internal/common/logger"
	"order-dashboard/internal/common/mq"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

type Notification struct {
	Kind       Kind      `json:"type"`
	Message    string    `json:"message"`
	OrderID    string    `json:"order_id,omitempty"`
	Persistent bool      `json:"persistent,omitempty"`
	At         time.Time `json:"timestamp"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Multi fans a notification out to every non-nil notifier.
func Multi(ns ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, n Notification) {
		for _, x := range ns {
			if x != nil {
				x.Notify(ctx, n)
			}
		}
	})
}

type Log struct{ Logger *logger.Logger }

func (l Log) Notify(_ context.Context, n Notification) {
	l.Logger.Info("notification", map[string]any{
		"kind": n.Kind, "text": n.Message, "order_id": n.OrderID, "persistent": n.Persistent,
	})
}

// NotificationsExchange is the fanout exchange user notices are published on.
const NotificationsExchange = "notifications_fanout"

type publisher interface {
	Publish(ctx context.Context, exchange, key string, body []byte, headers map[string]any) error
}

// AMQP publishes notices to NotificationsExchange. Failures are logged and
// dropped.
type AMQP struct {
	pub    publisher
	source string
	logger *logger.Logger
}

func NewAMQP(client *mq.Client, source string, lg *logger.Logger) *AMQP {
	return &AMQP{pub: mqPublisher{client}, source: source, logger: lg}
}

func (a *AMQP) Notify(ctx context.Context, n Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		a.logger.Error("notification_marshal_failed", err, nil)
		return
	}
	if err := a.pub.Publish(ctx, NotificationsExchange, "", body, map[string]any{"x-source": a.source}); err != nil {
		a.logger.Error("notification_publish_failed", err, map[string]any{"text": n.Message})
	}
}

// Consume feeds notices read from deliveries into sink until ctx ends or the
// delivery channel closes.
func Consume(ctx context.Context, deliveries <-chan amqp.Delivery, sink Notifier, lg *logger.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("notification deliveries closed")
			}
			var n Notification
			if err := json.Unmarshal(d.Body, &n); err != nil {
				lg.Warn("notification_decode_failed", err, map[string]any{"message_id": d.MessageId})
				continue
			}
			sink.Notify(ctx, n)
		}
	}
}

type mqPublisher struct{ c *mq.Client }

func (p mqPublisher) Publish(ctx context.Context, exchange, key string, body []byte, headers map[string]any) error {
	return p.c.Publish(ctx, exchange, key, body, headers)
}

// Board holds the single visible notification. Non-persistent ones hide
// themselves after ttl; a persistent one stays until replaced or dismissed.
type Board struct {
	ttl      time.Duration
	onChange func()

	mu      sync.Mutex
	current *Notification
	timer   *time.Timer
	gen     uint64
	closed  bool
}

func NewBoard(ttl time.Duration, onChange func()) *Board {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &Board{ttl: ttl, onChange: onChange}
}

func (b *Board) Notify(_ context.Context, n Notification) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	b.stopTimerLocked()
	b.gen++
	b.current = &n
	if !n.Persistent {
		gen := b.gen
		b.timer = time.AfterFunc(b.ttl, func() { b.expire(gen) })
	}
	b.mu.Unlock()
	b.onChange()
}

func (b *Board) expire(gen uint64) {
	b.mu.Lock()
	if b.closed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.current = nil
	b.timer = nil
	b.mu.Unlock()
	b.onChange()
}

func (b *Board) Current() (Notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Notification{}, false
	}
	return *b.current, true
}

func (b *Board) Dismiss() {
	b.mu.Lock()
	b.stopTimerLocked()
	b.gen++
	b.current = nil
	b.mu.Unlock()
	b.onChange()
}

// Close cancels the pending auto-hide; later notifications are ignored.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopTimerLocked()
	b.closed = true
}

func (b *Board) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
