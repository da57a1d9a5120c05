package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"order-dashboard/internal/adapter"
	"order-dashboard/internal/common/logger"
	"order-dashboard/internal/common/mq"
	"order-dashboard/internal/domain"
)

// ChangesExchange is the fanout exchange carrying canonical change events.
const ChangesExchange = "orders_changes"

type wireEvent struct {
	EventType string                  `json:"eventType"`
	New       *adapter.FallbackRecord `json:"new,omitempty"`
	Old       *adapter.FallbackRecord `json:"old,omitempty"`
}

func EncodeChange(ev domain.ChangeEvent) ([]byte, error) {
	w := wireEvent{EventType: string(ev.Type)}
	if ev.New != nil {
		r := adapter.ToFallback(*ev.New)
		w.New = &r
	}
	if ev.Old != nil {
		r := adapter.ToFallback(*ev.Old)
		w.Old = &r
	}
	return json.Marshal(w)
}

// DecodeChange parses a canonical-shaped change event.
func DecodeChange(body []byte) (domain.ChangeEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("decode change: %w", err)
	}
	et, ok := domain.ParseEventType(w.EventType)
	if !ok {
		return domain.ChangeEvent{}, fmt.Errorf("decode change: unknown event type %q", w.EventType)
	}
	ev := domain.ChangeEvent{Type: et}
	if w.New != nil {
		o := adapter.Normalize(adapter.FromFallback(*w.New))
		ev.New = &o
	}
	if w.Old != nil {
		o := adapter.Normalize(adapter.FromFallback(*w.Old))
		ev.Old = &o
	}
	if ev.OrderID() == "" {
		return domain.ChangeEvent{}, errors.New("decode change: no order id")
	}
	return ev, nil
}

type publisher interface {
	Publish(ctx context.Context, exchange, key string, body []byte, headers amqp.Table) error
}

// AMQPPublisher forwards gateway mutations to the changes exchange.
type AMQPPublisher struct {
	pub    publisher
	source string
}

func NewAMQPPublisher(client *mq.Client, source string) *AMQPPublisher {
	return &AMQPPublisher{pub: client, source: source}
}

func (p *AMQPPublisher) PublishChange(ctx context.Context, ev domain.ChangeEvent) error {
	body, err := EncodeChange(ev)
	if err != nil {
		return err
	}
	return p.pub.Publish(ctx, ChangesExchange, "", body, amqp.Table{
		"event_type": string(ev.Type),
		"source":     p.source,
	})
}

// AMQPSubscriber binds a private queue to the changes exchange.
type AMQPSubscriber struct {
	client   *mq.Client
	consumer string
	logger   *logger.Logger
}

func NewAMQPSubscriber(client *mq.Client, consumer string, lg *logger.Logger) *AMQPSubscriber {
	if lg == nil {
		lg = logger.Nop()
	}
	return &AMQPSubscriber{client: client, consumer: consumer, logger: lg}
}

func (a *AMQPSubscriber) Subscribe(ctx context.Context) (Subscription, error) {
	if err := a.client.Ping(); err != nil {
		return nil, err
	}
	sub, err := a.client.SubscribeFanout(ChangesExchange, a.consumer)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", ChangesExchange, err)
	}
	s, sctx := newStream(ctx)
	go func() {
		err := pump(sctx, s, sub.Deliveries, sub.Closed, a.logger)
		_ = sub.Cancel()
		s.finish(err)
	}()
	return s, nil
}

// pump decodes deliveries into s until ctx ends or the channel closes.
func pump(ctx context.Context, s *stream, deliveries <-chan amqp.Delivery, closed <-chan *amqp.Error, lg *logger.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return errors.New("amqp channel closed")
			}
			return amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp deliveries closed")
			}
			ev, err := DecodeChange(d.Body)
			if err != nil {
				lg.Warn("feed_decode_failed", err, map[string]any{"message_id": d.MessageId})
				continue
			}
			if !s.send(ctx, ev) {
				return nil
			}
		}
	}
}
