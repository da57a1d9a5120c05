// Package feed delivers order change events from the store to dashboards.
// Two transports exist: PostgreSQL LISTEN/NOTIFY and a RabbitMQ fanout
// exchange. Both decode to domain.ChangeEvent through the adapter.
package feed

import (
	"context"
	"sync"
	"time"

	"order-dashboard/internal/common/logger"
	"order-dashboard/internal/domain"
)

// Subscription is one live feed connection. Events is closed when the
// subscription ends; Err then reports why (nil after Unsubscribe).
type Subscription interface {
	Events() <-chan domain.ChangeEvent
	Err() error
	Unsubscribe()
}

type Subscriber interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// stream is the Subscription shared by both transports. The producing
// goroutine must call finish exactly once.
type stream struct {
	events chan domain.ChangeEvent
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func newStream(parent context.Context) (*stream, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &stream{
		events: make(chan domain.ChangeEvent, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}, ctx
}

func (s *stream) Events() <-chan domain.ChangeEvent { return s.events }

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Unsubscribe() {
	s.cancel()
	<-s.done
}

func (s *stream) send(ctx context.Context, ev domain.ChangeEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *stream) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.events)
	close(s.done)
}

// Sink receives decoded events and connectivity changes. The reconciler
// implements it.
type Sink interface {
	Insert(ev domain.ChangeEvent)
	Update(ev domain.ChangeEvent)
	Delete(ev domain.ChangeEvent)
	ConnectivityLost()
	ConnectivityRestored()
}

// Runner keeps one subscription alive, resubscribing after a fixed delay
// whenever it drops.
type Runner struct {
	sub    Subscriber
	sink   Sink
	delay  time.Duration
	logger *logger.Logger
}

func NewRunner(sub Subscriber, sink Sink, delay time.Duration, lg *logger.Logger) *Runner {
	if lg == nil {
		lg = logger.Nop()
	}
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return &Runner{sub: sub, sink: sink, delay: delay, logger: lg}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	lost := false
	for {
		s, err := r.sub.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("feed_subscribe_failed", err, map[string]any{"retry_in": r.delay.String()})
			if !lost {
				r.sink.ConnectivityLost()
				lost = true
			}
			if !sleep(ctx, r.delay) {
				return
			}
			continue
		}
		r.logger.Info("feed_subscribed", nil)
		if lost {
			r.sink.ConnectivityRestored()
			lost = false
		}

		if !r.drain(ctx, s) {
			s.Unsubscribe()
			return
		}
		r.logger.Warn("feed_dropped", s.Err(), map[string]any{"retry_in": r.delay.String()})
		r.sink.ConnectivityLost()
		lost = true
		if !sleep(ctx, r.delay) {
			return
		}
	}
}

// drain forwards events until the subscription closes (true) or ctx is
// cancelled (false).
func (r *Runner) drain(ctx context.Context, s Subscription) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-s.Events():
			if !ok {
				return ctx.Err() == nil
			}
			r.dispatch(ev)
		}
	}
}

func (r *Runner) dispatch(ev domain.ChangeEvent) {
	switch ev.Type {
	case domain.EventInsert:
		r.sink.Insert(ev)
	case domain.EventUpdate:
		r.sink.Update(ev)
	case domain.EventDelete:
		r.sink.Delete(ev)
	default:
		r.logger.Debug("feed_event_ignored", map[string]any{"event": ev.Type})
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
