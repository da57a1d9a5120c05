// Package reconciler keeps a dashboard's order list in step with the store.
// One goroutine owns the list, the set of orders marked new and the marker
// timers; feed events, the refresh ticker and user actions all reach it as
// messages.
package reconciler

import (
	"context"
	"sync"
	"time"

	"order-dashboard/internal/common/logger"
	"order-dashboard/internal/domain"
	"order-dashboard/internal/lifecycle"
	"order-dashboard/internal/notify"
)

const (
	DefaultNewWindow       = 10 * time.Second
	DefaultRefreshInterval = 30 * time.Second
)

const (
	msgConnectionLost     = "Conexión perdida con el servidor. Reintentando..."
	msgConnectionRestored = "Conexión restablecida"
)

type Fetcher interface {
	Fetch(ctx context.Context) ([]domain.Order, error)
}

type FetcherFunc func(ctx context.Context) ([]domain.Order, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]domain.Order, error) { return f(ctx) }

// Lister is anything that always yields a list, such as the gateway.
type Lister interface {
	List(ctx context.Context) []domain.Order
}

func ListFetcher(l Lister) Fetcher {
	return FetcherFunc(func(ctx context.Context) ([]domain.Order, error) { return l.List(ctx), nil })
}

// Alerter plays the audible cue for a new order.
type Alerter interface {
	Alert(o domain.Order)
}

type AlerterFunc func(o domain.Order)

func (f AlerterFunc) Alert(o domain.Order) { f(o) }

// View is an immutable snapshot for presentation.
type View struct {
	Orders    []domain.Order
	New       map[string]bool
	Connected bool
}

func (v View) IsNew(id string) bool { return v.New[id] }

type Option func(*Reconciler)

func WithNotifier(n notify.Notifier) Option { return func(r *Reconciler) { r.notifier = n } }

func WithAlerter(a Alerter) Option { return func(r *Reconciler) { r.alerter = a } }

func WithLogger(l *logger.Logger) Option { return func(r *Reconciler) { r.logger = l } }

func WithNewWindow(d time.Duration) Option { return func(r *Reconciler) { r.newWindow = d } }

// WithRefreshInterval sets the polling period; zero disables polling.
func WithRefreshInterval(d time.Duration) Option {
	return func(r *Reconciler) { r.refreshInterval = d }
}

type Reconciler struct {
	fetcher         Fetcher
	notifier        notify.Notifier
	alerter         Alerter
	logger          *logger.Logger
	newWindow       time.Duration
	refreshInterval time.Duration

	inbox     chan func(*state)
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	latest View
	subs   []chan View
}

// state is touched only by the Run goroutine.
type state struct {
	ctx       context.Context
	orders    []domain.Order
	markers   map[string]*time.Timer
	issued    uint64
	applied   uint64
	connected bool
}

func New(fetcher Fetcher, opts ...Option) *Reconciler {
	r := &Reconciler{
		fetcher:         fetcher,
		notifier:        notify.NotifierFunc(func(context.Context, notify.Notification) {}),
		alerter:         AlerterFunc(func(domain.Order) {}),
		logger:          logger.Nop(),
		newWindow:       DefaultNewWindow,
		refreshInterval: DefaultRefreshInterval,
		inbox:           make(chan func(*state), 64),
		quit:            make(chan struct{}),
		done:            make(chan struct{}),
		latest:          View{Orders: []domain.Order{}, New: map[string]bool{}, Connected: true},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run owns the state until ctx is cancelled or Close is called. It issues
// an initial refresh.
func (r *Reconciler) Run(ctx context.Context) {
	defer close(r.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := &state{ctx: ctx, orders: []domain.Order{}, markers: map[string]*time.Timer{}, connected: true}
	defer func() {
		for id, t := range st.markers {
			t.Stop()
			delete(st.markers, id)
		}
	}()

	var tick <-chan time.Time
	if r.refreshInterval > 0 {
		ticker := time.NewTicker(r.refreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	r.refresh(st)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.quit:
			return
		case <-tick:
			r.refresh(st)
		case fn := <-r.inbox:
			fn(st)
		}
	}
}

// Close stops the actor and its timers. Safe to call more than once.
func (r *Reconciler) Close() {
	r.closeOnce.Do(func() { close(r.quit) })
}

// Done is closed once Run has returned.
func (r *Reconciler) Done() <-chan struct{} { return r.done }

func (r *Reconciler) post(fn func(*state)) {
	select {
	case r.inbox <- fn:
	case <-r.quit:
	case <-r.done:
	}
}

func (r *Reconciler) Insert(ev domain.ChangeEvent) { r.post(func(st *state) { r.insert(st, ev) }) }

func (r *Reconciler) Update(ev domain.ChangeEvent) { r.post(func(st *state) { r.update(st, ev) }) }

func (r *Reconciler) Delete(ev domain.ChangeEvent) { r.post(func(st *state) { r.remove(st, ev) }) }

// Refresh refetches the full list; it is also the response to a user
// action completing.
func (r *Reconciler) Refresh() { r.post(r.refresh) }

// Resume is called when the dashboard becomes visible again.
func (r *Reconciler) Resume() { r.post(r.refresh) }

func (r *Reconciler) ConnectivityLost() {
	r.post(func(st *state) {
		if !st.connected {
			return
		}
		st.connected = false
		r.notify(st, notify.Notification{Kind: notify.KindError, Message: msgConnectionLost, Persistent: true})
		r.publish(st)
	})
}

func (r *Reconciler) ConnectivityRestored() {
	r.post(func(st *state) {
		if st.connected {
			return
		}
		st.connected = true
		r.notify(st, notify.Notification{Kind: notify.KindSuccess, Message: msgConnectionRestored})
		r.publish(st)
		r.refresh(st)
	})
}

func (r *Reconciler) Snapshot() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// Subscribe returns a channel carrying the latest view after every change.
// Slow readers only miss intermediate views.
func (r *Reconciler) Subscribe() <-chan View {
	ch := make(chan View, 1)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	ch <- r.latest
	r.mu.Unlock()
	return ch
}

func (r *Reconciler) insert(st *state, ev domain.ChangeEvent) {
	id := ev.OrderID()
	if id == "" {
		return
	}
	if _, dup := st.markers[id]; dup {
		r.logger.Debug("duplicate_insert", map[string]any{"order_id": id})
		return
	}
	st.markers[id] = time.AfterFunc(r.newWindow, func() { r.post(func(st *state) { r.unmark(st, id) }) })

	o := domain.Order{ID: id}
	if ev.New != nil {
		o = *ev.New
	}
	r.notify(st, notify.Notification{Kind: notify.KindInfo, Message: lifecycle.NewOrderMessage(), OrderID: id})
	r.alerter.Alert(o)
	r.publish(st)
	r.refresh(st)
}

func (r *Reconciler) unmark(st *state, id string) {
	if _, ok := st.markers[id]; !ok {
		return
	}
	delete(st.markers, id)
	r.publish(st)
}

func (r *Reconciler) update(st *state, ev domain.ChangeEvent) {
	if ev.New != nil && ev.New.Status.Valid() {
		r.notify(st, notify.Notification{Kind: notify.KindSuccess, Message: lifecycle.Message(*ev.New), OrderID: ev.New.ID})
	}
	r.refresh(st)
}

func (r *Reconciler) remove(st *state, ev domain.ChangeEvent) {
	id := ev.OrderID()
	if t, ok := st.markers[id]; ok {
		t.Stop()
		delete(st.markers, id)
	}
	kept := make([]domain.Order, 0, len(st.orders))
	for _, o := range st.orders {
		if o.ID != id {
			kept = append(kept, o)
		}
	}
	st.orders = kept
	r.publish(st)
	r.refresh(st)
}

// refresh fetches off the actor. Results are applied wholesale, and only if
// no later-issued fetch has been applied already.
func (r *Reconciler) refresh(st *state) {
	st.issued++
	seq := st.issued
	ctx := st.ctx
	go func() {
		orders, err := r.fetcher.Fetch(ctx)
		r.post(func(st *state) {
			if err != nil {
				r.logger.Warn("refresh_failed", err, map[string]any{"seq": seq})
				return
			}
			if seq <= st.applied {
				r.logger.Debug("refresh_stale", map[string]any{"seq": seq, "applied": st.applied})
				return
			}
			st.applied = seq
			if orders == nil {
				orders = []domain.Order{}
			}
			st.orders = orders
			r.publish(st)
		})
	}()
}

func (r *Reconciler) notify(st *state, n notify.Notification) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	r.notifier.Notify(st.ctx, n)
}

func (r *Reconciler) publish(st *state) {
	marks := make(map[string]bool, len(st.markers))
	for id := range st.markers {
		marks[id] = true
	}
	v := View{Orders: st.orders, New: marks, Connected: st.connected}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = v
	for _, ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
