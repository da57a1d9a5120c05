// Package gateway exposes the request-level order operations. Each one walks
// an explicit chain of sources (primary store, local API, sample set) and
// stops at the first tier that succeeds.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"order-dashboard/internal/common/logger"
	"order-dashboard/internal/domain"
	"order-dashboard/internal/lifecycle"
	"order-dashboard/internal/notify"
	"order-dashboard/internal/source"
)

// Tiers is the fallback strategy. A nil tier is skipped.
type Tiers struct {
	Primary source.Source
	Local   source.Source
	Sample  source.Source
}

// Publisher forwards store changes to other dashboards.
type Publisher interface {
	PublishChange(ctx context.Context, ev domain.ChangeEvent) error
}

type CreateRequest struct {
	// DisplayID is optional; one is generated when empty.
	DisplayID           string
	TableNumber         domain.TableNumber
	Items               []domain.OrderItem
	SpecialInstructions string
}

type Gateway struct {
	tiers     Tiers
	engine    *lifecycle.Engine
	publisher Publisher
	notifier  notify.Notifier
	logger    *logger.Logger
	now       func() time.Time
	randN     func(n int) int
}

type Option func(*Gateway)

func WithEngine(e *lifecycle.Engine) Option { return func(g *Gateway) { g.engine = e } }

func WithPublisher(p Publisher) Option { return func(g *Gateway) { g.publisher = p } }

func WithNotifier(n notify.Notifier) Option { return func(g *Gateway) { g.notifier = n } }

func WithLogger(l *logger.Logger) Option { return func(g *Gateway) { g.logger = l } }

// WithClock and WithRand make display codes deterministic in tests.
func WithClock(now func() time.Time) Option { return func(g *Gateway) { g.now = now } }

func WithRand(randN func(n int) int) Option { return func(g *Gateway) { g.randN = randN } }

func New(tiers Tiers, opts ...Option) *Gateway {
	g := &Gateway{
		tiers:    tiers,
		notifier: notify.NotifierFunc(func(context.Context, notify.Notification) {}),
		logger:   logger.Nop(),
		now:      time.Now,
		randN:    rand.Intn,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.engine == nil {
		g.engine = lifecycle.NewEngine(lifecycle.Enforce, g.logger)
	}
	return g
}

func (g *Gateway) Engine() *lifecycle.Engine { return g.engine }

// List never fails: primary, then the local API when the primary errors or
// is empty, then the sample set.
func (g *Gateway) List(ctx context.Context) []domain.Order {
	if p := g.tiers.Primary; p != nil {
		orders, err := p.List(ctx)
		switch {
		case err != nil:
			g.tierFailed("list", p, err)
		case len(orders) == 0:
			g.logger.Debug("primary_empty", map[string]any{"tier": p.Name()})
		default:
			return sortNewestFirst(orders)
		}
	}
	for _, t := range []source.Source{g.tiers.Local, g.tiers.Sample} {
		if t == nil {
			continue
		}
		orders, err := t.List(ctx)
		if err != nil {
			g.tierFailed("list", t, err)
			continue
		}
		return sortNewestFirst(orders)
	}
	return []domain.Order{}
}

// ValidateCreate checks a create request without touching any source.
func ValidateCreate(req CreateRequest) error {
	if len(req.Items) == 0 {
		return &domain.ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.Name) == "" {
			return &domain.ValidationError{Field: fmt.Sprintf("items[%d].name", i), Reason: "must not be empty"}
		}
		if it.Quantity < 1 {
			return &domain.ValidationError{
				Field:  fmt.Sprintf("items[%d].quantity", i),
				Reason: fmt.Sprintf("must be at least 1 (got %d)", it.Quantity),
			}
		}
	}
	return nil
}

// NewDisplayID formats OD-YYYYMMDD-NNN.
func NewDisplayID(now time.Time, n int) string {
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("OD-%s-%03d", now.Format("20060102"), n%1000)
}

// Create tries the primary store, then the local API. The sample set does
// not take new orders.
func (g *Gateway) Create(ctx context.Context, req CreateRequest) (domain.Order, error) {
	if err := ValidateCreate(req); err != nil {
		return domain.Order{}, err
	}
	in := domain.NewOrder{
		DisplayID:           strings.TrimSpace(req.DisplayID),
		TableNumber:         req.TableNumber,
		Items:               req.Items,
		SpecialInstructions: req.SpecialInstructions,
	}
	if in.DisplayID == "" {
		in.DisplayID = NewDisplayID(g.now(), g.randN(1000))
	}

	var lastErr error
	for _, t := range []source.Source{g.tiers.Primary, g.tiers.Local} {
		if t == nil {
			continue
		}
		o, err := t.Create(ctx, in)
		if err == nil {
			g.logger.Info("order_created", map[string]any{"tier": t.Name(), "order_id": o.ID, "display_id": o.DisplayID})
			if t == g.tiers.Primary {
				g.publish(ctx, domain.ChangeEvent{Type: domain.EventInsert, New: &o})
			}
			return o, nil
		}
		if domain.IsValidation(err) {
			return domain.Order{}, err
		}
		g.tierFailed("create", t, err)
		lastErr = err
	}
	return domain.Order{}, unavailable("create order", lastErr)
}

// SetStatus rejects unknown statuses up front, then walks all three tiers.
// A tier that does not know the id passes the request on; a transition
// rejected by the lifecycle engine stops the chain.
func (g *Gateway) SetStatus(ctx context.Context, id string, status domain.Status) (domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, &domain.ValidationError{Field: "id", Reason: "is required"}
	}
	if !status.Valid() {
		return domain.Order{}, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	guard := g.engine.Guard(status)
	var (
		lastErr   error
		attempted bool
		notFound  = true
	)
	for _, t := range []source.Source{g.tiers.Primary, g.tiers.Local, g.tiers.Sample} {
		if t == nil {
			continue
		}
		attempted = true
		o, err := t.SetStatus(ctx, id, status, guard)
		if err == nil {
			g.logger.Info("order_status_changed", map[string]any{"tier": t.Name(), "order_id": id, "status": status})
			if t == g.tiers.Primary {
				g.publish(ctx, domain.ChangeEvent{Type: domain.EventUpdate, New: &o})
			}
			g.notifier.Notify(ctx, notify.Notification{
				Kind: notify.KindSuccess, Message: lifecycle.Message(o), OrderID: o.ID, At: g.now().UTC(),
			})
			return o, nil
		}
		var te *lifecycle.TransitionError
		if errors.As(err, &te) || domain.IsValidation(err) {
			return domain.Order{}, err
		}
		if errors.Is(err, domain.ErrNotFound) {
			g.logger.Debug("order_not_in_tier", map[string]any{"tier": t.Name(), "order_id": id})
			continue
		}
		notFound = false
		lastErr = err
		g.tierFailed("set_status", t, err)
	}
	if attempted && notFound {
		return domain.Order{}, domain.ErrNotFound
	}
	return domain.Order{}, unavailable("set status of "+id, lastErr)
}

// Delete only ever targets the primary store; a failure is returned as is
// so callers never assume the order is gone.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return &domain.ValidationError{Field: "id", Reason: "is required"}
	}
	p := g.tiers.Primary
	if p == nil {
		return unavailable("delete "+id, nil)
	}
	if err := p.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		g.logger.Error("order_delete_failed", err, map[string]any{"tier": p.Name(), "order_id": id})
		return unavailable("delete "+id, err)
	}
	g.logger.Info("order_deleted", map[string]any{"tier": p.Name(), "order_id": id})
	g.publish(ctx, domain.ChangeEvent{Type: domain.EventDelete, Old: &domain.Order{ID: id}})
	return nil
}

func (g *Gateway) publish(ctx context.Context, ev domain.ChangeEvent) {
	if g.publisher == nil {
		return
	}
	if err := g.publisher.PublishChange(ctx, ev); err != nil {
		g.logger.Warn("change_publish_failed", err, map[string]any{"event": ev.Type, "order_id": ev.OrderID()})
	}
}

func (g *Gateway) tierFailed(op string, t source.Source, err error) {
	g.logger.Warn("tier_failed", err, map[string]any{"op": op, "tier": t.Name()})
}

func unavailable(what string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", what, domain.ErrUnavailable)
	}
	return fmt.Errorf("%s: %w: %w", what, domain.ErrUnavailable, cause)
}

func sortNewestFirst(orders []domain.Order) []domain.Order {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}
