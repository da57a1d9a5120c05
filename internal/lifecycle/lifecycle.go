// Package lifecycle holds the order status state machine:
// pending -> preparing -> ready -> delivered. Delete is allowed from any
// state but only offered on ready and delivered orders.
package lifecycle

import (
	"fmt"

	"order-dashboard/internal/common/logger"
	"order-dashboard/internal/domain"
)

var next = map[domain.Status]domain.Status{
	domain.StatusPending:   domain.StatusPreparing,
	domain.StatusPreparing: domain.StatusReady,
	domain.StatusReady:     domain.StatusDelivered,
}

var statusText = map[domain.Status]string{
	domain.StatusPending:   "Pendiente",
	domain.StatusPreparing: "Preparando",
	domain.StatusReady:     "Listo",
	domain.StatusDelivered: "Entregado",
}

// labels for the button that moves an order out of the keyed status
var actionLabel = map[domain.Status]string{
	domain.StatusPending:   "Preparar",
	domain.StatusPreparing: "Marcar Listo",
	domain.StatusReady:     "Entregar",
}

// Next reports the single legal successor of s.
func Next(s domain.Status) (domain.Status, bool) {
	n, ok := next[s]
	return n, ok
}

func CanDelete(s domain.Status) bool {
	return s == domain.StatusReady || s == domain.StatusDelivered
}

func StatusText(s domain.Status) string {
	if t, ok := statusText[s]; ok {
		return t
	}
	return string(s)
}

// Actions is what the dashboard may offer for one order.
type Actions struct {
	Next    domain.Status
	HasNext bool
	Label   string
	Delete  bool
}

func ActionsFor(s domain.Status) Actions {
	n, ok := Next(s)
	return Actions{Next: n, HasNext: ok, Label: actionLabel[s], Delete: CanDelete(s)}
}

func Message(o domain.Order) string {
	return fmt.Sprintf("Comanda #%s actualizada a %s", o.DisplayID, StatusText(o.Status))
}

func NewOrderMessage() string { return "¡Nueva comanda recibida!" }

func DeletedMessage(o domain.Order) string {
	return fmt.Sprintf("Comanda #%s eliminada correctamente", o.DisplayID)
}

type TransitionError struct {
	From, To domain.Status
}

func (e *TransitionError) Error() string {
	if n, ok := Next(e.From); ok {
		return fmt.Sprintf("illegal transition %s -> %s (next is %s)", e.From, e.To, n)
	}
	return fmt.Sprintf("illegal transition %s -> %s (%s is final)", e.From, e.To, e.From)
}

type Mode int

const (
	// Enforce rejects anything but the single legal successor.
	Enforce Mode = iota
	// Advisory lets any known status through and only logs jumps.
	Advisory
)

func (m Mode) String() string {
	if m == Advisory {
		return "advisory"
	}
	return "enforce"
}

type Engine struct {
	mode   Mode
	logger *logger.Logger
}

func NewEngine(mode Mode, lg *logger.Logger) *Engine {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Engine{mode: mode, logger: lg}
}

func (e *Engine) Mode() Mode { return e.mode }

// Check validates from -> to under the engine's mode.
func (e *Engine) Check(from, to domain.Status) error {
	if n, ok := Next(from); ok && n == to {
		return nil
	}
	if e.mode == Advisory {
		e.logger.Warn("out_of_sequence_transition", nil, map[string]any{"from": from, "to": to})
		return nil
	}
	return &TransitionError{From: from, To: to}
}

// Guard binds the target status so a source can run the check against the
// current status it reads inside its own transaction.
func (e *Engine) Guard(to domain.Status) func(current domain.Status) error {
	return func(current domain.Status) error { return e.Check(current, to) }
}
