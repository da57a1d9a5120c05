// Package dashboard holds the presentation rules of the order board that do
// not depend on a rendering technology: filtering, ordering, per-status
// counters, card rows and the empty-state copy.
package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"order-dashboard/internal/domain"
	"order-dashboard/internal/lifecycle"
)

type Filter string

const FilterAll Filter = "all"

// Filters is the tab order shown on the board.
var Filters = []Filter{
	FilterAll,
	Filter(domain.StatusPending),
	Filter(domain.StatusPreparing),
	Filter(domain.StatusReady),
	Filter(domain.StatusDelivered),
}

var filterLabel = map[Filter]string{
	FilterAll:                      "Todas",
	Filter(domain.StatusPending):   "Pendientes",
	Filter(domain.StatusPreparing): "En preparación",
	Filter(domain.StatusReady):     "Listas",
	Filter(domain.StatusDelivered): "Entregadas",
}

func (f Filter) Label() string { return filterLabel[f] }

func ParseFilter(s string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FilterAll, nil
	}
	if _, ok := filterLabel[f]; !ok {
		return "", &domain.ValidationError{Field: "filter", Reason: fmt.Sprintf("unknown filter %q", s)}
	}
	return f, nil
}

func (f Filter) Match(o domain.Order) bool {
	return f == FilterAll || domain.Status(f) == o.Status
}

// Apply returns the matching orders newest first without touching the input.
func Apply(orders []domain.Order, f Filter) []domain.Order {
	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Stats counts orders per status over the unfiltered list.
type Stats map[domain.Status]int

func Compute(orders []domain.Order) Stats {
	s := Stats{}
	for _, st := range domain.Statuses {
		s[st] = 0
	}
	for _, o := range orders {
		if o.Status.Valid() {
			s[o.Status]++
		}
	}
	return s
}

func (s Stats) Total() int {
	n := 0
	for _, c := range s {
		n += c
	}
	return n
}

// Row is one rendered order card.
type Row struct {
	Order      domain.Order
	New        bool
	Title      string
	StatusText string
	Created    string
	Actions    lifecycle.Actions
}

func Rows(orders []domain.Order, isNew func(id string) bool) []Row {
	rows := make([]Row, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, Row{
			Order:      o,
			New:        isNew != nil && isNew(o.ID),
			Title:      TableTitle(o.TableNumber),
			StatusText: lifecycle.StatusText(o.Status),
			Created:    FormatCreated(o.CreatedAt),
			Actions:    lifecycle.ActionsFor(o.Status),
		})
	}
	return rows
}

func TableTitle(t domain.TableNumber) string {
	if n, ok := t.Int(); ok {
		return fmt.Sprintf("Mesa %d", n)
	}
	return "Mesa desconocida"
}

func ItemLine(it domain.OrderItem) string {
	if it.Variations != "" {
		return fmt.Sprintf("%s (%s) x%d", it.Name, it.Variations, it.Quantity)
	}
	return fmt.Sprintf("%s x%d", it.Name, it.Quantity)
}

var months = [...]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"}

// FormatCreated renders t in the board's local short Spanish form, e.g.
// "1 may 2024, 09:05".
func FormatCreated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	return fmt.Sprintf("%d %s %d, %02d:%02d", t.Day(), months[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// Empty is the placeholder copy for an empty board.
type Empty struct {
	Title string
	Hint  string
}

// EmptyState distinguishes "no orders at all" from "nothing matches".
func EmptyState(total int) Empty {
	if total == 0 {
		return Empty{
			Title: "Aún no hay comandas",
			Hint:  "Las comandas aparecerán aquí cuando se realicen nuevos pedidos.",
		}
	}
	return Empty{
		Title: "No hay comandas que coincidan con el filtro",
		Hint:  "Intente con un filtro diferente para ver más resultados.",
	}
}
