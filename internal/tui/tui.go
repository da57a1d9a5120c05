// Package tui is the terminal order board. It renders reconciler views with
// lipgloss and sends user actions through the gateway.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"order-dashboard/internal/dashboard"
	"order-dashboard/internal/domain"
	"order-dashboard/internal/lifecycle"
	"order-dashboard/internal/notify"
	"order-dashboard/internal/reconciler"
)

const (
	redrawInterval = 500 * time.Millisecond
	actionTimeout  = 10 * time.Second
)

// Live is the reconciler surface the board reads from.
type Live interface {
	Subscribe() <-chan reconciler.View
	Refresh()
	Resume()
}

// Actions are the mutations offered on a card.
type Actions interface {
	SetStatus(ctx context.Context, id string, status domain.Status) (domain.Order, error)
	Delete(ctx context.Context, id string) error
}

// Bell rings the terminal bell on new orders.
type Bell struct {
	mu  sync.Mutex
	Out io.Writer
}

func (b *Bell) Alert(domain.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.WriteString(b.Out, "\a")
}

type viewMsg reconciler.View

type redrawMsg time.Time

type actionDoneMsg struct {
	order   domain.Order
	deleted bool
	err     error
}

type Model struct {
	live    Live
	actions Actions
	board   *notify.Board
	views   <-chan reconciler.View

	view    reconciler.View
	filter  dashboard.Filter
	cursor  int
	confirm *domain.Order
	busy    bool

	keys   keyMap
	help   help.Model
	width  int
	height int
}

func New(live Live, actions Actions, board *notify.Board) *Model {
	return &Model{
		live:    live,
		actions: actions,
		board:   board,
		views:   live.Subscribe(),
		view:    reconciler.View{Orders: []domain.Order{}, New: map[string]bool{}, Connected: true},
		filter:  dashboard.FilterAll,
		keys:    defaultKeys(),
		help:    help.New(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForView(), redraw())
}

func (m *Model) waitForView() tea.Cmd {
	ch := m.views
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return viewMsg(v)
	}
}

func redraw() tea.Cmd {
	return tea.Tick(redrawInterval, func(t time.Time) tea.Msg { return redrawMsg(t) })
}

// visible is the filtered, sorted list the cursor indexes into.
func (m *Model) visible() []domain.Order {
	return dashboard.Apply(m.view.Orders, m.filter)
}

func (m *Model) selected() (domain.Order, bool) {
	vis := m.visible()
	if m.cursor < 0 || m.cursor >= len(vis) {
		return domain.Order{}, false
	}
	return vis[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.FocusMsg:
		m.live.Resume()
		return m, nil

	case viewMsg:
		m.view = reconciler.View(msg)
		m.clampCursor()
		return m, m.waitForView()

	case redrawMsg:
		return m, redraw()

	case actionDoneMsg:
		m.busy = false
		m.handleDone(msg)
		m.live.Refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) && msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.confirm != nil {
		switch msg.String() {
		case "y", "s", "enter":
			o := *m.confirm
			m.confirm = nil
			m.busy = true
			return m, m.deleteCmd(o)
		default:
			m.confirm = nil
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Filter):
		m.setFilter(msg.String())
	case key.Matches(msg, m.keys.Refresh):
		m.live.Refresh()
	case key.Matches(msg, m.keys.Dismiss):
		m.board.Dismiss()
	case key.Matches(msg, m.keys.Advance):
		o, ok := m.selected()
		if !ok || m.busy {
			return m, nil
		}
		next, ok := lifecycle.Next(o.Status)
		if !ok {
			return m, nil
		}
		m.busy = true
		return m, m.setStatusCmd(o, next)
	case key.Matches(msg, m.keys.Delete):
		o, ok := m.selected()
		if !ok || m.busy || !lifecycle.CanDelete(o.Status) {
			return m, nil
		}
		m.confirm = &o
	}
	return m, nil
}

func (m *Model) setFilter(k string) {
	if k == "tab" {
		for i, f := range dashboard.Filters {
			if f == m.filter {
				m.filter = dashboard.Filters[(i+1)%len(dashboard.Filters)]
				break
			}
		}
	} else if n := int(k[0] - '1'); n >= 0 && n < len(dashboard.Filters) {
		m.filter = dashboard.Filters[n]
	}
	m.cursor = 0
}

func (m *Model) setStatusCmd(o domain.Order, next domain.Status) tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		updated, err := actions.SetStatus(ctx, o.ID, next)
		if err != nil {
			return actionDoneMsg{order: o, err: err}
		}
		return actionDoneMsg{order: updated}
	}
}

func (m *Model) deleteCmd(o domain.Order) tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{order: o, deleted: true, err: actions.Delete(ctx, o.ID)}
	}
}

// handleDone reports failures and deletions; successful status changes are
// announced by the gateway's notifier.
func (m *Model) handleDone(msg actionDoneMsg) {
	ctx := context.Background()
	switch {
	case msg.err != nil && msg.deleted:
		m.board.Notify(ctx, notify.Notification{
			Kind: notify.KindError, OrderID: msg.order.ID,
			Message: fmt.Sprintf("Error al eliminar la comanda #%s: %v", msg.order.DisplayID, msg.err),
		})
	case msg.err != nil:
		m.board.Notify(ctx, notify.Notification{
			Kind: notify.KindError, OrderID: msg.order.ID,
			Message: fmt.Sprintf("Error al actualizar la comanda #%s: %v", msg.order.DisplayID, msg.err),
		})
	case msg.deleted:
		m.board.Notify(ctx, notify.Notification{
			Kind: notify.KindSuccess, OrderID: msg.order.ID, Message: lifecycle.DeletedMessage(msg.order),
		})
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	tabStyle   = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#AAAAAA"))
	activeTab  = tabStyle.Background(lipgloss.Color("#4F46E5")).Foreground(lipgloss.Color("#FFFFFF"))
	cardStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	cursorCard = cardStyle.BorderForeground(lipgloss.Color("#5B8DEF"))
	newBadge   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#DC2626")).Padding(0, 1)
	noteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#92400E")).Background(lipgloss.Color("#FEF3C7"))

	statusStyle = map[domain.Status]lipgloss.Style{
		domain.StatusPending:   lipgloss.NewStyle().Foreground(lipgloss.Color("#854D0E")).Background(lipgloss.Color("#FEF9C3")).Padding(0, 1),
		domain.StatusPreparing: lipgloss.NewStyle().Foreground(lipgloss.Color("#1E40AF")).Background(lipgloss.Color("#DBEAFE")).Padding(0, 1),
		domain.StatusReady:     lipgloss.NewStyle().Foreground(lipgloss.Color("#166534")).Background(lipgloss.Color("#DCFCE7")).Padding(0, 1),
		domain.StatusDelivered: lipgloss.NewStyle().Foreground(lipgloss.Color("#6B21A8")).Background(lipgloss.Color("#F3E8FF")).Padding(0, 1),
	}
	kindStyle = map[notify.Kind]lipgloss.Style{
		notify.KindSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#16A34A")).Padding(0, 1),
		notify.KindError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#DC2626")).Padding(0, 1),
		notify.KindInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#2563EB")).Padding(0, 1),
	}
)

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")
	b.WriteString(m.renderCards())
	b.WriteString("\n")
	if line := m.renderFooter(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderHeader() string {
	conn := lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A")).Render("● en línea")
	if !m.view.Connected {
		conn = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626")).Render("● sin conexión")
	}
	stats := dashboard.Compute(m.view.Orders)
	parts := make([]string, 0, len(domain.Statuses))
	for _, s := range domain.Statuses {
		parts = append(parts, fmt.Sprintf("%s: %d", lifecycle.StatusText(s), stats[s]))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Panel de Comandas")+"  "+conn,
		mutedStyle.Render(strings.Join(parts, " · ")),
	)
}

func (m *Model) renderTabs() string {
	tabs := make([]string, 0, len(dashboard.Filters))
	for i, f := range dashboard.Filters {
		label := fmt.Sprintf("%d %s", i+1, f.Label())
		if f == m.filter {
			tabs = append(tabs, activeTab.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) renderCards() string {
	vis := m.visible()
	if len(vis) == 0 {
		e := dashboard.EmptyState(len(m.view.Orders))
		return lipgloss.JoinVertical(lipgloss.Left, e.Title, mutedStyle.Render(e.Hint))
	}
	width := 44
	if m.width > 0 && m.width < width+4 {
		width = m.width - 4
	}
	cards := make([]string, 0, len(vis))
	for i, row := range dashboard.Rows(vis, m.view.IsNew) {
		cards = append(cards, m.renderCard(row, i == m.cursor, width))
	}
	return strings.Join(cards, "\n")
}

func (m *Model) renderCard(row dashboard.Row, focused bool, width int) string {
	head := titleStyle.Render(row.Title) + " " + statusStyle[row.Order.Status].Render(row.StatusText)
	if row.New {
		head += " " + newBadge.Render("NUEVA")
	}
	lines := []string{head}
	for _, it := range row.Order.Items {
		lines = append(lines, "  "+dashboard.ItemLine(it))
	}
	if row.Order.SpecialInstructions != "" {
		lines = append(lines, noteStyle.Render("Instrucciones especiales: "+row.Order.SpecialInstructions))
	}
	lines = append(lines, mutedStyle.Render(fmt.Sprintf("ID: %s · Creado: %s", row.Order.DisplayID, row.Created)))

	var acts []string
	if row.Actions.HasNext {
		acts = append(acts, "[enter] "+row.Actions.Label)
	}
	if row.Actions.Delete {
		acts = append(acts, "[d] Eliminar")
	}
	if len(acts) > 0 {
		lines = append(lines, mutedStyle.Render(strings.Join(acts, "  ")))
	}

	style := cardStyle
	if focused {
		style = cursorCard
	}
	return style.Width(width).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderFooter() string {
	if m.confirm != nil {
		return kindStyle[notify.KindError].Render(fmt.Sprintf("¿Eliminar la comanda #%s? (s/n)", m.confirm.DisplayID))
	}
	if n, ok := m.board.Current(); ok {
		style, found := kindStyle[n.Kind]
		if !found {
			style = kindStyle[notify.KindInfo]
		}
		return style.Render(n.Message)
	}
	return ""
}
