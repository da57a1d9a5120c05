package tui

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-dashboard/internal/domain"
	"order-dashboard/internal/notify"
	"order-dashboard/internal/reconciler"
)

type fakeLive struct {
	ch        chan reconciler.View
	refreshes int
	resumes   int
}

func newFakeLive() *fakeLive { return &fakeLive{ch: make(chan reconciler.View, 4)} }

func (f *fakeLive) Subscribe() <-chan reconciler.View { return f.ch }
func (f *fakeLive) Refresh()                          { f.refreshes++ }
func (f *fakeLive) Resume()                           { f.resumes++ }

type fakeActions struct {
	mu      sync.Mutex
	set     []string
	deleted []string
	err     error
}

func (f *fakeActions) SetStatus(_ context.Context, id string, st domain.Status) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = append(f.set, id+"->"+string(st))
	if f.err != nil {
		return domain.Order{}, f.err
	}
	return domain.Order{ID: id, Status: st}, nil
}

func (f *fakeActions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.err
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testView() reconciler.View {
	return reconciler.View{
		Orders: []domain.Order{
			{ID: "p", DisplayID: "OD-P", TableNumber: domain.Table(5), Status: domain.StatusPending, CreatedAt: t0,
				Items: []domain.OrderItem{{Name: "Paella Valenciana", Quantity: 2, Variations: "Sin marisco"}}},
			{ID: "r", DisplayID: "OD-R", Status: domain.StatusReady, CreatedAt: t0.Add(-time.Minute),
				Items: []domain.OrderItem{{Name: "Pizza Margarita", Quantity: 1}}},
		},
		New:       map[string]bool{"p": true},
		Connected: true,
	}
}

func newTestModel(t *testing.T) (*Model, *fakeLive, *fakeActions, *notify.Board) {
	t.Helper()
	live := newFakeLive()
	acts := &fakeActions{}
	board := notify.NewBoard(time.Minute, nil)
	t.Cleanup(board.Close)
	m := New(live, acts, board)
	m.Update(viewMsg(testView()))
	return m, live, acts, board
}

func press(m *Model, k string) tea.Cmd {
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	_, cmd := m.Update(msg)
	return cmd
}

func TestViewRendersCards(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	out := m.View()
	assert.Contains(t, out, "Panel de Comandas")
	assert.Contains(t, out, "Mesa 5")
	assert.Contains(t, out, "Mesa desconocida")
	assert.Contains(t, out, "NUEVA")
	assert.Contains(t, out, "Paella Valenciana (Sin marisco) x2")
	assert.Contains(t, out, "Preparar")
}

func TestAdvanceSendsNextStatus(t *testing.T) {
	m, live, acts, _ := newTestModel(t)

	cmd := press(m, "enter")
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, []string{"p->preparing"}, acts.set)

	m.Update(msg)
	assert.Equal(t, 1, live.refreshes)
	assert.False(t, m.busy)
}

func TestAdvanceFailureShowsError(t *testing.T) {
	m, _, acts, board := newTestModel(t)
	acts.err = errors.New("boom")

	m.Update(press(m, "enter")())
	n, ok := board.Current()
	require.True(t, ok)
	assert.Equal(t, notify.KindError, n.Kind)
	assert.Contains(t, n.Message, "OD-P")
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	m, _, acts, board := newTestModel(t)

	// pending orders cannot be deleted
	assert.Nil(t, press(m, "d"))
	assert.Nil(t, m.confirm)

	press(m, "down")
	assert.Nil(t, press(m, "d"))
	require.NotNil(t, m.confirm)
	assert.Contains(t, m.View(), "¿Eliminar la comanda #OD-R?")

	// anything but yes cancels
	assert.Nil(t, press(m, "n"))
	assert.Nil(t, m.confirm)
	assert.Empty(t, acts.deleted)

	press(m, "d")
	cmd := press(m, "s")
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.Equal(t, []string{"r"}, acts.deleted)

	n, ok := board.Current()
	require.True(t, ok)
	assert.Equal(t, "Comanda #OD-R eliminada correctamente", n.Message)
}

func TestFilterTabs(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	press(m, "4")
	vis := m.visible()
	require.Len(t, vis, 1)
	assert.Equal(t, "r", vis[0].ID)

	press(m, "3")
	assert.Empty(t, m.visible())
	assert.Contains(t, m.View(), "No hay comandas que coincidan con el filtro")

	press(m, "tab")
	press(m, "tab")
	press(m, "tab")
	assert.Len(t, m.visible(), 2)
}

func TestFocusResumesAndRefreshKey(t *testing.T) {
	m, live, _, _ := newTestModel(t)
	m.Update(tea.FocusMsg{})
	assert.Equal(t, 1, live.resumes)

	press(m, "r")
	assert.Equal(t, 1, live.refreshes)
}

func TestOfflineHeader(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	v := testView()
	v.Connected = false
	m.Update(viewMsg(v))
	assert.Contains(t, m.View(), "sin conexión")
}

func TestBellWritesBEL(t *testing.T) {
	var buf bytes.Buffer
	b := &Bell{Out: &buf}
	b.Alert(domain.Order{ID: "a"})
	assert.Equal(t, "\a", buf.String())
}
