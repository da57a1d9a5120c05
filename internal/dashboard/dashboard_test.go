package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-dashboard/internal/domain"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func orders() []domain.Order {
	return []domain.Order{
		{ID: "1", Status: domain.StatusPending, CreatedAt: base.Add(-30 * time.Minute)},
		{ID: "2", Status: domain.StatusReady, CreatedAt: base},
		{ID: "3", Status: domain.StatusPending, CreatedAt: base.Add(-5 * time.Minute)},
		{ID: "4", Status: domain.StatusDelivered, CreatedAt: base.Add(-time.Hour)},
	}
}

func ids(os []domain.Order) []string {
	out := make([]string, len(os))
	for i, o := range os {
		out[i] = o.ID
	}
	return out
}

func TestApply(t *testing.T) {
	in := orders()
	assert.Equal(t, []string{"2", "3", "1", "4"}, ids(Apply(in, FilterAll)))
	assert.Equal(t, []string{"3", "1"}, ids(Apply(in, Filter(domain.StatusPending))))
	assert.Empty(t, Apply(in, Filter(domain.StatusPreparing)))
	assert.Equal(t, "1", in[0].ID, "input is not reordered")
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)

	f, err = ParseFilter("Ready")
	require.NoError(t, err)
	assert.Equal(t, Filter(domain.StatusReady), f)
	assert.Equal(t, "Listas", f.Label())

	_, err = ParseFilter("cooking")
	assert.True(t, domain.IsValidation(err))
}

func TestCompute(t *testing.T) {
	s := Compute(orders())
	assert.Equal(t, 2, s[domain.StatusPending])
	assert.Equal(t, 0, s[domain.StatusPreparing])
	assert.Equal(t, 1, s[domain.StatusReady])
	assert.Equal(t, 1, s[domain.StatusDelivered])
	assert.Equal(t, 4, s.Total())
}

func TestRows(t *testing.T) {
	in := []domain.Order{
		{ID: "a", TableNumber: domain.Table(5), Status: domain.StatusPending},
		{ID: "b", Status: domain.StatusReady},
	}
	rows := Rows(in, func(id string) bool { return id == "a" })
	require.Len(t, rows, 2)

	assert.True(t, rows[0].New)
	assert.Equal(t, "Mesa 5", rows[0].Title)
	assert.Equal(t, "Pendiente", rows[0].StatusText)
	assert.Equal(t, "Preparar", rows[0].Actions.Label)
	assert.False(t, rows[0].Actions.Delete)

	assert.False(t, rows[1].New)
	assert.Equal(t, "Mesa desconocida", rows[1].Title)
	assert.True(t, rows[1].Actions.Delete)
	assert.Equal(t, domain.StatusDelivered, rows[1].Actions.Next)
}

func TestItemLine(t *testing.T) {
	assert.Equal(t, "Paella Valenciana (Sin marisco) x2", ItemLine(domain.OrderItem{Name: "Paella Valenciana", Quantity: 2, Variations: "Sin marisco"}))
	assert.Equal(t, "Agua mineral x3", ItemLine(domain.OrderItem{Name: "Agua mineral", Quantity: 3}))
}

func TestFormatCreated(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 5, 0, 0, time.Local)
	assert.Equal(t, "1 may 2024, 09:05", FormatCreated(ts))
	assert.Equal(t, "", FormatCreated(time.Time{}))
}

func TestEmptyState(t *testing.T) {
	assert.Equal(t, "Aún no hay comandas", EmptyState(0).Title)
	assert.Equal(t, "No hay comandas que coincidan con el filtro", EmptyState(3).Title)
}
