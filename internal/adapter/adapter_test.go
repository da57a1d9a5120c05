package adapter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-dashboard/internal/domain"
)

func strp(s string) *string { return &s }

func TestNormalizeStoreRecord(t *testing.T) {
	created := time.Date(2025, 3, 14, 12, 30, 0, 0, time.UTC)
	rec := StoreRecord{
		ID:                  "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		OrderCode:           "OD-20250314-042",
		TableNumber:         "5",
		SpecialInstructions: strp("sin gluten"),
		Status:              "preparing",
		CreatedAt:           created,
		Items: []StoreItem{
			{Name: "Paella Valenciana", Quantity: 2, Variations: strp("Sin marisco")},
			{Name: "Agua mineral", Quantity: 3},
		},
	}

	got := Normalize(FromStore(rec))

	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "OD-20250314-042", got.DisplayID)
	assert.Equal(t, domain.Table(5), got.TableNumber)
	assert.Equal(t, domain.StatusPreparing, got.Status)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, "sin gluten", got.SpecialInstructions)
	require.Len(t, got.Items, 2)
	assert.Equal(t, domain.OrderItem{Name: "Paella Valenciana", Quantity: 2, Variations: "Sin marisco"}, got.Items[0])
	assert.Equal(t, domain.OrderItem{Name: "Agua mineral", Quantity: 3}, got.Items[1])
}

func TestNormalizeSynthesizesDisplayID(t *testing.T) {
	tests := []struct {
		name string
		raw  Raw
		want string
	}{
		{"store uuid", FromStore(StoreRecord{ID: "7c9e6679-7425-40de-944b-e07fc1f90ae7"}), "ORDER-7c9e6679"},
		{"store blank code", FromStore(StoreRecord{ID: "abc", OrderCode: "  "}), "ORDER-abc"},
		{"fallback short id", FromFallback(FallbackRecord{ID: "3"}), "ORDER-3"},
		{"fallback long id", FromFallback(FallbackRecord{ID: "abcdefghijkl"}), "ORDER-abcdefgh"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw).DisplayID)
		})
	}
}

func TestNormalizeUnknownTableAndNoItems(t *testing.T) {
	got := Normalize(FromStore(StoreRecord{ID: "x", TableNumber: "desconocida"}))
	assert.False(t, got.TableNumber.Known())
	assert.NotNil(t, got.Items)
	assert.Empty(t, got.Items)

	got = Normalize(Raw{})
	assert.NotNil(t, got.Items)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first := Normalize(FromStore(StoreRecord{
		ID:          "1f0c",
		TableNumber: "8",
		Status:      "ready",
		CreatedAt:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Items:       []StoreItem{{Name: "Solomillo", Quantity: 2, Variations: strp("al punto")}},
	}))

	second := Normalize(FromFallback(ToFallback(first)))
	assert.Equal(t, first, second)

	third := Normalize(FromFallback(ToFallback(second)))
	assert.Equal(t, second, third)
}

func TestFallbackRecordDecodesCanonicalJSON(t *testing.T) {
	body := `{"id":"2","displayId":"OD-20250101-007","tableNumber":"unknown","status":"pending",
	"timestamp":"2025-01-01T10:00:00Z","items":[{"name":"Tiramisú","quantity":2}],"specialInstructions":"Para llevar"}`

	var rec FallbackRecord
	require.NoError(t, json.Unmarshal([]byte(body), &rec))
	got := Normalize(FromFallback(rec))

	assert.Equal(t, "OD-20250101-007", got.DisplayID)
	assert.False(t, got.TableNumber.Known())
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, "Para llevar", got.SpecialInstructions)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
}
