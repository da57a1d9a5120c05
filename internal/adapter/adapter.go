// Package adapter turns the raw order rows of each data source into the
// canonical domain.Order. The caller picks the variant at the fetch boundary,
// so nothing here inspects field presence to guess where a row came from.
package adapter

import (
	"strings"
	"time"

	"order-dashboard/internal/domain"
)

// StoreItem is an order_items row.
type StoreItem struct {
	ID         string    `json:"id,omitempty"`
	OrderID    string    `json:"order_id"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	Variations *string   `json:"variations"`
	CreatedAt  time.Time `json:"created_at"`
}

// StoreRecord is an orders row with its items attached.
type StoreRecord struct {
	ID                  string      `json:"id"`
	OrderCode           string      `json:"order_id"`
	TableNumber         string      `json:"table_number"`
	SpecialInstructions *string     `json:"special_instructions"`
	Status              string      `json:"status"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
	Items               []StoreItem `json:"items,omitempty"`
}

// FallbackRecord is the shape served by the local API and the sample set.
// Timestamp is supplied by whoever produced the record.
type FallbackRecord struct {
	ID                  string             `json:"id"`
	DisplayID           string             `json:"displayId,omitempty"`
	TableNumber         domain.TableNumber `json:"tableNumber"`
	Status              domain.Status      `json:"status"`
	Timestamp           time.Time          `json:"timestamp"`
	Items               []domain.OrderItem `json:"items"`
	SpecialInstructions string             `json:"specialInstructions,omitempty"`
}

// Raw holds exactly one of the two source shapes.
type Raw struct {
	store    *StoreRecord
	fallback *FallbackRecord
}

func FromStore(r StoreRecord) Raw { return Raw{store: &r} }

func FromFallback(r FallbackRecord) Raw { return Raw{fallback: &r} }

// Normalize never fails: a missing display code is synthesized from the id
// and missing items become an empty list.
func Normalize(raw Raw) domain.Order {
	switch {
	case raw.store != nil:
		return normalizeStore(*raw.store)
	case raw.fallback != nil:
		return normalizeFallback(*raw.fallback)
	}
	return domain.Order{Items: []domain.OrderItem{}}
}

func normalizeStore(r StoreRecord) domain.Order {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, domain.OrderItem{
			Name:       it.Name,
			Quantity:   it.Quantity,
			Variations: deref(it.Variations),
		})
	}
	return domain.Order{
		ID:                  r.ID,
		DisplayID:           displayID(r.OrderCode, r.ID),
		TableNumber:         domain.ParseTable(r.TableNumber),
		Status:              domain.Status(strings.TrimSpace(r.Status)),
		CreatedAt:           r.CreatedAt,
		Items:               items,
		SpecialInstructions: deref(r.SpecialInstructions),
	}
}

func normalizeFallback(r FallbackRecord) domain.Order {
	items := make([]domain.OrderItem, len(r.Items))
	copy(items, r.Items)
	return domain.Order{
		ID:                  r.ID,
		DisplayID:           displayID(r.DisplayID, r.ID),
		TableNumber:         r.TableNumber,
		Status:              r.Status,
		CreatedAt:           r.Timestamp,
		Items:               items,
		SpecialInstructions: r.SpecialInstructions,
	}
}

// ToFallback is the inverse of normalizing a FallbackRecord.
func ToFallback(o domain.Order) FallbackRecord {
	items := make([]domain.OrderItem, len(o.Items))
	copy(items, o.Items)
	return FallbackRecord{
		ID:                  o.ID,
		DisplayID:           o.DisplayID,
		TableNumber:         o.TableNumber,
		Status:              o.Status,
		Timestamp:           o.CreatedAt,
		Items:               items,
		SpecialInstructions: o.SpecialInstructions,
	}
}

// SyntheticDisplayID derives a display code from the first segment of id.
func SyntheticDisplayID(id string) string {
	seg := id
	if i := strings.IndexByte(seg, '-'); i >= 0 {
		seg = seg[:i]
	}
	if r := []rune(seg); len(r) > 8 {
		seg = string(r[:8])
	}
	return "ORDER-" + seg
}

func displayID(code, id string) string {
	if code = strings.TrimSpace(code); code != "" {
		return code
	}
	return SyntheticDisplayID(id)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
