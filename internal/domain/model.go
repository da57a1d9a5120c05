package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{StatusPending, StatusPreparing, StatusReady, StatusDelivered}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusDelivered:
		return true
	}
	return false
}

// ParseStatus accepts the lowercase wire names only.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
	return st, nil
}

// UnknownTableText is the wire sentinel for orders without a table.
const UnknownTableText = "unknown"

// legacy sentinel written by older dashboards
const legacyUnknownTable = "desconocida"

// TableNumber is either a positive table number or unknown (zero value).
type TableNumber struct{ n int }

func Table(n int) TableNumber {
	if n <= 0 {
		return TableNumber{}
	}
	return TableNumber{n: n}
}

func (t TableNumber) Known() bool { return t.n > 0 }

func (t TableNumber) Int() (int, bool) { return t.n, t.n > 0 }

func (t TableNumber) String() string {
	if t.n <= 0 {
		return UnknownTableText
	}
	return strconv.Itoa(t.n)
}

// ParseTable reads the text form used by the store; anything that is not a
// positive integer is unknown.
func ParseTable(s string) TableNumber {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return TableNumber{}
	}
	return Table(n)
}

func (t TableNumber) MarshalJSON() ([]byte, error) {
	if t.n <= 0 {
		return json.Marshal(UnknownTableText)
	}
	return []byte(strconv.Itoa(t.n)), nil
}

func (t *TableNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = TableNumber{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", UnknownTableText, legacyUnknownTable:
			*t = TableNumber{}
			return nil
		}
		*t = ParseTable(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("table number: %w", err)
	}
	*t = Table(n)
	return nil
}

type OrderItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	Variations string `json:"variations,omitempty"`
}

// Order is the canonical shape every component downstream of the adapter sees.
type Order struct {
	ID                  string      `json:"id"`
	DisplayID           string      `json:"displayId"`
	TableNumber         TableNumber `json:"tableNumber"`
	Status              Status      `json:"status"`
	CreatedAt           time.Time   `json:"timestamp"`
	Items               []OrderItem `json:"items"`
	SpecialInstructions string      `json:"specialInstructions,omitempty"`
}

// NewOrder is what a source persists on create. DisplayID is already
// generated; the source assigns ID and CreatedAt.
type NewOrder struct {
	DisplayID           string
	TableNumber         TableNumber
	Items               []OrderItem
	SpecialInstructions string
}

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ParseEventType maps feed spellings (INSERT, insert, ...) onto EventType.
func ParseEventType(s string) (EventType, bool) {
	switch EventType(strings.ToLower(strings.TrimSpace(s))) {
	case EventInsert:
		return EventInsert, true
	case EventUpdate:
		return EventUpdate, true
	case EventDelete:
		return EventDelete, true
	}
	return "", false
}

// ChangeEvent is one change-feed delivery keyed by order id.
type ChangeEvent struct {
	Type EventType `json:"eventType"`
	New  *Order    `json:"new,omitempty"`
	Old  *Order    `json:"old,omitempty"`
}

// OrderID returns the id the event refers to, preferring the new row.
func (e ChangeEvent) OrderID() string {
	if e.New != nil && e.New.ID != "" {
		return e.New.ID
	}
	if e.Old != nil {
		return e.Old.ID
	}
	return ""
}
