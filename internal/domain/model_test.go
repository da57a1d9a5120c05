package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableNumberJSON(t *testing.T) {
	tests := []struct {
		in   string
		want TableNumber
	}{
		{`5`, Table(5)},
		{`"12"`, Table(12)},
		{`"unknown"`, TableNumber{}},
		{`"desconocida"`, TableNumber{}},
		{`null`, TableNumber{}},
		{`0`, TableNumber{}},
		{`"terraza"`, TableNumber{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got TableNumber
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	b, err := json.Marshal(Table(7))
	require.NoError(t, err)
	assert.Equal(t, `7`, string(b))

	b, err = json.Marshal(TableNumber{})
	require.NoError(t, err)
	assert.Equal(t, `"unknown"`, string(b))
}

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("cooking")
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	_, err = ParseStatus("")
	assert.True(t, IsValidation(err))
}

func TestParseEventType(t *testing.T) {
	et, ok := ParseEventType("INSERT")
	require.True(t, ok)
	assert.Equal(t, EventInsert, et)

	_, ok = ParseEventType("TRUNCATE")
	assert.False(t, ok)
}

func TestChangeEventOrderID(t *testing.T) {
	assert.Equal(t, "a", ChangeEvent{New: &Order{ID: "a"}, Old: &Order{ID: "b"}}.OrderID())
	assert.Equal(t, "b", ChangeEvent{Old: &Order{ID: "b"}}.OrderID())
	assert.Equal(t, "", ChangeEvent{}.OrderID())
}
