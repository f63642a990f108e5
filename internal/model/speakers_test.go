package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeakerTable_Names(t *testing.T) {
	table := NewSpeakerTable(map[string]int{"EN-US": 0, "EN-AU": 3, "EN-BR": 1, "EN_INDIA": 2, "EN-Default": 4})

	assert.Equal(t, []string{"EN-AU", "EN-BR", "EN-Default", "EN-US", "EN_INDIA"}, table.Names())
}

func TestSpeakerTable_IsACopy(t *testing.T) {
	src := map[string]int{"ES": 0}
	table := NewSpeakerTable(src)
	src["ES-MX"] = 1

	_, ok := table.Lookup("ES-MX")
	assert.False(t, ok)
}

func TestSpeakerTable_Lookup(t *testing.T) {
	table := NewSpeakerTable(map[string]int{"ZH": 1})

	id, ok := table.Lookup("ZH")
	assert.True(t, ok)
	assert.Equal(t, 1, id)

	_, ok = table.Lookup("zh")
	assert.False(t, ok, "speaker names are case sensitive")
}

func TestSpeakerTable_Fallback(t *testing.T) {
	tests := []struct {
		name     string
		table    map[string]int
		wantName string
		wantID   int
		wantOK   bool
	}{
		{"empty", map[string]int{}, "", 0, false},
		{"single", map[string]int{"JP": 5}, "JP", 5, true},
		{"lowest id", map[string]int{"EN-US": 0, "EN-BR": 1, "EN-AU": 3}, "EN-US", 0, true},
		{"tie broken by name", map[string]int{"b": 2, "a": 2, "c": 7}, "a", 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, id, ok := NewSpeakerTable(tt.table).Fallback()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
