package model

import (
	"maps"
	"slices"
)

// SpeakerTable maps speaker names to engine speaker ids for one language.
// It is built once when the model loads and never modified.
type SpeakerTable map[string]int

// NewSpeakerTable copies src so later changes to the engine's map cannot leak in.
func NewSpeakerTable(src map[string]int) SpeakerTable {
	return SpeakerTable(maps.Clone(src))
}

// Names returns the speaker names in lexicographic order.
func (t SpeakerTable) Names() []string {
	return slices.Sorted(maps.Keys(t))
}

// Lookup returns the id of name.
func (t SpeakerTable) Lookup(name string) (int, bool) {
	id, ok := t[name]
	return id, ok
}

// Fallback returns the speaker used when a requested one is missing:
// the lowest id, ties broken by name. ok is false for an empty table.
func (t SpeakerTable) Fallback() (name string, id int, ok bool) {
	for n, i := range t {
		if !ok || i < id || (i == id && n < name) {
			name, id, ok = n, i, true
		}
	}
	return name, id, ok
}
