package model

import (
	"sort"
	"strings"
)

// Delta is the token-level difference between two models.
// Deltas compare equal when their rendered forms are equal.
type Delta struct {
	Removed []string `json:"removed,omitempty"`
	Added   []string `json:"added,omitempty"`
}

// NewDelta computes the difference leading from one model to another.
// A model without tokens contributes the EmptyKey token, so leaving the
// default model reads as "-external+...".
func NewDelta(from, to Model) Delta {
	a := tokenSet(from)
	b := tokenSet(to)

	var d Delta
	for t := range a {
		if !b[t] {
			d.Removed = append(d.Removed, t)
		}
	}
	for t := range b {
		if !a[t] {
			d.Added = append(d.Added, t)
		}
	}
	sort.Strings(d.Removed)
	sort.Strings(d.Added)
	return d
}

func tokenSet(m Model) map[string]bool {
	set := make(map[string]bool)
	for _, t := range m.Tokens() {
		set[t] = true
	}
	if len(set) == 0 {
		set[EmptyKey] = true
	}
	return set
}

// IsEmpty reports whether the delta changes nothing.
func (d Delta) IsEmpty() bool {
	return len(d.Removed) == 0 && len(d.Added) == 0
}

// String renders the delta as "-a-b+c".
func (d Delta) String() string {
	var b strings.Builder
	for _, t := range d.Removed {
		b.WriteString("-")
		b.WriteString(t)
	}
	for _, t := range d.Added {
		b.WriteString("+")
		b.WriteString(t)
	}
	return b.String()
}

// Equal compares rendered forms.
func (d Delta) Equal(o Delta) bool {
	return d.String() == o.String()
}
