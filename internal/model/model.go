// Package model describes adversary capability models as points in a
// multi-axis lattice and the symbolic differences between them.
package model

import (
	"sort"
	"strings"
)

// Vector holds one level index per axis.
type Vector []int

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	return append(Vector(nil), v...)
}

// Equal reports whether v and w are pointwise equal.
func (v Vector) Equal(w Vector) bool {
	if len(v) != len(w) {
		return false
	}
	for i := range v {
		if v[i] != w[i] {
			return false
		}
	}
	return true
}

// Model is one point of a Universe. Models are values: operations
// return new models and never modify the receiver.
type Model struct {
	u    *Universe
	vec  Vector
	Name string
}

// Universe returns the universe the model belongs to.
func (m Model) Universe() *Universe { return m.u }

// Vector returns a copy of the level indices.
func (m Model) Vector() Vector { return m.vec.Clone() }

// Level returns the level index of axis i.
func (m Model) Level(i int) int { return m.vec[i] }

// IsZero reports whether m is the zero Model (not bound to a universe).
func (m Model) IsZero() bool { return m.u == nil }

// Equal reports pointwise equality.
func (m Model) Equal(o Model) bool { return m.vec.Equal(o.vec) }

// WeakerThanOrEqual reports pointwise dominance of m by o.
// A negative direction inverts the test.
func (m Model) WeakerThanOrEqual(o Model, direction int) bool {
	if len(m.vec) != len(o.vec) {
		return false
	}
	for i := range m.vec {
		if direction >= 0 && m.vec[i] > o.vec[i] {
			return false
		}
		if direction < 0 && m.vec[i] < o.vec[i] {
			return false
		}
	}
	return true
}

// Next returns the successor of m in canonical enumeration order and
// false once the enumeration is exhausted. The full universe is walked
// odometer style (axis 0 fastest) skipping insane vectors; a restricted
// universe is walked in allow-list order.
func (m Model) Next() (Model, bool) {
	u := m.u
	if u.restricted != nil {
		idx, ok := u.position[m.DBKey()]
		if !ok || idx+1 >= len(u.restricted) {
			return Model{}, false
		}
		return Model{u: u, vec: u.restricted[idx+1].Clone()}, true
	}

	v := m.vec.Clone()
	for {
		i := 0
		for ; i < len(v); i++ {
			v[i]++
			if v[i] < len(u.axes[i].Levels) {
				break
			}
			v[i] = 0
		}
		if i == len(v) {
			return Model{}, false
		}
		if u.Sane(v) {
			return Model{u: u, vec: v}, true
		}
	}
}

// Union returns the least upper bound of m and o, corrected to be sane.
func (m Model) Union(o Model) Model {
	v := m.vec.Clone()
	for i := range v {
		if i < len(o.vec) && o.vec[i] > v[i] {
			v[i] = o.vec[i]
		}
	}
	return m.u.Unrestricted().New(v)
}

// Describe returns the token of axis i, or "" at the default level.
func (m Model) Describe(i int) string {
	return m.u.axes[i].Levels[m.vec[i]].Token
}

// Tokens returns the non-empty tokens in axis order.
func (m Model) Tokens() []string {
	var out []string
	for i := range m.vec {
		if t := m.Describe(i); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// DotKey renders the tokens in axis order, for stable diagram labels.
func (m Model) DotKey() string {
	toks := m.Tokens()
	if len(toks) == 0 {
		return EmptyKey
	}
	return strings.Join(toks, " ")
}

// DBKey renders the sorted tokens; it is the cache key of the model.
func (m Model) DBKey() string {
	toks := m.Tokens()
	if len(toks) == 0 {
		return EmptyKey
	}
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

// String returns the name if set, otherwise the DBKey.
func (m Model) String() string {
	if m.Name != "" {
		return m.Name
	}
	return m.DBKey()
}

// Options returns the verifier flags selected by the model, in axis order.
func (m Model) Options() []string {
	var out []string
	for i := range m.vec {
		if f := m.u.axes[i].Levels[m.vec[i]].Flag; f != "" {
			out = append(out, f)
		}
	}
	return out
}

// OptionString returns Options joined by spaces.
func (m Model) OptionString() string {
	return strings.Join(m.Options(), " ")
}
