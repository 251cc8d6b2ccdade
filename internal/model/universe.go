package model

import (
	"errors"
	"fmt"
	"strings"
)

// EmptyKey is the key of a model with every axis at its default level.
const EmptyKey = "external"

// ErrUnknownToken is returned when a key contains a token no axis defines.
var ErrUnknownToken = errors.New("unknown model token")

// Level is one discrete capability level on an axis.
type Level struct {
	Token string `yaml:"token" json:"token"`
	Flag  string `yaml:"flag" json:"flag"`
}

// Axis is one independent dimension of adversary capability.
// Levels are ordered weakest first; index 0 is the default.
type Axis struct {
	Name   string  `yaml:"name" json:"name" validate:"required"`
	Levels []Level `yaml:"levels" json:"levels" validate:"min=1,dive"`
}

// Rule is a cross-axis dependency: Axis may only sit at Level while
// RequiresAxis is non-zero. Violations are corrected to Fallback.
type Rule struct {
	Axis         int `yaml:"axis" json:"axis" validate:"min=0"`
	Level        int `yaml:"level" json:"level" validate:"min=0"`
	RequiresAxis int `yaml:"requires_axis" json:"requires_axis" validate:"min=0"`
	Fallback     int `yaml:"fallback" json:"fallback" validate:"min=0"`
}

// Universe is the set of admissible security models: the axis
// definitions, the cross-axis rules, and an optional allow-list.
// A Universe is immutable after construction.
type Universe struct {
	axes  []Axis
	rules []Rule

	// token -> (axis, level)
	tokens map[string][2]int

	// restricted is nil for the full product space.
	restricted []Vector
	position   map[string]int
	full       *Universe
}

// DefaultAxes returns the compromise-adversary axes understood by the verifier.
func DefaultAxes() []Axis {
	return []Axis{
		{Name: "others", Levels: []Level{{}, {Token: "notgroup", Flag: "--LKRnotgroup=1"}}},
		{Name: "actor", Levels: []Level{{}, {Token: "actor", Flag: "--LKRactor=1"}}},
		{Name: "after", Levels: []Level{
			{},
			{Token: "aftercorrect", Flag: "--LKRaftercorrect=1"},
			{Token: "rnsafe", Flag: "--LKRrnsafe=1"},
			{Token: "after", Flag: "--LKRafter=1"},
		}},
		{Name: "sessionkey", Levels: []Level{{}, {Token: "skr", Flag: "--SKR=1"}}},
		{Name: "state", Levels: []Level{
			{},
			{Token: "ssrinfer", Flag: "--SSRinfer=1"},
			{Token: "ssr", Flag: "--SSR=1"},
		}},
		{Name: "random", Levels: []Level{{}, {Token: "rnr", Flag: "--RNR=1"}}},
	}
}

// DefaultRules returns the dependency rules for DefaultAxes: key reveal
// "if random numbers are safe" only differs from plain "after" when
// random numbers can be revealed at all.
func DefaultRules() []Rule {
	return []Rule{{Axis: 2, Level: 2, RequiresAxis: 5, Fallback: 3}}
}

// Default returns the unrestricted compromise universe.
func Default() *Universe {
	u, err := NewUniverse(DefaultAxes(), DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("model: default universe: %v", err))
	}
	return u
}

// NewUniverse validates the axes and rules and builds an unrestricted universe.
// Tokens of non-default levels must be non-empty and unique across all axes,
// which keeps DBKey and Parse inverse to each other.
func NewUniverse(axes []Axis, rules []Rule) (*Universe, error) {
	if len(axes) == 0 {
		return nil, fmt.Errorf("model: universe needs at least one axis")
	}

	u := &Universe{
		axes:   make([]Axis, len(axes)),
		rules:  append([]Rule(nil), rules...),
		tokens: make(map[string][2]int),
	}

	for i, ax := range axes {
		if len(ax.Levels) == 0 {
			return nil, fmt.Errorf("model: axis %d (%s) has no levels", i, ax.Name)
		}
		if ax.Levels[0].Token != "" {
			return nil, fmt.Errorf("model: axis %d (%s) default level must have an empty token", i, ax.Name)
		}
		for l, lv := range ax.Levels[1:] {
			level := l + 1
			switch {
			case lv.Token == "":
				return nil, fmt.Errorf("model: axis %d (%s) level %d has an empty token", i, ax.Name, level)
			case lv.Token == EmptyKey:
				return nil, fmt.Errorf("model: token %q is reserved", EmptyKey)
			case strings.ContainsAny(lv.Token, " \t\n"):
				return nil, fmt.Errorf("model: token %q contains whitespace", lv.Token)
			}
			if prev, dup := u.tokens[lv.Token]; dup {
				return nil, fmt.Errorf("model: token %q used by axis %d and axis %d", lv.Token, prev[0], i)
			}
			u.tokens[lv.Token] = [2]int{i, level}
		}
		u.axes[i] = Axis{Name: ax.Name, Levels: append([]Level(nil), ax.Levels...)}
	}

	for _, r := range u.rules {
		if r.Axis >= len(axes) || r.RequiresAxis >= len(axes) || r.Axis == r.RequiresAxis {
			return nil, fmt.Errorf("model: rule %+v references invalid axes", r)
		}
		size := len(axes[r.Axis].Levels)
		if r.Level == 0 || r.Level >= size || r.Fallback >= size || r.Fallback == r.Level {
			return nil, fmt.Errorf("model: rule %+v references invalid levels", r)
		}
	}

	return u, nil
}

// Restrict returns a universe limited to the models named by keys, in the
// given order. Keys are parsed and sanitised; duplicates after
// sanitisation are dropped.
func (u *Universe) Restrict(keys []string) (*Universe, error) {
	full := u.Unrestricted()
	r := &Universe{
		axes:     full.axes,
		rules:    full.rules,
		tokens:   full.tokens,
		position: make(map[string]int, len(keys)),
		full:     full,
	}
	for _, k := range keys {
		m, err := full.Parse(k)
		if err != nil {
			return nil, fmt.Errorf("model: restrict: %w", err)
		}
		dk := m.DBKey()
		if _, dup := r.position[dk]; dup {
			continue
		}
		r.position[dk] = len(r.restricted)
		r.restricted = append(r.restricted, m.vec)
	}
	if len(r.restricted) == 0 {
		return nil, fmt.Errorf("model: restrict: empty model list")
	}
	return r, nil
}

// Restricted reports whether the universe is limited to an allow-list.
func (u *Universe) Restricted() bool { return u.restricted != nil }

// Unrestricted returns the full product universe sharing u's axes and rules.
func (u *Universe) Unrestricted() *Universe {
	if u.full != nil {
		return u.full
	}
	return u
}

// Axes returns a copy of the axis definitions.
func (u *Universe) Axes() []Axis {
	out := make([]Axis, len(u.axes))
	copy(out, u.axes)
	return out
}

// Rules returns a copy of the dependency rules.
func (u *Universe) Rules() []Rule {
	return append([]Rule(nil), u.rules...)
}

// AxisCount returns the number of axes.
func (u *Universe) AxisCount() int { return len(u.axes) }

// AxisSize returns the number of levels on axis i.
func (u *Universe) AxisSize(i int) int { return len(u.axes[i].Levels) }

// ProductSize returns the size of the full combinatorial space, sane or not.
func (u *Universe) ProductSize() int {
	n := 1
	for _, ax := range u.axes {
		n *= len(ax.Levels)
	}
	return n
}

// CountTypes returns the number of sane models in the universe, or the
// length of the allow-list when restricted.
func (u *Universe) CountTypes() int {
	if u.restricted != nil {
		return len(u.restricted)
	}
	n := 0
	for m, ok := u.First(), true; ok; m, ok = m.Next() {
		n++
	}
	return n
}

// Validate checks v against the axis ranges and the dependency rules.
// It never fails: it reports whether v was already sane and returns a
// corrected copy. Out-of-range components are clamped.
func (u *Universe) Validate(v Vector) (bool, Vector) {
	out := make(Vector, len(u.axes))
	sane := len(v) == len(u.axes)
	for i := range u.axes {
		var x int
		if i < len(v) {
			x = v[i]
		}
		switch top := len(u.axes[i].Levels) - 1; {
		case x < 0:
			x, sane = 0, false
		case x > top:
			x, sane = top, false
		}
		out[i] = x
	}
	for _, r := range u.rules {
		if out[r.Axis] == r.Level && out[r.RequiresAxis] == 0 {
			out[r.Axis] = r.Fallback
			sane = false
		}
	}
	return sane, out
}

// Sane reports whether v needs no correction.
func (u *Universe) Sane(v Vector) bool {
	ok, _ := u.Validate(v)
	return ok
}

// New returns the model for v, corrected to be sane.
func (u *Universe) New(v Vector) Model {
	_, fixed := u.Validate(v)
	return Model{u: u, vec: fixed}
}

// First returns the model canonical enumeration starts from: the
// all-default model, or the first allow-listed model when restricted.
func (u *Universe) First() Model {
	if u.restricted != nil {
		return Model{u: u, vec: u.restricted[0].Clone()}
	}
	return Model{u: u, vec: make(Vector, len(u.axes))}
}

// Min returns the weakest model: every axis at its default level.
// In a restricted universe it is the least member, or the first
// allow-listed member with nothing below it when there is no least one.
func (u *Universe) Min() Model {
	if u.restricted != nil {
		return u.extreme(1)
	}
	return Model{u: u, vec: make(Vector, len(u.axes))}
}

// Max returns the strongest sane model: every axis at its top level,
// then corrected. In a restricted universe it is the greatest member, or
// the last allow-listed member with nothing above it.
func (u *Universe) Max() Model {
	if u.restricted != nil {
		return u.extreme(-1)
	}
	v := make(Vector, len(u.axes))
	for i, ax := range u.axes {
		v[i] = len(ax.Levels) - 1
	}
	return u.New(v)
}

// extreme scans the allow-list forwards for a minimal member (step +1)
// or backwards for a maximal one (step -1).
func (u *Universe) extreme(step int) Model {
	members := make([]Model, len(u.restricted))
	for i, v := range u.restricted {
		members[i] = Model{u: u, vec: v}
	}
	for i := range members {
		c := members[i]
		if step < 0 {
			c = members[len(members)-1-i]
		}
		if !dominatedWithin(c, members, step) {
			return Model{u: u, vec: c.vec.Clone()}
		}
	}
	return Model{u: u, vec: members[0].vec.Clone()}
}

// Models returns every model of the universe in canonical order.
func (u *Universe) Models() []Model {
	var out []Model
	for m, ok := u.First(), true; ok; m, ok = m.Next() {
		out = append(out, m)
	}
	return out
}

// Contains reports whether m is a member of the universe.
func (u *Universe) Contains(m Model) bool {
	if u.restricted != nil {
		_, ok := u.position[m.DBKey()]
		return ok
	}
	return u.Sane(m.vec)
}

// Parse reconstructs a model from a key produced by DBKey or DotKey.
// Parsing is exact per token, so every sane model round-trips.
func (u *Universe) Parse(key string) (Model, error) {
	v := make(Vector, len(u.axes))
	for _, tok := range strings.Fields(key) {
		if tok == EmptyKey {
			continue
		}
		pos, ok := u.tokens[tok]
		if !ok {
			return Model{}, fmt.Errorf("%w: %q", ErrUnknownToken, tok)
		}
		if v[pos[0]] < pos[1] {
			v[pos[0]] = pos[1]
		}
	}
	return u.New(v), nil
}
