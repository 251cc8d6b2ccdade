// Package lattice enumerates the models of a universe, optionally in an
// order that visits highly connected models first.
package lattice

import (
	"iter"
	"sort"
	"sync"

	"github.com/ppiankov/advlattice/internal/model"
)

// Traversal enumerates a universe. The optimized order is computed on
// first use and shared by later calls.
type Traversal struct {
	universe *model.Universe
	optimize bool

	mu        sync.Mutex
	optimized map[bool][]model.Model // keyed by unrestricted
}

// Option configures a Traversal.
type Option func(*Traversal)

// WithOptimize selects the order Visit returns: optimized when on,
// canonical when off. It is on by default.
func WithOptimize(on bool) Option {
	return func(t *Traversal) {
		t.optimize = on
	}
}

// New returns a traversal over u.
func New(u *model.Universe, opts ...Option) *Traversal {
	t := &Traversal{
		universe:  u,
		optimize:  true,
		optimized: make(map[bool][]model.Model),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Optimized reports whether Visit uses the optimized order.
func (t *Traversal) Optimized() bool { return t.optimize }

// Visit returns the models in the configured order: Order when
// optimizing, canonical enumeration order otherwise.
func (t *Traversal) Visit(unrestricted bool) []model.Model {
	if t.optimize {
		return t.Order(unrestricted)
	}
	return t.target(unrestricted).Models()
}

// Universe returns the traversed universe.
func (t *Traversal) Universe() *model.Universe { return t.universe }

func (t *Traversal) target(unrestricted bool) *model.Universe {
	if unrestricted {
		return t.universe.Unrestricted()
	}
	return t.universe
}

// Canonical yields every model in enumeration order.
func (t *Traversal) Canonical(unrestricted bool) iter.Seq[model.Model] {
	u := t.target(unrestricted)
	return func(yield func(model.Model) bool) {
		for m, ok := u.First(), true; ok; m, ok = m.Next() {
			if !yield(m) {
				return
			}
		}
	}
}

// Traverse yields every model with the global minimum and maximum first,
// followed by the rest ordered by descending connectivity.
func (t *Traversal) Traverse(unrestricted bool) iter.Seq[model.Model] {
	order := t.Order(unrestricted)
	return func(yield func(model.Model) bool) {
		for _, m := range order {
			if !yield(m) {
				return
			}
		}
	}
}

// Order returns the optimized order as a slice. The slice is shared and
// must not be modified.
func (t *Traversal) Order(unrestricted bool) []model.Model {
	t.mu.Lock()
	defer t.mu.Unlock()
	if order, ok := t.optimized[unrestricted]; ok {
		return order
	}
	order := optimize(t.target(unrestricted))
	t.optimized[unrestricted] = order
	return order
}

// Priority scores a model by its lattice connectivity: models whose
// smaller neighbour count is large come first, the larger count breaks ties.
func Priority(universeSize, lowers, highers int) int {
	lo, hi := lowers, highers
	if lo > hi {
		lo, hi = hi, lo
	}
	return universeSize*lo + hi
}

func optimize(u *model.Universe) []model.Model {
	models := u.Models()
	n := len(models)
	minKey, maxKey := u.Min().DBKey(), u.Max().DBKey()

	type scored struct {
		m     model.Model
		score int
		pin   int // 2 = minimum, 1 = maximum, 0 = other
	}
	list := make([]scored, n)
	for i, m := range models {
		s := scored{m: m}
		switch m.DBKey() {
		case minKey:
			s.pin = 2
		case maxKey:
			s.pin = 1
		default:
			s.score = Priority(n, len(m.Neighbors(-1, false)), len(m.Neighbors(1, false)))
		}
		list[i] = s
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].pin != list[j].pin {
			return list[i].pin > list[j].pin
		}
		return list[i].score > list[j].score
	})

	out := make([]model.Model, n)
	for i, s := range list {
		out[i] = s.m
	}
	return out
}
