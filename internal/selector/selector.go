// Package selector picks the next undecided model to hand to the verifier
// for a (subject, property) pair.
package selector

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ppiankov/advlattice/internal/lattice"
	"github.com/ppiankov/advlattice/internal/model"
	"github.com/ppiankov/advlattice/internal/results"
)

// ErrRepeatedGoal signals that the same model was selected twice in a
// row, meaning the previous verdict did not decide it.
var ErrRepeatedGoal = errors.New("open goal selected twice in a row")

// InvariantError reports a selector invariant violation.
type InvariantError struct {
	Subject  string
	Property string
	Model    string
	Err      error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("selector: %s/%s at %s: %v", e.Subject, e.Property, e.Model, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }

// Lookup is the read side of the verdict cache.
type Lookup interface {
	Get(subject, property, modelKey string) (results.Verdict, bool)
}

// Candidate is an undecided model with its gain estimates.
type Candidate struct {
	Model     model.Model
	Lowers    int // undecided models strictly below
	Highers   int // undecided models strictly above
	WorstCase int
	BestCase  int
	Score     int
}

// Selector ranks open goals greedily: deciding a model with many
// undecided models on both sides resolves the most of them by closure.
type Selector struct {
	traversal *lattice.Traversal
	cache     Lookup

	mu   sync.Mutex
	last map[results.Pair]string
}

// New returns a selector over the traversal's universe.
func New(t *lattice.Traversal, cache Lookup) *Selector {
	return &Selector{
		traversal: t,
		cache:     cache,
		last:      make(map[results.Pair]string),
	}
}

// Open returns the undecided models for the pair in the traversal's
// configured order, which also decides ties between equal scores.
func (s *Selector) Open(subject, property string) []model.Model {
	var open []model.Model
	for _, m := range s.traversal.Visit(false) {
		if _, ok := s.cache.Get(subject, property, m.DBKey()); !ok {
			open = append(open, m)
		}
	}
	return open
}

// Remaining returns the number of undecided models for the pair.
func (s *Selector) Remaining(subject, property string) int {
	return len(s.Open(subject, property))
}

// Rank scores every open goal. Candidates are returned in traversal
// order; use Best to pick one.
func (s *Selector) Rank(subject, property string) []Candidate {
	open := s.Open(subject, property)
	n := s.traversal.Universe().CountTypes()

	out := make([]Candidate, len(open))
	for i, m := range open {
		c := Candidate{Model: m}
		for j, o := range open {
			if i == j {
				continue
			}
			if o.WeakerThanOrEqual(m, 1) {
				c.Lowers++
			}
			if m.WeakerThanOrEqual(o, 1) {
				c.Highers++
			}
		}
		c.WorstCase, c.BestCase = c.Lowers, c.Highers
		if c.WorstCase > c.BestCase {
			c.WorstCase, c.BestCase = c.BestCase, c.WorstCase
		}
		c.Score = lattice.Priority(n, c.Lowers, c.Highers)
		out[i] = c
	}
	return out
}

// Best returns the highest scoring candidate; ties go to the earliest.
func Best(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}

// Next returns the most informative undecided model for the pair, or
// false when every model is decided. Selecting the same model twice in
// a row yields an InvariantError wrapping ErrRepeatedGoal.
func (s *Selector) Next(subject, property string) (model.Model, bool, error) {
	best, ok := Best(s.Rank(subject, property))

	pair := results.Pair{Subject: subject, Property: property}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok {
		delete(s.last, pair)
		return model.Model{}, false, nil
	}

	key := best.Model.DBKey()
	if s.last[pair] == key {
		return model.Model{}, false, &InvariantError{
			Subject: subject, Property: property, Model: key, Err: ErrRepeatedGoal,
		}
	}
	s.last[pair] = key
	return best.Model, true, nil
}

// Reset forgets the previous selection for the pair.
func (s *Selector) Reset(subject, property string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.last, results.Pair{Subject: subject, Property: property})
}
