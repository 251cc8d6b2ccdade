package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/advlattice/internal/model"
	"github.com/ppiankov/advlattice/internal/results"
)

// ErrUnknownGoal is returned by Table for pairs it has no entry for.
var ErrUnknownGoal = errors.New("no table entry")

// TableEntry describes one property as the set of weakest models under
// which it is attacked.
type TableEntry struct {
	Attacks []string `yaml:"attacks"`
	Bounded bool     `yaml:"bounded"`
}

// Table answers from known results instead of running the verifier.
// Verdicts are monotone: a model is attacked iff it dominates a listed attack.
type Table struct {
	Subjects map[string]map[string]TableEntry `yaml:"subjects"`

	universe *model.Universe
	attacks  map[results.Pair][]model.Model
	calls    atomic.Int64
}

// LoadTable reads a YAML verdict table.
func LoadTable(path string, u *model.Universe) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backend: read table: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("backend: parse table: %w", err)
	}
	if err := t.bind(u); err != nil {
		return nil, err
	}
	return &t, nil
}

// NewTable builds a table from entries keyed by subject and property.
func NewTable(u *model.Universe, subjects map[string]map[string]TableEntry) (*Table, error) {
	t := &Table{Subjects: subjects}
	if err := t.bind(u); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) bind(u *model.Universe) error {
	t.universe = u.Unrestricted()
	t.attacks = make(map[results.Pair][]model.Model)
	for subject, props := range t.Subjects {
		for property, entry := range props {
			pair := results.Pair{Subject: subject, Property: property}
			t.attacks[pair] = []model.Model{}
			for _, key := range entry.Attacks {
				m, err := t.universe.Parse(key)
				if err != nil {
					return fmt.Errorf("backend: table %s/%s: %w", subject, property, err)
				}
				t.attacks[pair] = append(t.attacks[pair], m)
			}
		}
	}
	return nil
}

// Verify looks the pair up and ranks m.
func (t *Table) Verify(ctx context.Context, subject, property string, m model.Model) (results.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	attacks, ok := t.attacks[results.Pair{Subject: subject, Property: property}]
	if !ok {
		return 0, fmt.Errorf("backend: %s/%s: %w", subject, property, ErrUnknownGoal)
	}
	t.calls.Add(1)

	bounded := t.Subjects[subject][property].Bounded
	for _, a := range attacks {
		if a.WeakerThanOrEqual(m, 1) {
			if bounded {
				return results.FalseBounded, nil
			}
			return results.FalseDefinite, nil
		}
	}
	if bounded {
		return results.TrueBounded, nil
	}
	return results.TrueDefinite, nil
}

// Calls returns how many lookups were answered.
func (t *Table) Calls() int { return int(t.calls.Load()) }

// Pairs lists every (subject, property) in the table.
func (t *Table) Pairs() []results.Pair {
	out := make([]results.Pair, 0, len(t.attacks))
	for p := range t.attacks {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		return out[i].Property < out[j].Property
	})
	return out
}
