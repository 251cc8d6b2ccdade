package lattice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/advlattice/internal/model"
)

func collect(seq func(func(model.Model) bool)) []model.Model {
	var out []model.Model
	seq(func(m model.Model) bool {
		out = append(out, m)
		return true
	})
	return out
}

func TestTraverseCompleteness(t *testing.T) {
	u := model.Default()
	tr := New(u)

	got := collect(tr.Traverse(true))
	require.Len(t, got, u.CountTypes())

	seen := make(map[string]bool)
	for _, m := range got {
		assert.False(t, seen[m.DBKey()], "duplicate %s", m.DBKey())
		seen[m.DBKey()] = true
	}
	assert.Equal(t, u.Min().DBKey(), got[0].DBKey())
	assert.Equal(t, u.Max().DBKey(), got[1].DBKey())
}

func TestTraverseIsDeterministicAndCached(t *testing.T) {
	tr := New(model.Default())
	a := tr.Order(false)
	b := tr.Order(false)
	require.Equal(t, len(a), len(b))
	assert.Same(t, &a[0], &b[0], "order should be computed once")

	other := New(model.Default()).Order(false)
	for i := range a {
		assert.Equal(t, a[i].DBKey(), other[i].DBKey())
	}
}

func TestTraverseOrderedByPriority(t *testing.T) {
	u := model.Default()
	order := New(u).Order(false)
	n := u.CountTypes()

	prev := -1
	for i, m := range order[2:] {
		p := Priority(n, len(m.Neighbors(-1, false)), len(m.Neighbors(1, false)))
		if i > 0 {
			assert.LessOrEqual(t, p, prev, "priority increased at %s", m.DBKey())
		}
		prev = p
	}
}

func TestTraverseStopsEarly(t *testing.T) {
	tr := New(model.Default())
	count := 0
	for range tr.Traverse(false) {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)

	// Restartable: a fresh range sees everything again.
	assert.Len(t, collect(tr.Traverse(false)), model.Default().CountTypes())
}

func TestCanonicalMatchesEnumeration(t *testing.T) {
	u := model.Default()
	got := collect(New(u).Canonical(false))
	want := u.Models()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]))
	}
}

func TestTraverseRestricted(t *testing.T) {
	u, err := model.Default().Restrict([]string{"actor", "external", "actor notgroup", "notgroup"})
	require.NoError(t, err)
	tr := New(u)

	restricted := collect(tr.Traverse(false))
	require.Len(t, restricted, 4)
	assert.Equal(t, model.EmptyKey, restricted[0].DBKey(), "least member pinned first even when listed second")
	assert.Equal(t, "actor notgroup", restricted[1].DBKey(), "greatest member pinned second")
	assert.Equal(t, "actor", restricted[2].DBKey())
	assert.Equal(t, "notgroup", restricted[3].DBKey())

	var canonical []string
	for m := range tr.Canonical(false) {
		canonical = append(canonical, m.DBKey())
	}
	assert.Equal(t, []string{"actor", model.EmptyKey, "actor notgroup", "notgroup"}, canonical)

	full := collect(tr.Traverse(true))
	assert.Len(t, full, 168)
	assert.Equal(t, model.EmptyKey, full[0].DBKey())
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 10*2+5, Priority(10, 5, 2))
	assert.Equal(t, 10*2+5, Priority(10, 2, 5))
	assert.Equal(t, 0, Priority(10, 0, 0))
}
