package model

// Neighbor is a model adjacent to another in the lattice, with the delta
// leading to it.
type Neighbor struct {
	Model Model
	Delta Delta
}

// Neighbors returns the models reachable from m in the given direction
// (+1 stronger, -1 weaker).
//
// In the full universe each axis is moved by the smallest step that
// yields a sane vector, giving the Hasse-diagram edges. In a restricted
// universe the result is the set of minimal (direction +1) or maximal
// (direction -1) members comparable to m. With allPairs every strictly
// comparable member is returned instead.
func (m Model) Neighbors(direction int, allPairs bool) []Neighbor {
	step := 1
	if direction < 0 {
		step = -1
	}

	if allPairs || m.u.restricted != nil {
		return m.comparable(step, !allPairs)
	}

	var out []Neighbor
	for i := range m.vec {
		size := len(m.u.axes[i].Levels)
		for x := m.vec[i] + step; x >= 0 && x < size; x += step {
			v := m.vec.Clone()
			v[i] = x
			if m.u.Sane(v) {
				n := Model{u: m.u, vec: v}
				out = append(out, Neighbor{Model: n, Delta: NewDelta(m, n)})
				break
			}
		}
	}
	return out
}

// comparable collects members strictly above (step +1) or below (step -1)
// m. With covering set, only the members closest to m are kept.
func (m Model) comparable(step int, covering bool) []Neighbor {
	var cands []Model
	for _, c := range m.u.Models() {
		if c.Equal(m) || !m.WeakerThanOrEqual(c, step) {
			continue
		}
		cands = append(cands, c)
	}

	var out []Neighbor
	for _, c := range cands {
		if covering && dominatedWithin(c, cands, step) {
			continue
		}
		out = append(out, Neighbor{Model: c, Delta: NewDelta(m, c)})
	}
	return out
}

// dominatedWithin reports whether some other candidate lies strictly
// between the origin and c.
func dominatedWithin(c Model, cands []Model, step int) bool {
	for _, d := range cands {
		if !d.Equal(c) && d.WeakerThanOrEqual(c, step) {
			return true
		}
	}
	return false
}
