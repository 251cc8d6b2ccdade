package results

import (
	"fmt"

	"github.com/ppiankov/advlattice/internal/model"
)

// SetWithClosure records v for m and propagates it across the full
// universe: an attack persists in every stronger model, an acceptable
// verdict holds in every weaker model. Already decided models are left
// alone. When m itself was already decided, the stored verdict is the
// one propagated, never v. It returns the number of verdicts recorded,
// including m's own.
func (c *Cache) SetWithClosure(subject, property string, m model.Model, v Verdict) (int, error) {
	written := 0
	ok, err := c.Set(subject, property, m.DBKey(), v)
	if err != nil {
		return 0, err
	}
	if ok {
		written++
	} else if stored, found := c.Get(subject, property, m.DBKey()); found {
		v = stored
	}

	direction := -1
	if !v.Acceptable() {
		direction = 1
	}

	for _, other := range c.universe.Models() {
		if !m.WeakerThanOrEqual(other, direction) {
			continue
		}
		ok, err := c.Set(subject, property, other.DBKey(), v)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}
	return written, nil
}

// CloseTransitiveClosure re-propagates every recorded verdict so that
// all implied entries are present. Entries whose model key no longer
// parses are skipped. It returns the number of verdicts added.
func (c *Cache) CloseTransitiveClosure() (int, error) {
	added := 0
	for _, e := range c.Entries() {
		m, err := c.universe.Parse(e.Model)
		if err != nil {
			c.logger.Warn("closure: skipping unparseable model key",
				"subject", e.Subject, "property", e.Property, "model", e.Model, "error", err)
			continue
		}
		n, err := c.SetWithClosure(e.Subject, e.Property, m, e.Verdict)
		if err != nil {
			return added, fmt.Errorf("results: closure for %s/%s/%s: %w", e.Subject, e.Property, e.Model, err)
		}
		added += n
	}
	c.logger.Info("transitive closure complete", "added", added, "entries", c.Len())
	return added, nil
}
