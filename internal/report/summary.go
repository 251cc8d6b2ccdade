// Package report renders the decided lattice of a (subject, property)
// pair as summaries and Hasse diagrams.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/advlattice/internal/model"
	"github.com/ppiankov/advlattice/internal/results"
)

const separator = "──────────────────────────────────────────────────────────────────"

// Lookup is the read side of the verdict cache.
type Lookup interface {
	Get(subject, property, modelKey string) (results.Verdict, bool)
}

// Summary describes what is known about one (subject, property) pair.
type Summary struct {
	Subject   string         `json:"subject"`
	Property  string         `json:"property"`
	Models    int            `json:"models"`
	Decided   int            `json:"decided"`
	Verdicts  map[string]int `json:"verdicts"`
	Attacked  []string       `json:"minimal_attacked,omitempty"`
	Safe      []string       `json:"maximal_acceptable,omitempty"`
	Breaking  []string       `json:"breaking_deltas,omitempty"`
	Undecided []string       `json:"undecided,omitempty"`
}

// Complete reports whether every model of the universe is decided.
func (s *Summary) Complete() bool { return s.Decided == s.Models }

// Summarize collects verdict counts, the weakest attacked models, the
// strongest acceptable models and the breaking deltas of the pair over
// the models of u.
//
// A delta is breaking when at least one decided Hasse edge carrying it
// leads from an acceptable to an attacked model and no decided edge
// carrying it starts and ends acceptable: adding those capabilities to
// any acceptable model known so far yields an attack.
func Summarize(lookup Lookup, u *model.Universe, subject, property string) *Summary {
	s := &Summary{
		Subject:  subject,
		Property: property,
		Verdicts: make(map[string]int),
	}

	models := u.Models()
	s.Models = len(models)

	verdicts := make(map[string]results.Verdict, len(models))
	var attacked, safe []model.Model
	for _, m := range models {
		v, ok := lookup.Get(subject, property, m.DBKey())
		if !ok {
			s.Undecided = append(s.Undecided, m.DBKey())
			continue
		}
		verdicts[m.DBKey()] = v
		s.Decided++
		s.Verdicts[v.String()]++
		if v.Acceptable() {
			safe = append(safe, m)
		} else {
			attacked = append(attacked, m)
		}
	}

	s.Attacked = extremes(attacked, 1)
	s.Safe = extremes(safe, -1)
	s.Breaking = breakingDeltas(models, verdicts)
	return s
}

// extremes keeps the members with no other member strictly below
// (direction +1) or above (direction -1) them.
func extremes(ms []model.Model, direction int) []string {
	var out []string
	for _, m := range ms {
		dominated := false
		for _, o := range ms {
			if !o.Equal(m) && o.WeakerThanOrEqual(m, direction) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, m.DBKey())
		}
	}
	sort.Strings(out)
	return out
}

func breakingDeltas(models []model.Model, verdicts map[string]results.Verdict) []string {
	breaks := make(map[string]bool)
	holds := make(map[string]bool)

	for _, m := range models {
		from, ok := verdicts[m.DBKey()]
		if !ok || !from.Acceptable() {
			continue
		}
		for _, n := range m.Neighbors(1, false) {
			to, ok := verdicts[n.Model.DBKey()]
			if !ok {
				continue
			}
			d := n.Delta.String()
			if to.Acceptable() {
				holds[d] = true
			} else {
				breaks[d] = true
			}
		}
	}

	var out []string
	for d := range breaks {
		if !holds[d] {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// FormatText renders summaries as a human-readable report.
func FormatText(sums []*Summary) string {
	if len(sums) == 0 {
		return "No results recorded.\n"
	}

	var b strings.Builder
	for i, s := range sums {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s | %s | %d/%d decided\n", s.Subject, s.Property, s.Decided, s.Models)
		b.WriteString(separator + "\n")

		var counts []string
		for v := results.TrueDefinite; v >= results.FalseDefinite; v-- {
			if n := s.Verdicts[v.String()]; n > 0 {
				counts = append(counts, fmt.Sprintf("%d %s", n, v))
			}
		}
		if len(counts) > 0 {
			fmt.Fprintf(&b, "Verdicts:  %s\n", strings.Join(counts, ", "))
		}
		writeList(&b, "Attacked from:", s.Attacked)
		writeList(&b, "Safe up to:", s.Safe)
		writeList(&b, "Breaking:", s.Breaking)
		if !s.Complete() {
			fmt.Fprintf(&b, "Undecided: %d\n", len(s.Undecided))
		}
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title + "\n")
	for _, it := range items {
		fmt.Fprintf(b, "  %s\n", it)
	}
}

// FormatJSON renders summaries as indented JSON.
func FormatJSON(sums []*Summary) (string, error) {
	if sums == nil {
		sums = []*Summary{}
	}
	data, err := json.MarshalIndent(sums, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: marshal summaries: %w", err)
	}
	return string(data), nil
}
