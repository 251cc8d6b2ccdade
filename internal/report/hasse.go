package report

import (
	"fmt"
	"strings"

	"github.com/ppiankov/advlattice/internal/model"
	"github.com/ppiankov/advlattice/internal/results"
)

var verdictColors = map[results.Verdict]string{
	results.FalseDefinite: "#e06666",
	results.FalseBounded:  "#f4b183",
	results.TrueBounded:   "#b6d7a8",
	results.TrueDefinite:  "#6aa84f",
}

// Hasse renders the covering relation of u as a DOT digraph, weakest
// models at the top. With a non-nil lookup, nodes are filled by the
// verdict recorded for the pair.
func Hasse(u *model.Universe, lookup Lookup, subject, property string) string {
	var sb strings.Builder

	sb.WriteString("digraph Lattice {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=\"#ffffff\", fontname=\"Helvetica\"];\n")
	sb.WriteString("  edge [fontsize=9];\n")
	if lookup != nil {
		fmt.Fprintf(&sb, "  label=%s;\n  labelloc=t;\n", quote(subject+" "+property))
	}
	sb.WriteString("\n")

	models := u.Models()
	for _, m := range models {
		attrs := fmt.Sprintf("label=%s", quote(m.DotKey()))
		if lookup != nil {
			if v, ok := lookup.Get(subject, property, m.DBKey()); ok {
				attrs += fmt.Sprintf(", fillcolor=%s, tooltip=%s", quote(verdictColors[v]), quote(v.String()))
			}
		}
		fmt.Fprintf(&sb, "  %s [%s];\n", quote(m.DBKey()), attrs)
	}
	sb.WriteString("\n")

	for _, m := range models {
		for _, n := range m.Neighbors(1, false) {
			fmt.Fprintf(&sb, "  %s -> %s [label=%s];\n",
				quote(m.DBKey()), quote(n.Model.DBKey()), quote(n.Delta.String()))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
