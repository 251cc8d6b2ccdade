package report

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/advlattice/internal/model"
	"github.com/ppiankov/advlattice/internal/results"
)

// actorBreaks fills the cache so that exactly the models with the actor
// capability are attacked.
func actorBreaks(t *testing.T, u *model.Universe) *results.Cache {
	t.Helper()
	cache := results.New(u)
	for _, m := range u.Models() {
		v := results.TrueDefinite
		if m.Level(1) > 0 {
			v = results.FalseDefinite
		}
		if _, err := cache.Set("ns3.spdl", "P1,claim1", m.DBKey(), v); err != nil {
			t.Fatal(err)
		}
	}
	return cache
}

func TestSummarizeComplete(t *testing.T) {
	u := model.Default()
	s := Summarize(actorBreaks(t, u), u, "ns3.spdl", "P1,claim1")

	if !s.Complete() || s.Models != 168 {
		t.Fatalf("decided %d of %d", s.Decided, s.Models)
	}
	if s.Verdicts["false"]+s.Verdicts["true"] != 168 {
		t.Errorf("verdicts = %v", s.Verdicts)
	}
	if want := []string{"actor"}; !reflect.DeepEqual(s.Attacked, want) {
		t.Errorf("Attacked = %v, want %v", s.Attacked, want)
	}
	if want := []string{"after notgroup rnr skr ssr"}; !reflect.DeepEqual(s.Safe, want) {
		t.Errorf("Safe = %v, want %v", s.Safe, want)
	}
	if want := []string{"+actor", "-external+actor"}; !reflect.DeepEqual(s.Breaking, want) {
		t.Errorf("Breaking = %v, want %v", s.Breaking, want)
	}
}

func TestSummarizePartial(t *testing.T) {
	u := model.Default()
	cache := results.New(u)
	actor, err := u.Parse("actor")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cache.SetWithClosure("ns3.spdl", "P1,claim1", actor, results.FalseBounded); err != nil {
		t.Fatal(err)
	}

	s := Summarize(cache, u, "ns3.spdl", "P1,claim1")
	if s.Complete() {
		t.Fatal("partial summary reported complete")
	}
	if s.Decided+len(s.Undecided) != s.Models {
		t.Errorf("decided %d + undecided %d != %d", s.Decided, len(s.Undecided), s.Models)
	}
	if s.Verdicts["false-bounded"] != s.Decided {
		t.Errorf("verdicts = %v", s.Verdicts)
	}
	if len(s.Safe) != 0 || len(s.Breaking) != 0 {
		t.Errorf("Safe = %v, Breaking = %v", s.Safe, s.Breaking)
	}

	other := Summarize(cache, u, "ns3.spdl", "P1,claim2")
	if other.Decided != 0 {
		t.Errorf("other property decided = %d", other.Decided)
	}
}

func TestFormatText(t *testing.T) {
	u := model.Default()
	out := FormatText([]*Summary{Summarize(actorBreaks(t, u), u, "ns3.spdl", "P1,claim1")})

	for _, want := range []string{
		"ns3.spdl | P1,claim1 | 168/168 decided",
		"Attacked from:\n  actor\n",
		"Breaking:\n  +actor\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Undecided") {
		t.Error("complete summary lists undecided models")
	}
	if FormatText(nil) != "No results recorded.\n" {
		t.Error("empty report")
	}
}

func TestFormatJSON(t *testing.T) {
	u := model.Default()
	out, err := FormatJSON([]*Summary{Summarize(actorBreaks(t, u), u, "ns3.spdl", "P1,claim1")})
	if err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["subject"] != "ns3.spdl" {
		t.Errorf("decoded = %v", decoded)
	}
	if _, ok := decoded[0]["undecided"]; ok {
		t.Error("empty undecided list serialized")
	}

	empty, err := FormatJSON(nil)
	if err != nil || empty != "[]" {
		t.Errorf("FormatJSON(nil) = %q, %v", empty, err)
	}
}

func TestHasse(t *testing.T) {
	u := model.Default()
	dot := Hasse(u, actorBreaks(t, u), "ns3.spdl", "P1,claim1")

	if !strings.HasPrefix(dot, "digraph Lattice {\n") || !strings.HasSuffix(dot, "}\n") {
		t.Fatalf("not a digraph:\n%s", dot)
	}
	if !strings.Contains(dot, `"external" -> "notgroup" [label="-external+notgroup"];`) {
		t.Error("missing edge from the minimum")
	}
	if !strings.Contains(dot, `"actor" [label="actor", fillcolor="#e06666"`) {
		t.Error("attacked node not coloured")
	}

	edges := 0
	for _, m := range u.Models() {
		edges += len(m.Neighbors(1, false))
	}
	if got := strings.Count(dot, " -> "); got != edges {
		t.Errorf("edges = %d, want %d", got, edges)
	}
	if got := strings.Count(dot, "[label="); got != edges+u.CountTypes() {
		t.Errorf("labelled elements = %d, want %d", got, edges+u.CountTypes())
	}
}

func TestHasseWithoutVerdicts(t *testing.T) {
	u, err := model.Default().Restrict([]string{"external", "actor", "notgroup", "actor notgroup"})
	if err != nil {
		t.Fatal(err)
	}
	dot := Hasse(u, nil, "", "")
	if strings.Contains(dot, "tooltip") || strings.Contains(dot, "labelloc") {
		t.Error("uncoloured diagram carries verdicts")
	}
	if got := strings.Count(dot, " -> "); got != 4 {
		t.Errorf("edges = %d, want 4:\n%s", got, dot)
	}
}
