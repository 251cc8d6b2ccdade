package results

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/advlattice/internal/model"
)

func newTestCache(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "results.tsv")
	c, err := Open(path, model.Default())
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, path
}

func TestSetFirstWriteWins(t *testing.T) {
	c, path := newTestCache(t)

	ok, err := c.Set("P1", "claim1", "actor", TrueDefinite)
	if err != nil || !ok {
		t.Fatalf("first set: ok=%v err=%v", ok, err)
	}
	for _, v := range []Verdict{FalseDefinite, TrueBounded, TrueDefinite} {
		ok, err := c.Set("P1", "claim1", "actor", v)
		if err != nil {
			t.Fatalf("repeat set: %v", err)
		}
		if ok {
			t.Fatalf("repeat set with %v was recorded", v)
		}
	}

	got, found := c.Get("P1", "claim1", "actor")
	if !found || got != TrueDefinite {
		t.Fatalf("Get = %v, %v; want %v", got, found, TrueDefinite)
	}

	data, _ := os.ReadFile(path)
	if lines := strings.Count(string(data), "\n"); lines != 1 {
		t.Fatalf("expected 1 log line, got %d", lines)
	}
}

func TestGetUndecided(t *testing.T) {
	c, _ := newTestCache(t)
	if _, ok := c.Get("P1", "claim1", "external"); ok {
		t.Fatal("expected undecided")
	}
}

func TestReplayRestoresEntries(t *testing.T) {
	c, path := newTestCache(t)
	c.Set("P1", "claim1", "external", TrueBounded)
	c.Set("P1", "claim2", "actor notgroup", FalseDefinite)
	c.Close()

	reopened, err := Open(path, model.Default())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if v, ok := reopened.Get("P1", "claim1", "external"); !ok || v != TrueBounded {
		t.Errorf("claim1 = %v, %v", v, ok)
	}
	if v, ok := reopened.Get("P1", "claim2", "actor notgroup"); !ok || v != FalseDefinite {
		t.Errorf("claim2 = %v, %v", v, ok)
	}
	if reopened.Len() != 2 {
		t.Errorf("Len = %d, want 2", reopened.Len())
	}
}

func TestReplayKeepsFirstOfConflictingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.tsv")
	content := "P1\tclaim1\tactor\t3\nP1\tclaim1\tactor\t0\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := Open(path, model.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if v, _ := c.Get("P1", "claim1", "actor"); v != TrueDefinite {
		t.Fatalf("got %v, want first line's verdict", v)
	}
}

func TestReplaySkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.tsv")
	content := strings.Join([]string{
		"P1\tclaim1\texternal\t2",
		"garbage",
		"P1\tclaim1\tactor\t7",
		"P1\tclaim1\tactor\tx",
		"\tclaim1\tactor\t1",
		"P1\tclaim1\tskr\t1\textra",
		"P1\tclaim1\tnotgroup\t0",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := Open(path, model.Default())
	if err != nil {
		t.Fatalf("malformed lines must not be fatal: %v", err)
	}
	defer c.Close()

	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if c.Skipped() != 5 {
		t.Errorf("Skipped = %d, want 5", c.Skipped())
	}
}

func TestMissingFileIsEmpty(t *testing.T) {
	entries, skipped, err := Load(filepath.Join(t.TempDir(), "nope.tsv"))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if entries != nil || skipped != 0 {
		t.Fatalf("expected empty result, got %d entries, %d skipped", len(entries), skipped)
	}
}

func TestTruncatedTailIsTerminated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.tsv")
	if err := os.WriteFile(path, []byte("P1\tclaim1\texternal\t2\nP1\tcla"), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := Open(path, model.Default())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Set("P1", "claim1", "actor", FalseBounded); err != nil {
		t.Fatal(err)
	}
	c.Close()

	entries, skipped, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || skipped != 1 {
		t.Fatalf("entries=%d skipped=%d, want 2 and 1", len(entries), skipped)
	}
	if entries[1].Model != "actor" || entries[1].Verdict != FalseBounded {
		t.Fatalf("unexpected entry %+v", entries[1])
	}
}

func TestSetRejectsBadInput(t *testing.T) {
	c, _ := newTestCache(t)

	tests := []struct {
		name    string
		subject string
		prop    string
		key     string
		verdict Verdict
		want    error
	}{
		{"tab in subject", "P\t1", "claim1", "actor", TrueDefinite, ErrInvalidIdentifier},
		{"newline in property", "P1", "claim\n1", "actor", TrueDefinite, ErrInvalidIdentifier},
		{"empty key", "P1", "claim1", "", TrueDefinite, ErrInvalidIdentifier},
		{"rank too high", "P1", "claim1", "actor", Verdict(4), ErrInvalidVerdict},
		{"negative rank", "P1", "claim1", "actor", Verdict(-1), ErrInvalidVerdict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Set(tt.subject, tt.prop, tt.key, tt.verdict)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if c.Len() != 0 {
		t.Fatalf("rejected writes were recorded")
	}
}

func TestSetAfterClose(t *testing.T) {
	c, _ := newTestCache(t)
	c.Close()
	if _, err := c.Set("P1", "claim1", "actor", TrueDefinite); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestConcurrentSetsProduceOneLinePerKey(t *testing.T) {
	c, path := newTestCache(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for _, m := range model.Default().Models() {
				c.Set("P1", "claim1", m.DBKey(), Verdict(i%4))
			}
		}(i)
	}
	wg.Wait()
	c.Close()

	entries, skipped, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	lines := strings.Count(string(data), "\n")
	if skipped != 0 || len(entries) != lines || lines != model.Default().CountTypes() {
		t.Fatalf("lines=%d entries=%d skipped=%d", lines, len(entries), skipped)
	}
}

func TestPairs(t *testing.T) {
	c := New(model.Default())
	c.Set("P2", "b", "external", TrueDefinite)
	c.Set("P1", "z", "external", TrueDefinite)
	c.Set("P1", "a", "external", TrueDefinite)
	c.Set("P1", "a", "actor", TrueDefinite)

	got := c.Pairs()
	want := []Pair{{"P1", "a"}, {"P1", "z"}, {"P2", "b"}}
	if len(got) != len(want) {
		t.Fatalf("Pairs = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Pairs[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseVerdict(t *testing.T) {
	for s, want := range map[string]Verdict{"0": FalseDefinite, "1": FalseBounded, "2": TrueBounded, "3": TrueDefinite} {
		got, err := ParseVerdict(s)
		if err != nil || got != want {
			t.Errorf("ParseVerdict(%q) = %v, %v", s, got, err)
		}
	}
	for _, s := range []string{"", "4", "-1", "two"} {
		if _, err := ParseVerdict(s); !errors.Is(err, ErrInvalidVerdict) {
			t.Errorf("ParseVerdict(%q) err = %v", s, err)
		}
	}
	if FalseBounded.Acceptable() || !TrueBounded.Acceptable() {
		t.Error("acceptable threshold must be rank 2")
	}
}
