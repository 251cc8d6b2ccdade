package export

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/ppiankov/advlattice/internal/model"
	"github.com/ppiankov/advlattice/internal/results"
)

func TestSQLiteExport(t *testing.T) {
	u := model.Default()
	cache := results.New(u)
	actor, err := u.Parse("actor")
	if err != nil {
		t.Fatal(err)
	}
	written, err := cache.SetWithClosure("ns3.spdl", "P1,claim1", actor, results.FalseDefinite)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "verdicts.db")
	ctx := context.Background()
	n, err := SQLite(ctx, path, cache.Entries())
	if err != nil {
		t.Fatalf("SQLite: %v", err)
	}
	if n != written {
		t.Fatalf("inserted = %d, want %d", n, written)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM verdicts WHERE subject = ? AND property = ?`,
		"ns3.spdl", "P1,claim1").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != written {
		t.Errorf("rows = %d, want %d", count, written)
	}

	var verdict int
	var label string
	if err := db.QueryRow(`SELECT verdict, label FROM verdicts WHERE model = ?`, "actor").Scan(&verdict, &label); err != nil {
		t.Fatal(err)
	}
	if verdict != 0 || label != "false" {
		t.Errorf("actor = %d %q", verdict, label)
	}

	var firstSeq int
	if err := db.QueryRow(`SELECT seq FROM verdicts WHERE model = ?`, "actor").Scan(&firstSeq); err != nil {
		t.Fatal(err)
	}
	if firstSeq != 0 {
		t.Errorf("seq of first entry = %d, want 0", firstSeq)
	}
}

func TestSQLiteExportKeepsExistingRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verdicts.db")
	ctx := context.Background()

	first := []results.Entry{
		{Key: results.Key{Subject: "s", Property: "p", Model: "external"}, Verdict: results.TrueDefinite},
	}
	if _, err := SQLite(ctx, path, first); err != nil {
		t.Fatal(err)
	}

	second := []results.Entry{
		{Key: results.Key{Subject: "s", Property: "p", Model: "external"}, Verdict: results.FalseDefinite},
		{Key: results.Key{Subject: "s", Property: "p", Model: "actor"}, Verdict: results.FalseDefinite},
	}
	n, err := SQLite(ctx, path, second)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("inserted = %d, want 1", n)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	var verdict, seq int
	if err := db.QueryRow(`SELECT verdict, seq FROM verdicts WHERE model = 'external'`).Scan(&verdict, &seq); err != nil {
		t.Fatal(err)
	}
	if verdict != int(results.TrueDefinite) || seq != 0 {
		t.Errorf("external = verdict %d seq %d, want first write", verdict, seq)
	}
	if err := db.QueryRow(`SELECT seq FROM verdicts WHERE model = 'actor'`).Scan(&seq); err != nil {
		t.Fatal(err)
	}
	if seq != 1 {
		t.Errorf("actor seq = %d, want 1", seq)
	}
}
