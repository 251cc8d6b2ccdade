package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/advlattice/internal/backend"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Workers != 1 || !cfg.Traversal.Optimize {
		t.Errorf("defaults = %+v", cfg)
	}
	u, err := cfg.BuildUniverse()
	if err != nil {
		t.Fatal(err)
	}
	if u.CountTypes() != 168 || u.Restricted() {
		t.Errorf("default universe has %d models", u.CountTypes())
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Binary != "scyther-linux" {
		t.Errorf("Binary = %q", cfg.Backend.Binary)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
cache_path: /var/lib/advlattice/results.tsv
backend:
  binary: /opt/scyther/scyther-linux
  timeout: 90s
  subject_dir: /protocols
workers: 4
universe:
  restrict: ["external", "actor", "actor ssr"]
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CachePath != "/var/lib/advlattice/results.tsv" || cfg.Workers != 4 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Backend.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v", cfg.Backend.Timeout)
	}
	if !cfg.Traversal.Optimize {
		t.Error("unspecified field lost its default")
	}

	u, err := cfg.BuildUniverse()
	if err != nil {
		t.Fatal(err)
	}
	if !u.Restricted() || u.CountTypes() != 3 {
		t.Errorf("restricted universe has %d models", u.CountTypes())
	}

	vc := cfg.VerifierConfig()
	if vc.SubjectDir != "/protocols" || vc.Binary != "/opt/scyther/scyther-linux" {
		t.Errorf("VerifierConfig = %+v", vc)
	}
	v := backend.NewVerifier(vc)
	if got := v.Command("ns3.spdl", "P1,claim1", u.Min()); got[len(got)-1] != "/protocols/ns3.spdl" {
		t.Errorf("Command = %v", got)
	}
}

func TestLoadCustomAxes(t *testing.T) {
	path := writeConfig(t, `
universe:
  axes:
    - name: reveal
      levels: [{token: "", flag: ""}, {token: lkr, flag: "--LKR=1"}]
    - name: state
      levels: [{token: "", flag: ""}, {token: ssr, flag: "--SSR=1"}]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	u, err := cfg.BuildUniverse()
	if err != nil {
		t.Fatal(err)
	}
	if u.AxisCount() != 2 || u.CountTypes() != 4 || len(u.Rules()) != 0 {
		t.Errorf("axes = %d, models = %d, rules = %d", u.AxisCount(), u.CountTypes(), len(u.Rules()))
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":       "workers: [",
		"zero workers":   "workers: 0",
		"bad log level":  "log: {level: loud}",
		"empty binary":   `backend: {binary: ""}`,
		"unknown token":  `universe: {restrict: ["actor wizard"]}`,
		"duplicate axis": "universe:\n  axes:\n    - {name: a, levels: [{token: \"\"}, {token: x}]}\n    - {name: b, levels: [{token: \"\"}, {token: x}]}\n",
		"unnamed axis":   "universe:\n  axes:\n    - {levels: [{token: \"\"}]}\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	if err != nil {
		t.Fatal(err)
	}
	var s map[string]any
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	props, ok := s["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %s", data)
	}
	for _, key := range []string{"cache_path", "backend", "universe", "workers", "log"} {
		if _, ok := props[key]; !ok {
			t.Errorf("schema missing %q", key)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := DefaultConfig().Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "timeout: 30m0s") {
		t.Errorf("timeout not rendered as duration:\n%s", data)
	}
	cfg, err := Load(writeConfig(t, string(data)))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Backend.Timeout != 30*time.Minute {
		t.Errorf("Timeout = %v", cfg.Backend.Timeout)
	}
}
