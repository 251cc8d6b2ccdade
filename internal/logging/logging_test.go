package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", "text", &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "model", "actor")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "model=actor") {
		t.Errorf("output = %q", out)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("debug", "json", &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("goal decided", "verdict", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not JSON: %v: %q", err, buf.String())
	}
	if rec["msg"] != "goal decided" || rec["level"] != "DEBUG" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewRejectsUnknown(t *testing.T) {
	if _, err := New("loud", "text", &bytes.Buffer{}); err == nil {
		t.Error("unknown level accepted")
	}
	if _, err := New("info", "xml", &bytes.Buffer{}); err == nil {
		t.Error("unknown format accepted")
	}
}

func TestParseLevelDefaults(t *testing.T) {
	for _, s := range []string{"", "INFO", " info "} {
		lvl, err := ParseLevel(s)
		if err != nil || lvl.String() != "INFO" {
			t.Errorf("ParseLevel(%q) = %v, %v", s, lvl, err)
		}
	}
}
