// Package config loads the advlattice configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/advlattice/internal/backend"
	"github.com/ppiankov/advlattice/internal/model"
)

var validate = validator.New()

// BackendConfig configures the verifier subprocess.
type BackendConfig struct {
	Binary     string        `yaml:"binary" json:"binary" validate:"required" jsonschema:"description=verifier executable"`
	Args       []string      `yaml:"args,omitempty" json:"args,omitempty" jsonschema:"description=argument template; {{SUBJECT}} and {{PROPERTY}} are expanded"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout" validate:"min=0" jsonschema:"type=string,description=per-call limit such as 30m; 0 disables"`
	SubjectDir string        `yaml:"subject_dir,omitempty" json:"subject_dir,omitempty" jsonschema:"description=prefix for relative subject paths"`
	Table      string        `yaml:"table,omitempty" json:"table,omitempty" jsonschema:"description=YAML verdict table answering instead of the verifier"`
}

// UniverseConfig overrides the model universe.
type UniverseConfig struct {
	Axes     []model.Axis `yaml:"axes,omitempty" json:"axes,omitempty" validate:"omitempty,dive"`
	Rules    []model.Rule `yaml:"rules,omitempty" json:"rules,omitempty" validate:"omitempty,dive"`
	Restrict []string     `yaml:"restrict,omitempty" json:"restrict,omitempty" validate:"omitempty,dive,required"`
}

// TraversalConfig selects the lattice enumeration order.
type TraversalConfig struct {
	Optimize bool `yaml:"optimize" json:"optimize" jsonschema:"description=visit the most informative models first"`
}

// LogConfig configures diagnostics.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=text json" jsonschema:"enum=text,enum=json"`
}

// Config holds all configurable parameters.
type Config struct {
	CachePath string          `yaml:"cache_path" json:"cache_path" validate:"required" jsonschema:"description=append-only verdict log"`
	Backend   BackendConfig   `yaml:"backend" json:"backend"`
	Universe  UniverseConfig  `yaml:"universe,omitempty" json:"universe,omitempty"`
	Traversal TraversalConfig `yaml:"traversal" json:"traversal"`
	Workers   int             `yaml:"workers" json:"workers" validate:"min=1,max=64" jsonschema:"minimum=1,maximum=64"`
	Log       LogConfig       `yaml:"log" json:"log"`
}

// Dir returns ~/.advlattice, or .advlattice when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".advlattice"
	}
	return filepath.Join(home, ".advlattice")
}

// DefaultPath is the configuration file read when none is given.
func DefaultPath() string { return filepath.Join(Dir(), "config.yaml") }

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		CachePath: filepath.Join(Dir(), "results.tsv"),
		Backend: BackendConfig{
			Binary:  "scyther-linux",
			Timeout: 30 * time.Minute,
		},
		Traversal: TraversalConfig{Optimize: true},
		Workers:   1,
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a YAML file. Empty path falls back to
// DefaultPath. Missing file returns defaults. Invalid YAML or values
// that fail validation return an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.CachePath = expandHome(cfg.CachePath)
	cfg.Backend.Table = expandHome(cfg.Backend.Table)
	cfg.Backend.SubjectDir = expandHome(cfg.Backend.SubjectDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Validate checks field constraints and that the universe can be built.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	if _, err := c.BuildUniverse(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// BuildUniverse returns the configured universe. Without axes the
// default compromise universe is used; its rules apply unless rules
// are given explicitly.
func (c *Config) BuildUniverse() (*model.Universe, error) {
	axes, rules := c.Universe.Axes, c.Universe.Rules
	if len(axes) == 0 {
		axes = model.DefaultAxes()
		if rules == nil {
			rules = model.DefaultRules()
		}
	}

	u, err := model.NewUniverse(axes, rules)
	if err != nil {
		return nil, err
	}
	if len(c.Universe.Restrict) > 0 {
		return u.Restrict(c.Universe.Restrict)
	}
	return u, nil
}

// VerifierConfig converts the backend section for backend.NewVerifier.
func (c *Config) VerifierConfig() backend.Config {
	return backend.Config{
		Binary:     c.Backend.Binary,
		Args:       c.Backend.Args,
		SubjectDir: c.Backend.SubjectDir,
		Timeout:    c.Backend.Timeout,
	}
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		FieldNameTag:   "yaml",
	}
	s := reflector.Reflect(&Config{})
	s.Title = "advlattice configuration"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("config: marshal schema: %w", err)
	}
	return data, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}
	return data, nil
}
