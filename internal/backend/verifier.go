// Package backend invokes the external protocol verifier and turns its
// XML report into a verdict rank.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/advlattice/internal/model"
	"github.com/ppiankov/advlattice/internal/results"
)

// Placeholders expanded in Config.Args.
const (
	SubjectPlaceholder  = "{{SUBJECT}}"
	PropertyPlaceholder = "{{PROPERTY}}"
)

// DefaultArgs asks the verifier for an XML report on one claim.
var DefaultArgs = []string{"--xml-output", "--filter=" + PropertyPlaceholder, SubjectPlaceholder}

// Config holds verifier invocation parameters.
type Config struct {
	Binary     string        // verifier executable
	Args       []string      // argument template, appended after the model flags
	SubjectDir string        // prefix for relative subject paths
	Timeout    time.Duration // per invocation; zero means no limit
	Env        []string      // extra KEY=VALUE entries
}

// ExecError reports a verifier process failure.
type ExecError struct {
	Binary   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("backend: %s exited with code %d", e.Binary, e.ExitCode)
	if e.Err != nil {
		msg = fmt.Sprintf("backend: %s: %v", e.Binary, e.Err)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// Verifier runs the verifier once per (subject, property, model).
type Verifier struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the logger for invocation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewVerifier returns a verifier adapter. An empty Binary defaults to
// "scyther-linux" and nil Args to DefaultArgs.
func NewVerifier(cfg Config, opts ...Option) *Verifier {
	if cfg.Binary == "" {
		cfg.Binary = "scyther-linux"
	}
	if cfg.Args == nil {
		cfg.Args = DefaultArgs
	}
	v := &Verifier{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Command returns the argument list for one invocation: the model's
// flags followed by the expanded argument template.
func (v *Verifier) Command(subject, property string, m model.Model) []string {
	path := subject
	if v.cfg.SubjectDir != "" && !filepath.IsAbs(subject) {
		path = filepath.Join(v.cfg.SubjectDir, subject)
	}

	args := m.Options()
	for _, a := range v.cfg.Args {
		a = strings.ReplaceAll(a, SubjectPlaceholder, path)
		a = strings.ReplaceAll(a, PropertyPlaceholder, property)
		args = append(args, a)
	}
	return args
}

// Verify runs the verifier and returns the rank of the property. Any
// process failure or unusable report is returned as an error.
func (v *Verifier) Verify(ctx context.Context, subject, property string, m model.Model) (results.Verdict, error) {
	if v.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.Timeout)
		defer cancel()
	}

	args := v.Command(subject, property, m)
	cmd := exec.CommandContext(ctx, v.cfg.Binary, args...)
	if len(v.cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), v.cfg.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	v.logger.Debug("verifier finished",
		"subject", subject, "property", property, "model", m.DBKey(),
		"duration", time.Since(start), "error", err)

	if err != nil {
		xe := &ExecError{Binary: v.cfg.Binary, ExitCode: -1, Stderr: strings.TrimSpace(stderr.String())}
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			xe.Err = ctx.Err()
		case errors.As(err, &exitErr):
			xe.ExitCode = exitErr.ExitCode()
		default:
			xe.Err = err
		}
		return 0, xe
	}

	return ParseReport(&stdout, property)
}
