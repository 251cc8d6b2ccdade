package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/advlattice/internal/config"
	"github.com/ppiankov/advlattice/internal/lattice"
	"github.com/ppiankov/advlattice/internal/logging"
	"github.com/ppiankov/advlattice/internal/model"
	"github.com/ppiankov/advlattice/internal/results"
)

var (
	configPath string
	cachePath  string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.advlattice/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&cachePath, "cache", "", "Path to the verdict log (overrides cache_path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
}

var rootCmd = &cobra.Command{
	Use:           "advlattice",
	Short:         "Adversary-model lattice engine for protocol verification",
	Long:          "Decides security claims across a lattice of adversary models while calling the verifier as rarely as possible.\nEvery verdict is propagated along the lattice and kept in an append-only log.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is the state shared by commands that work on the lattice.
type env struct {
	cfg       *config.Config
	logger    *slog.Logger
	universe  *model.Universe
	traversal *lattice.Traversal
}

func loadEnv() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cachePath != "" {
		cfg.CachePath = cachePath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	u, err := cfg.BuildUniverse()
	if err != nil {
		return nil, fmt.Errorf("build universe: %w", err)
	}
	t := lattice.New(u, lattice.WithOptimize(cfg.Traversal.Optimize))
	return &env{cfg: cfg, logger: logger, universe: u, traversal: t}, nil
}

// openCache opens the verdict log for appending.
func (e *env) openCache() (*results.Cache, error) {
	return results.Open(e.cfg.CachePath, e.universe, results.WithLogger(e.logger))
}

// loadCache replays the verdict log without opening it for writing.
func (e *env) loadCache() (*results.Cache, error) {
	entries, skipped, err := results.Load(e.cfg.CachePath)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		e.logger.Warn("skipped malformed log lines", "path", e.cfg.CachePath, "count", skipped)
	}
	cache := results.New(e.universe, results.WithLogger(e.logger))
	for _, en := range entries {
		if _, err := cache.Set(en.Subject, en.Property, en.Model, en.Verdict); err != nil {
			return nil, err
		}
	}
	return cache, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, stopping after the current verifier call...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
