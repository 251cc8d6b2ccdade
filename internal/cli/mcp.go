package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	latticemcp "github.com/ppiankov/advlattice/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs advlattice as an MCP (Model Context Protocol) server over stdio.\nExposes lattice tools: lookup, next_goal, record, neighbors, summary.",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	cache, err := e.openCache()
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	srv, err := latticemcp.New(latticemcp.Config{
		Cache:     cache,
		Traversal: e.traversal,
		Version:   version,
		Logger:    e.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintln(os.Stderr, "advlattice MCP server running on stdio")
	fmt.Fprintf(os.Stderr, "Cache: %s (%d verdicts)\n\n", e.cfg.CachePath, cache.Len())

	err = srv.Run(ctx)

	fmt.Fprintf(os.Stderr, "\nCache holds %d verdicts\n", cache.Len())
	return err
}
