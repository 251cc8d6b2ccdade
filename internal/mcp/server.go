package mcp

import (
	"context"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/advlattice/internal/lattice"
	"github.com/ppiankov/advlattice/internal/results"
	"github.com/ppiankov/advlattice/internal/selector"
)

// Config holds MCP server configuration.
type Config struct {
	Cache     *results.Cache
	Traversal *lattice.Traversal
	Version   string
	Logger    *slog.Logger
}

// Server wraps the MCP SDK server with read and record access to the
// verdict cache.
type Server struct {
	mcpServer *mcpsdk.Server
	cache     *results.Cache
	traversal *lattice.Traversal
	selector  *selector.Selector
	logger    *slog.Logger
}

// New creates an MCP server over an opened cache.
func New(cfg Config) (*Server, error) {
	if cfg.Cache == nil || cfg.Traversal == nil {
		return nil, fmt.Errorf("mcp: cache and traversal are required")
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		cache:     cfg.Cache,
		traversal: cfg.Traversal,
		selector:  selector.New(cfg.Traversal, cfg.Cache),
		logger:    cfg.Logger,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "advlattice",
			Version: cfg.Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all lattice tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "lattice_lookup",
		Description: "Look up the recorded verdict of a property under one adversary model.",
	}, s.handleLookup)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "lattice_next_goal",
		Description: "Return the most informative undecided adversary model for a property, with the verifier flags to check it.",
	}, s.handleNextGoal)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "lattice_record",
		Description: "Record a verifier verdict (0-3) for a model and propagate it along the lattice. The first recorded verdict for a model is kept.",
	}, s.handleRecord)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "lattice_neighbors",
		Description: "List the adjacent stronger or weaker adversary models of a model, with the capability deltas.",
	}, s.handleNeighbors)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "lattice_summary",
		Description: "Summarize what is known about a property: verdict counts, weakest attacked models, strongest safe models and breaking deltas.",
	}, s.handleSummary)
}
