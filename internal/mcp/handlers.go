package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/advlattice/internal/model"
	"github.com/ppiankov/advlattice/internal/report"
	"github.com/ppiankov/advlattice/internal/results"
	"github.com/ppiankov/advlattice/internal/selector"
)

// --- Input/Output types ---

// GoalInput names a (subject, property) pair.
type GoalInput struct {
	Subject  string `json:"subject" jsonschema:"protocol file the property belongs to"`
	Property string `json:"property" jsonschema:"claim identifier such as P1,claim1"`
}

// LookupInput defines parameters for the lattice_lookup tool.
type LookupInput struct {
	Subject  string `json:"subject" jsonschema:"protocol file the property belongs to"`
	Property string `json:"property" jsonschema:"claim identifier such as P1,claim1"`
	Model    string `json:"model" jsonschema:"model key: space-separated capability tokens, or external"`
}

// LookupOutput reports the verdict of one model.
type LookupOutput struct {
	Model      string `json:"model"`
	Decided    bool   `json:"decided"`
	Verdict    string `json:"verdict,omitempty"`
	Rank       int    `json:"rank,omitempty"`
	Acceptable bool   `json:"acceptable,omitempty"`
}

// NextGoalOutput describes the next model to verify.
type NextGoalOutput struct {
	Done    bool     `json:"done"`
	Model   string   `json:"model,omitempty"`
	Options []string `json:"options,omitempty"`
	Open    int      `json:"open"`
	Score   int      `json:"score,omitempty"`
}

// RecordInput defines parameters for the lattice_record tool.
type RecordInput struct {
	Subject  string `json:"subject" jsonschema:"protocol file the property belongs to"`
	Property string `json:"property" jsonschema:"claim identifier such as P1,claim1"`
	Model    string `json:"model" jsonschema:"model key the verdict was obtained for"`
	Verdict  int    `json:"verdict" jsonschema:"0 false, 1 false within bounds, 2 true within bounds, 3 true"`
}

// RecordOutput reports how many verdicts were written.
type RecordOutput struct {
	Model    string `json:"model"`
	Recorded int    `json:"recorded"`
	Open     int    `json:"open"`
}

// NeighborsInput defines parameters for the lattice_neighbors tool.
type NeighborsInput struct {
	Model  string `json:"model" jsonschema:"model key"`
	Weaker bool   `json:"weaker,omitempty" jsonschema:"list weaker instead of stronger models"`
	All    bool   `json:"all,omitempty" jsonschema:"list every comparable model, not only adjacent ones"`
}

// NeighborsOutput lists adjacent models.
type NeighborsOutput struct {
	Model     string         `json:"model"`
	Neighbors []NeighborItem `json:"neighbors"`
}

// NeighborItem is one adjacent model.
type NeighborItem struct {
	Model string `json:"model"`
	Delta string `json:"delta"`
}

// --- Handlers ---

func toolError(format string, args ...any) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

func (s *Server) parseModel(key string) (model.Model, error) {
	return s.traversal.Universe().Unrestricted().Parse(key)
}

func (s *Server) handleLookup(_ context.Context, _ *mcpsdk.CallToolRequest, input LookupInput) (*mcpsdk.CallToolResult, LookupOutput, error) {
	m, err := s.parseModel(input.Model)
	if err != nil {
		return toolError("%v", err), LookupOutput{}, nil
	}

	out := LookupOutput{Model: m.DBKey()}
	v, ok := s.cache.Get(input.Subject, input.Property, out.Model)
	if ok {
		out.Decided = true
		out.Verdict = v.String()
		out.Rank = int(v)
		out.Acceptable = v.Acceptable()
	}
	return nil, out, nil
}

func (s *Server) handleNextGoal(_ context.Context, _ *mcpsdk.CallToolRequest, input GoalInput) (*mcpsdk.CallToolResult, NextGoalOutput, error) {
	if input.Subject == "" || input.Property == "" {
		return toolError("subject and property are required"), NextGoalOutput{}, nil
	}

	cands := s.selector.Rank(input.Subject, input.Property)
	best, ok := selector.Best(cands)
	if !ok {
		return nil, NextGoalOutput{Done: true}, nil
	}
	return nil, NextGoalOutput{
		Model:   best.Model.DBKey(),
		Options: best.Model.Options(),
		Open:    len(cands),
		Score:   best.Score,
	}, nil
}

func (s *Server) handleRecord(_ context.Context, _ *mcpsdk.CallToolRequest, input RecordInput) (*mcpsdk.CallToolResult, RecordOutput, error) {
	m, err := s.parseModel(input.Model)
	if err != nil {
		return toolError("%v", err), RecordOutput{}, nil
	}
	v := results.Verdict(input.Verdict)
	if !v.Valid() {
		return toolError("verdict %d out of range 0-3", input.Verdict), RecordOutput{}, nil
	}

	n, err := s.cache.SetWithClosure(input.Subject, input.Property, m, v)
	if err != nil {
		return nil, RecordOutput{}, fmt.Errorf("record verdict: %w", err)
	}
	s.logger.Info("verdict recorded via mcp",
		"subject", input.Subject, "property", input.Property, "model", m.DBKey(), "verdict", v, "recorded", n)

	return nil, RecordOutput{
		Model:    m.DBKey(),
		Recorded: n,
		Open:     s.selector.Remaining(input.Subject, input.Property),
	}, nil
}

func (s *Server) handleNeighbors(_ context.Context, _ *mcpsdk.CallToolRequest, input NeighborsInput) (*mcpsdk.CallToolResult, NeighborsOutput, error) {
	m, err := s.traversal.Universe().Parse(input.Model)
	if err != nil {
		return toolError("%v", err), NeighborsOutput{}, nil
	}

	direction := 1
	if input.Weaker {
		direction = -1
	}
	out := NeighborsOutput{Model: m.DBKey(), Neighbors: []NeighborItem{}}
	for _, n := range m.Neighbors(direction, input.All) {
		out.Neighbors = append(out.Neighbors, NeighborItem{Model: n.Model.DBKey(), Delta: n.Delta.String()})
	}
	return nil, out, nil
}

func (s *Server) handleSummary(_ context.Context, _ *mcpsdk.CallToolRequest, input GoalInput) (*mcpsdk.CallToolResult, report.Summary, error) {
	if input.Subject == "" || input.Property == "" {
		return toolError("subject and property are required"), report.Summary{}, nil
	}
	sum := report.Summarize(s.cache, s.traversal.Universe(), input.Subject, input.Property)
	sum.Undecided = nil
	return nil, *sum, nil
}
