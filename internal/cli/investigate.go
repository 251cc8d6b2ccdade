package cli

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ppiankov/advlattice/internal/backend"
	"github.com/ppiankov/advlattice/internal/investigate"
	"github.com/ppiankov/advlattice/internal/report"
	"github.com/ppiankov/advlattice/internal/results"
)

var (
	investigateWorkers  int
	investigateTable    string
	investigateAllTable bool
	investigateQuiet    bool
)

func init() {
	rootCmd.AddCommand(investigateCmd)
	investigateCmd.Flags().IntVarP(&investigateWorkers, "workers", "w", 0, "Parallel investigations (overrides workers)")
	investigateCmd.Flags().StringVar(&investigateTable, "table", "", "Answer from a YAML verdict table instead of running the verifier")
	investigateCmd.Flags().BoolVar(&investigateAllTable, "all", false, "Investigate every pair listed in the verdict table")
	investigateCmd.Flags().BoolVarP(&investigateQuiet, "quiet", "q", false, "Print only the final summaries")
}

var investigateCmd = &cobra.Command{
	Use:   "investigate <subject> <property>...",
	Short: "Decide properties across the model lattice",
	Long: "Repeatedly picks the most informative undecided model, runs the verifier once for it\n" +
		"and propagates the verdict, until every model is decided. Verdicts are appended to the\n" +
		"log as they arrive, so an interrupted run resumes where it stopped.",
	RunE: runInvestigate,
}

func runInvestigate(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	var b investigate.Backend
	var pairs []results.Pair

	tablePath := investigateTable
	if tablePath == "" {
		tablePath = e.cfg.Backend.Table
	}
	if tablePath != "" {
		table, err := backend.LoadTable(tablePath, e.universe)
		if err != nil {
			return err
		}
		b = table
		if investigateAllTable {
			pairs = table.Pairs()
		}
	} else {
		if investigateAllTable {
			return errors.New("--all needs a verdict table")
		}
		b = backend.NewVerifier(e.cfg.VerifierConfig(), backend.WithLogger(e.logger))
	}

	if len(pairs) == 0 {
		if len(args) < 2 {
			return errors.New("need a subject and at least one property")
		}
		for _, p := range args[1:] {
			pairs = append(pairs, results.Pair{Subject: args[0], Property: p})
		}
	}

	cache, err := e.openCache()
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	out := cmd.OutOrStdout()
	opts := []investigate.Option{investigate.WithLogger(e.logger)}
	if !investigateQuiet {
		var mu sync.Mutex
		opts = append(opts, investigate.WithProgress(func(s investigate.Step) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "%-20s %-16s %-36s %-14s +%d\n",
				s.Subject, s.Property, s.Model.DBKey(), s.Verdict, s.Recorded)
		}))
	}
	inv := investigate.New(e.traversal, cache, b, opts...)

	workers := investigateWorkers
	if workers == 0 {
		workers = e.cfg.Workers
	}

	ctx, cancel := signalContext()
	defer cancel()

	sums, runErr := inv.RunAll(ctx, pairs, workers)

	calls := 0
	var reports []*report.Summary
	for _, s := range sums {
		if s.RunID == "" {
			continue
		}
		calls += s.Calls
		reports = append(reports, report.Summarize(cache, e.universe, s.Subject, s.Property))
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, report.FormatText(reports))
	fmt.Fprintf(out, "\n%d verifier calls for %d pairs over %d models\n", calls, len(pairs), e.universe.CountTypes())

	return runErr
}
