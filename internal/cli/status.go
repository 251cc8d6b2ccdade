package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ppiankov/advlattice/internal/export"
	"github.com/ppiankov/advlattice/internal/follow"
	"github.com/ppiankov/advlattice/internal/model"
	"github.com/ppiankov/advlattice/internal/report"
	"github.com/ppiankov/advlattice/internal/results"
)

var (
	statusFollow bool
	exportSQLite string
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exportCmd)
	statusCmd.Flags().BoolVarP(&statusFollow, "follow", "f", false, "Keep printing verdicts as they are appended")
	exportCmd.Flags().StringVar(&exportSQLite, "sqlite", "", "SQLite database to write the verdicts to")
	_ = exportCmd.MarkFlagRequired("sqlite")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show decided and open models per property",
	Long:  "Reads the verdict log and prints progress per (subject, property).\nWith --follow, verdicts appended by a running investigation are printed as they arrive.",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Copy the verdict log into another format",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if statusFollow {
		ctx, cancel := signalContext()
		defer cancel()

		f := follow.New(e.cfg.CachePath, follow.WithLogger(e.logger))
		return f.Run(ctx, progressPrinter(out, e.universe.CountTypes()))
	}

	cache, err := e.loadCache()
	if err != nil {
		return err
	}
	printStatus(out, cache, e.universe)
	return nil
}

// progressPrinter prints each new verdict with the pair's decided count.
// Repeated keys are ignored, as replay ignores them.
func progressPrinter(w io.Writer, total int) func([]results.Entry) {
	seen := make(map[results.Key]bool)
	decided := make(map[results.Pair]int)
	return func(entries []results.Entry) {
		for _, en := range entries {
			if seen[en.Key] {
				continue
			}
			seen[en.Key] = true
			p := results.Pair{Subject: en.Subject, Property: en.Property}
			decided[p]++
			fmt.Fprintf(w, "%-20s %-16s %-36s %-14s %d/%d\n",
				en.Subject, en.Property, en.Model, en.Verdict, decided[p], total)
		}
	}
}

func printStatus(w io.Writer, cache *results.Cache, u *model.Universe) {
	pairs := cache.Pairs()
	if len(pairs) == 0 {
		fmt.Fprintln(w, "No verdicts recorded.")
		return
	}
	fmt.Fprintf(w, "%-20s %-16s %8s %8s %8s\n", "SUBJECT", "PROPERTY", "DECIDED", "ATTACKED", "OPEN")
	for _, p := range pairs {
		s := report.Summarize(cache, u, p.Subject, p.Property)
		attacked := s.Verdicts[results.FalseDefinite.String()] + s.Verdicts[results.FalseBounded.String()]
		fmt.Fprintf(w, "%-20s %-16s %8d %8d %8d\n", p.Subject, p.Property, s.Decided, attacked, len(s.Undecided))
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	cache, err := e.loadCache()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	n, err := export.SQLite(ctx, exportSQLite, cache.Entries())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d verdicts written to %s\n", n, cache.Len(), exportSQLite)
	return nil
}
