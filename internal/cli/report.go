package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/advlattice/internal/report"
	"github.com/ppiankov/advlattice/internal/results"
)

var (
	summaryJSON bool
	hasseOutput string
)

func init() {
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(hasseCmd)
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "Output as JSON")
	hasseCmd.Flags().StringVarP(&hasseOutput, "output", "o", "", "Write the DOT file here instead of stdout")
}

var summaryCmd = &cobra.Command{
	Use:   "summary [<subject> <property>]",
	Short: "Summarize recorded verdicts per property",
	Long:  "Shows verdict counts, the weakest attacked models, the strongest safe models and the\ncapability deltas that break the property. Without arguments every recorded pair is shown.",
	Args:  cobra.RangeArgs(0, 2),
	RunE:  runSummary,
}

var hasseCmd = &cobra.Command{
	Use:   "hasse [<subject> <property>]",
	Short: "Render the model lattice as a Graphviz DOT diagram",
	Long:  "Edges are labelled with the capability delta. With a subject and property, nodes are\ncoloured by the recorded verdict.",
	Args:  cobra.RangeArgs(0, 2),
	RunE:  runHasse,
}

func runSummary(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return fmt.Errorf("need both subject and property")
	}
	e, err := loadEnv()
	if err != nil {
		return err
	}
	cache, err := e.loadCache()
	if err != nil {
		return err
	}

	pairs := cache.Pairs()
	if len(args) == 2 {
		pairs = []results.Pair{{Subject: args[0], Property: args[1]}}
	}

	sums := make([]*report.Summary, 0, len(pairs))
	for _, p := range pairs {
		sums = append(sums, report.Summarize(cache, e.universe, p.Subject, p.Property))
	}

	if summaryJSON {
		out, err := report.FormatJSON(sums)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), report.FormatText(sums))
	return nil
}

func runHasse(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return fmt.Errorf("need both subject and property")
	}
	e, err := loadEnv()
	if err != nil {
		return err
	}

	var dot string
	if len(args) == 2 {
		cache, err := e.loadCache()
		if err != nil {
			return err
		}
		dot = report.Hasse(e.universe, cache, args[0], args[1])
	} else {
		dot = report.Hasse(e.universe, nil, "", "")
	}

	if hasseOutput == "" {
		fmt.Fprint(cmd.OutOrStdout(), dot)
		return nil
	}
	if err := os.WriteFile(hasseOutput, []byte(dot), 0644); err != nil {
		return fmt.Errorf("write diagram: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", hasseOutput)
	return nil
}
