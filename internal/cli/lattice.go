package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ppiankov/advlattice/internal/model"
)

var (
	modelsCanonical bool
	modelsFlags     bool
	neighborsWeaker bool
	neighborsAll    bool
)

func init() {
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(closureCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(neighborsCmd)
	rootCmd.AddCommand(deltaCmd)

	modelsCmd.Flags().BoolVar(&modelsCanonical, "canonical", false, "List in enumeration order instead of verification order")
	modelsCmd.Flags().BoolVar(&modelsFlags, "flags", false, "Show the verifier flags of each model")
	neighborsCmd.Flags().BoolVar(&neighborsWeaker, "weaker", false, "List weaker instead of stronger neighbors")
	neighborsCmd.Flags().BoolVar(&neighborsAll, "all", false, "List every comparable model, not only adjacent ones")
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <subject> <property> <model>",
	Short: "Show the recorded verdict for one model",
	Long:  "Model keys are space-separated capability tokens in any order; quote them.\n\"external\" is the model without any capability.",
	Args:  cobra.ExactArgs(3),
	RunE:  runLookup,
}

var closureCmd = &cobra.Command{
	Use:   "closure",
	Short: "Propagate every recorded verdict along the lattice",
	Long:  "Re-applies each verdict in the log to all models it implies and appends the missing ones.\nUseful after merging logs written by separate runs.",
	Args:  cobra.NoArgs,
	RunE:  runClosure,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models of the configured universe",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

var neighborsCmd = &cobra.Command{
	Use:   "neighbors <model>",
	Short: "List the adjacent models with the capability deltas",
	Args:  cobra.ExactArgs(1),
	RunE:  runNeighbors,
}

var deltaCmd = &cobra.Command{
	Use:   "delta <from> <to>",
	Short: "Show the capabilities removed and added between two models",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelta,
}

func runLookup(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	m, err := e.universe.Unrestricted().Parse(args[2])
	if err != nil {
		return err
	}
	cache, err := e.loadCache()
	if err != nil {
		return err
	}

	v, ok := cache.Get(args[0], args[1], m.DBKey())
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: undecided\n", m.DBKey())
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d)\n", m.DBKey(), v, int(v))
	return nil
}

func runClosure(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	cache, err := e.openCache()
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	before := cache.Len()
	added, err := cache.CloseTransitiveClosure()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d verdicts, %d added by closure\n", before, added)
	return nil
}

func runModels(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	seq := slices.Values(e.traversal.Visit(false))
	if modelsCanonical {
		seq = e.traversal.Canonical(false)
	}

	out := cmd.OutOrStdout()
	n := 0
	for m := range seq {
		if modelsFlags {
			fmt.Fprintf(out, "%-40s %s\n", m.DotKey(), m.OptionString())
		} else {
			fmt.Fprintln(out, m.DotKey())
		}
		n++
	}
	fmt.Fprintf(out, "\n%d models, %d axes\n", n, e.universe.AxisCount())
	return nil
}

func runNeighbors(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	m, err := e.universe.Parse(args[0])
	if err != nil {
		return err
	}

	direction := 1
	if neighborsWeaker {
		direction = -1
	}
	out := cmd.OutOrStdout()
	for _, n := range m.Neighbors(direction, neighborsAll) {
		fmt.Fprintf(out, "%-40s %s\n", n.Model.DBKey(), n.Delta)
	}
	return nil
}

func runDelta(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	u := e.universe.Unrestricted()
	from, err := u.Parse(args[0])
	if err != nil {
		return err
	}
	to, err := u.Parse(args[1])
	if err != nil {
		return err
	}

	d := model.NewDelta(from, to)
	out := cmd.OutOrStdout()
	if d.IsEmpty() {
		fmt.Fprintln(out, "no difference")
		return nil
	}
	fmt.Fprintln(out, d)

	var rel string
	switch {
	case from.WeakerThanOrEqual(to, 1):
		rel = "weaker than"
	case to.WeakerThanOrEqual(from, 1):
		rel = "stronger than"
	default:
		rel = "incomparable to"
	}
	fmt.Fprintf(out, "%s is %s %s\n", from.DBKey(), rel, to.DBKey())
	return nil
}
