package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var resyncCmd = &cobra.Command{
	Use:   "resync <product-id>...",
	Short: "Recompute stock from active batches",
	Long: `Recompute Product.stock from active batches for each product. Products with
a manual warehouse override are skipped. Use after bulk batch status changes.`,
	Example: `  stockctl resync 3f6c0e9e-0d0b-4a53-9a55-6f1f2f1d2b10
  stockctl resync $(cat ids.txt) --output json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResync,
}

func init() {
	rootCmd.AddCommand(resyncCmd)
}

func runResync(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	sum := svcs.Stock.ResyncProducts(cmd.Context(), ids)
	if output == "json" {
		return printJSON(sum)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "REQUESTED\tAPPLIED\tSKIPPED\tFAILED\n")
	fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", sum.Requested, sum.Applied, sum.Skipped, sum.Failed)
	w.Flush()

	if len(sum.Failures) > 0 {
		failed := make([]string, 0, len(sum.Failures))
		for id := range sum.Failures {
			failed = append(failed, id)
		}
		sort.Strings(failed)
		fmt.Println()
		for _, id := range failed {
			fmt.Printf("  %s: %s\n", id, sum.Failures[id])
		}
		return fmt.Errorf("%d products failed", sum.Failed)
	}
	return nil
}
