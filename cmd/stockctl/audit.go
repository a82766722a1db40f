package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/yehgs/icvng-server-sub003/internal/dto"
	"github.com/yehgs/icvng-server-sub003/internal/worker"

	"github.com/spf13/cobra"
)

var auditBatchSize int

var auditCmd = &cobra.Command{
	Use:   "audit [product-id]...",
	Short: "Report products whose stock has drifted",
	Long: `Validate stock consistency for the given products, or for every active
product when none are given. Read-only; exits non-zero when drift is found.`,
	Example: `  stockctl audit
  stockctl audit 3f6c0e9e-0d0b-4a53-9a55-6f1f2f1d2b10 --output json`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntVar(&auditBatchSize, "batch-size", 200, "products checked per page when auditing everything")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var sum *worker.AuditSummary
	if len(args) > 0 {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		res := svcs.Stock.ValidateMultipleProductsStock(ctx, ids)
		sum = &worker.AuditSummary{
			TotalChecked: res.TotalChecked,
			Consistent:   res.Consistent,
			Inconsistent: res.Inconsistent,
			Results:      res.Results,
		}
	} else {
		var err error
		sum, err = worker.RunAudit(ctx, worker.AuditConfig{
			Products:  svcs.Store.Products(),
			Checker:   svcs.Stock,
			BatchSize: auditBatchSize,
		})
		if err != nil {
			return fmt.Errorf("audit: %w", err)
		}
	}

	if output == "json" {
		if err := printJSON(sum); err != nil {
			return err
		}
	} else {
		printAuditTable(sum)
	}

	if sum.Inconsistent > 0 {
		return fmt.Errorf("%d inconsistent products", sum.Inconsistent)
	}
	return nil
}

func printAuditTable(sum *worker.AuditSummary) {
	fmt.Printf("checked %d, consistent %d, inconsistent %d\n", sum.TotalChecked, sum.Consistent, sum.Inconsistent)
	if len(sum.Results) == 0 {
		return
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PRODUCT\tSTOCK\tSOURCE\tISSUES\n")
	for _, r := range sum.Results {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.ProductID, r.CurrentStock, sourceLabel(r), strings.Join(r.Issues, "; "))
	}
	w.Flush()
}

func sourceLabel(r dto.StockConsistencyResponse) string {
	if r.StockSource == "" {
		return "-"
	}
	return r.StockSource
}
