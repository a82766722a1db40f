package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var disableOverrideCmd = &cobra.Command{
	Use:   "disable-override <product-id>",
	Short: "Disable the manual warehouse override and resync from batches",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisableOverride,
}

func init() {
	rootCmd.AddCommand(disableOverrideCmd)
}

func runDisableOverride(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	rep, err := svcs.Stock.DisableOverrideAndSync(cmd.Context(), ids[0])
	if err != nil {
		return err
	}
	if output == "json" {
		return printJSON(rep)
	}
	fmt.Printf("override disabled for %s: stock %d (%s)\n", ids[0], rep.NewStock, rep.Source)
	return nil
}
