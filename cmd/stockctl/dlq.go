package main

import (
	"errors"
	"fmt"

	"github.com/yehgs/icvng-server-sub003/internal/worker"

	"github.com/spf13/cobra"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Show how many resync jobs are parked in the dead letter queue",
	Args:  cobra.NoArgs,
	RunE:  runDLQ,
}

func init() {
	rootCmd.AddCommand(dlqCmd)
}

func runDLQ(cmd *cobra.Command, _ []string) error {
	if rdb == nil {
		return errors.New("dlq needs Redis; drop --no-redis")
	}
	n, err := worker.DLQLength(cmd.Context(), rdb, worker.QueueStockResync)
	if err != nil {
		return fmt.Errorf("read dlq: %w", err)
	}
	fmt.Printf("%s%s: %d entries\n", worker.DLQPrefix, worker.QueueStockResync, n)
	return nil
}
