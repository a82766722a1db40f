package main

import (
	"fmt"
	"os"

	"github.com/yehgs/icvng-server-sub003/internal/config"
	"github.com/yehgs/icvng-server-sub003/internal/infra"
	"github.com/yehgs/icvng-server-sub003/internal/router"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	cfg     *config.Config
	db      *gorm.DB
	rdb     *redis.Client
	svcs    *router.Services
	noRedis bool
	output  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stockctl",
	Short: "Operator tool for catalog stock reconciliation",
	Long: `stockctl runs the reconciliation engine against the catalog database:
resync products from their batches, audit stock drift, and disable manual
warehouse overrides. It uses the same configuration as the server.`,
	SilenceUsage:      true,
	PersistentPreRunE: persistentPreRun,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noRedis, "no-redis", false, "run without Redis (in-process locking only)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "table", "output format: table or json")
}

// persistentPreRun loads config and opens the database before each command.
func persistentPreRun(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err = infra.NewDatabase(cfg.DatabaseURL, infra.DatabaseOptions{
		MaxOpenConns: 4,
		MaxIdleConns: 1,
		AutoMigrate:  false,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	if !noRedis {
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis (use --no-redis to skip): %w", err)
		}
	}

	svcs = router.NewServices(cfg, db, rdb)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
