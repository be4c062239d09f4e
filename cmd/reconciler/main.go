package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reconciler/internal/config"
	"reconciler/internal/logger"
)

var Version = "dev"

var (
	cfg *config.Config

	flagRunAddress string
	flagDatabase   string
	flagSettlement string
	flagLogLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "reconciler",
		Short:             "Invoice payment and reconciliation service",
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	rootCmd.PersistentFlags().StringVarP(&flagRunAddress, "address", "a", "", "HTTP listen address (RUN_ADDRESS)")
	rootCmd.PersistentFlags().StringVarP(&flagDatabase, "database", "d", "", "database URI, postgres:// or SQLite DSN (DATABASE_URI)")
	rootCmd.PersistentFlags().StringVarP(&flagSettlement, "settlement", "r", "", "settlement system address (SETTLEMENT_SYSTEM_ADDRESS)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(invoiceCmd())
	rootCmd.AddCommand(payCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(settleCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads env and .env, then lets explicit flags win.
func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("address") {
		c.RunAddress = flagRunAddress
	}
	if flags.Changed("database") {
		c.DatabaseURI = flagDatabase
	}
	if flags.Changed("settlement") {
		c.SettlementSystemAddress = flagSettlement
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}

	if err := logger.Setup(c.LoggerConfig()); err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}

	cfg = c
	return nil
}
