package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reconciler/internal/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the invoice, transaction and operator tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := database.NewDB(cmd.Context(), cfg.DatabaseURI)
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			if err := database.InitSchema(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", db.Dialect)
			return nil
		},
	}
}
