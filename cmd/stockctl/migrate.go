package main

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/stock_ledger/models"
	"github.com/spf13/cobra"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Create or update the stock ledger tables",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, db, _ := rootOpts.connect(context.Background())
			if err := models.MigrateTable(db.WithContext(ctx)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return nil
		},
	}
}
