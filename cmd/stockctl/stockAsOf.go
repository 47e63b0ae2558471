package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stock_ledger/config"
	"bitbucket.org/mmdatafocus/stock_ledger/models"
	"bitbucket.org/mmdatafocus/stock_ledger/utils"
	"bitbucket.org/mmdatafocus/stock_ledger/workflow"
	"github.com/spf13/cobra"
)

type StockAsOfOptions struct {
	*RootOptions
	Date       string
	ProductIds []int
}

func NewStockAsOfCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StockAsOfOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stock-as-of",
		Short: "Reconstruct stock at the end of a day from the ledger",
		Long: `Replay the stock history ledger up to the end of the given local date
and print each product's stock number with its incoming and outgoing totals.

Examples:
  stockctl stock-as-of --store-id s-1 --date 2024-03-31
  stockctl stock-as-of --store-id s-1 --date 2024-03-31 --product-id 10 --format json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStockAsOf(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "local date (YYYY-MM-DD, required)")
	_ = cmd.MarkFlagRequired("date")
	cmd.Flags().IntSliceVar(&opts.ProductIds, "product-id", nil, "limit to product id (repeatable)")

	return cmd
}

func runStockAsOf(opts *StockAsOfOptions, cmd *cobra.Command) error {
	if err := opts.requireStore(); err != nil {
		return err
	}
	day, err := utils.ParseDateInLocation(strings.TrimSpace(opts.Date), config.StoreLocation())
	if err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	asOf := day.AddDate(0, 0, 1).Add(-time.Nanosecond).UTC()

	ctx, db, logger := opts.connect(context.Background())
	positions, err := workflow.ReportStockAsOf(ctx, db, logger, opts.StoreId, opts.ProductIds, asOf)
	if err != nil {
		return err
	}

	rows := make([]models.StockPosition, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ProductId < rows[j].ProductId })

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return opts.printJSON(out, rows)
	}
	for _, p := range rows {
		fmt.Fprintf(out, "product=%d stock=%d in=%d out=%d consumed=%s\n",
			p.ProductId, p.StockNumber, p.IncomingQty, p.OutgoingQty, p.ConsumedValue.String())
	}
	return nil
}
