package main

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/stock_ledger/workflow"
	"github.com/spf13/cobra"
)

type CollapseOptions struct {
	*RootOptions
	ProductIds      []int
	Refresh         bool
	ContinueOnError bool
}

type collapseLine struct {
	ProductId   int    `json:"product_id"`
	Collapsed   bool   `json:"collapsed"`
	StockNumber int    `json:"stock_number"`
	Total       string `json:"total_wholesale_price"`
	Average     string `json:"average_wholesale_price"`
	Error       string `json:"error,omitempty"`
}

func NewCollapseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CollapseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "collapse",
		Short: "Collapse wholesale price lots to the average form",
		Long: `Replace each product's remaining lots with at most two lots carrying the
rounded average, keeping the stock count and total cost unchanged.

With --refresh the lots are left alone and only the product's cached
stock number and wholesale aggregates are recomputed.

Examples:
  stockctl collapse --store-id s-1 --product-id 10 --product-id 11
  stockctl collapse --store-id s-1 --product-id 10 --refresh`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollapse(opts, cmd)
		},
	}

	cmd.Flags().IntSliceVar(&opts.ProductIds, "product-id", nil, "product id (repeatable, required)")
	_ = cmd.MarkFlagRequired("product-id")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "only recompute cached aggregates")
	cmd.Flags().BoolVar(&opts.ContinueOnError, "continue-on-error", false, "skip failing products and continue with the others")

	return cmd
}

func runCollapse(opts *CollapseOptions, cmd *cobra.Command) error {
	if err := opts.requireStore(); err != nil {
		return err
	}
	ctx, db, logger := opts.connect(context.Background())

	lines := make([]collapseLine, 0, len(opts.ProductIds))
	for _, productId := range opts.ProductIds {
		line := collapseLine{ProductId: productId}
		if opts.Refresh {
			summary, err := workflow.RefreshWholesalePriceSummary(ctx, db, logger, opts.StoreId, productId)
			if err != nil {
				if !opts.ContinueOnError {
					return fmt.Errorf("product %d: %w", productId, err)
				}
				line.Error = err.Error()
			} else {
				line.StockNumber = summary.Count
				line.Total = summary.Total.String()
				line.Average = summary.Average.String()
			}
		} else {
			result, err := workflow.CollapseWholesalePrices(ctx, db, logger, opts.StoreId, productId)
			if err != nil {
				if !opts.ContinueOnError {
					return fmt.Errorf("product %d: %w", productId, err)
				}
				line.Error = err.Error()
			} else {
				line.Collapsed = result.Collapsed
				line.StockNumber = result.Product.StockNumber
				line.Total = result.Product.TotalWholesalePrice.String()
				line.Average = result.Product.AverageWholesalePrice.String()
			}
		}
		lines = append(lines, line)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return opts.printJSON(out, lines)
	}
	for _, l := range lines {
		if l.Error != "" {
			fmt.Fprintf(out, "product=%d error=%s\n", l.ProductId, l.Error)
			continue
		}
		fmt.Fprintf(out, "product=%d collapsed=%t stock=%d total=%s average=%s\n",
			l.ProductId, l.Collapsed, l.StockNumber, l.Total, l.Average)
	}
	return nil
}
