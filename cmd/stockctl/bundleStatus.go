package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stock_ledger/config"
	"bitbucket.org/mmdatafocus/stock_ledger/utils"
	"bitbucket.org/mmdatafocus/stock_ledger/workflow"
	"github.com/spf13/cobra"
)

type BundleStatusOptions struct {
	*RootOptions
	Date string
}

func NewBundleStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BundleStatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bundle-status",
		Short: "Publish and expire bundle items for a store",
		Long: `Walk every non-deleted bundle item of the store and apply its status transition.

Items whose start date has come are published and stocked to their initial count.
Items whose expire date is yesterday or earlier are released and deleted.
Each item commits on its own; failures are listed in the run log.

Examples:
  stockctl bundle-status --store-id s-1
  stockctl bundle-status --store-id s-1 --date 2024-04-01 --format json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBundleStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "run as of this local date (YYYY-MM-DD); defaults to today in STORE_TIMEZONE")

	return cmd
}

func runBundleStatus(opts *BundleStatusOptions, cmd *cobra.Command) error {
	if err := opts.requireStore(); err != nil {
		return err
	}
	today := workflow.StoreToday(time.Now())
	if strings.TrimSpace(opts.Date) != "" {
		d, err := utils.ParseDateInLocation(strings.TrimSpace(opts.Date), config.StoreLocation())
		if err != nil {
			return fmt.Errorf("invalid date: %w", err)
		}
		today = d
	}

	ctx, db, logger := opts.connect(context.Background())
	runLog, err := workflow.RunBundleStatusScheduler(ctx, db, logger, opts.locker(ctx), opts.StoreId, today)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return opts.printJSON(out, runLog)
	}
	fmt.Fprintf(out, "run %s store=%s date=%s items=%d failures=%d\n",
		runLog.RunId, runLog.StoreId, runLog.Today.Format("2006-01-02"), len(runLog.Entries), len(runLog.Failures()))
	for _, e := range runLog.Entries {
		if e.Error != "" {
			fmt.Fprintf(out, "  bundle_item=%d transition=%s error=%s\n", e.BundleItemId, e.Transition, e.Error)
			continue
		}
		fmt.Fprintf(out, "  bundle_item=%d transition=%s\n", e.BundleItemId, e.Transition)
	}
	return nil
}
