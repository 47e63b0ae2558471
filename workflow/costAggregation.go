package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/stock_ledger/config"
	"bitbucket.org/mmdatafocus/stock_ledger/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type WholesalePriceCollapseResult struct {
	Product   *models.Product
	Summary   models.WholesalePriceSummary
	Collapsed bool
	// Created holds the replacement lots when Collapsed is true.
	Created []*models.WholesalePrice
}

// settleWholesalePrices runs after a mutation has touched the lots: it collapses them when the
// store keeps averages, then writes stock_number and the wholesale aggregates onto the product.
// expectedStock is what the product counter should read; a mismatch is logged and the lots win.
func settleWholesalePrices(tx *gorm.DB, logger *logrus.Logger, product *models.Product, policy *models.StorePolicy, lots []*models.WholesalePrice, expectedStock int) (models.WholesalePriceSummary, bool, error) {
	collapsed := false
	if policy.KeepsAverage() && config.CollapseOnMutation() {
		created, ok, err := applyWholesalePriceCollapse(tx, product, lots, time.Now().UTC())
		if err != nil {
			return models.WholesalePriceSummary{}, false, err
		}
		if ok {
			lots = append(lots, created...)
			collapsed = true
		}
	}

	summary := models.SummarizeWholesalePrices(lots)
	if summary.Count != expectedStock && logger != nil {
		logger.WithFields(logrus.Fields{
			"store_id":       product.StoreId,
			"product_id":     product.ID,
			"stock_number":   expectedStock,
			"lot_remaining":  summary.Count,
			"previous_stock": product.StockNumber,
		}).Warn("product stock counter drifted from wholesale price lots")
	}
	if err := models.UpdateProductStock(tx, product, summary.Count, summary); err != nil {
		return models.WholesalePriceSummary{}, false, err
	}
	return summary, collapsed, nil
}

// applyWholesalePriceCollapse retires the remaining lots (both counts -> 0) and inserts the collapsed ones.
func applyWholesalePriceCollapse(tx *gorm.DB, product *models.Product, lots []*models.WholesalePrice, now time.Time) ([]*models.WholesalePrice, bool, error) {
	plan, ok := models.PlanWholesalePriceCollapse(product, lots, now)
	if !ok {
		return nil, false, nil
	}
	for _, lot := range plan.Retire {
		if err := models.RetireWholesalePrice(tx, lot); err != nil {
			return nil, false, err
		}
	}
	for _, lot := range plan.Create {
		if err := models.CreateWholesalePrice(tx, lot); err != nil {
			return nil, false, err
		}
	}
	return plan.Create, true, nil
}

// CollapseWholesalePrices collapses a product's remaining lots on demand, whatever the store's keep rule.
// The product's stock number and total cost do not change.
func CollapseWholesalePrices(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, storeId string, productId int) (result *WholesalePriceCollapseResult, err error) {
	ctx, span := startSpan(ctx, "CollapseWholesalePrices", storeId, attribute.Int("product_id", productId))
	defer func() { endSpan(span, err) }()

	err = WithTransaction(ctx, tx, func(tx *gorm.DB) error {
		product, err := models.GetProductForUpdate(tx, storeId, productId)
		if err != nil {
			return err
		}
		if product.IsInfinite() {
			result = &WholesalePriceCollapseResult{Product: product}
			return nil
		}
		lots, err := models.LockWholesalePrices(tx, storeId, productId)
		if err != nil {
			return err
		}
		created, ok, err := applyWholesalePriceCollapse(tx, product, lots, time.Now().UTC())
		if err != nil {
			return err
		}
		lots = append(lots, created...)
		summary := models.SummarizeWholesalePrices(lots)
		if err := models.UpdateProductStock(tx, product, summary.Count, summary); err != nil {
			return err
		}
		result = &WholesalePriceCollapseResult{Product: product, Summary: summary, Collapsed: ok, Created: created}
		return nil
	})
	if err != nil {
		config.LogError(logger, "costAggregation.go", "CollapseWholesalePrices", "collapsing wholesale prices",
			map[string]any{"store_id": storeId, "product_id": productId}, err)
		return nil, err
	}
	return result, nil
}

// RefreshWholesalePriceSummary recomputes a product's stock number and wholesale aggregates from its lots.
func RefreshWholesalePriceSummary(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, storeId string, productId int) (summary models.WholesalePriceSummary, err error) {
	ctx, span := startSpan(ctx, "RefreshWholesalePriceSummary", storeId, attribute.Int("product_id", productId))
	defer func() { endSpan(span, err) }()

	err = WithTransaction(ctx, tx, func(tx *gorm.DB) error {
		product, err := models.GetProductForUpdate(tx, storeId, productId)
		if err != nil {
			return err
		}
		if product.IsInfinite() {
			return nil
		}
		lots, err := models.LockWholesalePrices(tx, storeId, productId)
		if err != nil {
			return err
		}
		summary = models.SummarizeWholesalePrices(lots)
		return models.UpdateProductStock(tx, product, summary.Count, summary)
	})
	if err != nil {
		config.LogError(logger, "costAggregation.go", "RefreshWholesalePriceSummary", "refreshing wholesale price summary",
			map[string]any{"store_id": storeId, "product_id": productId}, err)
		return models.WholesalePriceSummary{}, err
	}
	return summary, nil
}
