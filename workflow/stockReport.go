package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/stock_ledger/config"
	"bitbucket.org/mmdatafocus/stock_ledger/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReportStockAsOf reconstructs stock positions at asOf by replaying the ledger.
// With no productIds every product that has ledger rows up to asOf is reported.
func ReportStockAsOf(ctx context.Context, db *gorm.DB, logger *logrus.Logger, storeId string, productIds []int, asOf time.Time) (positions map[int]models.StockPosition, err error) {
	ctx, span := startSpan(ctx, "ReportStockAsOf", storeId)
	defer func() { endSpan(span, err) }()

	histories, err := models.ListStockHistories(db.WithContext(ctx), storeId, productIds, asOf)
	if err != nil {
		config.LogError(logger, "stockReport.go", "ReportStockAsOf", "listing stock histories",
			map[string]any{"store_id": storeId, "product_ids": productIds, "as_of": asOf}, err)
		return nil, err
	}
	positions = models.StockAsOfByProduct(histories, asOf)
	for _, id := range productIds {
		if _, ok := positions[id]; !ok {
			positions[id] = models.StockAsOf(nil, id, asOf)
		}
	}
	return positions, nil
}
