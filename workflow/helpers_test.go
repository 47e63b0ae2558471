package workflow

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/stock_ledger/config"
	"bitbucket.org/mmdatafocus/stock_ledger/models"
	"bitbucket.org/mmdatafocus/stock_ledger/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testStoreId = "store-1"

var testDay = time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	t.Setenv("STOCK_COLLAPSE_ON_MUTATION", "true")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := config.OpenDatabase(sqlite.Open(dsn))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.MigrateTable(db))
	return db
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testContext() context.Context {
	return utils.SetStoreIdInContext(context.Background(), testStoreId)
}

func createProduct(t *testing.T, db *gorm.DB, name string) *models.Product {
	t.Helper()
	p := &models.Product{StoreId: testStoreId, Name: name}
	require.NoError(t, db.Create(p).Error)
	return p
}

func createInfiniteProduct(t *testing.T, db *gorm.DB, name string) *models.Product {
	t.Helper()
	p := &models.Product{StoreId: testStoreId, Name: name, IsInfiniteStock: utils.NewTrue()}
	require.NoError(t, db.Create(p).Error)
	return p
}

func savePolicy(t *testing.T, db *gorm.DB, mutate func(p *models.StorePolicy)) {
	t.Helper()
	policy := models.DefaultStorePolicy(testStoreId)
	mutate(policy)
	require.NoError(t, models.SaveStorePolicy(db, policy))
}

// receive books a purchase of count units at price arriving on testDay + day.
func receive(t *testing.T, db *gorm.DB, productId int, count int, price int64, day int) *StockMutationResult {
	t.Helper()
	unitPrice := decimal.NewFromInt(price)
	result, err := IncreaseStock(testContext(), db, newTestLogger(), StockMutationInput{
		StoreId:    testStoreId,
		ProductId:  productId,
		Count:      count,
		SourceKind: models.StockSourceKindPurchase,
		SourceId:   1,
		UnitPrice:  &unitPrice,
		StockDate:  testDay.AddDate(0, 0, day),
	})
	require.NoError(t, err)
	return result
}

func sale(productId int, count int) StockMutationInput {
	return StockMutationInput{
		StoreId:    testStoreId,
		ProductId:  productId,
		Count:      count,
		SourceKind: models.StockSourceKindSale,
		SourceId:   99,
	}
}

func reloadProduct(t *testing.T, db *gorm.DB, id int) *models.Product {
	t.Helper()
	p, err := models.GetProduct(db, testStoreId, id)
	require.NoError(t, err)
	return p
}

func remainingLots(t *testing.T, db *gorm.DB, productId int) []*models.WholesalePrice {
	t.Helper()
	lots, err := models.ListWholesalePrices(db, testStoreId, productId)
	require.NoError(t, err)
	return models.RemainingWholesalePrices(lots)
}

func histories(t *testing.T, db *gorm.DB, productId int) []*models.StockHistory {
	t.Helper()
	var rows []*models.StockHistory
	require.NoError(t, db.Where("store_id = ? AND product_id = ?", testStoreId, productId).Order("id").Find(&rows).Error)
	return rows
}

// assertLedgerConsistent checks that the lots, the product counter and the ledger agree.
func assertLedgerConsistent(t *testing.T, db *gorm.DB, productId int) {
	t.Helper()
	product := reloadProduct(t, db, productId)
	summary := models.SummarizeWholesalePrices(remainingLots(t, db, productId))
	assert.Equal(t, product.StockNumber, summary.Count, "sum of remaining lots")
	assert.True(t, product.TotalWholesalePrice.Equal(summary.Total), "total %s != %s", product.TotalWholesalePrice, summary.Total)

	qty := 0
	rows := histories(t, db, productId)
	for _, sh := range rows {
		qty += sh.Qty
	}
	assert.Equal(t, product.StockNumber, qty, "sum of ledger quantities")
	if len(rows) > 0 {
		assert.Equal(t, product.StockNumber, rows[len(rows)-1].StockNumber, "last ledger stock number")
	}
}

func assertDecimal(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(decimal.NewFromInt(want)), "want %d, got %s", want, got.String())
}
