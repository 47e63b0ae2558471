package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportStockAsOf(t *testing.T) {
	db := newTestDB(t)
	tea := createProduct(t, db, "tea")
	coffee := createProduct(t, db, "coffee")
	receive(t, db, tea.ID, 5, 100, 0)
	receive(t, db, tea.ID, 5, 120, 2)
	receive(t, db, coffee.ID, 3, 80, 1)

	positions, err := ReportStockAsOf(testContext(), db, newTestLogger(), testStoreId, nil, testDay.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, 5, positions[tea.ID].StockNumber)
	assert.Equal(t, 3, positions[coffee.ID].StockNumber)

	positions, err = ReportStockAsOf(testContext(), db, newTestLogger(), testStoreId, []int{tea.ID, 999}, testDay.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, 10, positions[tea.ID].StockNumber)
	assert.Equal(t, 10, positions[tea.ID].IncomingQty)
	assert.Zero(t, positions[999].StockNumber)
	_, hasCoffee := positions[coffee.ID]
	assert.False(t, hasCoffee)
}

func TestReportStockAsOf_BackdatedReceipt(t *testing.T) {
	db := newTestDB(t)
	tea := createProduct(t, db, "tea")
	receive(t, db, tea.ID, 5, 100, 2)
	receive(t, db, tea.ID, 3, 90, 0)

	positions, err := ReportStockAsOf(testContext(), db, newTestLogger(), testStoreId, []int{tea.ID}, testDay.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, positions[tea.ID].StockNumber)

	positions, err = ReportStockAsOf(testContext(), db, newTestLogger(), testStoreId, []int{tea.ID}, testDay.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, reloadProduct(t, db, tea.ID).StockNumber, positions[tea.ID].StockNumber)
	assert.Equal(t, 8, positions[tea.ID].StockNumber)
}

func TestReportStockAsOf_InfiniteProduct(t *testing.T) {
	db := newTestDB(t)
	service := createInfiniteProduct(t, db, "delivery")
	_, err := DecreaseStock(testContext(), db, newTestLogger(), sale(service.ID, 4))
	require.NoError(t, err)

	positions, err := ReportStockAsOf(testContext(), db, newTestLogger(), testStoreId, []int{service.ID}, time.Now().UTC().AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, reloadProduct(t, db, service.ID).StockNumber, positions[service.ID].StockNumber)
	assert.Equal(t, 4, positions[service.ID].OutgoingQty)
}
