package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func lot(id int, price int64, remaining int, original int, arrivedAfterDays int) *WholesalePrice {
	return &WholesalePrice{
		ID:                 id,
		StoreId:            "s-1",
		ProductId:          1,
		UnitPrice:          decimal.NewFromInt(price),
		OriginalItemCount:  original,
		RemainingItemCount: remaining,
		ArrivedAt:          testDay.AddDate(0, 0, arrivedAfterDays),
	}
}

func TestAllocateWholesalePrices_ArrivedAtAsc(t *testing.T) {
	product := &Product{ID: 1, StoreId: "s-1", StockNumber: 10}
	lots := []*WholesalePrice{lot(1, 100, 5, 5, 0), lot(2, 120, 5, 5, 1)}

	alloc, err := AllocateWholesalePrices(product, lots, 7, WholesalePriceOrder{WholesalePriceOrderColumnArrivedAt, WholesalePriceOrderRuleAsc})
	require.NoError(t, err)
	require.Len(t, alloc.Consumptions, 2)
	assert.Equal(t, 1, alloc.Consumptions[0].Lot.ID)
	assert.Equal(t, 5, alloc.Consumptions[0].Count)
	assert.Equal(t, 2, alloc.Consumptions[1].Lot.ID)
	assert.Equal(t, 2, alloc.Consumptions[1].Count)
	assert.True(t, alloc.Cost.Equal(decimal.NewFromInt(740)), "cost=%s", alloc.Cost)

	// allocation is a plan; the lots are untouched
	assert.Equal(t, 5, lots[0].RemainingItemCount)
	assert.Equal(t, 5, lots[1].RemainingItemCount)
}

func TestAllocateWholesalePrices_UnitPriceDesc(t *testing.T) {
	product := &Product{ID: 1, StoreId: "s-1", StockNumber: 10}
	lots := []*WholesalePrice{lot(1, 100, 5, 5, 0), lot(2, 120, 5, 5, 1)}

	alloc, err := AllocateWholesalePrices(product, lots, 6, WholesalePriceOrder{WholesalePriceOrderColumnUnitPrice, WholesalePriceOrderRuleDesc})
	require.NoError(t, err)
	assert.True(t, alloc.Cost.Equal(decimal.NewFromInt(700)), "cost=%s", alloc.Cost)
	require.Len(t, alloc.Consumptions, 2)
	assert.Equal(t, 2, alloc.Consumptions[0].Lot.ID)
	assert.Equal(t, 5, alloc.Consumptions[0].Count)
	assert.Equal(t, 1, alloc.Consumptions[1].Count)
}

func TestAllocateWholesalePrices_Insufficient(t *testing.T) {
	product := &Product{ID: 1, StoreId: "s-1", StockNumber: 10}
	lots := []*WholesalePrice{lot(1, 100, 5, 5, 0), lot(2, 120, 5, 5, 1)}

	_, err := AllocateWholesalePrices(product, lots, 11, WholesalePriceOrder{WholesalePriceOrderColumnArrivedAt, WholesalePriceOrderRuleAsc})
	require.ErrorIs(t, err, ErrInsufficientStock)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 11, insufficient.Requested)
	assert.Equal(t, 10, insufficient.Available)
}

func TestAllocateWholesalePrices_SkipsConsumedLots(t *testing.T) {
	product := &Product{ID: 1, StoreId: "s-1", StockNumber: 3}
	lots := []*WholesalePrice{lot(1, 100, 0, 5, 0), lot(2, 120, 3, 5, 1)}

	alloc, err := AllocateWholesalePrices(product, lots, 3, WholesalePriceOrder{WholesalePriceOrderColumnArrivedAt, WholesalePriceOrderRuleAsc})
	require.NoError(t, err)
	require.Len(t, alloc.Consumptions, 1)
	assert.Equal(t, 2, alloc.Consumptions[0].Lot.ID)
}

func TestAllocateWholesalePrices_TiesFallBackToId(t *testing.T) {
	product := &Product{ID: 1, StoreId: "s-1", StockNumber: 4}
	lots := []*WholesalePrice{lot(9, 100, 2, 2, 0), lot(3, 100, 2, 2, 0)}

	alloc, err := AllocateWholesalePrices(product, lots, 2, WholesalePriceOrder{WholesalePriceOrderColumnUnitPrice, WholesalePriceOrderRuleAsc})
	require.NoError(t, err)
	require.Len(t, alloc.Consumptions, 1)
	assert.Equal(t, 3, alloc.Consumptions[0].Lot.ID)
}

func TestAllocateWholesalePrices_InfiniteStock(t *testing.T) {
	infinite := true
	product := &Product{ID: 1, StoreId: "s-1", IsInfiniteStock: &infinite}

	alloc, err := AllocateWholesalePrices(product, nil, 1000, WholesalePriceOrder{})
	require.NoError(t, err)
	assert.True(t, alloc.IsInfinite())
	assert.Empty(t, alloc.Consumptions)
}

func TestAllocateWholesalePrices_RejectsNonPositiveCount(t *testing.T) {
	product := &Product{ID: 1, StoreId: "s-1"}
	for _, count := range []int{0, -1} {
		_, err := AllocateWholesalePrices(product, nil, count, WholesalePriceOrder{WholesalePriceOrderColumnArrivedAt, WholesalePriceOrderRuleAsc})
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestPlanWholesalePriceRestore_RecreditsInReturnOrder(t *testing.T) {
	product := &Product{ID: 1, StoreId: "s-1", StockNumber: 3}
	// 7 units sold: lot 1 fully, lot 2 partially
	lots := []*WholesalePrice{lot(1, 100, 0, 5, 0), lot(2, 120, 3, 5, 1)}
	order := WholesalePriceOrder{WholesalePriceOrderColumnArrivedAt, WholesalePriceOrderRuleDesc}

	plan, err := PlanWholesalePriceRestore(product, lots, 4, order, nil)
	require.NoError(t, err)
	require.Len(t, plan.Credits, 2)
	assert.Equal(t, 2, plan.Credits[0].Lot.ID)
	assert.Equal(t, 2, plan.Credits[0].Count)
	assert.Equal(t, 1, plan.Credits[1].Lot.ID)
	assert.Equal(t, 2, plan.Credits[1].Count)
	assert.Zero(t, plan.NewLotCount)
	assert.True(t, plan.Cost.Equal(decimal.NewFromInt(440)), "cost=%s", plan.Cost)
}

func TestPlanWholesalePriceRestore_OverflowGoesToNewLot(t *testing.T) {
	product := &Product{ID: 1, StoreId: "s-1", StockNumber: 4}
	lots := []*WholesalePrice{lot(1, 100, 4, 5, 0)}
	order := WholesalePriceOrder{WholesalePriceOrderColumnArrivedAt, WholesalePriceOrderRuleDesc}

	plan, err := PlanWholesalePriceRestore(product, lots, 3, order, nil)
	require.NoError(t, err)
	require.Len(t, plan.Credits, 1)
	assert.Equal(t, 1, plan.Credits[0].Count)
	assert.Equal(t, 2, plan.NewLotCount)
	assert.True(t, plan.NewLotUnitPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, plan.Cost.Equal(decimal.NewFromInt(300)))
}

func TestPlanWholesalePriceRestore_ExplicitPriceCreatesLot(t *testing.T) {
	product := &Product{ID: 1, StoreId: "s-1"}
	price := decimal.NewFromInt(80)

	plan, err := PlanWholesalePriceRestore(product, []*WholesalePrice{lot(1, 100, 0, 5, 0)}, 5, WholesalePriceOrder{}, &price)
	require.NoError(t, err)
	assert.Empty(t, plan.Credits)
	assert.Equal(t, 5, plan.NewLotCount)
	assert.True(t, plan.Cost.Equal(decimal.NewFromInt(400)))

	negative := decimal.NewFromInt(-1)
	_, err = PlanWholesalePriceRestore(product, nil, 1, WholesalePriceOrder{}, &negative)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPlanWholesalePriceRestore_NoLotsNeedsPrice(t *testing.T) {
	product := &Product{ID: 1, StoreId: "s-1"}
	_, err := PlanWholesalePriceRestore(product, nil, 1, WholesalePriceOrder{WholesalePriceOrderColumnArrivedAt, WholesalePriceOrderRuleDesc}, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPlanWholesalePriceRestore_SkipsRetiredLots(t *testing.T) {
	product := &Product{ID: 1, StoreId: "s-1", StockNumber: 3}
	lots := []*WholesalePrice{
		lot(1, 101, 0, 0, 0),
		lot(2, 103, 0, 0, 1),
		lot(3, 102, 2, 4, 0),
		lot(4, 103, 1, 1, 0),
	}
	order := WholesalePriceOrder{WholesalePriceOrderColumnArrivedAt, WholesalePriceOrderRuleDesc}

	plan, err := PlanWholesalePriceRestore(product, lots, 3, order, nil)
	require.NoError(t, err)
	require.Len(t, plan.Credits, 1)
	assert.Equal(t, 3, plan.Credits[0].Lot.ID)
	assert.Equal(t, 2, plan.Credits[0].Count)
	assert.Equal(t, 1, plan.NewLotCount)
	assert.True(t, plan.NewLotUnitPrice.Equal(decimal.NewFromInt(102)), "price=%s", plan.NewLotUnitPrice)
	assert.True(t, plan.Cost.Equal(decimal.NewFromInt(306)), "cost=%s", plan.Cost)
}
