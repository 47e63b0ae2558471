package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// StockPosition is a product's stock reconstructed from its ledger at a point in time.
type StockPosition struct {
	ProductId     int
	AsOf          time.Time
	StockNumber   int
	IncomingQty   int
	OutgoingQty   int
	ConsumedValue decimal.Decimal
	RestoredValue decimal.Decimal
	LastHistoryId int
}

// StockAsOf replays the ledger rows of one product up to and including asOf.
// Rows may come in any order; they are replayed by (stock_date, id).
func StockAsOf(histories []*StockHistory, productId int, asOf time.Time) StockPosition {
	rows := make([]*StockHistory, 0, len(histories))
	for _, sh := range histories {
		if sh == nil || sh.ProductId != productId || sh.StockDate.After(asOf) {
			continue
		}
		rows = append(rows, sh)
	}
	sortStockHistories(rows)

	pos := StockPosition{
		ProductId:     productId,
		AsOf:          asOf,
		ConsumedValue: decimal.Zero,
		RestoredValue: decimal.Zero,
	}
	for _, sh := range rows {
		if sh.Qty < 0 {
			pos.OutgoingQty += -sh.Qty
			if sh.WholesalePrice != nil {
				pos.ConsumedValue = pos.ConsumedValue.Add(*sh.WholesalePrice)
			}
		} else {
			pos.IncomingQty += sh.Qty
			if sh.WholesalePrice != nil {
				pos.RestoredValue = pos.RestoredValue.Add(*sh.WholesalePrice)
			}
		}
		// StockNumber on a row is the counter at commit time, which follows id order and not
		// stock_date order, so only untracked rows take it as is.
		if sh.IsInfiniteStock != nil && *sh.IsInfiniteStock {
			pos.StockNumber = sh.StockNumber
		} else {
			pos.StockNumber += sh.Qty
		}
		pos.LastHistoryId = sh.ID
	}
	return pos
}

// StockAsOfByProduct replays every product found in the stream.
func StockAsOfByProduct(histories []*StockHistory, asOf time.Time) map[int]StockPosition {
	productIds := make(map[int]struct{})
	for _, sh := range histories {
		if sh != nil {
			productIds[sh.ProductId] = struct{}{}
		}
	}
	result := make(map[int]StockPosition, len(productIds))
	for productId := range productIds {
		result[productId] = StockAsOf(histories, productId, asOf)
	}
	return result
}

func sortStockHistories(rows []*StockHistory) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].StockDate.Equal(rows[j].StockDate) {
			return rows[i].StockDate.Before(rows[j].StockDate)
		}
		return rows[i].ID < rows[j].ID
	})
}
