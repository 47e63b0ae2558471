package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// WholesalePriceOrder is one (column, rule) pair of a store's allocation policy.
type WholesalePriceOrder struct {
	Column WholesalePriceOrderColumn
	Rule   WholesalePriceOrderRule
}

func (o WholesalePriceOrder) Validate() error {
	if !o.Column.IsValid() {
		return NewValidationError("invalid wholesale price order column %q", o.Column)
	}
	if !o.Rule.IsValid() {
		return NewValidationError("invalid wholesale price order rule %q", o.Rule)
	}
	return nil
}

// SortWholesalePrices returns a sorted copy of lots. Ties fall back to creation order (id).
func SortWholesalePrices(lots []*WholesalePrice, order WholesalePriceOrder) []*WholesalePrice {
	sorted := make([]*WholesalePrice, len(lots))
	copy(sorted, lots)
	desc := order.Rule == WholesalePriceOrderRuleDesc
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		var cmp int
		switch order.Column {
		case WholesalePriceOrderColumnUnitPrice:
			cmp = a.UnitPrice.Cmp(b.UnitPrice)
		default:
			switch {
			case a.ArrivedAt.Before(b.ArrivedAt):
				cmp = -1
			case a.ArrivedAt.After(b.ArrivedAt):
				cmp = 1
			}
		}
		if cmp != 0 {
			if desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return a.ID < b.ID
	})
	return sorted
}

// WholesalePriceConsumption is the part of one lot taken by an allocation.
type WholesalePriceConsumption struct {
	Lot   *WholesalePrice
	Count int
	Cost  decimal.Decimal
}

type WholesalePriceAllocation struct {
	Consumptions []WholesalePriceConsumption
	Count        int
	// Cost is nil for infinite-stock products.
	Cost *decimal.Decimal
}

func (a *WholesalePriceAllocation) IsInfinite() bool {
	return a.Cost == nil
}

// AllocateWholesalePrices picks which lots a decrease of count units consumes.
// It does not touch the lots; applying the result is the caller's job.
// When the lots cannot cover count nothing is consumed and InsufficientStockError is returned.
func AllocateWholesalePrices(product *Product, lots []*WholesalePrice, count int, order WholesalePriceOrder) (*WholesalePriceAllocation, error) {
	if count <= 0 {
		return nil, NewValidationError("count must be positive, got %d", count)
	}
	if product.IsInfinite() {
		return &WholesalePriceAllocation{Count: count}, nil
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	candidates := RemainingWholesalePrices(lots)
	available := 0
	for _, lot := range candidates {
		available += lot.RemainingItemCount
	}
	if available < count {
		return nil, &InsufficientStockError{ProductId: product.ID, Requested: count, Available: available}
	}

	cost := decimal.Zero
	stillNeeded := count
	consumptions := make([]WholesalePriceConsumption, 0)
	for _, lot := range SortWholesalePrices(candidates, order) {
		if stillNeeded == 0 {
			break
		}
		take := min(lot.RemainingItemCount, stillNeeded)
		lotCost := lot.UnitPrice.Mul(decimal.NewFromInt(int64(take)))
		consumptions = append(consumptions, WholesalePriceConsumption{Lot: lot, Count: take, Cost: lotCost})
		cost = cost.Add(lotCost)
		stillNeeded -= take
	}

	return &WholesalePriceAllocation{Consumptions: consumptions, Count: count, Cost: &cost}, nil
}

// WholesalePriceCredit is a re-credit of Count units onto an existing lot.
type WholesalePriceCredit struct {
	Lot   *WholesalePrice
	Count int
	Cost  decimal.Decimal
}

type WholesalePriceRestoration struct {
	Credits []WholesalePriceCredit
	// NewLotCount units do not fit any consumed lot and go to a fresh lot at NewLotUnitPrice.
	NewLotCount     int
	NewLotUnitPrice decimal.Decimal
	Count           int
	// Cost is nil for infinite-stock products.
	Cost *decimal.Decimal
}

func (r *WholesalePriceRestoration) IsInfinite() bool {
	return r.Cost == nil
}

// PlanWholesalePriceRestore decides where count returned units go.
//
// With an explicit unitPrice (a fresh receipt) everything goes to one new lot.
// Without one, units re-credit consumed lots in return-policy order, never above their original count;
// the rest goes to a new lot priced like the first lot in return-policy order that a collapse has not retired.
func PlanWholesalePriceRestore(product *Product, lots []*WholesalePrice, count int, order WholesalePriceOrder, unitPrice *decimal.Decimal) (*WholesalePriceRestoration, error) {
	if count <= 0 {
		return nil, NewValidationError("count must be positive, got %d", count)
	}
	if product.IsInfinite() {
		return &WholesalePriceRestoration{Count: count}, nil
	}
	if unitPrice != nil {
		if unitPrice.IsNegative() {
			return nil, NewValidationError("unit price cannot be negative, got %s", unitPrice.String())
		}
		cost := unitPrice.Mul(decimal.NewFromInt(int64(count)))
		return &WholesalePriceRestoration{
			NewLotCount:     count,
			NewLotUnitPrice: *unitPrice,
			Count:           count,
			Cost:            &cost,
		}, nil
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if len(lots) == 0 {
		return nil, NewValidationError("product %d has no wholesale price to restore onto; unit price is required", product.ID)
	}

	ordered := SortWholesalePrices(lots, order)
	cost := decimal.Zero
	remaining := count
	credits := make([]WholesalePriceCredit, 0)
	for _, lot := range ordered {
		if remaining == 0 {
			break
		}
		headroom := lot.Headroom()
		if headroom == 0 {
			continue
		}
		take := min(headroom, remaining)
		lotCost := lot.UnitPrice.Mul(decimal.NewFromInt(int64(take)))
		credits = append(credits, WholesalePriceCredit{Lot: lot, Count: take, Cost: lotCost})
		cost = cost.Add(lotCost)
		remaining -= take
	}

	restoration := &WholesalePriceRestoration{Credits: credits, Count: count}
	if remaining > 0 {
		priced := ordered[0]
		for _, lot := range ordered {
			if !lot.Retired() {
				priced = lot
				break
			}
		}
		restoration.NewLotCount = remaining
		restoration.NewLotUnitPrice = priced.UnitPrice
		cost = cost.Add(priced.UnitPrice.Mul(decimal.NewFromInt(int64(remaining))))
	}
	restoration.Cost = &cost
	return restoration, nil
}
