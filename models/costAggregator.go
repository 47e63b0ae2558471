package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WholesalePriceSummary is the cached aggregate of a product's remaining lots.
type WholesalePriceSummary struct {
	Count   int
	Total   decimal.Decimal
	Average decimal.Decimal
	Minimum decimal.Decimal
	Maximum decimal.Decimal
}

// SummarizeWholesalePrices computes total/average/min/max over lots with remaining stock.
// Average is round(total / count), 0 when nothing remains.
func SummarizeWholesalePrices(lots []*WholesalePrice) WholesalePriceSummary {
	summary := WholesalePriceSummary{
		Total:   decimal.Zero,
		Average: decimal.Zero,
		Minimum: decimal.Zero,
		Maximum: decimal.Zero,
	}
	first := true
	for _, lot := range RemainingWholesalePrices(lots) {
		summary.Count += lot.RemainingItemCount
		summary.Total = summary.Total.Add(lot.RemainingValue())
		if first || lot.UnitPrice.LessThan(summary.Minimum) {
			summary.Minimum = lot.UnitPrice
		}
		if first || lot.UnitPrice.GreaterThan(summary.Maximum) {
			summary.Maximum = lot.UnitPrice
		}
		first = false
	}
	if summary.Count > 0 {
		summary.Average = roundedAverage(summary.Total, summary.Count)
	}
	return summary
}

func roundedAverage(total decimal.Decimal, count int) decimal.Decimal {
	return total.Div(decimal.NewFromInt(int64(count))).Round(0)
}

// WholesalePriceCollapse replaces a product's remaining lots with at most two lots
// whose counts and total cost match the lots they replace exactly.
type WholesalePriceCollapse struct {
	Retire    []*WholesalePrice
	Create    []*WholesalePrice
	Total     decimal.Decimal
	Average   decimal.Decimal
	Remainder decimal.Decimal
}

// PlanWholesalePriceCollapse builds the collapse of the product's remaining lots.
//
// avg = round(total / n), remainder = total - avg*n; the result is (n-1)@avg + 1@(avg+remainder),
// or n@avg when the remainder is zero. If rounding up would push the single lot negative
// the average is floored instead, keeping the remainder non-negative.
//
// ok is false when there is nothing to collapse or the lots are already in collapsed form.
func PlanWholesalePriceCollapse(product *Product, lots []*WholesalePrice, now time.Time) (*WholesalePriceCollapse, bool) {
	if product.IsInfinite() {
		return nil, false
	}
	remaining := RemainingWholesalePrices(lots)
	summary := SummarizeWholesalePrices(remaining)
	if summary.Count == 0 {
		return nil, false
	}

	n := decimal.NewFromInt(int64(summary.Count))
	avg := summary.Average
	remainder := summary.Total.Sub(avg.Mul(n))
	if avg.Add(remainder).IsNegative() {
		avg = summary.Total.Div(n).Floor()
		remainder = summary.Total.Sub(avg.Mul(n))
	}

	type part struct {
		count int
		price decimal.Decimal
	}
	parts := []part{}
	if remainder.IsZero() {
		parts = append(parts, part{count: summary.Count, price: avg})
	} else {
		if summary.Count > 1 {
			parts = append(parts, part{count: summary.Count - 1, price: avg})
		}
		parts = append(parts, part{count: 1, price: avg.Add(remainder)})
	}

	if len(remaining) == len(parts) {
		matched := true
		for i, lot := range SortWholesalePrices(remaining, WholesalePriceOrder{Column: WholesalePriceOrderColumnUnitPrice, Rule: WholesalePriceOrderRuleAsc}) {
			want := parts[i]
			if remainder.IsNegative() {
				// the single lot is the cheaper one
				want = parts[len(parts)-1-i]
			}
			if lot.RemainingItemCount != want.count || !lot.UnitPrice.Equal(want.price) {
				matched = false
				break
			}
		}
		if matched {
			return nil, false
		}
	}

	arrivedAt := now
	for _, lot := range remaining {
		if lot.ArrivedAt.Before(arrivedAt) {
			arrivedAt = lot.ArrivedAt
		}
	}

	collapse := &WholesalePriceCollapse{
		Retire:    remaining,
		Total:     summary.Total,
		Average:   avg,
		Remainder: remainder,
	}
	for _, p := range parts {
		collapse.Create = append(collapse.Create, &WholesalePrice{
			StoreId:            product.StoreId,
			ProductId:          product.ID,
			ResourceType:       product.WholesalePriceResourceType(),
			UnitPrice:          p.price,
			OriginalItemCount:  p.count,
			RemainingItemCount: p.count,
			ArrivedAt:          arrivedAt,
			SourceKind:         StockSourceKindCollapse,
			SourceId:           product.ID,
		})
	}
	return collapse, true
}
