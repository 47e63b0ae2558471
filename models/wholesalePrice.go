package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WholesalePrice is one acquisition lot of a product.
// Rows are never deleted; a consumed lot stays with RemainingItemCount = 0.
type WholesalePrice struct {
	ID                 int                        `gorm:"primary_key" json:"id"`
	StoreId            string                     `gorm:"index:idx_wholesale_prices_product,priority:1;size:64;not null" json:"store_id"`
	ProductId          int                        `gorm:"index:idx_wholesale_prices_product,priority:2;not null" json:"product_id"`
	ResourceType       WholesalePriceResourceType `gorm:"size:20;not null;default:product" json:"resource_type"`
	UnitPrice          decimal.Decimal            `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	OriginalItemCount  int                        `gorm:"not null;default:0" json:"original_item_count"`
	RemainingItemCount int                        `gorm:"not null;default:0" json:"remaining_item_count"`
	ArrivedAt          time.Time                  `gorm:"index;not null" json:"arrived_at"`
	SourceKind         StockSourceKind            `gorm:"size:32;not null" json:"source_kind"`
	SourceId           int                        `gorm:"index" json:"source_id"`
	CreatedAt          time.Time                  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time                  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (w *WholesalePrice) GetStoreId() string {
	return w.StoreId
}

// RemainingValue is remaining count * unit price.
func (w *WholesalePrice) RemainingValue() decimal.Decimal {
	return w.UnitPrice.Mul(decimal.NewFromInt(int64(w.RemainingItemCount)))
}

// Retired reports a lot folded into a collapse; it has no count left to restore.
func (w *WholesalePrice) Retired() bool {
	return w.OriginalItemCount == 0 && w.RemainingItemCount == 0
}

// Headroom is how many units can be re-credited before the lot is back to its original count.
func (w *WholesalePrice) Headroom() int {
	if w.OriginalItemCount <= w.RemainingItemCount {
		return 0
	}
	return w.OriginalItemCount - w.RemainingItemCount
}

// LockWholesalePrices returns every lot of the product (consumed ones included), locked for update, in creation order.
func LockWholesalePrices(tx *gorm.DB, storeId string, productId int) ([]*WholesalePrice, error) {
	var lots []*WholesalePrice
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND product_id = ?", storeId, productId).
		Order("id").
		Find(&lots).Error
	if err != nil {
		return nil, err
	}
	return lots, nil
}

func ListWholesalePrices(tx *gorm.DB, storeId string, productId int) ([]*WholesalePrice, error) {
	var lots []*WholesalePrice
	err := tx.Where("store_id = ? AND product_id = ?", storeId, productId).
		Order("id").
		Find(&lots).Error
	if err != nil {
		return nil, err
	}
	return lots, nil
}

// RemainingWholesalePrices filters lots that still hold stock.
func RemainingWholesalePrices(lots []*WholesalePrice) []*WholesalePrice {
	result := make([]*WholesalePrice, 0, len(lots))
	for _, lot := range lots {
		if lot != nil && lot.RemainingItemCount > 0 {
			result = append(result, lot)
		}
	}
	return result
}

// SetWholesalePriceRemaining persists a lot's new remaining count.
func SetWholesalePriceRemaining(tx *gorm.DB, lot *WholesalePrice, remaining int) error {
	if remaining < 0 {
		return NewValidationError("remaining item count of wholesale price %d cannot be negative", lot.ID)
	}
	err := tx.Model(&WholesalePrice{}).
		Where("store_id = ? AND id = ?", lot.StoreId, lot.ID).
		UpdateColumns(map[string]interface{}{
			"remaining_item_count": remaining,
			"updated_at":           time.Now().UTC(),
		}).Error
	if err != nil {
		return err
	}
	lot.RemainingItemCount = remaining
	return nil
}

// RetireWholesalePrice zeroes both counts so returns never re-credit a lot that a collapse replaced.
func RetireWholesalePrice(tx *gorm.DB, lot *WholesalePrice) error {
	err := tx.Model(&WholesalePrice{}).
		Where("store_id = ? AND id = ?", lot.StoreId, lot.ID).
		UpdateColumns(map[string]interface{}{
			"original_item_count":  0,
			"remaining_item_count": 0,
			"updated_at":           time.Now().UTC(),
		}).Error
	if err != nil {
		return err
	}
	lot.OriginalItemCount = 0
	lot.RemainingItemCount = 0
	return nil
}

func CreateWholesalePrice(tx *gorm.DB, lot *WholesalePrice) error {
	if lot.RemainingItemCount < 0 || lot.OriginalItemCount < lot.RemainingItemCount {
		return NewValidationError("invalid wholesale price counts original=%d remaining=%d", lot.OriginalItemCount, lot.RemainingItemCount)
	}
	return tx.Create(lot).Error
}
