package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrStockHistoryImmutable = errors.New("stock histories are append-only")

// StockHistory is one append-only ledger row per stock mutation.
type StockHistory struct {
	ID             int              `gorm:"primary_key" json:"id"`
	StoreId        string           `gorm:"index:idx_stock_histories_product_date,priority:1;size:64;not null" json:"store_id"`
	ProductId      int              `gorm:"index:idx_stock_histories_product_date,priority:2;not null" json:"product_id"`
	StockDate      time.Time        `gorm:"index:idx_stock_histories_product_date,priority:3;not null" json:"stock_date"`
	Qty            int              `gorm:"not null" json:"qty"`
	StockNumber    int              `gorm:"not null" json:"stock_number"`
	SourceKind     StockSourceKind  `gorm:"index;size:32;not null" json:"source_kind"`
	SourceId       int              `gorm:"index" json:"source_id"`
	Description    string           `gorm:"size:255" json:"description"`
	WholesalePrice *decimal.Decimal `gorm:"type:decimal(20,4)" json:"wholesale_price"`
	IsOutgoing     *bool            `gorm:"not null;default:false" json:"is_outgoing"`
	// IsInfiniteStock rows move no tracked stock; StockNumber is carried over unchanged.
	IsInfiniteStock *bool     `gorm:"not null;default:false" json:"is_infinite_stock"`
	CorrelationId   string    `gorm:"size:64;index" json:"correlation_id"`
	UserId          int       `gorm:"index" json:"user_id"`
	UserName        string    `gorm:"size:100" json:"user_name"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// BeforeSave keeps IsOutgoing in line with the sign of Qty.
// Reads that split incoming/outgoing rows rely on it.
func (sh *StockHistory) BeforeSave(tx *gorm.DB) error {
	_ = tx // signature required by gorm; tx may be nil in tests
	if sh == nil {
		return nil
	}
	b := sh.Qty < 0
	sh.IsOutgoing = &b
	return nil
}

func (sh *StockHistory) BeforeUpdate(tx *gorm.DB) error {
	return ErrStockHistoryImmutable
}

func (sh *StockHistory) BeforeDelete(tx *gorm.DB) error {
	return ErrStockHistoryImmutable
}

func AppendStockHistory(tx *gorm.DB, sh *StockHistory) error {
	if sh.StockDate.IsZero() {
		sh.StockDate = time.Now().UTC()
	}
	return tx.Create(sh).Error
}

// ListStockHistories loads the ledger rows of a store up to and including `until`,
// optionally limited to productIds, ordered for replay.
func ListStockHistories(tx *gorm.DB, storeId string, productIds []int, until time.Time) ([]*StockHistory, error) {
	var rows []*StockHistory
	q := tx.Where("store_id = ? AND stock_date <= ?", storeId, until)
	if len(productIds) > 0 {
		q = q.Where("product_id IN ?", productIds)
	}
	if err := q.Order("stock_date").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
