package models

import (
	"time"

	"bitbucket.org/mmdatafocus/stock_ledger/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Product struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	StoreId               string          `gorm:"index;size:64;not null" json:"store_id"`
	Name                  string          `gorm:"size:255;not null" json:"name"`
	CategoryId            int             `gorm:"index;not null;default:0" json:"category_id"`
	ConditionId           int             `gorm:"index;not null;default:0" json:"condition_id"`
	GenreId               int             `gorm:"index;not null;default:0" json:"genre_id"`
	BundleItemId          *int            `gorm:"index" json:"bundle_item_id"`
	StockNumber           int             `gorm:"not null;default:0" json:"stock_number"`
	IsInfiniteStock       *bool           `gorm:"not null;default:false" json:"is_infinite_stock"`
	AverageWholesalePrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"average_wholesale_price"`
	MinimumWholesalePrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"minimum_wholesale_price"`
	MaximumWholesalePrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"maximum_wholesale_price"`
	TotalWholesalePrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_wholesale_price"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Product) GetStoreId() string {
	return p.StoreId
}

func (p *Product) IsInfinite() bool {
	return p.IsInfiniteStock != nil && *p.IsInfiniteStock
}

// IsBundle reports whether the product is the backing SKU of a bundle item.
func (p *Product) IsBundle() bool {
	return p.BundleItemId != nil && *p.BundleItemId > 0
}

func (p *Product) WholesalePriceResourceType() WholesalePriceResourceType {
	if p.IsBundle() {
		return WholesalePriceResourceTypeBundle
	}
	return WholesalePriceResourceTypeProduct
}

func GetProduct(tx *gorm.DB, storeId string, id int) (*Product, error) {
	var product Product
	err := tx.Where("store_id = ? AND id = ?", storeId, id).First(&product).Error
	if err != nil {
		if utils.IsRecordNotFound(err) {
			return nil, &NotFoundError{Resource: "product", Id: id}
		}
		return nil, err
	}
	return &product, nil
}

// GetProductForUpdate locks the product row for the rest of the transaction.
// Every stock mutation takes this lock first so mutations on one product serialize.
func GetProductForUpdate(tx *gorm.DB, storeId string, id int) (*Product, error) {
	var product Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND id = ?", storeId, id).
		First(&product).Error
	if err != nil {
		if utils.IsRecordNotFound(err) {
			return nil, &NotFoundError{Resource: "product", Id: id}
		}
		return nil, err
	}
	return &product, nil
}

func GetProductsByIds(tx *gorm.DB, storeId string, ids []int) (map[int]*Product, error) {
	var products []*Product
	if len(ids) == 0 {
		return map[int]*Product{}, nil
	}
	if err := tx.Where("store_id = ? AND id IN ?", storeId, ids).Find(&products).Error; err != nil {
		return nil, err
	}
	result := make(map[int]*Product, len(products))
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

// UpdateProductStock writes the cached quantity and wholesale aggregates in one statement.
func UpdateProductStock(tx *gorm.DB, product *Product, stockNumber int, summary WholesalePriceSummary) error {
	err := tx.Model(&Product{}).
		Where("store_id = ? AND id = ?", product.StoreId, product.ID).
		UpdateColumns(map[string]interface{}{
			"stock_number":            stockNumber,
			"average_wholesale_price": summary.Average,
			"minimum_wholesale_price": summary.Minimum,
			"maximum_wholesale_price": summary.Maximum,
			"total_wholesale_price":   summary.Total,
			"updated_at":              time.Now().UTC(),
		}).Error
	if err != nil {
		return err
	}
	product.StockNumber = stockNumber
	product.AverageWholesalePrice = summary.Average
	product.MinimumWholesalePrice = summary.Minimum
	product.MaximumWholesalePrice = summary.Maximum
	product.TotalWholesalePrice = summary.Total
	return nil
}
